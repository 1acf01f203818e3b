// Package server exposes the engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/useQlick/qlickd/internal/server/handler"
	"github.com/useQlick/qlickd/internal/server/middleware"
	"github.com/useQlick/qlickd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Venue may be nil when the engine runs against an external venue.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Proposals *handler.ProposalHandler
	Venue     *handler.VenueHandler
	Faucet    *handler.FaucetHandler
}

// Server is the HTTP + WebSocket API server for the proposal market engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle endpoints.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/deposit", handlers.Markets.Deposit)
	mux.HandleFunc("POST /api/markets/{id}/graduate", handlers.Markets.Graduate)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.Resolve)
	mux.HandleFunc("POST /api/markets/{id}/redeem", handlers.Markets.RedeemRewards)
	mux.HandleFunc("GET /api/markets/{id}/deposits/{address}", handlers.Markets.GetDepositBalance)
	mux.HandleFunc("GET /api/markets/{id}/snapshot", handlers.Markets.GetSnapshot)
	mux.HandleFunc("GET /api/markets/{id}/archive", handlers.Markets.GetArchivedSnapshot)
	mux.HandleFunc("GET /api/markets/{id}/events", handlers.Markets.ListEvents)
	mux.HandleFunc("GET /api/markets/{id}/proposals", handlers.Proposals.ListByMarket)

	// Proposal and claim endpoints.
	mux.HandleFunc("POST /api/proposals", handlers.Proposals.CreateProposal)
	mux.HandleFunc("GET /api/proposals/{id}", handlers.Proposals.GetProposal)
	mux.HandleFunc("POST /api/proposals/{id}/mint", handlers.Proposals.MintClaims)
	mux.HandleFunc("POST /api/proposals/{id}/redeem", handlers.Proposals.RedeemClaims)
	mux.HandleFunc("GET /api/proposals/{id}/claims/{address}", handlers.Proposals.GetClaimBalances)
	mux.HandleFunc("GET /api/proposals/{id}/price", handlers.Proposals.GetPrice)

	// Simulated venue endpoints (only when the in-process venue is enabled).
	if handlers.Venue != nil {
		mux.HandleFunc("POST /api/venue/pools/{pool}/buy", handlers.Venue.Buy)
		mux.HandleFunc("POST /api/venue/pools/{pool}/sell", handlers.Venue.Sell)
		mux.HandleFunc("GET /api/venue/pools/{pool}/tick", handlers.Venue.Tick)
	}

	// Faucet endpoints (only in simulated deployments).
	if handlers.Faucet != nil {
		mux.HandleFunc("POST /api/faucet/mint", handlers.Faucet.Mint)
		mux.HandleFunc("GET /api/faucet/balances/{asset}/{address}", handlers.Faucet.Balance)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
