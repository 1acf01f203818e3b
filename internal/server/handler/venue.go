package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// VenueSim defines the simulated trading venue operations exposed over HTTP.
// Only available when the engine runs against the in-process venue.
type VenueSim interface {
	Buy(ctx context.Context, key common.Hash, dollarIn uint64) (uint64, error)
	Sell(ctx context.Context, key common.Hash, claimIn uint64) (uint64, error)
	CurrentTick(ctx context.Context, key common.Hash) (int64, error)
}

// VenueHandler serves endpoints for trading against the simulated venue.
type VenueHandler struct {
	venue  VenueSim
	logger *slog.Logger
}

// NewVenueHandler creates a VenueHandler.
func NewVenueHandler(venue VenueSim, logger *slog.Logger) *VenueHandler {
	return &VenueHandler{venue: venue, logger: logger}
}

type swapRequest struct {
	AmountIn uint64 `json:"amount_in"`
}

// poolKey extracts the {pool} path parameter as a 32-byte identifier.
func poolKey(r *http.Request) (common.Hash, bool) {
	raw := r.PathValue("pool")
	if len(raw) != 66 || raw[:2] != "0x" {
		return common.Hash{}, false
	}
	return common.HexToHash(raw), true
}

// Buy swaps synthetic dollars into claims on a pool.
// POST /api/venue/pools/{pool}/buy
func (h *VenueHandler) Buy(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pool key")
		return
	}
	var req swapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.venue.Buy(r.Context(), pool, req.AmountIn)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":       pool,
		"amount_in":  req.AmountIn,
		"amount_out": out,
	})
}

// Sell swaps claims into synthetic dollars on a pool.
// POST /api/venue/pools/{pool}/sell
func (h *VenueHandler) Sell(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pool key")
		return
	}
	var req swapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.venue.Sell(r.Context(), pool, req.AmountIn)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool":       pool,
		"amount_in":  req.AmountIn,
		"amount_out": out,
	})
}

// Tick returns the pool's current venue tick.
// GET /api/venue/pools/{pool}/tick
func (h *VenueHandler) Tick(w http.ResponseWriter, r *http.Request) {
	pool, ok := poolKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pool key")
		return
	}

	tick, err := h.venue.CurrentTick(r.Context(), pool)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool": pool,
		"tick": tick,
	})
}
