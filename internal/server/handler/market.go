package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
)

// MarketEngine defines the engine operations the market handler requires. It
// is declared locally so the handler package does not depend on the concrete
// engine implementation.
type MarketEngine interface {
	CreateMarket(ctx context.Context, caller, asset common.Address, minDeposit uint64, deadline time.Time, gateway common.Address) (uint64, error)
	Deposit(ctx context.Context, caller common.Address, marketID, amount uint64) error
	GraduateMarket(ctx context.Context, caller common.Address, marketID uint64) error
	ResolveMarket(ctx context.Context, caller common.Address, marketID uint64, outcome domain.Outcome, proof []byte) error
	RedeemRewards(ctx context.Context, caller common.Address, marketID uint64) (uint64, error)
	Market(id uint64) (domain.Market, error)
	AcceptedProposal(marketID uint64) (uint64, error)
	Tracker(marketID uint64) *domain.PriceRecord
	DepositBalance(marketID uint64, holder common.Address) uint64
	DollarBalance(marketID uint64, holder common.Address) uint64
	Snapshot(marketID uint64) (domain.MarketSnapshot, error)
}

// MarketProjection provides read access to the postgres market projection.
type MarketProjection interface {
	ListByStatus(ctx context.Context, status domain.MarketStatus, limit, offset int) ([]domain.Market, error)
}

// EventLog provides read access to the persisted event history of a market.
type EventLog interface {
	ListByMarket(ctx context.Context, marketID uint64, limit int) ([]domain.Event, error)
}

// ArchiveReader fetches previously archived snapshots of resolved markets.
type ArchiveReader interface {
	FetchSnapshot(ctx context.Context, marketID uint64) ([]byte, error)
}

// MarketHandler serves market lifecycle HTTP endpoints.
type MarketHandler struct {
	engine  MarketEngine
	markets MarketProjection // may be nil when running without postgres
	events  EventLog         // may be nil when running without postgres
	archive ArchiveReader    // may be nil when archival is disabled
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. markets, events and archive are
// optional; endpoints backed by a missing dependency return 501.
func NewMarketHandler(engine MarketEngine, markets MarketProjection, events EventLog, archive ArchiveReader, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		engine:  engine,
		markets: markets,
		events:  events,
		archive: archive,
		logger:  logger,
	}
}

type createMarketRequest struct {
	Caller     string `json:"caller"`
	Asset      string `json:"asset"`
	MinDeposit uint64 `json:"min_deposit"`
	Deadline   string `json:"deadline"` // RFC 3339
	Gateway    string `json:"gateway"`
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gateway, err := parseAddress("gateway", req.Gateway)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deadline: expected RFC 3339")
		return
	}

	id, err := h.engine.CreateMarket(r.Context(), caller, asset, req.MinDeposit, deadline, gateway)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create market failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	m, err := h.engine.Market(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets in a lifecycle status from the projection.
// GET /api/markets?status=open&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	if h.markets == nil {
		writeError(w, http.StatusNotImplemented, "market projection not configured")
		return
	}

	status := domain.MarketStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.MarketStatusOpen
	}
	opts := parseListOpts(r)

	markets, err := h.markets.ListByStatus(r.Context(), status, opts.Limit, opts.Offset)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// marketResponse is the single-market read model, enriched with the winning
// proposal and price tracker when present.
type marketResponse struct {
	domain.Market
	AcceptedProposal *uint64             `json:"accepted_proposal,omitempty"`
	Tracker          *domain.PriceRecord `json:"tracker,omitempty"`
}

// GetMarket returns a single market from the live engine state.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.engine.Market(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := marketResponse{Market: m, Tracker: h.engine.Tracker(id)}
	if accepted, err := h.engine.AcceptedProposal(id); err == nil {
		resp.AcceptedProposal = &accepted
	}
	writeJSON(w, http.StatusOK, resp)
}

type depositRequest struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

// Deposit books reference-asset collateral into a market.
// POST /api/markets/{id}/deposit
func (h *MarketHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.Deposit(r.Context(), caller, id, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"caller":    caller.Hex(),
		"balance":   h.engine.DepositBalance(id, caller),
	})
}

type graduateRequest struct {
	Caller string `json:"caller"`
}

// Graduate locks in the winning proposal after the deadline.
// POST /api/markets/{id}/graduate
func (h *MarketHandler) Graduate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req graduateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.GraduateMarket(r.Context(), caller, id); err != nil {
		writeDomainError(w, err)
		return
	}

	accepted, err := h.engine.AcceptedProposal(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id":         id,
		"accepted_proposal": accepted,
	})
}

type resolveRequest struct {
	Caller  string `json:"caller"`
	Outcome string `json:"outcome"`
	Proof   string `json:"proof,omitempty"` // base64
}

// Resolve finalises the market through the verification gateway.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	proof, err := base64.StdEncoding.DecodeString(req.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proof: expected base64")
		return
	}

	if err := h.engine.ResolveMarket(r.Context(), caller, id, domain.Outcome(req.Outcome), proof); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: resolve market failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	m, err := h.engine.Market(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type redeemRewardsRequest struct {
	Caller string `json:"caller"`
}

// RedeemRewards settles a participant's winning position after resolution.
// POST /api/markets/{id}/redeem
func (h *MarketHandler) RedeemRewards(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req redeemRewardsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payout, err := h.engine.RedeemRewards(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"caller":    caller.Hex(),
		"payout":    payout,
	})
}

// GetDepositBalance returns a participant's deposit ledger balance.
// GET /api/markets/{id}/deposits/{address}
func (h *MarketHandler) GetDepositBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	holder, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.engine.Market(id); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"address":   holder.Hex(),
		"deposit":   h.engine.DepositBalance(id, holder),
		"dollars":   h.engine.DollarBalance(id, holder),
	})
}

// GetSnapshot returns the full live ledger snapshot of a market.
// GET /api/markets/{id}/snapshot
func (h *MarketHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.engine.Snapshot(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetArchivedSnapshot streams the archived snapshot of a resolved market.
// GET /api/markets/{id}/archive
func (h *MarketHandler) GetArchivedSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotImplemented, "snapshot archive not configured")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.archive.FetchSnapshot(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ListEvents returns the persisted event history of a market, newest first.
// GET /api/markets/{id}/events?limit=50
func (h *MarketHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusNotImplemented, "event log not configured")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := parseListOpts(r)

	events, err := h.events.ListByMarket(r.Context(), id, opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"events":    events,
	})
}
