package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
)

// ProposalEngine defines the engine operations the proposal handler requires.
type ProposalEngine interface {
	CreateProposal(ctx context.Context, caller common.Address, marketID uint64, description string) (uint64, error)
	MintClaims(ctx context.Context, caller common.Address, proposalID, amount uint64) error
	RedeemClaims(ctx context.Context, caller common.Address, proposalID, amount uint64) error
	Proposal(id uint64) (domain.Proposal, error)
	Instances(proposalID uint64) (domain.InstancePair, error)
	ClaimBalance(proposalID uint64, side domain.Side, holder common.Address) uint64
}

// PriceReader reads the cached venue price for a pool.
type PriceReader interface {
	GetPrice(ctx context.Context, pool common.Hash) (uint64, int64, time.Time, error)
}

// ProposalProjection provides read access to the postgres proposal projection.
type ProposalProjection interface {
	ListByMarket(ctx context.Context, marketID uint64) ([]domain.Proposal, error)
}

// ProposalHandler serves proposal and claim HTTP endpoints.
type ProposalHandler struct {
	engine    ProposalEngine
	prices    PriceReader        // may be nil when running without redis
	proposals ProposalProjection // may be nil when running without postgres
	logger    *slog.Logger
}

// NewProposalHandler creates a ProposalHandler. prices and proposals are
// optional.
func NewProposalHandler(engine ProposalEngine, prices PriceReader, proposals ProposalProjection, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{
		engine:    engine,
		prices:    prices,
		proposals: proposals,
		logger:    logger,
	}
}

type createProposalRequest struct {
	Caller      string `json:"caller"`
	MarketID    uint64 `json:"market_id"`
	Description string `json:"description"`
}

// proposalResponse is the single-proposal read model with the derived claim
// instance identifiers.
type proposalResponse struct {
	domain.Proposal
	AcceptPool common.Hash `json:"accept_pool"`
	RejectPool common.Hash `json:"reject_pool"`
}

// CreateProposal submits a proposal against an open market, committing the
// caller's deposited collateral.
// POST /api/proposals
func (h *ProposalHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var req createProposalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.engine.CreateProposal(r.Context(), caller, req.MarketID, req.Description)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: create proposal failed",
			slog.Uint64("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	p, err := h.engine.Proposal(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, proposalResponse{
		Proposal:   p,
		AcceptPool: p.AcceptInstance,
		RejectPool: p.RejectInstance,
	})
}

// GetProposal returns a single proposal from the live engine state.
// GET /api/proposals/{id}
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.engine.Proposal(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposalResponse{
		Proposal:   p,
		AcceptPool: p.AcceptInstance,
		RejectPool: p.RejectInstance,
	})
}

type mintClaimsRequest struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

// MintClaims mints matched accept/reject claim pairs against new collateral.
// POST /api/proposals/{id}/mint
func (h *ProposalHandler) MintClaims(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req mintClaimsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.MintClaims(r.Context(), caller, id, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.balances(id, caller))
}

type redeemClaimsRequest struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

// RedeemClaims burns matched claim pairs and releases the collateral.
// POST /api/proposals/{id}/redeem
func (h *ProposalHandler) RedeemClaims(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req redeemClaimsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.RedeemClaims(r.Context(), caller, id, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.balances(id, caller))
}

// GetClaimBalances returns a holder's accept and reject claim balances.
// GET /api/proposals/{id}/claims/{address}
func (h *ProposalHandler) GetClaimBalances(w http.ResponseWriter, r *http.Request) {
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

	if _, err := h.engine.Proposal(id); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.balances(id, holder))
}

// GetPrice returns the latest cached venue price for the proposal's accept
// pool.
// GET /api/proposals/{id}/price
func (h *ProposalHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	if h.prices == nil {
		writeError(w, http.StatusNotImplemented, "price cache not configured")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := h.engine.Instances(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	price, tick, ts, err := h.prices.GetPrice(r.Context(), pair.Accept)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"proposal_id": id,
		"pool":        pair.Accept,
		"price":       price,
		"tick":        tick,
		"observed_at": ts.UTC().Format(time.RFC3339Nano),
	})
}

// ListByMarket returns every proposal submitted against a market from the
// projection, oldest first.
// GET /api/markets/{id}/proposals
func (h *ProposalHandler) ListByMarket(w http.ResponseWriter, r *http.Request) {
	if h.proposals == nil {
		writeError(w, http.StatusNotImplemented, "proposal projection not configured")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	proposals, err := h.proposals.ListByMarket(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list proposals failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list proposals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"proposals": proposals,
	})
}

// balances builds the standard claim-balance response body.
func (h *ProposalHandler) balances(proposalID uint64, holder common.Address) map[string]any {
	return map[string]any{
		"proposal_id": proposalID,
		"address":     holder.Hex(),
		"accept":      h.engine.ClaimBalance(proposalID, domain.SideAccept, holder),
		"reject":      h.engine.ClaimBalance(proposalID, domain.SideReject, holder),
	}
}
