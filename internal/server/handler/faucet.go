package handler

import (
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// Faucet issues reference-asset balances to participants. Only available in
// simulated deployments where the process owns asset issuance.
type Faucet interface {
	Mint(asset, to common.Address, amount uint64) error
	Balance(asset, holder common.Address) uint64
}

// FaucetHandler serves reference-asset funding endpoints.
type FaucetHandler struct {
	faucet Faucet
	logger *slog.Logger
}

// NewFaucetHandler creates a FaucetHandler.
func NewFaucetHandler(faucet Faucet, logger *slog.Logger) *FaucetHandler {
	return &FaucetHandler{faucet: faucet, logger: logger}
}

type faucetMintRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// Mint credits reference asset to a participant account.
// POST /api/faucet/mint
func (h *FaucetHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req faucetMintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := parseAddress("asset", req.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.faucet.Mint(asset, to, req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "faucet mint",
		slog.String("asset", asset.Hex()),
		slog.String("to", to.Hex()),
		slog.Uint64("amount", req.Amount),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"asset":   asset.Hex(),
		"to":      to.Hex(),
		"balance": h.faucet.Balance(asset, to),
	})
}

// Balance returns a participant's reference-asset balance.
// GET /api/faucet/balances/{asset}/{address}
func (h *FaucetHandler) Balance(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAddress("asset", r.PathValue("asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	holder, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"asset":   asset.Hex(),
		"address": holder.Hex(),
		"balance": h.faucet.Balance(asset, holder),
	})
}
