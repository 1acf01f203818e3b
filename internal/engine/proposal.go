package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/registry"
)

// CreateProposal spends the market's minimum deposit from the caller's
// deposit ledger to open a new proposal: half of it is minted back to the
// caller as an accept/reject claim pair, the other half seeds the two venue
// pools together with an equal amount of freshly minted synthetic dollars.
// When the minimum deposit is odd, the creator share floors and the
// liquidity half takes the remainder.
func (e *Engine) CreateProposal(ctx context.Context, caller common.Address, marketID uint64, description string) (uint64, error) {
	if err := e.enter("create proposal"); err != nil {
		return 0, err
	}
	defer e.exit()

	e.state.mu.RLock()
	m, ok := e.state.markets[marketID]
	e.state.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("engine: create proposal in market %d: %w", marketID, domain.ErrNotFound)
	}
	if m.Status != domain.MarketStatusOpen {
		return 0, fmt.Errorf("engine: create proposal in market %d in status %s: %w", marketID, m.Status, domain.ErrStateConflict)
	}
	now := e.now()
	if !now.Before(m.Deadline) {
		return 0, fmt.Errorf("engine: create proposal in market %d after deadline: %w", marketID, domain.ErrStateConflict)
	}
	if e.deposits.Balance(marketID, caller) < m.MinDeposit {
		return 0, fmt.Errorf("engine: create proposal in market %d: deposit %d below minimum %d: %w",
			marketID, e.deposits.Balance(marketID, caller), m.MinDeposit, domain.ErrInsufficientBalance)
	}

	creatorShare := m.MinDeposit / 2
	engineShare := m.MinDeposit - creatorShare

	// Claim supply for a fresh proposal id starts at zero, so only the
	// market's dollar supply can overflow in the mint sequence below.
	if e.dollars.Supply(marketID) > math.MaxUint64-engineShare {
		return 0, fmt.Errorf("engine: create proposal in market %d overflows dollar supply: %w", marketID, domain.ErrInvalidInput)
	}

	// The liquidity half splits across the two pools; the accept pool
	// absorbs the remainder.
	rejectDollars := engineShare / 2
	acceptDollars := engineShare - rejectDollars

	e.state.mu.Lock()
	pid := e.state.allocProposalID()
	e.state.mu.Unlock()

	// Pool initialisation is the only fallible external call; it happens
	// before any ledger mutation so a venue abort leaves no side effects.
	acceptKey := registry.Derive(pid, domain.SideAccept)
	rejectKey := registry.Derive(pid, domain.SideReject)
	if err := e.venue.InitializePool(ctx, acceptKey, engineShare, acceptDollars); err != nil {
		return 0, fmt.Errorf("engine: create proposal %d: init accept pool: %w",
			pid, errors.Join(domain.ErrExternalFailure, err))
	}
	if err := e.venue.InitializePool(ctx, rejectKey, engineShare, rejectDollars); err != nil {
		return 0, fmt.Errorf("engine: create proposal %d: init reject pool: %w",
			pid, errors.Join(domain.ErrExternalFailure, err))
	}

	// All checks passed and the venue accepted both pools; the remaining
	// mutations cannot fail.
	if err := e.deposits.Debit(marketID, caller, m.MinDeposit); err != nil {
		return 0, fmt.Errorf("engine: create proposal: %w", err)
	}
	if err := e.claims.MintPair(e.self, pid, caller, creatorShare); err != nil {
		return 0, fmt.Errorf("engine: create proposal: %w", err)
	}
	if err := e.claims.MintPair(e.self, pid, e.self, engineShare); err != nil {
		return 0, fmt.Errorf("engine: create proposal: %w", err)
	}
	if err := e.dollars.Mint(e.self, marketID, e.self, engineShare); err != nil {
		return 0, fmt.Errorf("engine: create proposal: %w", err)
	}

	// Move the seed liquidity to the venue's account so custody matches the
	// reserves it was initialised with.
	if err := e.claims.Transfer(pid, domain.SideAccept, e.self, e.venueAddr, engineShare); err != nil {
		return 0, fmt.Errorf("engine: create proposal: %w", err)
	}
	if err := e.claims.Transfer(pid, domain.SideReject, e.self, e.venueAddr, engineShare); err != nil {
		return 0, fmt.Errorf("engine: create proposal: %w", err)
	}
	if err := e.dollars.Transfer(marketID, e.self, e.venueAddr, engineShare); err != nil {
		return 0, fmt.Errorf("engine: create proposal: %w", err)
	}

	pair, err := e.registry.Register(pid)
	if err != nil {
		return 0, fmt.Errorf("engine: create proposal: %w", err)
	}

	p := &domain.Proposal{
		ID:             pid,
		MarketID:       marketID,
		Creator:        caller,
		Description:    description,
		Committed:      m.MinDeposit,
		AcceptInstance: pair.Accept,
		RejectInstance: pair.Reject,
		CreatedAt:      now,
	}

	e.state.mu.Lock()
	e.state.proposals[pid] = p
	m.ProposalCount++
	if m.ProposalCount == 1 {
		e.state.firstProposal[marketID] = pid
	}
	marketSnap := *m
	proposalSnap := *p
	e.state.mu.Unlock()

	e.logger.InfoContext(ctx, "engine: proposal created",
		slog.Uint64("proposal_id", pid),
		slog.Uint64("market_id", marketID),
		slog.String("creator", caller.Hex()),
	)
	e.emit(ctx, domain.NewEvent(domain.EventProposalCreated, marketID, now, domain.ProposalCreatedPayload{
		Market:   marketSnap,
		Proposal: proposalSnap,
	}))
	return pid, nil
}

// MintClaims sells the caller amount of each claim side plus amount of the
// synthetic dollar for amount of the market's reference asset.
func (e *Engine) MintClaims(ctx context.Context, caller common.Address, proposalID, amount uint64) error {
	if err := e.enter("mint claims"); err != nil {
		return err
	}
	defer e.exit()

	e.state.mu.RLock()
	p, ok := e.state.proposals[proposalID]
	var m *domain.Market
	if ok {
		m = e.state.markets[p.MarketID]
	}
	e.state.mu.RUnlock()
	if !ok {
		return fmt.Errorf("engine: mint claims for proposal %d: %w", proposalID, domain.ErrNotFound)
	}
	if m.Status != domain.MarketStatusOpen {
		return fmt.Errorf("engine: mint claims for proposal %d in status %s: %w", proposalID, m.Status, domain.ErrStateConflict)
	}
	if amount == 0 {
		return fmt.Errorf("engine: mint zero claims: %w", domain.ErrInvalidInput)
	}
	if e.claims.SupplyOf(proposalID, domain.SideAccept) > math.MaxUint64-amount ||
		e.claims.SupplyOf(proposalID, domain.SideReject) > math.MaxUint64-amount {
		return fmt.Errorf("engine: mint claims for proposal %d overflows supply: %w", proposalID, domain.ErrInvalidInput)
	}
	if e.dollars.Supply(p.MarketID) > math.MaxUint64-amount {
		return fmt.Errorf("engine: mint claims for market %d overflows dollar supply: %w", p.MarketID, domain.ErrInvalidInput)
	}

	// The asset transfer is the last fallible step; the mints below were
	// prechecked and cannot fail.
	if err := e.bank.Token(m.Asset).Transfer(caller, e.self, amount); err != nil {
		return fmt.Errorf("engine: mint claims for proposal %d: %w", proposalID, err)
	}
	if err := e.claims.MintPair(e.self, proposalID, caller, amount); err != nil {
		return fmt.Errorf("engine: mint claims: %w", err)
	}
	if err := e.dollars.Mint(e.self, p.MarketID, caller, amount); err != nil {
		return fmt.Errorf("engine: mint claims: %w", err)
	}

	e.emit(ctx, domain.NewEvent(domain.EventClaimsMinted, p.MarketID, e.now(), domain.ClaimsMintedPayload{
		ProposalID:  proposalID,
		Participant: caller,
		Amount:      amount,
	}))
	return nil
}

// RedeemClaims is the inverse of MintClaims: it burns amount of each claim
// side and amount of the synthetic dollar and pays back amount of the
// market's reference asset. It has no lifecycle restriction beyond the
// proposal existing; the pair stays redeemable at par in every market
// status, which is the arbitrage path that keeps claim-pair value pegged.
func (e *Engine) RedeemClaims(ctx context.Context, caller common.Address, proposalID, amount uint64) error {
	if err := e.enter("redeem claims"); err != nil {
		return err
	}
	defer e.exit()

	e.state.mu.RLock()
	p, ok := e.state.proposals[proposalID]
	var m *domain.Market
	if ok {
		m = e.state.markets[p.MarketID]
	}
	e.state.mu.RUnlock()
	if !ok {
		return fmt.Errorf("engine: redeem claims for proposal %d: %w", proposalID, domain.ErrNotFound)
	}
	if amount == 0 {
		return fmt.Errorf("engine: redeem zero claims: %w", domain.ErrInvalidInput)
	}

	asset := e.bank.Token(m.Asset)
	if e.claims.BalanceOf(proposalID, domain.SideAccept, caller) < amount ||
		e.claims.BalanceOf(proposalID, domain.SideReject, caller) < amount {
		return fmt.Errorf("engine: redeem claims for proposal %d: claim pair short of %d: %w",
			proposalID, amount, domain.ErrInsufficientBalance)
	}
	if e.dollars.BalanceOf(p.MarketID, caller) < amount {
		return fmt.Errorf("engine: redeem claims for proposal %d: dollars short of %d: %w",
			proposalID, amount, domain.ErrInsufficientBalance)
	}
	if asset.BalanceOf(e.self) < amount {
		return fmt.Errorf("engine: redeem claims for proposal %d: custody short of %d: %w",
			proposalID, amount, domain.ErrInsufficientBalance)
	}

	// Checks done; none of the mutations below can fail.
	if err := e.claims.Burn(e.self, proposalID, domain.SideAccept, caller, amount); err != nil {
		return fmt.Errorf("engine: redeem claims: %w", err)
	}
	if err := e.claims.Burn(e.self, proposalID, domain.SideReject, caller, amount); err != nil {
		return fmt.Errorf("engine: redeem claims: %w", err)
	}
	if err := e.dollars.Burn(e.self, p.MarketID, caller, amount); err != nil {
		return fmt.Errorf("engine: redeem claims: %w", err)
	}
	if err := asset.Transfer(e.self, caller, amount); err != nil {
		return fmt.Errorf("engine: redeem claims: %w", err)
	}

	e.emit(ctx, domain.NewEvent(domain.EventClaimsRedeemed, p.MarketID, e.now(), domain.ClaimsRedeemedPayload{
		ProposalID:  proposalID,
		Participant: caller,
		Amount:      amount,
	}))
	return nil
}
