package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
)

// CreateMarket allocates a new market in the open state. Asset, minimum
// deposit, deadline and gateway are immutable afterwards. No asset moves.
func (e *Engine) CreateMarket(ctx context.Context, caller, asset common.Address, minDeposit uint64, deadline time.Time, gateway common.Address) (uint64, error) {
	if err := e.enter("create market"); err != nil {
		return 0, err
	}
	defer e.exit()

	if asset == (common.Address{}) {
		return 0, fmt.Errorf("engine: create market: zero asset address: %w", domain.ErrInvalidInput)
	}
	if gateway == (common.Address{}) {
		return 0, fmt.Errorf("engine: create market: zero gateway address: %w", domain.ErrInvalidInput)
	}
	if minDeposit == 0 {
		return 0, fmt.Errorf("engine: create market: zero min deposit: %w", domain.ErrInvalidInput)
	}
	now := e.now()
	if !deadline.After(now) {
		return 0, fmt.Errorf("engine: create market: deadline %s not in the future: %w", deadline, domain.ErrInvalidInput)
	}

	e.state.mu.Lock()
	id := e.state.allocMarketID()
	m := &domain.Market{
		ID:         id,
		Asset:      asset,
		MinDeposit: minDeposit,
		Deadline:   deadline,
		Gateway:    gateway,
		Status:     domain.MarketStatusOpen,
		CreatedAt:  now,
	}
	e.state.markets[id] = m
	snapshot := *m
	e.state.mu.Unlock()

	e.logger.InfoContext(ctx, "engine: market created",
		slog.Uint64("market_id", id),
		slog.String("asset", asset.Hex()),
		slog.Uint64("min_deposit", minDeposit),
		slog.String("creator", caller.Hex()),
	)
	e.emit(ctx, domain.NewEvent(domain.EventMarketCreated, id, now, domain.MarketCreatedPayload{Market: snapshot}))
	return id, nil
}

// Deposit pulls amount of the market's reference asset from the caller into
// engine custody and credits the deposit ledger. The transfer either fully
// succeeds or the whole call fails with no effect.
func (e *Engine) Deposit(ctx context.Context, caller common.Address, marketID, amount uint64) error {
	if err := e.enter("deposit"); err != nil {
		return err
	}
	defer e.exit()

	e.state.mu.RLock()
	m, ok := e.state.markets[marketID]
	e.state.mu.RUnlock()
	if !ok {
		return fmt.Errorf("engine: deposit to market %d: %w", marketID, domain.ErrNotFound)
	}
	if m.Status != domain.MarketStatusOpen {
		return fmt.Errorf("engine: deposit to market %d in status %s: %w", marketID, m.Status, domain.ErrStateConflict)
	}
	now := e.now()
	if !now.Before(m.Deadline) {
		return fmt.Errorf("engine: deposit to market %d after deadline: %w", marketID, domain.ErrStateConflict)
	}
	if amount == 0 {
		return fmt.Errorf("engine: deposit zero amount: %w", domain.ErrInvalidInput)
	}
	if m.TotalDeposits > math.MaxUint64-amount {
		return fmt.Errorf("engine: deposit overflows market %d totals: %w", marketID, domain.ErrInvalidInput)
	}

	if err := e.bank.Token(m.Asset).Transfer(caller, e.self, amount); err != nil {
		return fmt.Errorf("engine: deposit to market %d: %w", marketID, err)
	}

	e.deposits.Credit(marketID, caller, amount)
	e.state.mu.Lock()
	m.TotalDeposits += amount
	snapshot := *m
	e.state.mu.Unlock()

	e.emit(ctx, domain.NewEvent(domain.EventDepositRecorded, marketID, now, domain.DepositRecordedPayload{
		Market:      snapshot,
		Participant: caller,
		Amount:      amount,
	}))
	return nil
}

// GraduateMarket freezes the winning proposal once the deadline has passed.
// When no trade ever pushed a price, the earliest-created proposal wins, so
// graduation always succeeds once proposals exist. Irreversible.
func (e *Engine) GraduateMarket(ctx context.Context, caller common.Address, marketID uint64) error {
	if err := e.enter("graduate market"); err != nil {
		return err
	}
	defer e.exit()

	e.state.mu.Lock()
	defer e.state.mu.Unlock()

	m, ok := e.state.markets[marketID]
	if !ok {
		return fmt.Errorf("engine: graduate market %d: %w", marketID, domain.ErrNotFound)
	}
	if m.Status != domain.MarketStatusOpen {
		return fmt.Errorf("engine: graduate market %d in status %s: %w", marketID, m.Status, domain.ErrStateConflict)
	}
	now := e.now()
	if !now.After(m.Deadline) {
		return fmt.Errorf("engine: graduate market %d before deadline: %w", marketID, domain.ErrStateConflict)
	}
	if m.ProposalCount == 0 {
		return fmt.Errorf("engine: graduate market %d with no proposals: %w", marketID, domain.ErrStateConflict)
	}

	winner := e.state.firstProposal[marketID]
	if t, ok := e.state.trackers[marketID]; ok {
		winner = t.ProposalID
	}

	e.state.accepted[marketID] = winner
	m.Status = domain.MarketStatusProposalAccepted
	snapshot := *m

	e.logger.InfoContext(ctx, "engine: market graduated",
		slog.Uint64("market_id", marketID),
		slog.Uint64("accepted_proposal", winner),
	)
	e.emit(ctx, domain.NewEvent(domain.EventMarketGraduated, marketID, now, domain.MarketGraduatedPayload{
		Market:           snapshot,
		AcceptedProposal: winner,
	}))
	return nil
}

// ResolveMarket finalises the graduated proposal's real-world outcome. The
// gateway is trusted to reject invalid or mismatched proofs by returning an
// error, in which case nothing changes; the engine performs no validation of
// proof contents itself.
func (e *Engine) ResolveMarket(ctx context.Context, caller common.Address, marketID uint64, outcome domain.Outcome, proof []byte) error {
	if err := e.enter("resolve market"); err != nil {
		return err
	}
	defer e.exit()

	e.state.mu.RLock()
	m, ok := e.state.markets[marketID]
	var accepted uint64
	if ok {
		accepted = e.state.accepted[marketID]
	}
	e.state.mu.RUnlock()
	if !ok {
		return fmt.Errorf("engine: resolve market %d: %w", marketID, domain.ErrNotFound)
	}
	if m.Status != domain.MarketStatusProposalAccepted {
		return fmt.Errorf("engine: resolve market %d in status %s: %w", marketID, m.Status, domain.ErrStateConflict)
	}
	if !outcome.Valid() {
		return fmt.Errorf("engine: resolve market %d with outcome %q: %w", marketID, outcome, domain.ErrInvalidInput)
	}

	if err := e.gateway.Verify(ctx, m.Gateway, accepted, outcome, proof); err != nil {
		return fmt.Errorf("engine: resolve market %d: gateway verify: %w",
			marketID, errors.Join(domain.ErrExternalFailure, err))
	}

	e.state.mu.Lock()
	if outcome == domain.OutcomeAccept {
		m.Status = domain.MarketStatusResolvedAccept
	} else {
		m.Status = domain.MarketStatusResolvedReject
	}
	snapshot := *m
	e.state.mu.Unlock()

	e.logger.InfoContext(ctx, "engine: market resolved",
		slog.Uint64("market_id", marketID),
		slog.String("outcome", string(outcome)),
	)
	e.emit(ctx, domain.NewEvent(domain.EventMarketResolved, marketID, e.now(), domain.MarketResolvedPayload{
		Market:           snapshot,
		AcceptedProposal: accepted,
		Outcome:          outcome,
	}))
	return nil
}

// RedeemRewards pays the caller's winning-side claims of the accepted
// proposal plus their synthetic-dollar balance, 1:1 in the market's
// reference asset, and burns both. Losing-side claims are untouched; they
// simply have no redemption path.
func (e *Engine) RedeemRewards(ctx context.Context, caller common.Address, marketID uint64) (uint64, error) {
	if err := e.enter("redeem rewards"); err != nil {
		return 0, err
	}
	defer e.exit()

	e.state.mu.RLock()
	m, ok := e.state.markets[marketID]
	var accepted uint64
	if ok {
		accepted = e.state.accepted[marketID]
	}
	e.state.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("engine: redeem rewards in market %d: %w", marketID, domain.ErrNotFound)
	}
	if !m.Status.Resolved() {
		return 0, fmt.Errorf("engine: redeem rewards in market %d in status %s: %w", marketID, m.Status, domain.ErrStateConflict)
	}

	side := domain.SideAccept
	if m.Status == domain.MarketStatusResolvedReject {
		side = domain.SideReject
	}

	claimBal := e.claims.BalanceOf(accepted, side, caller)
	dollarBal := e.dollars.BalanceOf(marketID, caller)
	if claimBal == 0 && dollarBal == 0 {
		return 0, fmt.Errorf("engine: redeem rewards in market %d for %s: %w", marketID, caller, domain.ErrNothingToRedeem)
	}
	if claimBal > math.MaxUint64-dollarBal {
		return 0, fmt.Errorf("engine: redeem rewards payout overflows: %w", domain.ErrInvalidInput)
	}
	payout := claimBal + dollarBal

	asset := e.bank.Token(m.Asset)
	if asset.BalanceOf(e.self) < payout {
		return 0, fmt.Errorf("engine: redeem rewards in market %d: custody %d short of payout %d: %w",
			marketID, asset.BalanceOf(e.self), payout, domain.ErrInsufficientBalance)
	}

	// Checks done; none of the mutations below can fail.
	if claimBal > 0 {
		if err := e.claims.Burn(e.self, accepted, side, caller, claimBal); err != nil {
			return 0, fmt.Errorf("engine: redeem rewards: %w", err)
		}
	}
	if dollarBal > 0 {
		if err := e.dollars.Burn(e.self, marketID, caller, dollarBal); err != nil {
			return 0, fmt.Errorf("engine: redeem rewards: %w", err)
		}
	}
	if err := asset.Transfer(e.self, caller, payout); err != nil {
		return 0, fmt.Errorf("engine: redeem rewards: %w", err)
	}

	e.emit(ctx, domain.NewEvent(domain.EventRewardsRedeemed, marketID, e.now(), domain.RewardsRedeemedPayload{
		MarketID:     marketID,
		ProposalID:   accepted,
		Participant:  caller,
		Side:         side,
		ClaimAmount:  claimBal,
		DollarAmount: dollarBal,
		Payout:       payout,
	}))
	return payout, nil
}
