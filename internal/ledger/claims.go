package ledger

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
)

// claimKey is the flat composite key replacing a participant x proposal x
// side nested map.
type claimKey struct {
	Proposal uint64
	Side     domain.Side
	Holder   common.Address
}

// supplyKey identifies one claim side's outstanding supply.
type supplyKey struct {
	Proposal uint64
	Side     domain.Side
}

// ClaimLedger tracks accept/reject claim balances for every proposal. Accept
// and reject amounts are created in lockstep by MintPair; individual sides
// only move independently through Transfer (venue trading) and Burn
// (redemption paths). Mint and burn are restricted to the engine.
type ClaimLedger struct {
	authority common.Address

	mu       sync.RWMutex
	balances map[claimKey]uint64
	supply   map[supplyKey]uint64 // outstanding supply per proposal side
}

// NewClaimLedger creates an empty claim ledger whose mint and burn authority
// is the engine address.
func NewClaimLedger(authority common.Address) *ClaimLedger {
	return &ClaimLedger{
		authority: authority,
		balances:  make(map[claimKey]uint64),
		supply:    make(map[supplyKey]uint64),
	}
}

// MintPair credits amount of both claim sides of a proposal to the account.
func (l *ClaimLedger) MintPair(caller common.Address, proposal uint64, to common.Address, amount uint64) error {
	if caller != l.authority {
		return fmt.Errorf("ledger: mint claims by %s: %w", caller, domain.ErrUnauthorized)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	accept := supplyKey{proposal, domain.SideAccept}
	reject := supplyKey{proposal, domain.SideReject}
	if l.supply[accept] > math.MaxUint64-amount || l.supply[reject] > math.MaxUint64-amount {
		return fmt.Errorf("ledger: mint claims overflows proposal %d supply: %w", proposal, domain.ErrInvalidInput)
	}
	l.supply[accept] += amount
	l.supply[reject] += amount
	l.balances[claimKey{proposal, domain.SideAccept, to}] += amount
	l.balances[claimKey{proposal, domain.SideReject, to}] += amount
	return nil
}

// Burn debits amount of a single claim side from the account and retires it
// from the side's outstanding supply.
func (l *ClaimLedger) Burn(caller common.Address, proposal uint64, side domain.Side, from common.Address, amount uint64) error {
	if caller != l.authority {
		return fmt.Errorf("ledger: burn claims by %s: %w", caller, domain.ErrUnauthorized)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := claimKey{proposal, side, from}
	if l.balances[k] < amount {
		return fmt.Errorf("ledger: burn %s claim of proposal %d from %s (have %d, want %d): %w",
			side, proposal, from, l.balances[k], amount, domain.ErrInsufficientBalance)
	}
	l.balances[k] -= amount
	l.supply[supplyKey{proposal, side}] -= amount
	return nil
}

// Transfer moves amount of one claim side between accounts. This is the path
// the venue uses to rebalance holdings after a trade.
func (l *ClaimLedger) Transfer(proposal uint64, side domain.Side, from, to common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := claimKey{proposal, side, from}
	if l.balances[k] < amount {
		return fmt.Errorf("ledger: transfer %s claim of proposal %d from %s (have %d, want %d): %w",
			side, proposal, from, l.balances[k], amount, domain.ErrInsufficientBalance)
	}
	l.balances[k] -= amount
	l.balances[claimKey{proposal, side, to}] += amount
	return nil
}

// SupplyOf returns the outstanding supply of one claim side of a proposal.
func (l *ClaimLedger) SupplyOf(proposal uint64, side domain.Side) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply[supplyKey{proposal, side}]
}

// BalanceOf returns the account's balance of one claim side of a proposal.
func (l *ClaimLedger) BalanceOf(proposal uint64, side domain.Side, addr common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[claimKey{proposal, side, addr}]
}

// BalancesForProposal returns every non-zero claim balance of a proposal in
// a deterministic order, for snapshots.
func (l *ClaimLedger) BalancesForProposal(proposal uint64) []domain.ClaimBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.ClaimBalance
	for k, v := range l.balances {
		if k.Proposal != proposal || v == 0 {
			continue
		}
		out = append(out, domain.ClaimBalance{Holder: k.Holder, Side: k.Side, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side < out[j].Side
		}
		return out[i].Holder.Hex() < out[j].Holder.Hex()
	})
	return out
}
