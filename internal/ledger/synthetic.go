package ledger

import (
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
)

// dollarKey is the flat composite key for synthetic-dollar balances.
type dollarKey struct {
	Market uint64
	Holder common.Address
}

// SyntheticLedger tracks the synthetic-dollar unit, one independent supply
// per market. It is minted 1:1 alongside claim pairs and burned at claim
// redemption and reward payout; only the engine may mint or burn.
type SyntheticLedger struct {
	authority common.Address

	mu       sync.RWMutex
	balances map[dollarKey]uint64
	supply   map[uint64]uint64
}

// NewSyntheticLedger creates an empty synthetic-dollar ledger whose mint and
// burn authority is the engine address.
func NewSyntheticLedger(authority common.Address) *SyntheticLedger {
	return &SyntheticLedger{
		authority: authority,
		balances:  make(map[dollarKey]uint64),
		supply:    make(map[uint64]uint64),
	}
}

// Mint credits amount of the market's synthetic dollar to the account.
func (l *SyntheticLedger) Mint(caller common.Address, market uint64, to common.Address, amount uint64) error {
	if caller != l.authority {
		return fmt.Errorf("ledger: mint dollar by %s: %w", caller, domain.ErrUnauthorized)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.supply[market] > math.MaxUint64-amount {
		return fmt.Errorf("ledger: mint dollar overflows market %d supply: %w", market, domain.ErrInvalidInput)
	}
	l.supply[market] += amount
	l.balances[dollarKey{market, to}] += amount
	return nil
}

// Burn debits amount of the market's synthetic dollar from the account.
func (l *SyntheticLedger) Burn(caller common.Address, market uint64, from common.Address, amount uint64) error {
	if caller != l.authority {
		return fmt.Errorf("ledger: burn dollar by %s: %w", caller, domain.ErrUnauthorized)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := dollarKey{market, from}
	if l.balances[k] < amount {
		return fmt.Errorf("ledger: burn dollar from %s (have %d, want %d): %w",
			from, l.balances[k], amount, domain.ErrInsufficientBalance)
	}
	l.balances[k] -= amount
	l.supply[market] -= amount
	return nil
}

// Transfer moves synthetic dollars of one market between accounts.
func (l *SyntheticLedger) Transfer(market uint64, from, to common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := dollarKey{market, from}
	if l.balances[k] < amount {
		return fmt.Errorf("ledger: transfer dollar from %s (have %d, want %d): %w",
			from, l.balances[k], amount, domain.ErrInsufficientBalance)
	}
	l.balances[k] -= amount
	l.balances[dollarKey{market, to}] += amount
	return nil
}

// BalanceOf returns the account's synthetic-dollar balance for a market.
func (l *SyntheticLedger) BalanceOf(market uint64, addr common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[dollarKey{market, addr}]
}

// Supply returns the outstanding synthetic-dollar supply for a market.
func (l *SyntheticLedger) Supply(market uint64) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply[market]
}
