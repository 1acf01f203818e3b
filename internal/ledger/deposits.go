package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
)

// depositKey is the flat composite key for per-market participant deposits.
type depositKey struct {
	Market uint64
	Holder common.Address
}

// DepositLedger tracks reference asset held by the engine on behalf of
// participants, not yet committed to any proposal. Balances never go
// negative: Debit checks before it mutates.
type DepositLedger struct {
	mu       sync.RWMutex
	balances map[depositKey]uint64
}

// NewDepositLedger creates an empty deposit ledger.
func NewDepositLedger() *DepositLedger {
	return &DepositLedger{balances: make(map[depositKey]uint64)}
}

// Credit adds amount to the participant's unallocated deposit in a market.
func (l *DepositLedger) Credit(market uint64, holder common.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[depositKey{market, holder}] += amount
}

// Debit removes amount from the participant's unallocated deposit.
func (l *DepositLedger) Debit(market uint64, holder common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := depositKey{market, holder}
	if l.balances[k] < amount {
		return fmt.Errorf("ledger: debit deposit of %s in market %d (have %d, want %d): %w",
			holder, market, l.balances[k], amount, domain.ErrInsufficientBalance)
	}
	l.balances[k] -= amount
	return nil
}

// Balance returns the participant's unallocated deposit in a market.
func (l *DepositLedger) Balance(market uint64, holder common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[depositKey{market, holder}]
}

// BalancesForMarket returns every non-zero deposit balance in a market in a
// deterministic order, for snapshots.
func (l *DepositLedger) BalancesForMarket(market uint64) []domain.DepositBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.DepositBalance
	for k, v := range l.balances {
		if k.Market != market || v == 0 {
			continue
		}
		out = append(out, domain.DepositBalance{Holder: k.Holder, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder.Hex() < out[j].Holder.Hex() })
	return out
}
