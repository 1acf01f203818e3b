// Package ledger implements the in-process fungible ledgers the lifecycle
// engine owns: the per-asset reference ledgers, the per-market synthetic
// dollar, the per-proposal claim ledger, and the deposit ledger. Every
// balance-moving method checks before it mutates, so a returned error means
// no state changed.
package ledger

import (
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
)

// Token is a single fungible accounting unit. Mint and Burn are restricted to
// the authority fixed at construction; Transfer is open to any holder.
type Token struct {
	symbol    string
	authority common.Address

	mu       sync.RWMutex
	balances map[common.Address]uint64
	supply   uint64
}

// NewToken creates an empty ledger for symbol whose mint/burn authority is
// the given address.
func NewToken(symbol string, authority common.Address) *Token {
	return &Token{
		symbol:    symbol,
		authority: authority,
		balances:  make(map[common.Address]uint64),
	}
}

// Symbol returns the token's display symbol.
func (t *Token) Symbol() string { return t.symbol }

// Mint credits amount to the target account. Only the authority may call it.
func (t *Token) Mint(caller, to common.Address, amount uint64) error {
	if caller != t.authority {
		return fmt.Errorf("ledger: mint %s by %s: %w", t.symbol, caller, domain.ErrUnauthorized)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.supply > math.MaxUint64-amount {
		return fmt.Errorf("ledger: mint %s overflows supply: %w", t.symbol, domain.ErrInvalidInput)
	}
	t.supply += amount
	t.balances[to] += amount
	return nil
}

// Burn debits amount from the target account. Only the authority may call it.
func (t *Token) Burn(caller, from common.Address, amount uint64) error {
	if caller != t.authority {
		return fmt.Errorf("ledger: burn %s by %s: %w", t.symbol, caller, domain.ErrUnauthorized)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[from] < amount {
		return fmt.Errorf("ledger: burn %s from %s (have %d, want %d): %w",
			t.symbol, from, t.balances[from], amount, domain.ErrInsufficientBalance)
	}
	t.balances[from] -= amount
	t.supply -= amount
	return nil
}

// Transfer moves amount between accounts. It either fully succeeds or leaves
// both balances untouched.
func (t *Token) Transfer(from, to common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.balances[from] < amount {
		return fmt.Errorf("ledger: transfer %s from %s (have %d, want %d): %w",
			t.symbol, from, t.balances[from], amount, domain.ErrInsufficientBalance)
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}

// BalanceOf returns the account's current balance.
func (t *Token) BalanceOf(addr common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[addr]
}

// Supply returns the total amount outstanding.
func (t *Token) Supply() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}
