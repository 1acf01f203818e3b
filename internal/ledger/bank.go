package ledger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Bank resolves reference-asset contract addresses to their in-process
// ledgers. Reference assets are external tokens: the bank's authority (a
// faucet or operator account, never the engine) controls issuance, and the
// engine only moves them with Transfer.
type Bank struct {
	authority common.Address

	mu     sync.Mutex
	tokens map[common.Address]*Token
}

// NewBank creates a bank whose asset ledgers are mintable by authority.
func NewBank(authority common.Address) *Bank {
	return &Bank{
		authority: authority,
		tokens:    make(map[common.Address]*Token),
	}
}

// Token returns the ledger for the given asset address, creating an empty
// one on first use.
func (b *Bank) Token(asset common.Address) *Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tokens[asset]
	if !ok {
		t = NewToken(asset.Hex(), b.authority)
		b.tokens[asset] = t
	}
	return t
}
