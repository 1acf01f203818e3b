// Package registry derives the tradeable claim-instance identifiers for each
// proposal and maintains the reverse index from venue pool key back to
// proposal and side.
package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/useQlick/qlickd/internal/domain"
)

// Derive computes the stable claim-instance identifier for one side of a
// proposal. The identifier doubles as the venue pool key for the pool that
// trades this claim against the synthetic dollar.
func Derive(proposalID uint64, side domain.Side) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprintf("qlick/claim/%d/%s", proposalID, side)))
}

// Registry records the proposal -> instance-pair mapping and the pool-key
// reverse index. Registration is write-once per proposal.
type Registry struct {
	mu        sync.RWMutex
	instances map[uint64]domain.InstancePair
	pools     map[common.Hash]domain.PoolBinding
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		instances: make(map[uint64]domain.InstancePair),
		pools:     make(map[common.Hash]domain.PoolBinding),
	}
}

// Register derives and records both claim instances for a proposal. It fails
// if the proposal already has instances.
func (r *Registry) Register(proposalID uint64) (domain.InstancePair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[proposalID]; ok {
		return domain.InstancePair{}, fmt.Errorf("registry: proposal %d: %w", proposalID, domain.ErrAlreadyRegistered)
	}

	pair := domain.InstancePair{
		Accept: Derive(proposalID, domain.SideAccept),
		Reject: Derive(proposalID, domain.SideReject),
	}
	r.instances[proposalID] = pair
	r.pools[pair.Accept] = domain.PoolBinding{ProposalID: proposalID, Side: domain.SideAccept}
	r.pools[pair.Reject] = domain.PoolBinding{ProposalID: proposalID, Side: domain.SideReject}
	return pair, nil
}

// Instances returns the instance pair recorded for a proposal.
func (r *Registry) Instances(proposalID uint64) (domain.InstancePair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pair, ok := r.instances[proposalID]
	return pair, ok
}

// Lookup resolves a venue pool key to the proposal and side it trades.
func (r *Registry) Lookup(pool common.Hash) (domain.PoolBinding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.pools[pool]
	return b, ok
}
