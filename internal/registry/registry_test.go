package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/registry"
)

func TestDeriveDeterministic(t *testing.T) {
	a1 := registry.Derive(1, domain.SideAccept)
	a2 := registry.Derive(1, domain.SideAccept)
	require.Equal(t, a1, a2)

	// Distinct per side and per proposal.
	require.NotEqual(t, a1, registry.Derive(1, domain.SideReject))
	require.NotEqual(t, a1, registry.Derive(2, domain.SideAccept))
}

func TestRegisterOnce(t *testing.T) {
	r := registry.New()

	pair, err := r.Register(7)
	require.NoError(t, err)
	require.Equal(t, registry.Derive(7, domain.SideAccept), pair.Accept)
	require.Equal(t, registry.Derive(7, domain.SideReject), pair.Reject)

	_, err = r.Register(7)
	require.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	got, ok := r.Instances(7)
	require.True(t, ok)
	require.Equal(t, pair, got)

	_, ok = r.Instances(8)
	require.False(t, ok)
}

func TestLookupReverseIndex(t *testing.T) {
	r := registry.New()
	pair, err := r.Register(3)
	require.NoError(t, err)

	b, ok := r.Lookup(pair.Accept)
	require.True(t, ok)
	require.Equal(t, domain.PoolBinding{ProposalID: 3, Side: domain.SideAccept}, b)

	b, ok = r.Lookup(pair.Reject)
	require.True(t, ok)
	require.Equal(t, domain.PoolBinding{ProposalID: 3, Side: domain.SideReject}, b)

	_, ok = r.Lookup(registry.Derive(99, domain.SideAccept))
	require.False(t, ok)
}
