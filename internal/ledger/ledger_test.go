package ledger_test

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/ledger"
)

var (
	authority = common.HexToAddress("0x1000000000000000000000000000000000000001")
	holderA   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	holderB   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestTokenMintBurnAuthority(t *testing.T) {
	tok := ledger.NewToken("TST", authority)

	require.NoError(t, tok.Mint(authority, holderA, 100))
	require.Equal(t, uint64(100), tok.BalanceOf(holderA))
	require.Equal(t, uint64(100), tok.Supply())

	require.ErrorIs(t, tok.Mint(holderA, holderA, 100), domain.ErrUnauthorized)
	require.ErrorIs(t, tok.Burn(holderA, holderA, 50), domain.ErrUnauthorized)

	require.NoError(t, tok.Burn(authority, holderA, 40))
	require.Equal(t, uint64(60), tok.BalanceOf(holderA))
	require.Equal(t, uint64(60), tok.Supply())

	require.ErrorIs(t, tok.Burn(authority, holderA, 61), domain.ErrInsufficientBalance)
}

func TestTokenTransfer(t *testing.T) {
	tok := ledger.NewToken("TST", authority)
	require.NoError(t, tok.Mint(authority, holderA, 100))

	require.NoError(t, tok.Transfer(holderA, holderB, 30))
	require.Equal(t, uint64(70), tok.BalanceOf(holderA))
	require.Equal(t, uint64(30), tok.BalanceOf(holderB))

	// A failed transfer moves nothing.
	require.ErrorIs(t, tok.Transfer(holderA, holderB, 71), domain.ErrInsufficientBalance)
	require.Equal(t, uint64(70), tok.BalanceOf(holderA))
	require.Equal(t, uint64(30), tok.BalanceOf(holderB))
}

func TestBankLazyTokens(t *testing.T) {
	bank := ledger.NewBank(authority)
	asset := common.HexToAddress("0x4000000000000000000000000000000000000004")

	tok := bank.Token(asset)
	require.NoError(t, tok.Mint(authority, holderA, 5))

	// Same asset resolves to the same ledger.
	require.Equal(t, uint64(5), bank.Token(asset).BalanceOf(holderA))

	// A different asset is an independent ledger.
	other := common.HexToAddress("0x5000000000000000000000000000000000000005")
	require.Zero(t, bank.Token(other).BalanceOf(holderA))
}

func TestClaimLedgerMintPair(t *testing.T) {
	l := ledger.NewClaimLedger(authority)

	require.NoError(t, l.MintPair(authority, 1, holderA, 100))
	require.Equal(t, uint64(100), l.BalanceOf(1, domain.SideAccept, holderA))
	require.Equal(t, uint64(100), l.BalanceOf(1, domain.SideReject, holderA))

	// Sides move independently after minting.
	require.NoError(t, l.Transfer(1, domain.SideAccept, holderA, holderB, 40))
	require.Equal(t, uint64(60), l.BalanceOf(1, domain.SideAccept, holderA))
	require.Equal(t, uint64(100), l.BalanceOf(1, domain.SideReject, holderA))
	require.Equal(t, uint64(40), l.BalanceOf(1, domain.SideAccept, holderB))

	require.ErrorIs(t, l.MintPair(holderA, 1, holderA, 1), domain.ErrUnauthorized)
}

func TestClaimLedgerBurn(t *testing.T) {
	l := ledger.NewClaimLedger(authority)
	require.NoError(t, l.MintPair(authority, 1, holderA, 100))

	require.NoError(t, l.Burn(authority, 1, domain.SideAccept, holderA, 100))
	require.Zero(t, l.BalanceOf(1, domain.SideAccept, holderA))
	require.Equal(t, uint64(100), l.BalanceOf(1, domain.SideReject, holderA))

	require.ErrorIs(t, l.Burn(authority, 1, domain.SideAccept, holderA, 1), domain.ErrInsufficientBalance)
	require.ErrorIs(t, l.Burn(holderA, 1, domain.SideReject, holderA, 1), domain.ErrUnauthorized)
}

func TestClaimLedgerBurnReleasesSupply(t *testing.T) {
	l := ledger.NewClaimLedger(authority)
	require.NoError(t, l.MintPair(authority, 1, holderA, 100))
	require.Equal(t, uint64(100), l.SupplyOf(1, domain.SideAccept))
	require.Equal(t, uint64(100), l.SupplyOf(1, domain.SideReject))

	// Burning one side retires only that side's supply.
	require.NoError(t, l.Burn(authority, 1, domain.SideAccept, holderA, 60))
	require.Equal(t, uint64(40), l.SupplyOf(1, domain.SideAccept))
	require.Equal(t, uint64(100), l.SupplyOf(1, domain.SideReject))

	require.NoError(t, l.Burn(authority, 1, domain.SideReject, holderA, 100))
	require.Zero(t, l.SupplyOf(1, domain.SideReject))

	// A failed burn changes neither balance nor supply.
	require.ErrorIs(t, l.Burn(authority, 1, domain.SideAccept, holderA, 41), domain.ErrInsufficientBalance)
	require.Equal(t, uint64(40), l.SupplyOf(1, domain.SideAccept))
	require.Equal(t, uint64(40), l.BalanceOf(1, domain.SideAccept, holderA))
}

func TestClaimLedgerMintBurnCycleFreesHeadroom(t *testing.T) {
	l := ledger.NewClaimLedger(authority)
	half := uint64(math.MaxUint64/2 + 1)

	// Two full mint/burn cycles at half the supply ceiling; without the
	// burns the second mint would overflow.
	for i := 0; i < 2; i++ {
		require.NoError(t, l.MintPair(authority, 1, holderA, half))
		require.NoError(t, l.Burn(authority, 1, domain.SideAccept, holderA, half))
		require.NoError(t, l.Burn(authority, 1, domain.SideReject, holderA, half))
	}
	require.Zero(t, l.SupplyOf(1, domain.SideAccept))
	require.Zero(t, l.SupplyOf(1, domain.SideReject))

	// A genuine overflow is still refused without touching balances.
	require.NoError(t, l.MintPair(authority, 1, holderA, half))
	require.ErrorIs(t, l.MintPair(authority, 1, holderA, half), domain.ErrInvalidInput)
	require.Equal(t, half, l.BalanceOf(1, domain.SideAccept, holderA))
	require.Equal(t, half, l.SupplyOf(1, domain.SideAccept))
}

func TestClaimLedgerBalancesForProposal(t *testing.T) {
	l := ledger.NewClaimLedger(authority)
	require.NoError(t, l.MintPair(authority, 1, holderA, 10))
	require.NoError(t, l.MintPair(authority, 1, holderB, 20))
	require.NoError(t, l.MintPair(authority, 2, holderA, 99))

	out := l.BalancesForProposal(1)
	require.Len(t, out, 4)
	for _, b := range out {
		require.NotZero(t, b.Amount)
	}

	// Deterministic order: sides first, then holders.
	again := l.BalancesForProposal(1)
	require.Equal(t, out, again)
}

func TestDepositLedger(t *testing.T) {
	l := ledger.NewDepositLedger()

	l.Credit(1, holderA, 100)
	l.Credit(1, holderA, 50)
	require.Equal(t, uint64(150), l.Balance(1, holderA))

	require.NoError(t, l.Debit(1, holderA, 150))
	require.Zero(t, l.Balance(1, holderA))

	require.ErrorIs(t, l.Debit(1, holderA, 1), domain.ErrInsufficientBalance)

	// Per-market isolation.
	l.Credit(2, holderA, 7)
	require.Zero(t, l.Balance(1, holderA))
	require.Equal(t, uint64(7), l.Balance(2, holderA))
}

func TestSyntheticLedgerPerMarketSupply(t *testing.T) {
	l := ledger.NewSyntheticLedger(authority)

	require.NoError(t, l.Mint(authority, 1, holderA, 100))
	require.NoError(t, l.Mint(authority, 2, holderA, 30))
	require.Equal(t, uint64(100), l.Supply(1))
	require.Equal(t, uint64(30), l.Supply(2))

	require.NoError(t, l.Transfer(1, holderA, holderB, 60))
	require.Equal(t, uint64(40), l.BalanceOf(1, holderA))
	require.Equal(t, uint64(60), l.BalanceOf(1, holderB))
	require.Equal(t, uint64(100), l.Supply(1))

	require.NoError(t, l.Burn(authority, 1, holderB, 60))
	require.Equal(t, uint64(40), l.Supply(1))
	require.Equal(t, uint64(30), l.Supply(2))

	require.ErrorIs(t, l.Mint(holderA, 1, holderA, 1), domain.ErrUnauthorized)
	require.ErrorIs(t, l.Burn(authority, 2, holderB, 1), domain.ErrInsufficientBalance)
}
