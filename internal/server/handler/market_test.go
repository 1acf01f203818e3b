package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/useQlick/qlickd/internal/domain"
)

// engineStub is a canned-response MarketEngine.
type engineStub struct {
	market    domain.Market
	marketErr error
	createID  uint64
	createErr error
	payout    uint64
	payoutErr error
}

func (s *engineStub) CreateMarket(ctx context.Context, caller, asset common.Address, minDeposit uint64, deadline time.Time, gateway common.Address) (uint64, error) {
	return s.createID, s.createErr
}

func (s *engineStub) Deposit(ctx context.Context, caller common.Address, marketID, amount uint64) error {
	return s.marketErr
}

func (s *engineStub) GraduateMarket(ctx context.Context, caller common.Address, marketID uint64) error {
	return s.marketErr
}

func (s *engineStub) ResolveMarket(ctx context.Context, caller common.Address, marketID uint64, outcome domain.Outcome, proof []byte) error {
	return s.marketErr
}

func (s *engineStub) RedeemRewards(ctx context.Context, caller common.Address, marketID uint64) (uint64, error) {
	return s.payout, s.payoutErr
}

func (s *engineStub) Market(id uint64) (domain.Market, error) { return s.market, s.marketErr }

func (s *engineStub) AcceptedProposal(marketID uint64) (uint64, error) {
	return 0, domain.ErrStateConflict
}

func (s *engineStub) Tracker(marketID uint64) *domain.PriceRecord { return nil }

func (s *engineStub) DepositBalance(marketID uint64, holder common.Address) uint64 { return 0 }

func (s *engineStub) DollarBalance(marketID uint64, holder common.Address) uint64 { return 0 }

func (s *engineStub) Snapshot(marketID uint64) (domain.MarketSnapshot, error) {
	return domain.MarketSnapshot{}, s.marketErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mount registers the handler on a mux with the production route patterns so
// PathValue works.
func mount(h *MarketHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets", h.CreateMarket)
	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/redeem", h.RedeemRewards)
	return mux
}

func TestCreateMarketEndpoint(t *testing.T) {
	stub := &engineStub{
		createID: 7,
		market:   domain.Market{ID: 7, Status: domain.MarketStatusOpen},
	}
	mux := mount(NewMarketHandler(stub, nil, nil, nil, testLogger()))

	body := `{
		"caller": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"asset": "0x4000000000000000000000000000000000000004",
		"min_deposit": 1000000,
		"deadline": "2030-01-01T00:00:00Z",
		"gateway": "0x5000000000000000000000000000000000000005"
	}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":7`)
}

func TestCreateMarketEndpointBadInput(t *testing.T) {
	mux := mount(NewMarketHandler(&engineStub{}, nil, nil, nil, testLogger()))

	cases := []string{
		`not json`,
		`{"caller":"nope","asset":"0x4000000000000000000000000000000000000004","deadline":"2030-01-01T00:00:00Z","gateway":"0x5000000000000000000000000000000000000005"}`,
		`{"caller":"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","asset":"0x4000000000000000000000000000000000000004","deadline":"tomorrow","gateway":"0x5000000000000000000000000000000000000005"}`,
		`{"unknown_field":1}`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/markets", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestGetMarketEndpointNotFound(t *testing.T) {
	stub := &engineStub{marketErr: fmt.Errorf("market 9: %w", domain.ErrNotFound)}
	mux := mount(NewMarketHandler(stub, nil, nil, nil, testLogger()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/9", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets/abc", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMarketsWithoutProjection(t *testing.T) {
	mux := mount(NewMarketHandler(&engineStub{}, nil, nil, nil, testLogger()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/markets", nil))
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRedeemRewardsEndpoint(t *testing.T) {
	stub := &engineStub{payout: 123}
	mux := mount(NewMarketHandler(stub, nil, nil, nil, testLogger()))

	body := `{"caller":"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/markets/1/redeem", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"payout":123`)
}

func TestWriteDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrStateConflict, http.StatusConflict},
		{domain.ErrAlreadyRegistered, http.StatusConflict},
		{domain.ErrReentrantCall, http.StatusConflict},
		{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{domain.ErrNothingToRedeem, http.StatusUnprocessableEntity},
		{domain.ErrExternalFailure, http.StatusBadGateway},
		{fmt.Errorf("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeDomainError(rec, fmt.Errorf("wrapped: %w", tc.err))
		require.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}

func TestParseListOpts(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=10&offset=20", nil)
	opts := parseListOpts(r)
	require.Equal(t, 10, opts.Limit)
	require.Equal(t, 20, opts.Offset)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	opts = parseListOpts(r)
	require.Equal(t, 50, opts.Limit)
	require.Zero(t, opts.Offset)

	r = httptest.NewRequest(http.MethodGet, "/?limit=9999&offset=-3", nil)
	opts = parseListOpts(r)
	require.Equal(t, 500, opts.Limit)
	require.Zero(t, opts.Offset)
}
