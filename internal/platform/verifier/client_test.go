package verifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/useQlick/qlickd/internal/domain"
	"github.com/useQlick/qlickd/internal/platform/verifier"
)

var gwAddr = common.HexToAddress("0x5000000000000000000000000000000000000005")

func TestVerifyConfirmed(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/verify", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"verified": true})
	}))
	defer srv.Close()

	c := verifier.NewClient(srv.URL, time.Second)
	err := c.Verify(context.Background(), gwAddr, 42, domain.OutcomeAccept, []byte("proof"))
	require.NoError(t, err)

	require.Equal(t, gwAddr.Hex(), got["gateway"])
	require.Equal(t, float64(42), got["proposal_id"])
	require.Equal(t, "accept", got["outcome"])
	require.Equal(t, "cHJvb2Y=", got["proof"])
}

func TestVerifyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"verified": false, "reason": "proof mismatch"})
	}))
	defer srv.Close()

	c := verifier.NewClient(srv.URL, time.Second)
	err := c.Verify(context.Background(), gwAddr, 42, domain.OutcomeAccept, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "proof mismatch")
}

func TestVerifyHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := verifier.NewClient(srv.URL, time.Second)
	err := c.Verify(context.Background(), gwAddr, 1, domain.OutcomeReject, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 500")
}

func TestVerifyTransportError(t *testing.T) {
	c := verifier.NewClient("http://127.0.0.1:1", time.Second)
	err := c.Verify(context.Background(), gwAddr, 1, domain.OutcomeAccept, nil)
	require.Error(t, err)
}
