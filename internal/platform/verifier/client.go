// Package verifier provides the HTTP client for the outcome verification
// service that finalises market resolution.
package verifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/useQlick/qlickd/internal/domain"
)

// Client implements domain.VerificationGateway against a remote verification
// service. The service holds the per-gateway verification rules; the engine
// only forwards the claimed outcome plus its proof and trusts the answer.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new verification client.
//
// baseURL is the verification service root, e.g. "http://localhost:8600".
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// verifyRequest is the wire envelope posted to the verification service.
type verifyRequest struct {
	Gateway    string `json:"gateway"`
	ProposalID uint64 `json:"proposal_id"`
	Outcome    string `json:"outcome"`
	Proof      string `json:"proof,omitempty"`
}

// verifyResponse is the wire envelope returned by the verification service.
type verifyResponse struct {
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

// Verify submits the claimed outcome and proof to the verification service.
// It returns nil only when the service confirms the outcome; every other
// path, including transport failures, is an error.
func (c *Client) Verify(ctx context.Context, gateway common.Address, proposalID uint64, outcome domain.Outcome, proof []byte) error {
	reqBody := verifyRequest{
		Gateway:    gateway.Hex(),
		ProposalID: proposalID,
		Outcome:    string(outcome),
		Proof:      base64.StdEncoding.EncodeToString(proof),
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("verifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/verify", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("verifier: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("verifier: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("verifier: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verifier: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return fmt.Errorf("verifier: decode response: %w", err)
	}

	if !vr.Verified {
		if vr.Reason != "" {
			return fmt.Errorf("verifier: rejected proposal %d: %s", proposalID, vr.Reason)
		}
		return errors.New("verifier: outcome not verified")
	}
	return nil
}

// Compile-time interface check.
var _ domain.VerificationGateway = (*Client)(nil)
