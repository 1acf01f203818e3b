package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Proposal is a candidate outcome inside a market. IDs are global across all
// markets. The two claim-instance identifiers are assigned exactly once at
// creation.
type Proposal struct {
	ID             uint64         `json:"id"`
	MarketID       uint64         `json:"market_id"`
	Creator        common.Address `json:"creator"`
	Description    string         `json:"description"`
	Committed      uint64         `json:"committed"`
	AcceptInstance common.Hash    `json:"accept_instance"`
	RejectInstance common.Hash    `json:"reject_instance"`
	CreatedAt      time.Time      `json:"created_at"`
}
