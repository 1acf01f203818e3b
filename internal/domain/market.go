package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketStatus represents the lifecycle state of a market.
//
// The only legal transitions are
// open -> proposal_accepted -> resolved_accept | resolved_reject;
// none of them are reversible.
type MarketStatus string

const (
	MarketStatusOpen             MarketStatus = "open"
	MarketStatusProposalAccepted MarketStatus = "proposal_accepted"
	MarketStatusResolvedAccept   MarketStatus = "resolved_accept"
	MarketStatusResolvedReject   MarketStatus = "resolved_reject"
)

// Resolved reports whether the status is one of the two terminal states.
func (s MarketStatus) Resolved() bool {
	return s == MarketStatusResolvedAccept || s == MarketStatusResolvedReject
}

// Market is a container for competing proposals. Asset, MinDeposit, Deadline
// and Gateway are fixed at creation and never change.
type Market struct {
	ID            uint64         `json:"id"`
	Asset         common.Address `json:"asset"`
	MinDeposit    uint64         `json:"min_deposit"`
	Deadline      time.Time      `json:"deadline"`
	Gateway       common.Address `json:"gateway"`
	Status        MarketStatus   `json:"status"`
	TotalDeposits uint64         `json:"total_deposits"`
	ProposalCount uint64         `json:"proposal_count"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Outcome is the real-world result claimed for a graduated proposal.
type Outcome string

const (
	OutcomeAccept Outcome = "accept"
	OutcomeReject Outcome = "reject"
)

// Valid reports whether o is one of the two recognised outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeAccept || o == OutcomeReject
}

// PriceRecord is the per-market graduation tracker: the highest canonical
// price observed for any accept-side claim in the market, together with the
// proposal that produced it and the raw venue tick behind it. It is only ever
// replaced by a strictly higher price; equal prices keep the earlier record.
type PriceRecord struct {
	ProposalID uint64 `json:"proposal_id"`
	MaxPrice   uint64 `json:"max_price"`
	RawTick    int64  `json:"raw_tick"`
}
