package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventKind labels the change notifications the engine emits for off-chain
// indexing.
type EventKind string

const (
	EventMarketCreated   EventKind = "market_created"
	EventDepositRecorded EventKind = "deposit_recorded"
	EventProposalCreated EventKind = "proposal_created"
	EventClaimsMinted    EventKind = "claims_minted"
	EventClaimsRedeemed  EventKind = "claims_redeemed"
	EventPriceUpdated    EventKind = "price_updated"
	EventMarketGraduated EventKind = "market_graduated"
	EventMarketResolved  EventKind = "market_resolved"
	EventRewardsRedeemed EventKind = "rewards_redeemed"
)

// Event is the envelope published to the signal bus and appended to the
// event store after an engine operation commits. Payload is one of the typed
// payload structs below, matched by Kind.
type Event struct {
	ID       uuid.UUID `json:"id"`
	Kind     EventKind `json:"kind"`
	MarketID uint64    `json:"market_id"`
	At       time.Time `json:"at"`
	Payload  any       `json:"payload"`
}

// MarketCreatedPayload carries the full market record so projections can
// upsert without a read-back.
type MarketCreatedPayload struct {
	Market Market `json:"market"`
}

type DepositRecordedPayload struct {
	Market      Market         `json:"market"`
	Participant common.Address `json:"participant"`
	Amount      uint64         `json:"amount"`
}

type ProposalCreatedPayload struct {
	Market   Market   `json:"market"`
	Proposal Proposal `json:"proposal"`
}

type ClaimsMintedPayload struct {
	ProposalID  uint64         `json:"proposal_id"`
	Participant common.Address `json:"participant"`
	Amount      uint64         `json:"amount"`
}

type ClaimsRedeemedPayload struct {
	ProposalID  uint64         `json:"proposal_id"`
	Participant common.Address `json:"participant"`
	Amount      uint64         `json:"amount"`
}

type PriceUpdatedPayload struct {
	ProposalID uint64      `json:"proposal_id"`
	Pool       common.Hash `json:"pool"`
	Price      uint64      `json:"price"`
	RawTick    int64       `json:"raw_tick"`
}

type MarketGraduatedPayload struct {
	Market           Market `json:"market"`
	AcceptedProposal uint64 `json:"accepted_proposal"`
}

type MarketResolvedPayload struct {
	Market           Market  `json:"market"`
	AcceptedProposal uint64  `json:"accepted_proposal"`
	Outcome          Outcome `json:"outcome"`
}

type RewardsRedeemedPayload struct {
	MarketID     uint64         `json:"market_id"`
	ProposalID   uint64         `json:"proposal_id"`
	Participant  common.Address `json:"participant"`
	Side         Side           `json:"side"`
	ClaimAmount  uint64         `json:"claim_amount"`
	DollarAmount uint64         `json:"dollar_amount"`
	Payout       uint64         `json:"payout"`
}

// NewEvent wraps a payload in an envelope with a fresh ID.
func NewEvent(kind EventKind, marketID uint64, at time.Time, payload any) Event {
	return Event{
		ID:       uuid.New(),
		Kind:     kind,
		MarketID: marketID,
		At:       at,
		Payload:  payload,
	}
}
