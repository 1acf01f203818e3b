package domain

import "github.com/ethereum/go-ethereum/common"

// Side distinguishes the two claim types a proposal owns.
type Side string

const (
	SideAccept Side = "accept"
	SideReject Side = "reject"
)

// InstancePair holds the two tradeable claim-instance identifiers provisioned
// for a proposal. Each instance doubles as the venue pool key for the pool
// that trades it against the synthetic dollar.
type InstancePair struct {
	Accept common.Hash `json:"accept"`
	Reject common.Hash `json:"reject"`
}

// PoolBinding is the reverse-index entry from a venue pool key back to the
// proposal and claim side it trades.
type PoolBinding struct {
	ProposalID uint64 `json:"proposal_id"`
	Side       Side   `json:"side"`
}

// ClaimBalance is one holder's balance of one claim side, used in snapshots.
type ClaimBalance struct {
	Holder common.Address `json:"holder"`
	Side   Side           `json:"side"`
	Amount uint64         `json:"amount"`
}
