package domain

import "github.com/ethereum/go-ethereum/common"

// DepositBalance is one participant's unallocated deposit in a market.
type DepositBalance struct {
	Holder common.Address `json:"holder"`
	Amount uint64         `json:"amount"`
}

// ProposalSnapshot pairs a proposal with every outstanding claim balance on
// either of its sides.
type ProposalSnapshot struct {
	Proposal Proposal       `json:"proposal"`
	Claims   []ClaimBalance `json:"claims"`
}

// MarketSnapshot is the full terminal state of a market, archived after
// resolution.
type MarketSnapshot struct {
	Market           Market             `json:"market"`
	AcceptedProposal uint64             `json:"accepted_proposal"`
	Tracker          *PriceRecord       `json:"tracker,omitempty"`
	Deposits         []DepositBalance   `json:"deposits"`
	DollarSupply     uint64             `json:"dollar_supply"`
	Proposals        []ProposalSnapshot `json:"proposals"`
}
