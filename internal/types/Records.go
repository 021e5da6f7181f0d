/*

This file contains the records produced by the ledger and the allocator: the
events emitted by every state-changing operation, the report of a rebalance,
and the keeper's per-cycle snapshot.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
)

// EventKind names the operation that produced an Event.
type EventKind string

const (
	EventDeposit           EventKind = "DEPOSIT"
	EventWithdraw          EventKind = "WITHDRAW"
	EventTransfer          EventKind = "TRANSFER"
	EventApproval          EventKind = "APPROVAL"
	EventHarvest           EventKind = "HARVEST"
	EventFeeMinted         EventKind = "FEE_MINTED"
	EventStrategyMigrated  EventKind = "STRATEGY_MIGRATED"
	EventAllocated         EventKind = "ALLOCATED"
	EventDeallocated       EventKind = "DEALLOCATED"
	EventRebalanced        EventKind = "REBALANCED"
	EventCompounded        EventKind = "COMPOUNDED"
	EventRewardsClaimed    EventKind = "REWARDS_CLAIMED"
	EventEmergencyWithdraw EventKind = "EMERGENCY_WITHDRAW"
	EventRiskProfileSet    EventKind = "RISK_PROFILE_SET"
	EventConfigUpdated     EventKind = "CONFIG_UPDATED"
)

// Event is the machine-readable record of a committed operation. Events are
// buffered per transaction and only published after commit.
type Event struct {
	ID       string        `json:"id"`
	TxID     string        `json:"tx_id"`
	Kind     EventKind     `json:"kind"`
	Emitter  Address       `json:"emitter"`
	Sender   Address       `json:"sender"`
	Owner    Address       `json:"owner,omitempty"`
	Receiver Address       `json:"receiver,omitempty"`
	Assets   sdktypes.Coin `json:"assets"`
	Shares   sdkmath.Int   `json:"shares"`
	Detail   string        `json:"detail,omitempty"`
	Time     time.Time     `json:"time"`
}

// VenueID selects one of the two venues.
type VenueID uint8

const (
	VenueA VenueID = iota
	VenueB
)

func (v VenueID) String() string {
	if v == VenueA {
		return "A"
	}
	return "B"
}

// RebalanceReport describes what a single Allocator rebalance did.
type RebalanceReport struct {
	TotalBefore sdkmath.Int `json:"total_before"`
	TotalAfter  sdkmath.Int `json:"total_after"`
	Compounded  sdkmath.Int `json:"compounded"`
	Moved       sdkmath.Int `json:"moved"`
	From        VenueID     `json:"from"`
	To          VenueID     `json:"to"`
	// Skipped is set when drift exceeded the threshold but the donor venue
	// could not cover the full diff.
	Skipped bool `json:"skipped"`
}

// HarvestReport is returned by the ledger's rebalance/harvest.
type HarvestReport struct {
	Rebalance    RebalanceReport `json:"rebalance"`
	AssetsBefore sdkmath.Int     `json:"assets_before"`
	AssetsAfter  sdkmath.Int     `json:"assets_after"`
	Profit       sdkmath.Int     `json:"profit"`
	FeeAssets    sdkmath.Int     `json:"fee_assets"`
	FeeShares    sdkmath.Int     `json:"fee_shares"`
}

// VenueSnapshot is a venue's balance and annualised rate at a point in time.
type VenueSnapshot struct {
	Venue   VenueID     `json:"venue"`
	Name    string      `json:"name"`
	Balance sdkmath.Int `json:"balance"`
	APY     float64     `json:"apy"`
}

// VaultSnapshot captures ledger and allocator state for reporting.
type VaultSnapshot struct {
	TotalAssets sdkmath.Int     `json:"total_assets"`
	TotalSupply sdkmath.Int     `json:"total_supply"`
	SharePrice  float64         `json:"share_price"`
	Idle        sdkmath.Int     `json:"idle"`
	Profile     RiskProfile     `json:"risk_profile"`
	Weights     WeightPair      `json:"weights"`
	Venues      []VenueSnapshot `json:"venues"`
}

// CycleSnapshot is the keeper's record of one run.
type CycleSnapshot struct {
	SnapshotID   int64         `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	CycleNumber  int           `json:"cycle_number"`
	CycleID      string        `json:"cycle_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Initial      VaultSnapshot `json:"initial"`
	Final        VaultSnapshot `json:"final"`
	Actions      []string      `json:"actions"`
	ProfitAssets sdkmath.Int   `json:"profit_assets"`
	FeeShares    sdkmath.Int   `json:"fee_shares"`
	Compounded   sdkmath.Int   `json:"compounded"`
	Error        string        `json:"error,omitempty"`
}
