package types

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// VaultParameters are the tunable policy knobs of a deployment. They are
// persisted so an operator can change them without a rebuild.
type VaultParameters struct {
	PerformanceFeeBps   uint64      `json:"performance_fee_bps"`
	CompoundFeeBps      uint64      `json:"compound_fee_bps"`
	MinCompoundAmount   sdkmath.Int `json:"min_compound_amount"`
	AutoCompoundEnabled bool        `json:"auto_compound_enabled"`
	RiskProfile         RiskProfile `json:"risk_profile"`
	Weights             WeightTable `json:"weights"`
}

// Validate checks the parameters against the hard caps of the ledger (20%)
// and the allocator (5%).
func (p VaultParameters) Validate() error {
	if p.PerformanceFeeBps > 2000 {
		return fmt.Errorf("%w: performance fee %d bps above 2000", ErrInvalidArgument, p.PerformanceFeeBps)
	}
	if p.CompoundFeeBps > 500 {
		return fmt.Errorf("%w: compound fee %d bps above 500", ErrInvalidArgument, p.CompoundFeeBps)
	}
	if p.MinCompoundAmount.IsNil() || p.MinCompoundAmount.IsNegative() {
		return errors.Join(ErrInvalidArgument, errors.New("minimum compound amount must be non-negative"))
	}
	if !p.RiskProfile.Valid() {
		return fmt.Errorf("%w: risk profile %d", ErrInvalidArgument, p.RiskProfile)
	}
	return p.Weights.Validate()
}

// MarketParameters drive the simulated venues.
type MarketParameters struct {
	// LendingAPR is venue A's annual rate as a fraction; it is reported
	// ray-scaled like a real lending pool.
	LendingAPR sdkmath.LegacyDec `json:"lending_apr"`
	// LendingRewardAPR is the reward emission on venue A deposits.
	LendingRewardAPR sdkmath.LegacyDec `json:"lending_reward_apr"`
	// PoolTokenExchangeRate is venue B's initial underlying per token.
	PoolTokenExchangeRate sdkmath.LegacyDec `json:"pool_token_exchange_rate"`
	// PoolTokenRatePerBlock is venue B's per-block supply rate.
	PoolTokenRatePerBlock sdkmath.LegacyDec `json:"pool_token_rate_per_block"`
	BlockTime             time.Duration     `json:"block_time"`
}
