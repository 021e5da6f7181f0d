package venue

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/types"
)

// ClaimBestEffort claims v's rewards inside an isolated sub-call. A venue
// without reward support, a failing claim, or a panicking claim all yield
// zero and leave the enclosing operation untouched.
func ClaimBestEffort(call chain.Call, v Venue) sdkmath.Int {
	src, ok := v.(RewardSource)
	if !ok {
		return sdkmath.ZeroInt()
	}

	claimed := sdkmath.ZeroInt()
	err := call.Try(func() error {
		amount, err := src.ClaimRewards()
		if err != nil {
			return err
		}
		if amount.IsNil() || amount.IsNegative() {
			return fmt.Errorf("venue reported invalid claim amount")
		}
		claimed = amount
		return nil
	})
	if err != nil {
		logClaimFailure(v, err)
		return sdkmath.ZeroInt()
	}
	return claimed
}

// PendingBestEffort returns v's unclaimed rewards, or zero when unknown.
func PendingBestEffort(v Venue) (pending sdkmath.Int) {
	pending = sdkmath.ZeroInt()
	src, ok := v.(RewardSource)
	if !ok {
		return pending
	}
	defer func() {
		if r := recover(); r != nil {
			logClaimFailure(v, fmt.Errorf("%w: %v", chain.ErrPanic, r))
			pending = sdkmath.ZeroInt()
		}
	}()
	amount, err := src.PendingRewards()
	if err != nil || amount.IsNil() || amount.IsNegative() {
		if err != nil {
			logClaimFailure(v, err)
		}
		return sdkmath.ZeroInt()
	}
	return amount
}

func logClaimFailure(v Venue, err error) {
	if errors.Is(err, types.ErrRewardClaimUnavailable) {
		venueLogger.Debug().Str("venue", v.Name()).Msg("Venue does not support rewards")
		return
	}
	venueLogger.Warn().Err(err).Str("venue", v.Name()).Msg("Reward call failed, treating as zero")
}
