package allocator

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/utils"
)

var (
	ErrInvalidBalances   = errors.New("venue balances contain invalid values")
	ErrMathematicalError = errors.New("mathematical calculation error")
)

var bpsDenominator = sdkmath.NewInt(types.BpsDenominator)

// holdings is the allocator's position at one instant.
type holdings struct {
	A    sdkmath.Int
	B    sdkmath.Int
	Idle sdkmath.Int
}

func (h holdings) Total() sdkmath.Int {
	return h.A.Add(h.B).Add(h.Idle)
}

func (h holdings) venue(id types.VenueID) sdkmath.Int {
	if id == types.VenueA {
		return h.A
	}
	return h.B
}

func (h holdings) validate() error {
	for _, v := range []sdkmath.Int{h.A, h.B, h.Idle} {
		if v.IsNil() || v.IsNegative() {
			return ErrInvalidBalances
		}
	}
	return nil
}

// splitByWeights returns the venue A leg floor(amount*bpsA/10000) and gives
// B the remainder, so the legs always sum to amount.
func splitByWeights(amount sdkmath.Int, w types.WeightPair) (sdkmath.Int, sdkmath.Int, error) {
	if err := w.Validate(); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	legA, err := utils.MulDivFloor(amount, sdkmath.NewIntFromUint64(w.BpsA), bpsDenominator)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: %w", ErrMathematicalError, err)
	}
	return legA, amount.Sub(legA), nil
}

// withdrawalLegs is how much to take from each source.
type withdrawalLegs struct {
	A    sdkmath.Int
	B    sdkmath.Int
	Idle sdkmath.Int
}

func (l withdrawalLegs) Sum() sdkmath.Int {
	return l.A.Add(l.B).Add(l.Idle)
}

// planWithdrawal sizes each leg as floor(amount*balance/total) against the
// pre-withdrawal total. Legs are independent, so their sum can fall short of
// amount by at most one unit per leg.
func planWithdrawal(amount sdkmath.Int, h holdings) (withdrawalLegs, error) {
	if err := h.validate(); err != nil {
		return withdrawalLegs{}, err
	}
	total := h.Total()
	if amount.GT(total) {
		return withdrawalLegs{}, errors.Join(types.ErrInsufficientBalance,
			fmt.Errorf("requested %s, allocator holds %s", amount, total))
	}
	legs := withdrawalLegs{A: sdkmath.ZeroInt(), B: sdkmath.ZeroInt(), Idle: sdkmath.ZeroInt()}
	if amount.IsZero() {
		return legs, nil
	}
	var err error
	if legs.A, err = utils.MulDivFloor(amount, h.A, total); err != nil {
		return withdrawalLegs{}, fmt.Errorf("%w: %w", ErrMathematicalError, err)
	}
	if legs.B, err = utils.MulDivFloor(amount, h.B, total); err != nil {
		return withdrawalLegs{}, fmt.Errorf("%w: %w", ErrMathematicalError, err)
	}
	if legs.Idle, err = utils.MulDivFloor(amount, h.Idle, total); err != nil {
		return withdrawalLegs{}, fmt.Errorf("%w: %w", ErrMathematicalError, err)
	}
	return legs, nil
}

// driftAnalysis is the outcome of comparing venue balances to their targets.
type driftAnalysis struct {
	Total     sdkmath.Int
	TargetA   sdkmath.Int
	TargetB   sdkmath.Int
	Drift     sdkmath.Int
	Threshold sdkmath.Int
	From      types.VenueID
	To        types.VenueID
	// Act is set when drift exceeds the threshold and the donor can cover it.
	Act bool
	// Skipped is set when drift exceeds the threshold but the donor cannot.
	Skipped bool
}

// analyzeDrift compares venue balances against the weights. Only drift
// strictly above thresholdBps of the venue total triggers a move.
func analyzeDrift(h holdings, w types.WeightPair, thresholdBps uint64) (driftAnalysis, error) {
	if err := h.validate(); err != nil {
		return driftAnalysis{}, err
	}
	total := h.A.Add(h.B)
	targetA, targetB, err := splitByWeights(total, w)
	if err != nil {
		return driftAnalysis{}, err
	}
	res := driftAnalysis{
		Total:     total,
		TargetA:   targetA,
		TargetB:   targetB,
		Drift:     utils.AbsDiff(h.A, targetA),
		Threshold: utils.ApplyBps(total, thresholdBps),
	}
	if total.IsZero() {
		return res, nil
	}

	if h.A.GT(targetA) {
		res.From, res.To = types.VenueA, types.VenueB
	} else {
		res.From, res.To = types.VenueB, types.VenueA
	}

	allocatorLogger.Debug().
		Str("total", total.String()).
		Str("balanceA", h.A.String()).
		Str("targetA", targetA.String()).
		Str("balanceB", h.B.String()).
		Str("targetB", targetB.String()).
		Str("drift", res.Drift.String()).
		Str("threshold", res.Threshold.String()).
		Msg("Venue rebalancing analysis")

	if !res.Drift.GT(res.Threshold) {
		return res, nil
	}
	if h.venue(res.From).LT(res.Drift) {
		res.Skipped = true
		return res, nil
	}
	res.Act = true
	return res, nil
}
