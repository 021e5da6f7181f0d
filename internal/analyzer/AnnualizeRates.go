/*

This file converts the raw rates each venue reports into comparable annual
yields, and blends them by the allocator's current split.

*/

package analyzer

import (
	"errors"
	"fmt"
	"math"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/logger"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/utils"
	"github.com/elys-network/yield-vault/internal/venue"
)

var ratesLogger = logger.GetForComponent("rates_analyzer")

var ErrUnknownRateScale = errors.New("venue reports a rate in an unknown scale")

const secondsPerYear = 365 * 24 * time.Hour

// Ray is the 1e27 fixed-point scale lending pools report rates in.
var Ray = sdkmath.LegacyNewDec(10).Power(27)

// AnnualizeReserveRate converts a ray-scaled annual liquidity rate into a
// plain fraction, e.g. 3.5e25 -> 0.035.
func AnnualizeReserveRate(rayRate sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if rayRate.IsNil() || rayRate.IsNegative() {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("invalid reserve rate %v", rayRate)
	}
	return rayRate.Quo(Ray), nil
}

// AnnualizeBlockRate compounds a per-block supply rate over one year of
// blocks of the given duration and returns the resulting APY.
func AnnualizeBlockRate(ratePerBlock sdkmath.LegacyDec, blockTime time.Duration) (float64, error) {
	if ratePerBlock.IsNil() || ratePerBlock.IsNegative() {
		return 0, fmt.Errorf("invalid supply rate %v", ratePerBlock)
	}
	if blockTime <= 0 {
		return 0, fmt.Errorf("block time must be positive, got %s", blockTime)
	}
	r, err := ratePerBlock.Float64()
	if err != nil {
		return 0, err
	}
	blocksPerYear := float64(secondsPerYear / blockTime)
	// expm1(n*log1p(r)) keeps precision for tiny per-block rates.
	return math.Expm1(blocksPerYear * math.Log1p(r)), nil
}

// VenueAPY reads v's rate and annualizes it according to the venue kind.
func VenueAPY(v venue.Venue, blockTime time.Duration) (float64, error) {
	rate, err := v.Rate()
	if err != nil {
		return 0, err
	}
	switch v.(type) {
	case *venue.LendingVenue:
		apr, err := AnnualizeReserveRate(rate)
		if err != nil {
			return 0, err
		}
		return apr.Float64()
	case *venue.PoolTokenVenue:
		return AnnualizeBlockRate(rate, blockTime)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownRateScale, v.Name())
	}
}

// BlendedAPY weights each venue's APY by its share of the combined balance.
// With nothing deployed it falls back to the plain average.
func BlendedAPY(venues []types.VenueSnapshot) float64 {
	if len(venues) == 0 {
		return 0
	}
	total := sdkmath.ZeroInt()
	for _, v := range venues {
		total = total.Add(utils.OrZero(v.Balance))
	}

	var blended float64
	if total.IsZero() {
		for _, v := range venues {
			blended += v.APY
		}
		return blended / float64(len(venues))
	}
	for _, v := range venues {
		blended += v.APY * utils.Ratio(utils.OrZero(v.Balance), total)
	}

	ratesLogger.Trace().
		Int("venues", len(venues)).
		Str("total", total.String()).
		Float64("blendedAPY", blended).
		Msg("Blended venue APY")
	return blended
}
