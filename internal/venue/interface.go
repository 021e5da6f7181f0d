package venue

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/types"
)

// Venue is the uniform view the allocator has of a yield venue. Amounts are
// always denominated in the vault asset; adapters translate to whatever unit
// the venue uses internally.
type Venue interface {
	// Name is a human-readable label for logs and the API.
	Name() string

	// Deposit moves amount from the allocator into the venue.
	Deposit(amount sdkmath.Int) error

	// Withdraw asks the venue for amount and returns what actually arrived
	// at the allocator, which may be less because of venue-side rounding.
	Withdraw(amount sdkmath.Int) (sdkmath.Int, error)

	// Balance is the allocator's current claim on the venue in asset units.
	Balance() (sdkmath.Int, error)

	// Rate is the venue's raw reported rate, in the venue's own scale.
	Rate() (sdkmath.LegacyDec, error)
}

// RewardSource is implemented by venues that can pay out rewards. Both
// calls are best effort; callers treat any failure as zero.
type RewardSource interface {
	ClaimRewards() (sdkmath.Int, error)
	PendingRewards() (sdkmath.Int, error)
}

// Exiter is implemented by venues that can close the whole position in one
// call, leaving no rounding dust behind.
type Exiter interface {
	WithdrawAll() (sdkmath.Int, error)
}

// LendingPool is the lending-pool style venue (venue A).
type LendingPool interface {
	Deposit(caller types.Address, asset string, amount sdkmath.Int, onBehalfOf types.Address) error
	Withdraw(caller types.Address, asset string, amount sdkmath.Int, to types.Address) (sdkmath.Int, error)
	// ReserveRate is the annual liquidity rate scaled by 1e27 (ray).
	ReserveRate(asset string) (sdkmath.LegacyDec, error)
	// ReceiptToken returns the balance-bearing token for asset deposits.
	ReceiptToken(asset string) (BalanceToken, error)
}

// RewardsController is the optional reward side of a lending pool.
type RewardsController interface {
	ClaimRewards(caller types.Address, asset string, to types.Address) (sdkmath.Int, error)
	PendingRewards(holder types.Address, asset string) (sdkmath.Int, error)
}

// BalanceToken reports a holder's balance.
type BalanceToken interface {
	BalanceOf(holder types.Address) sdkmath.Int
}

// PoolToken is the pool-token style venue (venue B). Mint and Redeem report
// failure through a non-zero error code rather than an error value.
type PoolToken interface {
	Mint(caller types.Address, amount sdkmath.Int) uint32
	Redeem(caller types.Address, tokenAmount sdkmath.Int) uint32
	BalanceOf(holder types.Address) sdkmath.Int
	// ExchangeRateStored is the amount of underlying per pool token.
	ExchangeRateStored() sdkmath.LegacyDec
	// SupplyRatePerBlock is the per-block supply rate as a fraction.
	SupplyRatePerBlock() sdkmath.LegacyDec
}

// RewardClaimer is the optional reward side of a pool-token market.
type RewardClaimer interface {
	ClaimReward(holder types.Address) (sdkmath.Int, error)
	AccruedReward(holder types.Address) (sdkmath.Int, error)
}
