package venue

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/logger"
	"github.com/elys-network/yield-vault/internal/types"
)

var venueLogger = logger.GetForComponent("venue")

// AssetBalances reads asset balances; the chain bank satisfies it.
type AssetBalances interface {
	BalanceOf(addr types.Address) sdkmath.Int
}

// LendingVenue adapts a LendingPool for one holder and asset.
type LendingVenue struct {
	name    string
	pool    LendingPool
	receipt BalanceToken
	asset   string
	holder  types.Address
}

// NewLendingVenue binds pool to holder (the allocator) for asset.
func NewLendingVenue(name string, pool LendingPool, asset string, holder types.Address) (*LendingVenue, error) {
	if pool == nil {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("lending pool cannot be nil"))
	}
	if holder.IsZero() || asset == "" {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("holder and asset are required"))
	}
	receipt, err := pool.ReceiptToken(asset)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve receipt token for %s: %w", asset, err)
	}
	return &LendingVenue{name: name, pool: pool, receipt: receipt, asset: asset, holder: holder}, nil
}

func (v *LendingVenue) Name() string { return v.name }

func (v *LendingVenue) Deposit(amount sdkmath.Int) error {
	if err := v.pool.Deposit(v.holder, v.asset, amount, v.holder); err != nil {
		return errors.Join(types.ErrVenueOperationFailed, fmt.Errorf("%s deposit of %s: %w", v.name, amount, err))
	}
	return nil
}

func (v *LendingVenue) Withdraw(amount sdkmath.Int) (sdkmath.Int, error) {
	returned, err := v.pool.Withdraw(v.holder, v.asset, amount, v.holder)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(types.ErrVenueOperationFailed, fmt.Errorf("%s withdraw of %s: %w", v.name, amount, err))
	}
	return returned, nil
}

func (v *LendingVenue) WithdrawAll() (sdkmath.Int, error) {
	bal := v.receipt.BalanceOf(v.holder)
	if bal.IsZero() {
		return bal, nil
	}
	return v.Withdraw(bal)
}

func (v *LendingVenue) Balance() (sdkmath.Int, error) {
	return v.receipt.BalanceOf(v.holder), nil
}

func (v *LendingVenue) Rate() (sdkmath.LegacyDec, error) {
	return v.pool.ReserveRate(v.asset)
}

func (v *LendingVenue) ClaimRewards() (sdkmath.Int, error) {
	rc, ok := v.pool.(RewardsController)
	if !ok {
		return sdkmath.ZeroInt(), types.ErrRewardClaimUnavailable
	}
	return rc.ClaimRewards(v.holder, v.asset, v.holder)
}

func (v *LendingVenue) PendingRewards() (sdkmath.Int, error) {
	rc, ok := v.pool.(RewardsController)
	if !ok {
		return sdkmath.ZeroInt(), types.ErrRewardClaimUnavailable
	}
	return rc.PendingRewards(v.holder, v.asset)
}

// PoolTokenVenue adapts a PoolToken market for one holder. Balances are
// pool tokens times the stored exchange rate, truncated.
type PoolTokenVenue struct {
	name     string
	market   PoolToken
	holder   types.Address
	balances AssetBalances
}

// NewPoolTokenVenue binds market to holder. balances is used to measure what
// a redemption actually delivered.
func NewPoolTokenVenue(name string, market PoolToken, holder types.Address, balances AssetBalances) (*PoolTokenVenue, error) {
	if market == nil || balances == nil {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("market and balances are required"))
	}
	if holder.IsZero() {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("holder is required"))
	}
	return &PoolTokenVenue{name: name, market: market, holder: holder, balances: balances}, nil
}

func (v *PoolTokenVenue) Name() string { return v.name }

func (v *PoolTokenVenue) Deposit(amount sdkmath.Int) error {
	if code := v.market.Mint(v.holder, amount); code != 0 {
		return errors.Join(types.ErrVenueOperationFailed, fmt.Errorf("%s mint of %s returned code %d", v.name, amount, code))
	}
	return nil
}

// Withdraw redeems the pool tokens covering amount, capped at the holder's
// token balance. Token rounding is floored, so the result can fall short.
func (v *PoolTokenVenue) Withdraw(amount sdkmath.Int) (sdkmath.Int, error) {
	rate := v.market.ExchangeRateStored()
	if !rate.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrVenueOperationFailed, fmt.Errorf("%s exchange rate is %s", v.name, rate))
	}
	tokens := sdkmath.LegacyNewDecFromInt(amount).Quo(rate).TruncateInt()
	held := v.market.BalanceOf(v.holder)
	if tokens.GT(held) {
		tokens = held
	}
	if tokens.IsZero() {
		venueLogger.Debug().Str("venue", v.name).Str("amount", amount.String()).Msg("Withdrawal below one pool token, nothing redeemed")
		return sdkmath.ZeroInt(), nil
	}

	return v.redeem(tokens)
}

func (v *PoolTokenVenue) redeem(tokens sdkmath.Int) (sdkmath.Int, error) {
	before := v.balances.BalanceOf(v.holder)
	if code := v.market.Redeem(v.holder, tokens); code != 0 {
		return sdkmath.ZeroInt(), errors.Join(types.ErrVenueOperationFailed, fmt.Errorf("%s redeem of %s tokens returned code %d", v.name, tokens, code))
	}
	after := v.balances.BalanceOf(v.holder)
	if after.LT(before) {
		return sdkmath.ZeroInt(), errors.Join(types.ErrVenueOperationFailed, fmt.Errorf("%s redeem reduced holder balance", v.name))
	}
	return after.Sub(before), nil
}

// WithdrawAll redeems every pool token the holder owns.
func (v *PoolTokenVenue) WithdrawAll() (sdkmath.Int, error) {
	held := v.market.BalanceOf(v.holder)
	if held.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	return v.redeem(held)
}

func (v *PoolTokenVenue) Balance() (sdkmath.Int, error) {
	rate := v.market.ExchangeRateStored()
	return sdkmath.LegacyNewDecFromInt(v.market.BalanceOf(v.holder)).Mul(rate).TruncateInt(), nil
}

func (v *PoolTokenVenue) Rate() (sdkmath.LegacyDec, error) {
	return v.market.SupplyRatePerBlock(), nil
}

func (v *PoolTokenVenue) ClaimRewards() (sdkmath.Int, error) {
	rc, ok := v.market.(RewardClaimer)
	if !ok {
		return sdkmath.ZeroInt(), types.ErrRewardClaimUnavailable
	}
	return rc.ClaimReward(v.holder)
}

func (v *PoolTokenVenue) PendingRewards() (sdkmath.Int, error) {
	rc, ok := v.market.(RewardClaimer)
	if !ok {
		return sdkmath.ZeroInt(), types.ErrRewardClaimUnavailable
	}
	return rc.AccruedReward(v.holder)
}
