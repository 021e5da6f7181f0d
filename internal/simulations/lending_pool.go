package simulations

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/venue"
)

// LendingPoolConfig configures a simulated lending pool.
type LendingPoolConfig struct {
	Address types.Address
	Bank    *chain.Bank
	// ReserveRate is the annual liquidity rate, ray scaled (1e27 = 100%).
	ReserveRate sdkmath.LegacyDec
	// RewardRate is the annual reward emission as a fraction of deposits.
	RewardRate     sdkmath.LegacyDec
	RewardsEnabled bool
	Start          time.Time
}

// LendingPool is a simulated lending-pool venue. Receipt balances rebase
// upward as interest accrues.
type LendingPool struct {
	address        types.Address
	bank           *chain.Bank
	reserveRate    sdkmath.LegacyDec
	rewardRate     sdkmath.LegacyDec
	rewardsEnabled bool

	deposits    map[types.Address]sdkmath.Int
	rewards     map[types.Address]sdkmath.Int
	lastAccrual time.Time
	faults      faults
	panicClaim  bool
}

var (
	_ venue.LendingPool       = (*LendingPool)(nil)
	_ venue.RewardsController = (*LendingPool)(nil)
	_ chain.Stateful          = (*LendingPool)(nil)
)

func NewLendingPool(cfg LendingPoolConfig) (*LendingPool, error) {
	if cfg.Bank == nil || cfg.Address.IsZero() {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("lending pool needs a bank and an address"))
	}
	if cfg.ReserveRate.IsNil() {
		cfg.ReserveRate = sdkmath.LegacyZeroDec()
	}
	if cfg.RewardRate.IsNil() {
		cfg.RewardRate = sdkmath.LegacyZeroDec()
	}
	if cfg.ReserveRate.IsNegative() || cfg.RewardRate.IsNegative() {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("rates cannot be negative"))
	}
	return &LendingPool{
		address:        cfg.Address,
		bank:           cfg.Bank,
		reserveRate:    cfg.ReserveRate,
		rewardRate:     cfg.RewardRate,
		rewardsEnabled: cfg.RewardsEnabled,
		deposits:       make(map[types.Address]sdkmath.Int),
		rewards:        make(map[types.Address]sdkmath.Int),
		lastAccrual:    cfg.Start,
		faults:         make(faults),
	}, nil
}

func (p *LendingPool) Address() types.Address { return p.address }

func (p *LendingPool) checkAsset(asset string) error {
	if asset != p.bank.Denom() {
		return fmt.Errorf("unsupported asset %q", asset)
	}
	return nil
}

func (p *LendingPool) Deposit(caller types.Address, asset string, amount sdkmath.Int, onBehalfOf types.Address) error {
	if err := p.checkAsset(asset); err != nil {
		return err
	}
	if p.faults.take(OpDeposit) {
		return ErrInjectedFault
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errors.New("deposit amount must be positive")
	}
	if err := p.bank.Transfer(caller, p.address, amount); err != nil {
		return err
	}
	p.deposits[onBehalfOf] = p.balance(onBehalfOf).Add(amount)
	lendingLogger.Debug().Str("holder", onBehalfOf.String()).Str("amount", amount.String()).Msg("Lending pool deposit")
	return nil
}

func (p *LendingPool) Withdraw(caller types.Address, asset string, amount sdkmath.Int, to types.Address) (sdkmath.Int, error) {
	if err := p.checkAsset(asset); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if p.faults.take(OpWithdraw) {
		return sdkmath.ZeroInt(), ErrInjectedFault
	}
	bal := p.balance(caller)
	if amount.IsNil() || !amount.IsPositive() || amount.GT(bal) {
		return sdkmath.ZeroInt(), fmt.Errorf("cannot withdraw %s of %s", amount, bal)
	}
	if err := p.bank.Transfer(p.address, to, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.deposits[caller] = bal.Sub(amount)
	return amount, nil
}

func (p *LendingPool) ReserveRate(asset string) (sdkmath.LegacyDec, error) {
	if err := p.checkAsset(asset); err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	return p.reserveRate, nil
}

func (p *LendingPool) ReceiptToken(asset string) (venue.BalanceToken, error) {
	if err := p.checkAsset(asset); err != nil {
		return nil, err
	}
	return receiptToken{pool: p}, nil
}

func (p *LendingPool) ClaimRewards(caller types.Address, asset string, to types.Address) (sdkmath.Int, error) {
	if !p.rewardsEnabled {
		return sdkmath.ZeroInt(), types.ErrRewardClaimUnavailable
	}
	if err := p.checkAsset(asset); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if p.panicClaim {
		panic("reward controller reverted")
	}
	if p.faults.take(OpClaim) {
		return sdkmath.ZeroInt(), ErrInjectedFault
	}
	amount := p.pending(caller)
	if amount.IsZero() {
		return amount, nil
	}
	delete(p.rewards, caller)
	if err := p.bank.Mint(to, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return amount, nil
}

func (p *LendingPool) PendingRewards(holder types.Address, asset string) (sdkmath.Int, error) {
	if !p.rewardsEnabled {
		return sdkmath.ZeroInt(), types.ErrRewardClaimUnavailable
	}
	if err := p.checkAsset(asset); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return p.pending(holder), nil
}

// Accrue applies simple interest and reward emission from the last accrual
// to now. Interest is minted into the pool so withdrawals stay funded.
func (p *LendingPool) Accrue(now time.Time) {
	if p.lastAccrual.IsZero() {
		p.lastAccrual = now
		return
	}
	frac := yearFraction(p.lastAccrual, now)
	if frac.IsZero() {
		return
	}
	p.lastAccrual = now

	interestFactor := p.reserveRate.Quo(ray).Mul(frac)
	rewardFactor := p.rewardRate.Mul(frac)
	totalInterest := sdkmath.ZeroInt()
	for holder, bal := range p.deposits {
		interest := sdkmath.LegacyNewDecFromInt(bal).Mul(interestFactor).TruncateInt()
		if interest.IsPositive() {
			p.deposits[holder] = bal.Add(interest)
			totalInterest = totalInterest.Add(interest)
		}
		if p.rewardsEnabled {
			reward := sdkmath.LegacyNewDecFromInt(bal).Mul(rewardFactor).TruncateInt()
			if reward.IsPositive() {
				p.rewards[holder] = p.pending(holder).Add(reward)
			}
		}
	}
	if totalInterest.IsPositive() {
		if err := p.bank.Mint(p.address, totalInterest); err != nil {
			lendingLogger.Error().Err(err).Msg("Failed to fund accrued interest")
		}
	}
}

// AddRewards credits holder with claimable rewards.
func (p *LendingPool) AddRewards(holder types.Address, amount sdkmath.Int) {
	p.rewards[holder] = p.pending(holder).Add(amount)
}

// SetRewardsEnabled toggles reward controller support.
func (p *LendingPool) SetRewardsEnabled(enabled bool) { p.rewardsEnabled = enabled }

// PanicOnClaim makes every claim revert by panicking.
func (p *LendingPool) PanicOnClaim(enabled bool) { p.panicClaim = enabled }

// FailNext makes the next n calls of op fail.
func (p *LendingPool) FailNext(op Op, n int) { p.faults[op] += n }

func (p *LendingPool) balance(holder types.Address) sdkmath.Int {
	if bal, ok := p.deposits[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

func (p *LendingPool) pending(holder types.Address) sdkmath.Int {
	if r, ok := p.rewards[holder]; ok {
		return r
	}
	return sdkmath.ZeroInt()
}

type receiptToken struct {
	pool *LendingPool
}

func (r receiptToken) BalanceOf(holder types.Address) sdkmath.Int {
	return r.pool.balance(holder)
}

// lendingSnapshot covers pool state only. Injected faults and toggles are
// harness settings and survive a rollback.
type lendingSnapshot struct {
	deposits    map[types.Address]sdkmath.Int
	rewards     map[types.Address]sdkmath.Int
	lastAccrual time.Time
}

func (p *LendingPool) Snapshot() any {
	return lendingSnapshot{
		deposits:    cloneBalances(p.deposits),
		rewards:     cloneBalances(p.rewards),
		lastAccrual: p.lastAccrual,
	}
}

func (p *LendingPool) Restore(snapshot any) {
	s := snapshot.(lendingSnapshot)
	p.deposits = s.deposits
	p.rewards = s.rewards
	p.lastAccrual = s.lastAccrual
}

func cloneBalances(m map[types.Address]sdkmath.Int) map[types.Address]sdkmath.Int {
	c := make(map[types.Address]sdkmath.Int, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
