// Package vault implements the share ledger: a fungible share token whose
// exchange rate into the vault asset is set by what the bound strategy
// reports.
package vault

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/logger"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/utils"
)

var vaultLogger = logger.GetForComponent("vault")

const (
	// HarvestCooldown is the minimum time between two harvests.
	HarvestCooldown = time.Hour
	// MaxPerformanceFeeBps caps the performance fee at 20%.
	MaxPerformanceFeeBps = 2000
)

// Package errors wrap a taxonomy sentinel so errors.Is matches both.
var (
	ErrInvalidConfig = fmt.Errorf("vault configuration is invalid: %w", types.ErrInvalidArgument)
	ErrNotBound      = fmt.Errorf("strategy is not bound to this ledger: %w", types.ErrInvalidArgument)
)

// Config wires a Ledger.
type Config struct {
	Address           types.Address
	Owner             types.Address
	FeeRecipient      types.Address
	Bank              *chain.Bank
	PerformanceFeeBps uint64
}

type state struct {
	access       types.AccessControl
	strategy     Strategy
	balances     map[types.Address]sdkmath.Int
	allowances   map[types.Address]map[types.Address]sdkmath.Int
	totalShares  sdkmath.Int
	feeBps       uint64
	feeRecipient types.Address
	lastHarvest  time.Time
}

func (s state) clone() state {
	c := s
	c.balances = make(map[types.Address]sdkmath.Int, len(s.balances))
	for k, v := range s.balances {
		c.balances[k] = v
	}
	c.allowances = make(map[types.Address]map[types.Address]sdkmath.Int, len(s.allowances))
	for owner, spenders := range s.allowances {
		inner := make(map[types.Address]sdkmath.Int, len(spenders))
		for k, v := range spenders {
			inner[k] = v
		}
		c.allowances[owner] = inner
	}
	return c
}

// Ledger issues shares against a single asset. Share math rounds toward the
// pool: deposit and redeem floor, mint and withdraw ceil.
type Ledger struct {
	address types.Address
	bank    *chain.Bank
	st      state
}

var _ chain.Stateful = (*Ledger)(nil)

func validateConfig(cfg Config) error {
	if cfg.Address.IsZero() || cfg.Owner.IsZero() {
		return errors.Join(ErrInvalidConfig, errors.New("address and owner are required"))
	}
	if cfg.Bank == nil {
		return errors.Join(ErrInvalidConfig, errors.New("bank is required"))
	}
	if cfg.PerformanceFeeBps > MaxPerformanceFeeBps {
		return errors.Join(ErrInvalidConfig,
			fmt.Errorf("performance fee %d bps exceeds cap %d", cfg.PerformanceFeeBps, MaxPerformanceFeeBps))
	}
	return nil
}

// New creates an unbound ledger. Bind must be called before any deposit.
func New(cfg Config) (*Ledger, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.FeeRecipient.IsZero() {
		cfg.FeeRecipient = cfg.Owner
	}
	return &Ledger{
		address: cfg.Address,
		bank:    cfg.Bank,
		st: state{
			access:       types.AccessControl{Owner: cfg.Owner},
			balances:     make(map[types.Address]sdkmath.Int),
			allowances:   make(map[types.Address]map[types.Address]sdkmath.Int),
			totalShares:  sdkmath.ZeroInt(),
			feeBps:       cfg.PerformanceFeeBps,
			feeRecipient: cfg.FeeRecipient,
		},
	}, nil
}

// Bind attaches the initial strategy. It can only be done once; later
// changes go through SetStrategy.
func (l *Ledger) Bind(s Strategy) error {
	if l.st.strategy != nil {
		return errors.Join(types.ErrInvalidArgument, errors.New("ledger already has a strategy"))
	}
	if err := l.checkStrategy(s); err != nil {
		return err
	}
	l.st.strategy = s
	return nil
}

func (l *Ledger) checkStrategy(s Strategy) error {
	if s == nil {
		return errors.Join(types.ErrInvalidArgument, errors.New("strategy cannot be nil"))
	}
	if s.Ledger() != l.address {
		return errors.Join(ErrNotBound,
			fmt.Errorf("strategy %s answers to %s, not %s", s.Address(), s.Ledger(), l.address))
	}
	return nil
}

func (l *Ledger) strategy() (Strategy, error) {
	if l.st.strategy == nil {
		return nil, ErrNotBound
	}
	return l.st.strategy, nil
}

func (l *Ledger) Address() types.Address { return l.address }

func (l *Ledger) Owner() types.Address { return l.st.access.Owner }

// Asset is the denom the ledger accounts in.
func (l *Ledger) Asset() string { return l.bank.Denom() }

// Strategy returns the bound strategy, or nil.
func (l *Ledger) Strategy() Strategy { return l.st.strategy }

func (l *Ledger) PerformanceFeeBps() uint64 { return l.st.feeBps }

func (l *Ledger) FeeRecipient() types.Address { return l.st.feeRecipient }

func (l *Ledger) LastHarvest() time.Time { return l.st.lastHarvest }

// HarvestEligible reports whether the harvest cooldown has elapsed.
func (l *Ledger) HarvestEligible(now time.Time) bool {
	return l.st.lastHarvest.IsZero() || !now.Before(l.st.lastHarvest.Add(HarvestCooldown))
}

// Idle is the asset the ledger holds directly.
func (l *Ledger) Idle() sdkmath.Int {
	return l.bank.BalanceOf(l.address)
}

// TotalAssets is the ledger's idle balance plus the strategy's total.
func (l *Ledger) TotalAssets() (sdkmath.Int, error) {
	total := l.Idle()
	if l.st.strategy == nil {
		return total, nil
	}
	deployed, err := l.st.strategy.TotalAssets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return total.Add(deployed), nil
}

func (l *Ledger) TotalSupply() sdkmath.Int { return l.st.totalShares }

func (l *Ledger) BalanceOf(holder types.Address) sdkmath.Int {
	if bal, ok := l.st.balances[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) Allowance(owner, spender types.Address) sdkmath.Int {
	if bal, ok := l.st.allowances[owner][spender]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// ConvertToShares is floor(assets * supply / totalAssets), 1:1 while empty.
func (l *Ledger) ConvertToShares(assets sdkmath.Int) (sdkmath.Int, error) {
	return l.toShares(assets, utils.MulDivFloor)
}

// ConvertToAssets is floor(shares * totalAssets / supply), 1:1 while empty.
func (l *Ledger) ConvertToAssets(shares sdkmath.Int) (sdkmath.Int, error) {
	return l.toAssets(shares, utils.MulDivFloor)
}

func (l *Ledger) PreviewDeposit(assets sdkmath.Int) (sdkmath.Int, error) {
	return l.toShares(assets, utils.MulDivFloor)
}

// PreviewMint is the assets needed to mint shares, rounded up.
func (l *Ledger) PreviewMint(shares sdkmath.Int) (sdkmath.Int, error) {
	return l.toAssets(shares, utils.MulDivCeil)
}

// PreviewWithdraw is the shares burned to withdraw assets, rounded up.
func (l *Ledger) PreviewWithdraw(assets sdkmath.Int) (sdkmath.Int, error) {
	return l.toShares(assets, utils.MulDivCeil)
}

func (l *Ledger) PreviewRedeem(shares sdkmath.Int) (sdkmath.Int, error) {
	return l.toAssets(shares, utils.MulDivFloor)
}

// MaxWithdraw is the asset value of owner's shares.
func (l *Ledger) MaxWithdraw(owner types.Address) (sdkmath.Int, error) {
	return l.ConvertToAssets(l.BalanceOf(owner))
}

type mulDiv func(a, b, c sdkmath.Int) (sdkmath.Int, error)

func (l *Ledger) toShares(assets sdkmath.Int, round mulDiv) (sdkmath.Int, error) {
	if assets.IsNil() || assets.IsNegative() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, errors.New("asset amount must be non-negative"))
	}
	if l.st.totalShares.IsZero() {
		return assets, nil
	}
	total, err := l.TotalAssets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if total.IsZero() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, errors.New("shares outstanding with no assets"))
	}
	return round(assets, l.st.totalShares, total)
}

func (l *Ledger) toAssets(shares sdkmath.Int, round mulDiv) (sdkmath.Int, error) {
	if shares.IsNil() || shares.IsNegative() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, errors.New("share amount must be non-negative"))
	}
	if l.st.totalShares.IsZero() {
		return shares, nil
	}
	total, err := l.TotalAssets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return round(shares, total, l.st.totalShares)
}

// Deposit pulls assets from the caller, mints shares to receiver and
// forwards the assets to the strategy.
func (l *Ledger) Deposit(call chain.Call, assets sdkmath.Int, receiver types.Address) (sdkmath.Int, error) {
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, errors.New("deposit amount must be positive"))
	}
	shares, err := l.PreviewDeposit(assets)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, fmt.Errorf("deposit of %s mints zero shares", assets))
	}
	if err := l.enter(call, assets, shares, receiver); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return shares, nil
}

// Mint issues exactly shares to receiver, pulling the assets they cost.
func (l *Ledger) Mint(call chain.Call, shares sdkmath.Int, receiver types.Address) (sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, errors.New("mint amount must be positive"))
	}
	assets, err := l.PreviewMint(shares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if assets.IsZero() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, fmt.Errorf("minting %s shares costs zero assets", shares))
	}
	if err := l.enter(call, assets, shares, receiver); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return assets, nil
}

func (l *Ledger) enter(call chain.Call, assets, shares sdkmath.Int, receiver types.Address) error {
	if receiver.IsZero() {
		return errors.Join(types.ErrInvalidArgument, errors.New("receiver is required"))
	}
	s, err := l.strategy()
	if err != nil {
		return err
	}
	if err := l.bank.Transfer(call.Sender, l.address, assets); err != nil {
		return err
	}
	l.mint(receiver, shares)
	if err := l.bank.Transfer(l.address, s.Address(), assets); err != nil {
		return err
	}
	if err := s.Deposit(call.As(l.address), assets); err != nil {
		return err
	}
	call.Emit(types.Event{
		Kind:     types.EventDeposit,
		Emitter:  l.address,
		Sender:   call.Sender,
		Owner:    receiver,
		Receiver: receiver,
		Assets:   l.bank.Coin(assets),
		Shares:   shares,
	})
	vaultLogger.Info().
		Str("txId", call.TxID()).
		Str("sender", call.Sender.String()).
		Str("receiver", receiver.String()).
		Str("assets", assets.String()).
		Str("shares", shares.String()).
		Msg("Deposit")
	return nil
}

// Withdraw burns the shares worth assets from owner and sends what the
// strategy returns to receiver.
func (l *Ledger) Withdraw(call chain.Call, assets sdkmath.Int, receiver, owner types.Address) (sdkmath.Int, error) {
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, errors.New("withdraw amount must be positive"))
	}
	shares, err := l.PreviewWithdraw(assets)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if shares.IsZero() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, fmt.Errorf("withdrawal of %s burns zero shares", assets))
	}
	maxAssets, err := l.MaxWithdraw(owner)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if assets.GT(maxAssets) || shares.GT(l.BalanceOf(owner)) {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInsufficientBalance,
			fmt.Errorf("%s can withdraw at most %s", owner, maxAssets))
	}
	return l.exit(call, assets, shares, receiver, owner)
}

// Redeem burns shares from owner and sends their asset value to receiver.
func (l *Ledger) Redeem(call chain.Call, shares sdkmath.Int, receiver, owner types.Address) (sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, errors.New("redeem amount must be positive"))
	}
	if bal := l.BalanceOf(owner); shares.GT(bal) {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInsufficientBalance,
			fmt.Errorf("%s holds %s shares, redeeming %s", owner, bal, shares))
	}
	assets, err := l.PreviewRedeem(shares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if assets.IsZero() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, fmt.Errorf("redeeming %s shares yields zero assets", shares))
	}
	return l.exit(call, assets, shares, receiver, owner)
}

// exit burns shares and pays out assets, serving the ledger's idle balance
// first and asking the strategy for the rest.
func (l *Ledger) exit(call chain.Call, assets, shares sdkmath.Int, receiver, owner types.Address) (sdkmath.Int, error) {
	if receiver.IsZero() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, errors.New("receiver is required"))
	}
	if call.Sender != owner {
		if err := l.spendAllowance(owner, call.Sender, shares); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	if err := l.burn(owner, shares); err != nil {
		return sdkmath.ZeroInt(), err
	}

	payout := sdkmath.MinInt(l.Idle(), assets)
	if remainder := assets.Sub(payout); remainder.IsPositive() {
		s, err := l.strategy()
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		returned, err := s.Withdraw(call.As(l.address), remainder)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		payout = payout.Add(returned)
	}
	if err := l.bank.Transfer(l.address, receiver, payout); err != nil {
		return sdkmath.ZeroInt(), err
	}

	call.Emit(types.Event{
		Kind:     types.EventWithdraw,
		Emitter:  l.address,
		Sender:   call.Sender,
		Owner:    owner,
		Receiver: receiver,
		Assets:   l.bank.Coin(payout),
		Shares:   shares,
	})
	vaultLogger.Info().
		Str("txId", call.TxID()).
		Str("owner", owner.String()).
		Str("receiver", receiver.String()).
		Str("requested", assets.String()).
		Str("paid", payout.String()).
		Str("shares", shares.String()).
		Msg("Withdrawal")
	return payout, nil
}

func (l *Ledger) mint(to types.Address, shares sdkmath.Int) {
	l.st.balances[to] = l.BalanceOf(to).Add(shares)
	l.st.totalShares = l.st.totalShares.Add(shares)
}

func (l *Ledger) burn(from types.Address, shares sdkmath.Int) error {
	bal := l.BalanceOf(from)
	if bal.LT(shares) {
		return errors.Join(types.ErrInsufficientBalance, fmt.Errorf("%s holds %s shares, burning %s", from, bal, shares))
	}
	l.st.balances[from] = bal.Sub(shares)
	l.st.totalShares = l.st.totalShares.Sub(shares)
	return nil
}

func (l *Ledger) spendAllowance(owner, spender types.Address, shares sdkmath.Int) error {
	allowed := l.Allowance(owner, spender)
	if allowed.LT(shares) {
		return errors.Join(types.ErrInsufficientAllowance,
			fmt.Errorf("%s may spend %s of %s's shares, needs %s", spender, allowed, owner, shares))
	}
	l.setAllowance(owner, spender, allowed.Sub(shares))
	return nil
}

func (l *Ledger) setAllowance(owner, spender types.Address, shares sdkmath.Int) {
	inner, ok := l.st.allowances[owner]
	if !ok {
		inner = make(map[types.Address]sdkmath.Int)
		l.st.allowances[owner] = inner
	}
	inner[spender] = shares
}

// Transfer moves shares from the caller to another holder.
func (l *Ledger) Transfer(call chain.Call, to types.Address, shares sdkmath.Int) error {
	return l.transfer(call, call.Sender, to, shares)
}

// TransferFrom moves shares on behalf of from, spending the caller's allowance.
func (l *Ledger) TransferFrom(call chain.Call, from, to types.Address, shares sdkmath.Int) error {
	if shares.IsNil() || shares.IsNegative() {
		return errors.Join(types.ErrInvalidArgument, errors.New("share amount must be non-negative"))
	}
	if call.Sender != from {
		if err := l.spendAllowance(from, call.Sender, shares); err != nil {
			return err
		}
	}
	return l.transfer(call, from, to, shares)
}

func (l *Ledger) transfer(call chain.Call, from, to types.Address, shares sdkmath.Int) error {
	if shares.IsNil() || shares.IsNegative() {
		return errors.Join(types.ErrInvalidArgument, errors.New("share amount must be non-negative"))
	}
	if to.IsZero() {
		return errors.Join(types.ErrInvalidArgument, errors.New("recipient is required"))
	}
	if err := l.burn(from, shares); err != nil {
		return err
	}
	l.mint(to, shares)
	call.Emit(types.Event{
		Kind:     types.EventTransfer,
		Emitter:  l.address,
		Sender:   call.Sender,
		Owner:    from,
		Receiver: to,
		Assets:   l.bank.Coin(sdkmath.ZeroInt()),
		Shares:   shares,
	})
	return nil
}

// Approve sets spender's allowance over the caller's shares.
func (l *Ledger) Approve(call chain.Call, spender types.Address, shares sdkmath.Int) error {
	if shares.IsNil() || shares.IsNegative() {
		return errors.Join(types.ErrInvalidArgument, errors.New("allowance must be non-negative"))
	}
	if spender.IsZero() {
		return errors.Join(types.ErrInvalidArgument, errors.New("spender is required"))
	}
	l.setAllowance(call.Sender, spender, shares)
	call.Emit(types.Event{
		Kind:     types.EventApproval,
		Emitter:  l.address,
		Sender:   call.Sender,
		Owner:    call.Sender,
		Receiver: spender,
		Assets:   l.bank.Coin(sdkmath.ZeroInt()),
		Shares:   shares,
	})
	return nil
}

// Rebalance harvests: it runs the strategy's rebalance and mints the
// performance fee, in shares at the post-rebalance rate, on any increase
// in total assets.
func (l *Ledger) Rebalance(call chain.Call) (types.HarvestReport, error) {
	if !l.HarvestEligible(call.Time) {
		return types.HarvestReport{}, errors.Join(types.ErrCooldownActive,
			fmt.Errorf("next harvest at %s", l.st.lastHarvest.Add(HarvestCooldown).Format(time.RFC3339)))
	}
	s, err := l.strategy()
	if err != nil {
		return types.HarvestReport{}, err
	}
	report := types.HarvestReport{Profit: sdkmath.ZeroInt(), FeeAssets: sdkmath.ZeroInt(), FeeShares: sdkmath.ZeroInt()}
	if report.AssetsBefore, err = l.TotalAssets(); err != nil {
		return types.HarvestReport{}, err
	}
	if report.Rebalance, err = s.Rebalance(call.As(l.address)); err != nil {
		return types.HarvestReport{}, err
	}
	if report.AssetsAfter, err = l.TotalAssets(); err != nil {
		return types.HarvestReport{}, err
	}

	if report.AssetsAfter.GT(report.AssetsBefore) {
		report.Profit = report.AssetsAfter.Sub(report.AssetsBefore)
		if l.st.totalShares.IsPositive() {
			report.FeeAssets = utils.ApplyBps(report.Profit, l.st.feeBps)
			if report.FeeShares, err = l.ConvertToShares(report.FeeAssets); err != nil {
				return types.HarvestReport{}, err
			}
			if report.FeeShares.IsPositive() {
				l.mint(l.st.feeRecipient, report.FeeShares)
				call.Emit(types.Event{
					Kind:     types.EventFeeMinted,
					Emitter:  l.address,
					Sender:   call.Sender,
					Receiver: l.st.feeRecipient,
					Assets:   l.bank.Coin(report.FeeAssets),
					Shares:   report.FeeShares,
				})
			}
		}
	}

	l.st.lastHarvest = call.Time
	call.Emit(types.Event{
		Kind:    types.EventHarvest,
		Emitter: l.address,
		Sender:  call.Sender,
		Assets:  l.bank.Coin(report.Profit),
		Shares:  report.FeeShares,
	})
	vaultLogger.Info().
		Str("txId", call.TxID()).
		Str("assetsBefore", report.AssetsBefore.String()).
		Str("assetsAfter", report.AssetsAfter.String()).
		Str("profit", report.Profit.String()).
		Str("feeShares", report.FeeShares.String()).
		Msg("Harvest complete")
	return report, nil
}

// SetPerformanceFee updates the harvest fee. Owner only, capped at 20%.
func (l *Ledger) SetPerformanceFee(call chain.Call, bps uint64) error {
	if err := l.st.access.RequireOwner(call.Sender); err != nil {
		return err
	}
	if bps > MaxPerformanceFeeBps {
		return errors.Join(types.ErrInvalidArgument, fmt.Errorf("performance fee %d bps exceeds cap %d", bps, MaxPerformanceFeeBps))
	}
	l.st.feeBps = bps
	call.Emit(types.Event{Kind: types.EventConfigUpdated, Emitter: l.address, Sender: call.Sender, Detail: fmt.Sprintf("performanceFeeBps=%d", bps)})
	return nil
}

// SetFeeRecipient changes who receives fee shares. Owner only.
func (l *Ledger) SetFeeRecipient(call chain.Call, recipient types.Address) error {
	if err := l.st.access.RequireOwner(call.Sender); err != nil {
		return err
	}
	if recipient.IsZero() {
		return errors.Join(types.ErrInvalidArgument, errors.New("fee recipient is required"))
	}
	l.st.feeRecipient = recipient
	call.Emit(types.Event{Kind: types.EventConfigUpdated, Emitter: l.address, Sender: call.Sender, Detail: "feeRecipient=" + recipient.String()})
	return nil
}

// SetStrategy migrates to next: everything is pulled out of the current
// strategy and the ledger's whole idle balance is deposited into next.
// Owner only; either both legs succeed or nothing changes.
func (l *Ledger) SetStrategy(call chain.Call, next Strategy) error {
	if err := l.st.access.RequireOwner(call.Sender); err != nil {
		return err
	}
	if err := l.checkStrategy(next); err != nil {
		return err
	}
	current, err := l.strategy()
	if err != nil {
		return err
	}
	if current.Address() == next.Address() {
		return errors.Join(types.ErrInvalidArgument, errors.New("strategy is already bound"))
	}

	evacuated, err := current.EmergencyWithdraw(call.As(l.address))
	if err != nil {
		return fmt.Errorf("failed to evacuate %s: %w", current.Address(), err)
	}
	l.st.strategy = next
	reseed := l.Idle()
	if reseed.IsPositive() {
		if err := l.bank.Transfer(l.address, next.Address(), reseed); err != nil {
			return err
		}
		if err := next.Deposit(call.As(l.address), reseed); err != nil {
			return fmt.Errorf("failed to seed %s: %w", next.Address(), err)
		}
	}
	call.Emit(types.Event{
		Kind:     types.EventStrategyMigrated,
		Emitter:  l.address,
		Sender:   call.Sender,
		Owner:    current.Address(),
		Receiver: next.Address(),
		Assets:   l.bank.Coin(reseed),
	})
	vaultLogger.Warn().
		Str("txId", call.TxID()).
		Str("from", current.Address().String()).
		Str("to", next.Address().String()).
		Str("evacuated", evacuated.String()).
		Str("reseeded", reseed.String()).
		Msg("Strategy migrated")
	return nil
}

// EmergencyWithdraw pulls every asset back from the strategy into the ledger.
func (l *Ledger) EmergencyWithdraw(call chain.Call) (sdkmath.Int, error) {
	if err := l.st.access.RequireOwner(call.Sender); err != nil {
		return sdkmath.ZeroInt(), err
	}
	s, err := l.strategy()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return s.EmergencyWithdraw(call.As(l.address))
}

// RiskProfile passes through to the strategy.
func (l *Ledger) RiskProfile() (types.RiskProfile, error) {
	s, err := l.strategy()
	if err != nil {
		return 0, err
	}
	return s.RiskProfile(), nil
}

// SetRiskProfile passes through to the strategy. Owner only.
func (l *Ledger) SetRiskProfile(call chain.Call, p types.RiskProfile) error {
	if err := l.st.access.RequireOwner(call.Sender); err != nil {
		return err
	}
	s, err := l.strategy()
	if err != nil {
		return err
	}
	return s.SetRiskProfile(call.As(l.address), p)
}

func (l *Ledger) Snapshot() any {
	return l.st.clone()
}

func (l *Ledger) Restore(snapshot any) {
	l.st = snapshot.(state)
}
