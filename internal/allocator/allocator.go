// Package allocator holds the vault's deployed funds, splits them across the
// two venues by risk-profile weights, and keeps them near target through
// cooldown-gated rebalancing and reward compounding.
package allocator

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/logger"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/utils"
	"github.com/elys-network/yield-vault/internal/venue"
)

var allocatorLogger = logger.GetForComponent("allocator")

const (
	// RebalanceCooldown is the minimum time between two rebalances.
	RebalanceCooldown = 6 * time.Hour
	// CompoundCooldown is the minimum time between two compounds.
	CompoundCooldown = time.Hour
	// DriftThresholdBps is the drift, relative to venue total, that triggers a move.
	DriftThresholdBps = 200
	// MaxCompoundFeeBps caps the compound fee at 5%.
	MaxCompoundFeeBps = 500
)

// Package errors wrap a taxonomy sentinel so errors.Is matches both.
var (
	ErrAutoCompoundDisabled = fmt.Errorf("auto-compound is disabled: %w", types.ErrInvalidArgument)
	ErrInvalidConfig        = fmt.Errorf("allocator configuration is invalid: %w", types.ErrInvalidArgument)

	errBelowMinimum = errors.New("claimed rewards below compound minimum")
)

// AutoCompoundConfig is the compound policy.
type AutoCompoundConfig struct {
	Enabled   bool        `json:"enabled"`
	MinAmount sdkmath.Int `json:"min_amount"`
	FeeBps    uint64      `json:"fee_bps"`
}

func (c AutoCompoundConfig) Validate() error {
	if c.FeeBps > MaxCompoundFeeBps {
		return errors.Join(types.ErrInvalidArgument, fmt.Errorf("compound fee %d bps exceeds cap %d", c.FeeBps, MaxCompoundFeeBps))
	}
	if !c.MinAmount.IsNil() && c.MinAmount.IsNegative() {
		return errors.Join(types.ErrInvalidArgument, errors.New("minimum compound amount cannot be negative"))
	}
	return nil
}

// Config wires an Allocator. Ledger is the only address allowed to deposit
// and withdraw.
type Config struct {
	Address      types.Address
	Ledger       types.Address
	Owner        types.Address
	Bank         *chain.Bank
	VenueA       venue.Venue
	VenueB       venue.Venue
	Weights      types.WeightTable
	Profile      types.RiskProfile
	AutoCompound AutoCompoundConfig
}

// Allocation reports target and actual venue weights in basis points.
type Allocation struct {
	Profile types.RiskProfile `json:"risk_profile"`
	TargetA uint64            `json:"target_a_bps"`
	TargetB uint64            `json:"target_b_bps"`
	ActualA uint64            `json:"actual_a_bps"`
	ActualB uint64            `json:"actual_b_bps"`
}

// Stats are informational counters. They are never used for accounting.
type Stats struct {
	TotalCompounded sdkmath.Int `json:"total_compounded"`
	TotalClaimed    sdkmath.Int `json:"total_claimed"`
	LastRebalance   time.Time   `json:"last_rebalance"`
	LastCompound    time.Time   `json:"last_compound"`
}

type state struct {
	access          types.AccessControl
	venues          [2]venue.Venue
	weights         types.WeightTable
	profile         types.RiskProfile
	compound        AutoCompoundConfig
	lastRebalance   time.Time
	lastCompound    time.Time
	totalCompounded sdkmath.Int
	totalClaimed    sdkmath.Int
}

// Allocator owns the funds the ledger forwards and spreads them over two
// venues. It must be registered on the chain it runs on.
type Allocator struct {
	address types.Address
	ledger  types.Address
	bank    *chain.Bank
	st      state
}

var _ chain.Stateful = (*Allocator)(nil)

func validateConfig(cfg Config) error {
	if cfg.Address.IsZero() || cfg.Ledger.IsZero() || cfg.Owner.IsZero() {
		return errors.Join(ErrInvalidConfig, errors.New("address, ledger and owner are required"))
	}
	if cfg.Bank == nil {
		return errors.Join(ErrInvalidConfig, errors.New("bank is required"))
	}
	if cfg.VenueA == nil || cfg.VenueB == nil {
		return errors.Join(ErrInvalidConfig, errors.New("both venues are required"))
	}
	if !cfg.Profile.Valid() {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("risk profile %d", cfg.Profile))
	}
	if err := cfg.Weights.Validate(); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if err := cfg.AutoCompound.Validate(); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	return nil
}

func New(cfg Config) (*Allocator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	cfg.AutoCompound.MinAmount = utils.OrZero(cfg.AutoCompound.MinAmount)
	return &Allocator{
		address: cfg.Address,
		ledger:  cfg.Ledger,
		bank:    cfg.Bank,
		st: state{
			access:          types.AccessControl{Owner: cfg.Owner},
			venues:          [2]venue.Venue{cfg.VenueA, cfg.VenueB},
			weights:         cfg.Weights,
			profile:         cfg.Profile,
			compound:        cfg.AutoCompound,
			totalCompounded: sdkmath.ZeroInt(),
			totalClaimed:    sdkmath.ZeroInt(),
		},
	}, nil
}

func (a *Allocator) Address() types.Address { return a.address }

// Ledger is the bound share ledger.
func (a *Allocator) Ledger() types.Address { return a.ledger }

func (a *Allocator) Owner() types.Address { return a.st.access.Owner }

// Venue returns the venue currently bound at id.
func (a *Allocator) Venue(id types.VenueID) venue.Venue { return a.st.venues[id] }

func (a *Allocator) holdings() (holdings, error) {
	balA, err := a.st.venues[types.VenueA].Balance()
	if err != nil {
		return holdings{}, errors.Join(types.ErrVenueOperationFailed, fmt.Errorf("venue A balance: %w", err))
	}
	balB, err := a.st.venues[types.VenueB].Balance()
	if err != nil {
		return holdings{}, errors.Join(types.ErrVenueOperationFailed, fmt.Errorf("venue B balance: %w", err))
	}
	return holdings{A: balA, B: balB, Idle: a.bank.BalanceOf(a.address)}, nil
}

// TotalAssets is venue A + venue B + asset held directly by the allocator.
func (a *Allocator) TotalAssets() (sdkmath.Int, error) {
	h, err := a.holdings()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return h.Total(), nil
}

// Balances returns each venue's balance and the idle amount.
func (a *Allocator) Balances() (balA, balB, idle sdkmath.Int, err error) {
	h, err := a.holdings()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return h.A, h.B, h.Idle, nil
}

func (a *Allocator) requireLedger(caller types.Address) error {
	if caller != a.ledger {
		return errors.Join(types.ErrUnauthorized, fmt.Errorf("%s is not the bound ledger", caller))
	}
	return nil
}

// Deposit deploys amount, already transferred to the allocator, across the
// venues by the active weights.
func (a *Allocator) Deposit(call chain.Call, amount sdkmath.Int) error {
	if err := a.requireLedger(call.Sender); err != nil {
		return err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errors.Join(types.ErrInvalidArgument, errors.New("deposit amount must be positive"))
	}
	if idle := a.bank.BalanceOf(a.address); idle.LT(amount) {
		return errors.Join(types.ErrInsufficientBalance, fmt.Errorf("allocator holds %s, asked to deploy %s", idle, amount))
	}
	return a.allocate(call, amount)
}

// allocate splits amount by the active weights and deposits each non-zero leg.
func (a *Allocator) allocate(call chain.Call, amount sdkmath.Int) error {
	w := a.st.weights[a.st.profile]
	legA, legB, err := splitByWeights(amount, w)
	if err != nil {
		return err
	}
	for id, leg := range []sdkmath.Int{legA, legB} {
		if leg.IsZero() {
			continue
		}
		v := a.st.venues[id]
		if err := v.Deposit(leg); err != nil {
			return err
		}
		call.Emit(types.Event{
			Kind:    types.EventAllocated,
			Emitter: a.address,
			Sender:  call.Sender,
			Assets:  a.bank.Coin(leg),
			Detail:  types.VenueID(id).String(),
		})
	}
	allocatorLogger.Debug().
		Str("txId", call.TxID()).
		Str("amount", amount.String()).
		Str("legA", legA.String()).
		Str("legB", legB.String()).
		Str("profile", a.st.profile.String()).
		Msg("Allocated funds")
	return nil
}

// Withdraw pulls amount proportionally to current balances and sends what the
// venues actually returned to the ledger.
func (a *Allocator) Withdraw(call chain.Call, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := a.requireLedger(call.Sender); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidArgument, errors.New("withdraw amount must be positive"))
	}
	h, err := a.holdings()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	legs, err := planWithdrawal(amount, h)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	obtained := legs.Idle
	for id, leg := range []sdkmath.Int{legs.A, legs.B} {
		if leg.IsZero() {
			continue
		}
		returned, err := a.st.venues[id].Withdraw(leg)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		obtained = obtained.Add(returned)
		call.Emit(types.Event{
			Kind:    types.EventDeallocated,
			Emitter: a.address,
			Sender:  call.Sender,
			Assets:  a.bank.Coin(returned),
			Detail:  types.VenueID(id).String(),
		})
	}

	if err := a.bank.Transfer(a.address, a.ledger, obtained); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if shortfall := amount.Sub(obtained); shortfall.IsPositive() {
		allocatorLogger.Debug().
			Str("txId", call.TxID()).
			Str("requested", amount.String()).
			Str("obtained", obtained.String()).
			Str("shortfall", shortfall.String()).
			Msg("Withdrawal returned less than requested")
	}
	return obtained, nil
}

// RebalanceEligible reports whether the rebalance cooldown has elapsed.
func (a *Allocator) RebalanceEligible(now time.Time) bool {
	return cooldownElapsed(a.st.lastRebalance, now, RebalanceCooldown)
}

// CompoundEligible reports whether compounding is enabled and off cooldown.
func (a *Allocator) CompoundEligible(now time.Time) bool {
	return a.st.compound.Enabled && cooldownElapsed(a.st.lastCompound, now, CompoundCooldown)
}

func cooldownElapsed(last, now time.Time, window time.Duration) bool {
	return last.IsZero() || !now.Before(last.Add(window))
}

// Rebalance compounds when due, deploys any idle balance and moves funds
// from the over-weight venue to the under-weight one when drift exceeds the
// threshold. Anyone may call it once the cooldown has elapsed.
func (a *Allocator) Rebalance(call chain.Call) (types.RebalanceReport, error) {
	if !a.RebalanceEligible(call.Time) {
		return types.RebalanceReport{}, errors.Join(types.ErrCooldownActive,
			fmt.Errorf("next rebalance at %s", a.st.lastRebalance.Add(RebalanceCooldown).Format(time.RFC3339)))
	}
	report := types.RebalanceReport{Compounded: sdkmath.ZeroInt(), Moved: sdkmath.ZeroInt()}
	var err error
	if report.TotalBefore, err = a.TotalAssets(); err != nil {
		return types.RebalanceReport{}, err
	}

	if a.CompoundEligible(call.Time) {
		if report.Compounded, err = a.compound(call); err != nil {
			return types.RebalanceReport{}, err
		}
	}

	if idle := a.bank.BalanceOf(a.address); idle.IsPositive() {
		if err := a.allocate(call, idle); err != nil {
			return types.RebalanceReport{}, err
		}
	}

	h, err := a.holdings()
	if err != nil {
		return types.RebalanceReport{}, err
	}
	plan, err := analyzeDrift(h, a.st.weights[a.st.profile], DriftThresholdBps)
	if err != nil {
		return types.RebalanceReport{}, err
	}
	report.From, report.To, report.Skipped = plan.From, plan.To, plan.Skipped

	if plan.Act {
		withdrawn, err := a.st.venues[plan.From].Withdraw(plan.Drift)
		if err != nil {
			return types.RebalanceReport{}, err
		}
		if withdrawn.IsPositive() {
			if err := a.st.venues[plan.To].Deposit(withdrawn); err != nil {
				return types.RebalanceReport{}, err
			}
		}
		report.Moved = withdrawn
	} else if plan.Skipped {
		allocatorLogger.Warn().
			Str("txId", call.TxID()).
			Str("drift", plan.Drift.String()).
			Str("donor", plan.From.String()).
			Msg("Donor venue cannot cover drift, skipping move")
	}

	a.st.lastRebalance = call.Time
	if report.TotalAfter, err = a.TotalAssets(); err != nil {
		return types.RebalanceReport{}, err
	}
	call.Emit(types.Event{
		Kind:    types.EventRebalanced,
		Emitter: a.address,
		Sender:  call.Sender,
		Assets:  a.bank.Coin(report.Moved),
		Detail:  fmt.Sprintf("from=%s to=%s skipped=%t compounded=%s", report.From, report.To, report.Skipped, report.Compounded),
	})
	allocatorLogger.Info().
		Str("txId", call.TxID()).
		Str("totalBefore", report.TotalBefore.String()).
		Str("totalAfter", report.TotalAfter.String()).
		Str("moved", report.Moved.String()).
		Str("compounded", report.Compounded.String()).
		Bool("skipped", report.Skipped).
		Msg("Rebalance complete")
	return report, nil
}

// AutoCompound claims rewards and reinvests them net of the compound fee.
// It returns the reinvested amount. When the rewards claimed by this call
// are below the configured minimum the claim is rolled back, the rewards stay
// pending at the venues and the cooldown is not consumed.
func (a *Allocator) AutoCompound(call chain.Call) (sdkmath.Int, error) {
	if !a.st.compound.Enabled {
		return sdkmath.ZeroInt(), ErrAutoCompoundDisabled
	}
	if !cooldownElapsed(a.st.lastCompound, call.Time, CompoundCooldown) {
		return sdkmath.ZeroInt(), errors.Join(types.ErrCooldownActive,
			fmt.Errorf("next compound at %s", a.st.lastCompound.Add(CompoundCooldown).Format(time.RFC3339)))
	}
	return a.compound(call)
}

// compound reinvests only what it claims. Idle funds already held are left
// for Rebalance to deploy.
func (a *Allocator) compound(call chain.Call) (sdkmath.Int, error) {
	claimed := sdkmath.ZeroInt()
	err := call.Try(func() error {
		claimed = a.claimAll(call)
		if claimed.IsZero() || claimed.LT(a.st.compound.MinAmount) {
			return errBelowMinimum
		}
		return nil
	})
	if errors.Is(err, errBelowMinimum) {
		allocatorLogger.Debug().
			Str("txId", call.TxID()).
			Str("claimed", claimed.String()).
			Str("minAmount", a.st.compound.MinAmount.String()).
			Msg("Rewards below compound minimum")
		return sdkmath.ZeroInt(), nil
	}
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(types.ErrVenueOperationFailed, err)
	}

	fee := utils.ApplyBps(claimed, a.st.compound.FeeBps)
	if err := a.bank.Transfer(a.address, a.ledger, fee); err != nil {
		return sdkmath.ZeroInt(), err
	}
	reinvest := claimed.Sub(fee)
	if reinvest.IsPositive() {
		if err := a.allocate(call, reinvest); err != nil {
			return sdkmath.ZeroInt(), err
		}
	}

	a.st.totalClaimed = a.st.totalClaimed.Add(claimed)
	a.st.totalCompounded = a.st.totalCompounded.Add(reinvest)
	a.st.lastCompound = call.Time
	call.Emit(types.Event{
		Kind:    types.EventCompounded,
		Emitter: a.address,
		Sender:  call.Sender,
		Assets:  a.bank.Coin(reinvest),
		Detail:  fmt.Sprintf("claimed=%s fee=%s", claimed, fee),
	})
	allocatorLogger.Info().
		Str("txId", call.TxID()).
		Str("claimed", claimed.String()).
		Str("fee", fee.String()).
		Str("reinvested", reinvest.String()).
		Msg("Compounded rewards")
	return reinvest, nil
}

func (a *Allocator) claimAll(call chain.Call) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, v := range a.st.venues {
		total = total.Add(venue.ClaimBestEffort(call, v))
	}
	return total
}

// ClaimRewards claims from both venues into the allocator's idle balance,
// where the next compound or rebalance deploys it.
func (a *Allocator) ClaimRewards(call chain.Call) (sdkmath.Int, error) {
	claimed := a.claimAll(call)
	if claimed.IsPositive() {
		a.st.totalClaimed = a.st.totalClaimed.Add(claimed)
		call.Emit(types.Event{
			Kind:    types.EventRewardsClaimed,
			Emitter: a.address,
			Sender:  call.Sender,
			Assets:  a.bank.Coin(claimed),
		})
	}
	return claimed, nil
}

// PendingRewards sums the unclaimed rewards both venues report.
func (a *Allocator) PendingRewards() sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, v := range a.st.venues {
		total = total.Add(venue.PendingBestEffort(v))
	}
	return total
}

// EmergencyWithdraw pulls everything from both venues and sends it, with any
// idle balance, to the ledger. It ignores cooldowns.
func (a *Allocator) EmergencyWithdraw(call chain.Call) (sdkmath.Int, error) {
	if err := a.st.access.RequireOneOf(call.Sender, a.ledger); err != nil {
		return sdkmath.ZeroInt(), err
	}
	h, err := a.holdings()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	for id, bal := range []sdkmath.Int{h.A, h.B} {
		if bal.IsZero() {
			continue
		}
		v := a.st.venues[id]
		if exiter, ok := v.(venue.Exiter); ok {
			_, err = exiter.WithdrawAll()
		} else {
			_, err = v.Withdraw(bal)
		}
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
	}
	total := a.bank.BalanceOf(a.address)
	if err := a.bank.Transfer(a.address, a.ledger, total); err != nil {
		return sdkmath.ZeroInt(), err
	}
	call.Emit(types.Event{
		Kind:     types.EventEmergencyWithdraw,
		Emitter:  a.address,
		Sender:   call.Sender,
		Receiver: a.ledger,
		Assets:   a.bank.Coin(total),
	})
	allocatorLogger.Warn().Str("txId", call.TxID()).Str("amount", total.String()).Msg("Emergency withdrawal to ledger")
	return total, nil
}

func (a *Allocator) RiskProfile() types.RiskProfile { return a.st.profile }

// SetRiskProfile switches the active weights and makes the next rebalance
// immediately eligible.
func (a *Allocator) SetRiskProfile(call chain.Call, p types.RiskProfile) error {
	if err := a.st.access.RequireOneOf(call.Sender, a.ledger); err != nil {
		return err
	}
	if !p.Valid() {
		return errors.Join(types.ErrInvalidArgument, fmt.Errorf("risk profile %d", p))
	}
	a.st.profile = p
	a.st.lastRebalance = time.Time{}
	call.Emit(types.Event{Kind: types.EventRiskProfileSet, Emitter: a.address, Sender: call.Sender, Detail: p.String()})
	return nil
}

func (a *Allocator) Weights() types.WeightTable { return a.st.weights }

// SetWeights replaces the pair for one profile. Owner only.
func (a *Allocator) SetWeights(call chain.Call, p types.RiskProfile, w types.WeightPair) error {
	if err := a.st.access.RequireOwner(call.Sender); err != nil {
		return err
	}
	if !p.Valid() {
		return errors.Join(types.ErrInvalidArgument, fmt.Errorf("risk profile %d", p))
	}
	if err := w.Validate(); err != nil {
		return err
	}
	a.st.weights[p] = w
	call.Emit(types.Event{
		Kind:    types.EventConfigUpdated,
		Emitter: a.address,
		Sender:  call.Sender,
		Detail:  fmt.Sprintf("weights %s=%d/%d", p, w.BpsA, w.BpsB),
	})
	return nil
}

// AllocationPercentages reports target weights for the active profile and
// the actual split of venue balances.
func (a *Allocator) AllocationPercentages() (Allocation, error) {
	w := a.st.weights[a.st.profile]
	alloc := Allocation{Profile: a.st.profile, TargetA: w.BpsA, TargetB: w.BpsB}
	h, err := a.holdings()
	if err != nil {
		return Allocation{}, err
	}
	total := h.A.Add(h.B)
	if total.IsZero() {
		return alloc, nil
	}
	actualA, err := utils.MulDivFloor(h.A, bpsDenominator, total)
	if err != nil {
		return Allocation{}, err
	}
	alloc.ActualA = actualA.Uint64()
	alloc.ActualB = types.BpsDenominator - alloc.ActualA
	return alloc, nil
}

func (a *Allocator) AutoCompoundConfig() AutoCompoundConfig { return a.st.compound }

// SetAutoCompoundConfig replaces the compound policy. Owner only.
func (a *Allocator) SetAutoCompoundConfig(call chain.Call, cfg AutoCompoundConfig) error {
	if err := a.st.access.RequireOwner(call.Sender); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.MinAmount = utils.OrZero(cfg.MinAmount)
	a.st.compound = cfg
	call.Emit(types.Event{
		Kind:    types.EventConfigUpdated,
		Emitter: a.address,
		Sender:  call.Sender,
		Detail:  fmt.Sprintf("autoCompound enabled=%t min=%s feeBps=%d", cfg.Enabled, cfg.MinAmount, cfg.FeeBps),
	})
	return nil
}

// SetProtocolAddresses rebinds the venue at id. The allocator must hold
// nothing in the venue being replaced. Owner only.
func (a *Allocator) SetProtocolAddresses(call chain.Call, id types.VenueID, v venue.Venue) error {
	if err := a.st.access.RequireOwner(call.Sender); err != nil {
		return err
	}
	if id != types.VenueA && id != types.VenueB {
		return errors.Join(types.ErrInvalidArgument, fmt.Errorf("venue %d", id))
	}
	if v == nil {
		return errors.Join(types.ErrInvalidArgument, errors.New("venue cannot be nil"))
	}
	bal, err := a.st.venues[id].Balance()
	if err != nil {
		return errors.Join(types.ErrVenueOperationFailed, err)
	}
	if bal.IsPositive() {
		return errors.Join(types.ErrInvalidArgument, fmt.Errorf("venue %s still holds %s", id, bal))
	}
	a.st.venues[id] = v
	call.Emit(types.Event{
		Kind:    types.EventConfigUpdated,
		Emitter: a.address,
		Sender:  call.Sender,
		Detail:  fmt.Sprintf("venue %s=%s", id, v.Name()),
	})
	return nil
}

func (a *Allocator) Stats() Stats {
	return Stats{
		TotalCompounded: a.st.totalCompounded,
		TotalClaimed:    a.st.totalClaimed,
		LastRebalance:   a.st.lastRebalance,
		LastCompound:    a.st.lastCompound,
	}
}

func (a *Allocator) Snapshot() any {
	return a.st
}

func (a *Allocator) Restore(snapshot any) {
	a.st = snapshot.(state)
}
