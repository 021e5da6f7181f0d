package allocator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yield-vault/internal/allocator"
	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/venue"
)

const (
	ledgerAddr    types.Address = "ledger"
	ownerAddr     types.Address = "owner"
	allocatorAddr types.Address = "allocator"
	mallory       types.Address = "mallory"
)

var (
	t0      = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	weights = types.WeightTable{
		types.RiskLow:    {BpsA: 8000, BpsB: 2000},
		types.RiskMedium: {BpsA: 5000, BpsB: 5000},
		types.RiskHigh:   {BpsA: 2000, BpsB: 8000},
	}
)

// fakeVenue keeps its position as a plain bank balance and records calls.
type fakeVenue struct {
	name        string
	bank        *chain.Bank
	addr        types.Address
	holder      types.Address
	haircut     sdkmath.Int
	deposits    []sdkmath.Int
	withdrawals []sdkmath.Int
}

func (v *fakeVenue) Name() string { return v.name }

func (v *fakeVenue) Deposit(amount sdkmath.Int) error {
	v.deposits = append(v.deposits, amount)
	return v.bank.Transfer(v.holder, v.addr, amount)
}

func (v *fakeVenue) Withdraw(amount sdkmath.Int) (sdkmath.Int, error) {
	v.withdrawals = append(v.withdrawals, amount)
	out := amount
	if !v.haircut.IsNil() {
		out = sdkmath.MaxInt(amount.Sub(v.haircut), sdkmath.ZeroInt())
	}
	if err := v.bank.Transfer(v.addr, v.holder, out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return out, nil
}

func (v *fakeVenue) Balance() (sdkmath.Int, error) { return v.bank.BalanceOf(v.addr), nil }

func (v *fakeVenue) Rate() (sdkmath.LegacyDec, error) { return sdkmath.LegacyZeroDec(), nil }

func (v *fakeVenue) seed(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, v.bank.Mint(v.addr, sdkmath.NewInt(amount)))
}

func (v *fakeVenue) calls() int { return len(v.deposits) + len(v.withdrawals) }

// rewardVenue adds a reward side to fakeVenue.
type rewardVenue struct {
	*fakeVenue
	pending  sdkmath.Int
	claimErr error
	panics   bool
}

var _ venue.RewardSource = (*rewardVenue)(nil)

func (v *rewardVenue) ClaimRewards() (sdkmath.Int, error) {
	if v.panics {
		panic("reward controller exploded")
	}
	if v.claimErr != nil {
		return sdkmath.ZeroInt(), v.claimErr
	}
	amount := v.pending
	if err := v.bank.Mint(v.holder, amount); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.pending = sdkmath.ZeroInt()
	return amount, nil
}

func (v *rewardVenue) PendingRewards() (sdkmath.Int, error) { return v.pending, nil }

func (v *rewardVenue) Snapshot() any { return v.pending }

func (v *rewardVenue) Restore(snapshot any) { v.pending = snapshot.(sdkmath.Int) }

type fixture struct {
	bank  *chain.Bank
	alloc *allocator.Allocator
	a     *fakeVenue
	b     *rewardVenue
}

func newFixture(t *testing.T, profile types.RiskProfile, ac allocator.AutoCompoundConfig) *fixture {
	t.Helper()
	bank, err := chain.NewBank("uusdc")
	require.NoError(t, err)
	a := &fakeVenue{name: "fake-a", bank: bank, addr: "venue-a", holder: allocatorAddr}
	b := &rewardVenue{
		fakeVenue: &fakeVenue{name: "fake-b", bank: bank, addr: "venue-b", holder: allocatorAddr},
		pending:   sdkmath.ZeroInt(),
	}
	alloc, err := allocator.New(allocator.Config{
		Address:      allocatorAddr,
		Ledger:       ledgerAddr,
		Owner:        ownerAddr,
		Bank:         bank,
		VenueA:       a,
		VenueB:       b,
		Weights:      weights,
		Profile:      profile,
		AutoCompound: ac,
	})
	require.NoError(t, err)
	return &fixture{bank: bank, alloc: alloc, a: a, b: b}
}

func (f *fixture) deposit(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, f.bank.Mint(allocatorAddr, sdkmath.NewInt(amount)))
	require.NoError(t, f.alloc.Deposit(chain.NewCall(ledgerAddr, t0), sdkmath.NewInt(amount)))
}

func (f *fixture) balances(t *testing.T) (int64, int64, int64) {
	t.Helper()
	a, b, idle, err := f.alloc.Balances()
	require.NoError(t, err)
	return a.Int64(), b.Int64(), idle.Int64()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	bank, err := chain.NewBank("uusdc")
	require.NoError(t, err)
	a := &fakeVenue{name: "a", bank: bank, addr: "venue-a", holder: allocatorAddr}
	b := &fakeVenue{name: "b", bank: bank, addr: "venue-b", holder: allocatorAddr}
	valid := allocator.Config{
		Address: allocatorAddr, Ledger: ledgerAddr, Owner: ownerAddr,
		Bank: bank, VenueA: a, VenueB: b, Weights: weights, Profile: types.RiskMedium,
	}

	tests := []struct {
		name   string
		mutate func(c *allocator.Config)
	}{
		{"missing ledger", func(c *allocator.Config) { c.Ledger = "" }},
		{"missing bank", func(c *allocator.Config) { c.Bank = nil }},
		{"missing venue", func(c *allocator.Config) { c.VenueB = nil }},
		{"bad profile", func(c *allocator.Config) { c.Profile = 7 }},
		{"bad weights", func(c *allocator.Config) { c.Weights[types.RiskHigh] = types.WeightPair{BpsA: 1, BpsB: 1} }},
		{"fee above cap", func(c *allocator.Config) { c.AutoCompound.FeeBps = allocator.MaxCompoundFeeBps + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := allocator.New(cfg)
			require.ErrorIs(t, err, allocator.ErrInvalidConfig)
		})
	}

	_, err = allocator.New(valid)
	require.NoError(t, err)
}

func TestDepositSplitsByProfileWeights(t *testing.T) {
	tests := []struct {
		profile types.RiskProfile
		amount  int64
		wantA   int64
		wantB   int64
	}{
		{types.RiskLow, 1000, 800, 200},
		{types.RiskMedium, 1000, 500, 500},
		{types.RiskHigh, 1000, 200, 800},
		{types.RiskMedium, 3, 1, 2},
		{types.RiskLow, 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.profile.String(), func(t *testing.T) {
			f := newFixture(t, tt.profile, allocator.AutoCompoundConfig{})
			f.deposit(t, tt.amount)

			a, b, idle := f.balances(t)
			assert.Equal(t, tt.wantA, a)
			assert.Equal(t, tt.wantB, b)
			assert.Zero(t, idle)
			assert.Equal(t, tt.amount, a+b)
		})
	}
}

func TestDepositSkipsZeroLegs(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	require.NoError(t, f.alloc.SetWeights(chain.NewCall(ownerAddr, t0), types.RiskMedium, types.WeightPair{BpsA: 10000, BpsB: 0}))

	f.deposit(t, 500)
	assert.Len(t, f.a.deposits, 1)
	assert.Empty(t, f.b.deposits)
}

func TestOnlyLedgerMovesFunds(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	require.NoError(t, f.bank.Mint(allocatorAddr, sdkmath.NewInt(100)))

	err := f.alloc.Deposit(chain.NewCall(mallory, t0), sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrUnauthorized)
	err = f.alloc.Deposit(chain.NewCall(ownerAddr, t0), sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = f.alloc.Withdraw(chain.NewCall(mallory, t0), sdkmath.NewInt(1))
	require.ErrorIs(t, err, types.ErrUnauthorized)

	assert.Zero(t, f.a.calls()+f.b.calls())
}

func TestDepositNeedsIdleFunds(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	err := f.alloc.Deposit(chain.NewCall(ledgerAddr, t0), sdkmath.NewInt(100))
	require.ErrorIs(t, err, types.ErrInsufficientBalance)

	err = f.alloc.Deposit(chain.NewCall(ledgerAddr, t0), sdkmath.ZeroInt())
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestWithdrawProportionalToBalances(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	f.a.seed(t, 700)
	f.b.seed(t, 301)

	got, err := f.alloc.Withdraw(chain.NewCall(ledgerAddr, t0), sdkmath.NewInt(500))
	require.NoError(t, err)
	require.Len(t, f.a.withdrawals, 1)
	require.Len(t, f.b.withdrawals, 1)
	assert.Equal(t, int64(349), f.a.withdrawals[0].Int64())
	assert.Equal(t, int64(150), f.b.withdrawals[0].Int64())
	assert.Equal(t, int64(499), got.Int64())
	assert.True(t, got.Equal(f.bank.BalanceOf(ledgerAddr)))
}

func TestWithdrawReturnsWhatVenuesDelivered(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	f.deposit(t, 1000)
	f.a.haircut = sdkmath.NewInt(2)

	got, err := f.alloc.Withdraw(chain.NewCall(ledgerAddr, t0), sdkmath.NewInt(400))
	require.NoError(t, err)
	assert.Equal(t, int64(398), got.Int64())
	assert.Equal(t, int64(398), f.bank.BalanceOf(ledgerAddr).Int64())
}

func TestWithdrawBeyondHoldingsMakesNoVenueCalls(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	f.a.seed(t, 700)
	f.b.seed(t, 301)

	_, err := f.alloc.Withdraw(chain.NewCall(ledgerAddr, t0), sdkmath.NewInt(1002))
	require.ErrorIs(t, err, types.ErrInsufficientBalance)
	assert.Empty(t, f.a.withdrawals)
	assert.Empty(t, f.b.withdrawals)
}

func TestRebalanceCorrectsDrift(t *testing.T) {
	tests := []struct {
		name      string
		a, b      int64
		wantA     int64
		wantB     int64
		wantMoved int64
	}{
		{"above threshold", 600, 400, 500, 500, 100},
		{"just above threshold", 521, 479, 500, 500, 21},
		{"at threshold", 520, 480, 520, 480, 0},
		{"b over-weight", 100, 900, 500, 500, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
			f.a.seed(t, tt.a)
			f.b.seed(t, tt.b)

			call := chain.NewCall(mallory, t0)
			report, err := f.alloc.Rebalance(call)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMoved, report.Moved.Int64())
			assert.True(t, report.TotalBefore.Equal(report.TotalAfter))

			a, b, _ := f.balances(t)
			assert.Equal(t, tt.wantA, a)
			assert.Equal(t, tt.wantB, b)

			events := call.Events()
			require.NotEmpty(t, events)
			assert.Equal(t, types.EventRebalanced, events[len(events)-1].Kind)
		})
	}
}

func TestRebalanceDeploysIdleFunds(t *testing.T) {
	f := newFixture(t, types.RiskLow, allocator.AutoCompoundConfig{})
	require.NoError(t, f.bank.Mint(allocatorAddr, sdkmath.NewInt(1000)))

	_, err := f.alloc.Rebalance(chain.NewCall(mallory, t0))
	require.NoError(t, err)
	a, b, idle := f.balances(t)
	assert.Equal(t, int64(800), a)
	assert.Equal(t, int64(200), b)
	assert.Zero(t, idle)
}

func TestRebalanceCooldown(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	f.deposit(t, 1000)

	_, err := f.alloc.Rebalance(chain.NewCall(mallory, t0))
	require.NoError(t, err)
	assert.Equal(t, t0, f.alloc.Stats().LastRebalance)

	early := t0.Add(allocator.RebalanceCooldown - time.Second)
	assert.False(t, f.alloc.RebalanceEligible(early))
	_, err = f.alloc.Rebalance(chain.NewCall(mallory, early))
	require.ErrorIs(t, err, types.ErrCooldownActive)
	assert.Equal(t, t0, f.alloc.Stats().LastRebalance)

	due := t0.Add(allocator.RebalanceCooldown)
	assert.True(t, f.alloc.RebalanceEligible(due))
	_, err = f.alloc.Rebalance(chain.NewCall(mallory, due))
	require.NoError(t, err)
	assert.Equal(t, due, f.alloc.Stats().LastRebalance)
}

func TestSetRiskProfileResetsRebalanceCooldown(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	f.deposit(t, 1000)
	_, err := f.alloc.Rebalance(chain.NewCall(mallory, t0))
	require.NoError(t, err)

	later := t0.Add(time.Minute)
	err = f.alloc.SetRiskProfile(chain.NewCall(mallory, later), types.RiskLow)
	require.ErrorIs(t, err, types.ErrUnauthorized)
	require.NoError(t, f.alloc.SetRiskProfile(chain.NewCall(ledgerAddr, later), types.RiskLow))
	assert.Equal(t, types.RiskLow, f.alloc.RiskProfile())
	assert.True(t, f.alloc.RebalanceEligible(later))

	report, err := f.alloc.Rebalance(chain.NewCall(mallory, later))
	require.NoError(t, err)
	assert.Equal(t, int64(300), report.Moved.Int64())
	a, b, _ := f.balances(t)
	assert.Equal(t, int64(800), a)
	assert.Equal(t, int64(200), b)

	err = f.alloc.SetRiskProfile(chain.NewCall(ownerAddr, later), types.RiskProfile(9))
	require.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestAutoCompoundDisabled(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{Enabled: false})
	f.b.pending = sdkmath.NewInt(100)

	_, err := f.alloc.AutoCompound(chain.NewCall(mallory, t0))
	require.ErrorIs(t, err, allocator.ErrAutoCompoundDisabled)
	require.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.False(t, f.alloc.CompoundEligible(t0))
	assert.Equal(t, int64(100), f.b.pending.Int64())
}

// onChain registers the fixture's state on a chain so failed sub-calls roll back.
func (f *fixture) onChain(at time.Time) *chain.Chain {
	c := chain.New(func() time.Time { return at })
	c.Register(f.bank, f.alloc, f.b)
	return c
}

func (f *fixture) compound(t *testing.T, c *chain.Chain) (sdkmath.Int, []types.Event) {
	t.Helper()
	var (
		got    sdkmath.Int
		events []types.Event
	)
	require.NoError(t, c.Execute(context.Background(), mallory, func(call chain.Call) error {
		var err error
		got, err = f.alloc.AutoCompound(call)
		events = call.Events()
		return err
	}))
	return got, events
}

func TestAutoCompoundBelowMinimumIsNoOp(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{
		Enabled: true, MinAmount: sdkmath.NewInt(50), FeeBps: 200,
	})
	f.deposit(t, 1000)
	// Idle funds do not count towards the minimum.
	require.NoError(t, f.bank.Mint(allocatorAddr, sdkmath.NewInt(30)))
	f.b.pending = sdkmath.NewInt(40)

	got, events := f.compound(t, f.onChain(t0))
	assert.True(t, got.IsZero())
	assert.Empty(t, events)

	stats := f.alloc.Stats()
	assert.True(t, stats.LastCompound.IsZero())
	assert.True(t, stats.TotalCompounded.IsZero())
	assert.True(t, stats.TotalClaimed.IsZero())
	a, b, idle := f.balances(t)
	assert.Equal(t, int64(500), a)
	assert.Equal(t, int64(500), b)
	assert.Equal(t, int64(30), idle)
	assert.Equal(t, int64(40), f.b.pending.Int64())
	assert.True(t, f.bank.BalanceOf(ledgerAddr).IsZero())
	assert.True(t, f.alloc.CompoundEligible(t0))
}

func TestAutoCompoundReinvestsNetOfFee(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{
		Enabled: true, MinAmount: sdkmath.NewInt(50), FeeBps: 200,
	})
	f.deposit(t, 1000)
	c := f.onChain(t0)
	f.b.pending = sdkmath.NewInt(40)
	got, _ := f.compound(t, c)
	require.True(t, got.IsZero())

	// The 40 left pending join the next 20.
	f.b.pending = f.b.pending.AddRaw(20)
	got, events := f.compound(t, c)

	// Claimed 60: fee floor(60*2%) = 1 to the ledger, 59 split 29/30.
	assert.Equal(t, int64(59), got.Int64())
	assert.Equal(t, int64(1), f.bank.BalanceOf(ledgerAddr).Int64())
	a, b, idle := f.balances(t)
	assert.Equal(t, int64(529), a)
	assert.Equal(t, int64(530), b)
	assert.Zero(t, idle)
	assert.True(t, f.b.pending.IsZero())

	stats := f.alloc.Stats()
	assert.Equal(t, int64(59), stats.TotalCompounded.Int64())
	assert.Equal(t, int64(60), stats.TotalClaimed.Int64())
	assert.True(t, stats.TotalCompounded.LTE(stats.TotalClaimed))
	assert.Equal(t, t0, stats.LastCompound)

	kinds := make([]types.EventKind, 0)
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, types.EventCompounded)
}

func TestAutoCompoundLeavesIdleFundsToRebalance(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{Enabled: true, MinAmount: sdkmath.NewInt(10)})
	f.deposit(t, 1000)
	require.NoError(t, f.bank.Mint(allocatorAddr, sdkmath.NewInt(100)))
	f.b.pending = sdkmath.NewInt(20)

	got, _ := f.compound(t, f.onChain(t0))
	assert.Equal(t, int64(20), got.Int64())
	_, _, idle := f.balances(t)
	assert.Equal(t, int64(100), idle)
	assert.Equal(t, int64(20), f.alloc.Stats().TotalClaimed.Int64())

	_, err := f.alloc.Rebalance(chain.NewCall(mallory, t0))
	require.NoError(t, err)
	_, _, idle = f.balances(t)
	assert.Zero(t, idle)
}

func TestAutoCompoundCooldown(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{Enabled: true, FeeBps: 0})
	f.deposit(t, 1000)
	f.b.pending = sdkmath.NewInt(10)

	_, err := f.alloc.AutoCompound(chain.NewCall(mallory, t0))
	require.NoError(t, err)

	early := t0.Add(allocator.CompoundCooldown - time.Second)
	f.b.pending = sdkmath.NewInt(10)
	_, err = f.alloc.AutoCompound(chain.NewCall(mallory, early))
	require.ErrorIs(t, err, types.ErrCooldownActive)
	assert.False(t, f.alloc.CompoundEligible(early))
	assert.Equal(t, int64(10), f.b.pending.Int64())

	due := t0.Add(allocator.CompoundCooldown)
	got, err := f.alloc.AutoCompound(chain.NewCall(mallory, due))
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Int64())
}

func TestRebalanceCompoundsWhenEligible(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{Enabled: true, FeeBps: 500})
	f.deposit(t, 1000)
	f.b.pending = sdkmath.NewInt(100)

	report, err := f.alloc.Rebalance(chain.NewCall(mallory, t0))
	require.NoError(t, err)
	assert.Equal(t, int64(95), report.Compounded.Int64())
	assert.Equal(t, int64(5), f.bank.BalanceOf(ledgerAddr).Int64())
	assert.Equal(t, t0, f.alloc.Stats().LastCompound)
}

func TestRewardClaimsAreBestEffort(t *testing.T) {
	tests := []struct {
		name  string
		setup func(v *rewardVenue)
	}{
		{"claim error", func(v *rewardVenue) { v.claimErr = errors.New("controller offline") }},
		{"claim unsupported", func(v *rewardVenue) { v.claimErr = types.ErrRewardClaimUnavailable }},
		{"claim panics", func(v *rewardVenue) { v.panics = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{Enabled: true})
			f.deposit(t, 1000)
			f.b.pending = sdkmath.NewInt(100)
			tt.setup(f.b)

			got, err := f.alloc.AutoCompound(chain.NewCall(mallory, t0))
			require.NoError(t, err)
			assert.True(t, got.IsZero())

			claimed, err := f.alloc.ClaimRewards(chain.NewCall(mallory, t0))
			require.NoError(t, err)
			assert.True(t, claimed.IsZero())

			report, err := f.alloc.Rebalance(chain.NewCall(mallory, t0))
			require.NoError(t, err)
			assert.True(t, report.Compounded.IsZero())
		})
	}
}

func TestClaimAndPendingRewards(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	f.b.pending = sdkmath.NewInt(15)
	assert.Equal(t, int64(15), f.alloc.PendingRewards().Int64())

	claimed, err := f.alloc.ClaimRewards(chain.NewCall(mallory, t0))
	require.NoError(t, err)
	assert.Equal(t, int64(15), claimed.Int64())
	assert.Equal(t, int64(15), f.alloc.Stats().TotalClaimed.Int64())
	assert.True(t, f.alloc.PendingRewards().IsZero())
	_, _, idle := f.balances(t)
	assert.Equal(t, int64(15), idle)
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	f.a.seed(t, 300)
	f.b.seed(t, 200)
	require.NoError(t, f.bank.Mint(allocatorAddr, sdkmath.NewInt(7)))
	_, err := f.alloc.Rebalance(chain.NewCall(mallory, t0))
	require.NoError(t, err)

	_, err = f.alloc.EmergencyWithdraw(chain.NewCall(mallory, t0))
	require.ErrorIs(t, err, types.ErrUnauthorized)

	// Cooldowns do not apply.
	got, err := f.alloc.EmergencyWithdraw(chain.NewCall(ownerAddr, t0.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, int64(507), got.Int64())
	assert.Equal(t, int64(507), f.bank.BalanceOf(ledgerAddr).Int64())

	total, err := f.alloc.TotalAssets()
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestSetProtocolAddresses(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	f.deposit(t, 1000)
	replacement := &fakeVenue{name: "fake-a2", bank: f.bank, addr: "venue-a2", holder: allocatorAddr}

	err := f.alloc.SetProtocolAddresses(chain.NewCall(mallory, t0), types.VenueA, replacement)
	require.ErrorIs(t, err, types.ErrUnauthorized)
	err = f.alloc.SetProtocolAddresses(chain.NewCall(ownerAddr, t0), types.VenueA, replacement)
	require.ErrorIs(t, err, types.ErrInvalidArgument)
	err = f.alloc.SetProtocolAddresses(chain.NewCall(ownerAddr, t0), types.VenueA, nil)
	require.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = f.alloc.EmergencyWithdraw(chain.NewCall(ownerAddr, t0))
	require.NoError(t, err)
	require.NoError(t, f.alloc.SetProtocolAddresses(chain.NewCall(ownerAddr, t0), types.VenueA, replacement))
	assert.Equal(t, "fake-a2", f.alloc.Venue(types.VenueA).Name())
}

func TestSetWeightsKeepsTableValid(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})

	err := f.alloc.SetWeights(chain.NewCall(ownerAddr, t0), types.RiskHigh, types.WeightPair{BpsA: 6000, BpsB: 3000})
	require.ErrorIs(t, err, types.ErrInvalidArgument)
	err = f.alloc.SetWeights(chain.NewCall(ledgerAddr, t0), types.RiskHigh, types.WeightPair{BpsA: 3000, BpsB: 7000})
	require.ErrorIs(t, err, types.ErrUnauthorized)
	assert.Equal(t, weights, f.alloc.Weights())

	require.NoError(t, f.alloc.SetWeights(chain.NewCall(ownerAddr, t0), types.RiskHigh, types.WeightPair{BpsA: 3000, BpsB: 7000}))
	assert.NoError(t, f.alloc.Weights().Validate())
	assert.Equal(t, types.WeightPair{BpsA: 3000, BpsB: 7000}, f.alloc.Weights()[types.RiskHigh])
}

func TestSetAutoCompoundConfig(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})

	tests := []struct {
		name    string
		caller  types.Address
		cfg     allocator.AutoCompoundConfig
		wantErr error
	}{
		{"fee at cap", ownerAddr, allocator.AutoCompoundConfig{Enabled: true, FeeBps: 500}, nil},
		{"fee above cap", ownerAddr, allocator.AutoCompoundConfig{Enabled: true, FeeBps: 501}, types.ErrInvalidArgument},
		{"negative minimum", ownerAddr, allocator.AutoCompoundConfig{MinAmount: sdkmath.NewInt(-1)}, types.ErrInvalidArgument},
		{"not owner", mallory, allocator.AutoCompoundConfig{Enabled: true}, types.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.alloc.SetAutoCompoundConfig(chain.NewCall(tt.caller, t0), tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.FeeBps, f.alloc.AutoCompoundConfig().FeeBps)
			assert.True(t, f.alloc.AutoCompoundConfig().MinAmount.IsZero())
		})
	}
}

func TestAllocationPercentages(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})

	empty, err := f.alloc.AllocationPercentages()
	require.NoError(t, err)
	assert.Equal(t, allocator.Allocation{Profile: types.RiskMedium, TargetA: 5000, TargetB: 5000}, empty)

	f.a.seed(t, 750)
	f.b.seed(t, 250)
	got, err := f.alloc.AllocationPercentages()
	require.NoError(t, err)
	assert.Equal(t, uint64(7500), got.ActualA)
	assert.Equal(t, uint64(2500), got.ActualB)
	assert.Equal(t, uint64(5000), got.TargetA)
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t, types.RiskMedium, allocator.AutoCompoundConfig{})
	snap := f.alloc.Snapshot()

	require.NoError(t, f.alloc.SetRiskProfile(chain.NewCall(ownerAddr, t0), types.RiskHigh))
	require.NoError(t, f.alloc.SetWeights(chain.NewCall(ownerAddr, t0), types.RiskLow, types.WeightPair{BpsA: 10000}))

	f.alloc.Restore(snap)
	assert.Equal(t, types.RiskMedium, f.alloc.RiskProfile())
	assert.Equal(t, weights, f.alloc.Weights())
}
