package keeper_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yield-vault/internal/allocator"
	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/config"
	"github.com/elys-network/yield-vault/internal/keeper"
	"github.com/elys-network/yield-vault/internal/simulations"
	"github.com/elys-network/yield-vault/internal/state"
	"github.com/elys-network/yield-vault/internal/types"
)

const (
	owner  types.Address = "owner"
	alice  types.Address = "alice"
	sender types.Address = "keeper"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	d      *simulations.Deployment
	clock  *simulations.ManualClock
	store  *state.MemoryStore
	keeper *keeper.Keeper
	hooks  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: simulations.NewManualClock(start), store: state.NewMemoryStore()}
	var err error
	f.d, err = simulations.Deploy(simulations.DeploymentConfig{
		AssetDenom: "uusdc",
		Owner:      owner,
		Params: types.VaultParameters{
			PerformanceFeeBps:   1000,
			CompoundFeeBps:      200,
			MinCompoundAmount:   sdkmath.ZeroInt(),
			AutoCompoundEnabled: true,
			RiskProfile:         types.RiskMedium,
			Weights:             config.DefaultWeights,
		},
		Market: simulations.FlatMarket(),
		Clock:  f.clock.Now,
	})
	require.NoError(t, err)
	f.keeper, err = keeper.New(keeper.Config{
		Chain:     f.d.Chain,
		Ledger:    f.d.Ledger,
		Store:     f.store,
		Sender:    sender,
		BlockTime: 6 * time.Second,
		BeforeCycle: func(ctx context.Context) error {
			f.hooks++
			return f.d.Accrue(ctx)
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, f.d.Fund(ctx, alice, sdkmath.NewInt(1000)))
	require.NoError(t, f.d.Chain.Execute(ctx, alice, func(call chain.Call) error {
		_, err := f.d.Ledger.Deposit(call, sdkmath.NewInt(1000), alice)
		return err
	}))
	return f
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	f := newFixture(t)
	valid := keeper.Config{Chain: f.d.Chain, Ledger: f.d.Ledger, Store: f.store, Sender: sender, BlockTime: time.Second}

	tests := []struct {
		name   string
		mutate func(*keeper.Config)
	}{
		{"no chain", func(c *keeper.Config) { c.Chain = nil }},
		{"no ledger", func(c *keeper.Config) { c.Ledger = nil }},
		{"no store", func(c *keeper.Config) { c.Store = nil }},
		{"no sender", func(c *keeper.Config) { c.Sender = "" }},
		{"no block time", func(c *keeper.Config) { c.BlockTime = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := keeper.New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestCycleSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Both timers are fresh: harvest with nothing to earn.
	first, err := f.keeper.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.CycleNumber)
	assert.NotEmpty(t, first.CycleID)
	assert.Equal(t, []string{keeper.ActionHarvest}, first.Actions)
	assert.True(t, first.ProfitAssets.IsZero())
	assert.Equal(t, int64(1000), first.Initial.TotalAssets.Int64())
	assert.InDelta(t, 1.0, first.Final.SharePrice, 1e-12)
	require.Len(t, first.Final.Venues, 2)
	assert.Equal(t, types.VenueA, first.Final.Venues[0].Venue)
	assert.Equal(t, int64(500), first.Final.Venues[0].Balance.Int64())
	assert.Equal(t, int64(500), first.Final.Venues[1].Balance.Int64())
	assert.Equal(t, types.WeightPair{BpsA: 5000, BpsB: 5000}, first.Final.Weights)

	// One hour later only the compound timer is open.
	f.clock.Advance(time.Hour)
	f.d.Lending.AddRewards(f.d.Allocator.Address(), sdkmath.NewInt(50))
	second, err := f.keeper.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{keeper.ActionCompound}, second.Actions)
	assert.Equal(t, int64(49), second.Compounded.Int64())
	assert.Equal(t, int64(1050), second.Final.TotalAssets.Int64())
	assert.Equal(t, int64(1), second.Final.Idle.Int64(), "compound fee lands in the ledger")

	third, err := f.keeper.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{keeper.ActionIdle}, third.Actions)

	// Six hours after the first harvest both timers reopen; the harvest
	// compounds the new rewards and charges the performance fee on them.
	f.clock.Advance(5 * time.Hour)
	f.d.Lending.AddRewards(f.d.Allocator.Address(), sdkmath.NewInt(100))
	fourth, err := f.keeper.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, keeper.ActionHarvest, fourth.Actions[0])
	assert.Equal(t, int64(100), fourth.ProfitAssets.Int64())
	assert.Equal(t, int64(98), fourth.Compounded.Int64())
	// 10 assets at 1150/1000.
	assert.Equal(t, int64(8), fourth.FeeShares.Int64())
	assert.Equal(t, int64(1008), fourth.Final.TotalSupply.Int64())
	assert.Greater(t, fourth.Final.SharePrice, fourth.Initial.SharePrice)

	assert.Equal(t, 4, f.hooks)
	cycles, err := f.store.RecentCycles(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, cycles, 4)
	assert.Equal(t, 4, cycles[0].CycleNumber)
}

func TestFailedUpkeepIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.d.Lending.AddRewards(f.d.Allocator.Address(), sdkmath.NewInt(100))
	f.d.Lending.FailNext(simulations.OpDeposit, 1)

	snapshot, err := f.keeper.RunCycle(ctx)
	require.Error(t, err)
	assert.NotEmpty(t, snapshot.Error)
	assert.Empty(t, snapshot.Actions)
	// The harvest reverted as a whole.
	assert.True(t, f.d.Ledger.LastHarvest().IsZero())
	assert.Equal(t, snapshot.Initial.TotalAssets.Int64(), snapshot.Final.TotalAssets.Int64())

	latest, err := f.store.LatestCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot.CycleID, latest.CycleID)
	summary, err := f.store.PerformanceSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailedCycles)

	// The fault was consumed; the next cycle succeeds.
	_, err = f.keeper.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, start, f.d.Ledger.LastHarvest())
}

// brokenTimers is an allocator whose compound timer cannot be read.
type brokenTimers struct{ *allocator.Allocator }

func (brokenTimers) CompoundEligible(time.Time) bool { panic("timer storage unreadable") }

func TestTimerReadFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	next, err := f.d.NewAllocator("vault-allocator-2", owner, types.VaultParameters{
		CompoundFeeBps:      200,
		MinCompoundAmount:   sdkmath.ZeroInt(),
		AutoCompoundEnabled: true,
		RiskProfile:         types.RiskMedium,
		Weights:             config.DefaultWeights,
	})
	require.NoError(t, err)
	require.NoError(t, f.d.Chain.Execute(ctx, owner, func(call chain.Call) error {
		return f.d.Ledger.SetStrategy(call, brokenTimers{next})
	}))

	snapshot, err := f.keeper.RunCycle(ctx)
	require.ErrorIs(t, err, chain.ErrPanic)
	assert.Contains(t, snapshot.Error, "timer storage unreadable")
	assert.Empty(t, snapshot.Actions)
	assert.True(t, f.d.Ledger.LastHarvest().IsZero())
	assert.Equal(t, int64(1000), snapshot.Final.TotalAssets.Int64())

	summary, err := f.store.PerformanceSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FailedCycles)
}

type failingStore struct{ *state.MemoryStore }

func (failingStore) SaveCycleSnapshot(context.Context, types.CycleSnapshot) (int64, error) {
	return 0, errors.New("disk full")
}

func (failingStore) NextCycleNumber(context.Context) (int, error) {
	return 0, errors.New("disk full")
}

func TestStoreFailuresSurface(t *testing.T) {
	f := newFixture(t)
	k, err := keeper.New(keeper.Config{
		Chain:     f.d.Chain,
		Ledger:    f.d.Ledger,
		Store:     failingStore{state.NewMemoryStore()},
		Sender:    sender,
		BlockTime: time.Second,
	})
	require.NoError(t, err)

	snapshot, err := k.RunCycle(context.Background())
	require.Error(t, err)
	assert.Positive(t, snapshot.CycleNumber, "falls back to a time-derived number")
	// The upkeep itself committed.
	assert.Equal(t, []string{keeper.ActionHarvest}, snapshot.Actions)
	assert.Empty(t, snapshot.Error)
}

func TestSharePrice(t *testing.T) {
	assert.InDelta(t, 1.0, keeper.SharePrice(sdkmath.ZeroInt(), sdkmath.ZeroInt()), 1e-12)
	assert.InDelta(t, 1.1, keeper.SharePrice(sdkmath.NewInt(1100), sdkmath.NewInt(1000)), 1e-12)
	assert.InDelta(t, 1.0, keeper.SharePrice(sdkmath.NewInt(5), sdkmath.Int{}), 1e-12)
}

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := keeper.NewScheduler(context.Background())
	job := &countingJob{}

	require.NoError(t, s.AddJob("0 */10 * * * *", job))
	require.NoError(t, s.AddJob("@every 30s", job))
	assert.Error(t, s.AddJob("not a schedule", job))
	assert.Equal(t, 2, s.Entries())

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, int32(1), job.runs.Load())

	job.err = errors.New("boom")
	assert.Error(t, s.RunNow(job))

	s.Start()
	s.Stop()
}

func TestSchedulerRunsKeeper(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := keeper.NewScheduler(ctx)
	require.NoError(t, s.AddJob("@every 1s", f.keeper))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		n, err := f.store.CurrentCycleNumber(ctx)
		return err == nil && n >= 1
	}, 5*time.Second, 50*time.Millisecond)
}
