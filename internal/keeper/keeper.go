// Package keeper is the external trigger that drives the vault's periodic
// upkeep: it harvests when both the ledger and allocator timers allow it,
// otherwise compounds rewards, and records every cycle.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/yield-vault/internal/analyzer"
	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/logger"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/utils"
	"github.com/elys-network/yield-vault/internal/vault"
	"github.com/elys-network/yield-vault/internal/venue"
)

// Cycle actions recorded in CycleSnapshot.Actions.
const (
	ActionHarvest  = "HARVEST"
	ActionMove     = "REBALANCE_MOVE"
	ActionCompound = "COMPOUND"
	ActionIdle     = "IDLE"
)

// Store is where cycles are numbered and recorded.
type Store interface {
	NextCycleNumber(ctx context.Context) (int, error)
	SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error)
}

// Allocator is the part of the bound strategy the keeper needs beyond
// vault.Strategy.
type Allocator interface {
	vault.Strategy
	CompoundEligible(now time.Time) bool
	AutoCompound(call chain.Call) (sdkmath.Int, error)
	Balances() (balA, balB, idle sdkmath.Int, err error)
	Venue(id types.VenueID) venue.Venue
	Weights() types.WeightTable
}

// Config holds the dependencies of a Keeper.
type Config struct {
	Chain  *chain.Chain
	Ledger *vault.Ledger
	Store  Store
	// Sender signs the permissionless harvest and compound calls.
	Sender types.Address
	// BlockTime converts per-block venue rates into annual rates.
	BlockTime time.Duration
	// BeforeCycle runs at the start of every cycle, e.g. to accrue
	// simulated interest. Optional.
	BeforeCycle func(ctx context.Context) error
}

// Keeper runs upkeep cycles against one ledger.
type Keeper struct {
	logger      zerolog.Logger
	chain       *chain.Chain
	ledger      *vault.Ledger
	store       Store
	sender      types.Address
	blockTime   time.Duration
	beforeCycle func(ctx context.Context) error
}

func validateConfig(cfg Config) error {
	if cfg.Chain == nil {
		return fmt.Errorf("chain cannot be nil")
	}
	if cfg.Ledger == nil {
		return fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	if cfg.Sender.IsZero() {
		return fmt.Errorf("sender cannot be empty")
	}
	if cfg.BlockTime <= 0 {
		return fmt.Errorf("block time must be positive")
	}
	return nil
}

// New creates a Keeper.
func New(cfg Config) (*Keeper, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("keeper configuration validation failed: %w", err)
	}
	k := &Keeper{
		logger:      logger.GetForComponent("keeper"),
		chain:       cfg.Chain,
		ledger:      cfg.Ledger,
		store:       cfg.Store,
		sender:      cfg.Sender,
		blockTime:   cfg.BlockTime,
		beforeCycle: cfg.BeforeCycle,
	}
	k.logger.Info().
		Str("sender", k.sender.String()).
		Str("ledger", k.ledger.Address().String()).
		Msg("Keeper created")
	return k, nil
}

// Name identifies the keeper as a scheduled job.
func (k *Keeper) Name() string { return "vault_keeper" }

// Run runs one cycle with ctx; it satisfies the scheduler's Job.
func (k *Keeper) Run(ctx context.Context) error {
	_, err := k.RunCycle(ctx)
	return err
}

// allocator must be called under the chain lock.
func (k *Keeper) allocator() (Allocator, error) {
	a, ok := k.ledger.Strategy().(Allocator)
	if !ok {
		return nil, fmt.Errorf("bound strategy %T does not support keeper upkeep", k.ledger.Strategy())
	}
	return a, nil
}

// RunCycle harvests if both cooldowns have elapsed, otherwise compounds if
// the compound timer allows it, and saves the cycle. The returned snapshot
// is saved even when the action fails; its Error field carries the failure.
func (k *Keeper) RunCycle(ctx context.Context) (types.CycleSnapshot, error) {
	cycleStart := time.Now()
	cycleID := uuid.New().String()
	cycleLogger := k.logger.With().Str("cycleId", cycleID).Logger()
	cycleLogger.Info().Msg("--- Starting keeper cycle ---")

	snapshot := types.CycleSnapshot{
		CycleNumber:  k.nextCycleNumber(ctx, cycleLogger),
		CycleID:      cycleID,
		Timestamp:    k.chain.Now(),
		Actions:      make([]string, 0, 2),
		ProfitAssets: sdkmath.ZeroInt(),
		FeeShares:    sdkmath.ZeroInt(),
		Compounded:   sdkmath.ZeroInt(),
	}

	if k.beforeCycle != nil {
		if err := k.beforeCycle(ctx); err != nil {
			cycleLogger.Error().Err(err).Msg("Pre-cycle hook failed")
			return k.finish(ctx, cycleLogger, snapshot, cycleStart, err)
		}
	}

	var err error
	if snapshot.Initial, err = k.Snapshot(); err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to capture initial state")
		return k.finish(ctx, cycleLogger, snapshot, cycleStart, err)
	}

	var (
		alloc                   Allocator
		harvestDue, compoundDue bool
	)
	err = k.chain.View(func(now time.Time) error {
		var err error
		if alloc, err = k.allocator(); err != nil {
			return err
		}
		harvestDue = k.ledger.HarvestEligible(now) && alloc.RebalanceEligible(now)
		compoundDue = alloc.CompoundEligible(now)
		return nil
	})
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to read upkeep timers")
		return k.finish(ctx, cycleLogger, snapshot, cycleStart, err)
	}

	switch {
	case harvestDue:
		var report types.HarvestReport
		err = k.chain.Execute(ctx, k.sender, func(call chain.Call) error {
			var err error
			report, err = k.ledger.Rebalance(call)
			return err
		})
		if err == nil {
			snapshot.Actions = append(snapshot.Actions, ActionHarvest)
			if report.Rebalance.Moved.IsPositive() {
				snapshot.Actions = append(snapshot.Actions, ActionMove)
			}
			snapshot.ProfitAssets = report.Profit
			snapshot.FeeShares = report.FeeShares
			snapshot.Compounded = report.Rebalance.Compounded
			cycleLogger.Info().
				Str("profit", report.Profit.String()).
				Str("feeShares", report.FeeShares.String()).
				Str("moved", report.Rebalance.Moved.String()).
				Msg("Harvest executed")
		}
	case compoundDue:
		var reinvested sdkmath.Int
		err = k.chain.Execute(ctx, k.sender, func(call chain.Call) error {
			var err error
			reinvested, err = alloc.AutoCompound(call)
			return err
		})
		if err == nil {
			snapshot.Actions = append(snapshot.Actions, ActionCompound)
			snapshot.Compounded = reinvested
			cycleLogger.Info().Str("reinvested", reinvested.String()).Msg("Compound executed")
		}
	default:
		snapshot.Actions = append(snapshot.Actions, ActionIdle)
		cycleLogger.Info().Msg("No upkeep due this cycle")
	}
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Upkeep transaction reverted")
	}
	return k.finish(ctx, cycleLogger, snapshot, cycleStart, err)
}

// finish captures the final state, saves the snapshot and logs the cycle.
func (k *Keeper) finish(ctx context.Context, cycleLogger zerolog.Logger, snapshot types.CycleSnapshot, cycleStart time.Time, cycleErr error) (types.CycleSnapshot, error) {
	if cycleErr != nil {
		snapshot.Error = cycleErr.Error()
	}
	final, err := k.Snapshot()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to capture final state")
		final = snapshot.Initial
		cycleErr = errors.Join(cycleErr, err)
	}
	snapshot.Final = final

	if id, err := k.store.SaveCycleSnapshot(ctx, snapshot); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save cycle snapshot")
		cycleErr = errors.Join(cycleErr, err)
	} else {
		snapshot.SnapshotID = id
	}

	cycleLogger.Info().
		Int("cycleNumber", snapshot.CycleNumber).
		Strs("actions", snapshot.Actions).
		Str("finalTotalAssets", final.TotalAssets.String()).
		Float64("finalSharePrice", final.SharePrice).
		Str("cycleDuration", time.Since(cycleStart).String()).
		Msg("--- Keeper cycle completed ---")
	return snapshot, cycleErr
}

// nextCycleNumber falls back to a time-derived number when the store fails
// so a cycle still gets recorded.
func (k *Keeper) nextCycleNumber(ctx context.Context, cycleLogger zerolog.Logger) int {
	n, err := k.store.NextCycleNumber(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to increment cycle number, using fallback")
		return int(time.Now().Unix() % 1000000)
	}
	return n
}

// Snapshot reads ledger and allocator state under the chain lock.
func (k *Keeper) Snapshot() (types.VaultSnapshot, error) {
	var snap types.VaultSnapshot
	err := k.chain.View(func(time.Time) error {
		alloc, err := k.allocator()
		if err != nil {
			return err
		}
		snap, err = CaptureSnapshot(k.ledger, alloc, k.blockTime)
		return err
	})
	return snap, err
}

// CaptureSnapshot reads the vault's state. Callers must hold the chain lock
// or otherwise keep the components from changing.
func CaptureSnapshot(ledger *vault.Ledger, alloc Allocator, blockTime time.Duration) (types.VaultSnapshot, error) {
	total, err := ledger.TotalAssets()
	if err != nil {
		return types.VaultSnapshot{}, err
	}
	supply := ledger.TotalSupply()
	snap := types.VaultSnapshot{
		TotalAssets: total,
		TotalSupply: supply,
		SharePrice:  SharePrice(total, supply),
		Idle:        ledger.Idle(),
		Profile:     alloc.RiskProfile(),
	}
	snap.Weights = alloc.Weights()[snap.Profile]

	balA, balB, _, err := alloc.Balances()
	if err != nil {
		return types.VaultSnapshot{}, err
	}
	for _, leg := range []struct {
		id  types.VenueID
		bal sdkmath.Int
	}{{types.VenueA, balA}, {types.VenueB, balB}} {
		v := alloc.Venue(leg.id)
		apy, err := analyzer.VenueAPY(v, blockTime)
		if err != nil {
			apy = 0
		}
		snap.Venues = append(snap.Venues, types.VenueSnapshot{Venue: leg.id, Name: v.Name(), Balance: leg.bal, APY: apy})
	}
	return snap, nil
}

// SharePrice is assets per share, 1 for an empty vault.
func SharePrice(totalAssets, totalSupply sdkmath.Int) float64 {
	if totalSupply.IsNil() || !totalSupply.IsPositive() {
		return 1
	}
	return utils.Ratio(totalAssets, totalSupply)
}
