/*

This file contains the default parameters for the vault.

These are used when no active parameters are found in the database. Each value
has been chosen to keep depositors' principal safe first and chase yield second.

*/

package config

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/types"
)

// DefaultVaultParameters provides a baseline set of policy parameters.
var DefaultVaultParameters = types.VaultParameters{
	PerformanceFeeBps: 1000, // 10% of harvested profit, minted as shares.
	// Rationale: Half the 20% cap. Leaves room to raise it without a migration
	// while staying in line with what depositors expect from a managed vault.

	CompoundFeeBps: 200, // 2% of claimed rewards, paid to the ledger as asset.
	// Rationale: Small enough that compounding is always worth it for holders;
	// the fee stays inside the vault and lifts the share price.

	MinCompoundAmount: sdkmath.NewInt(1_000_000), // 1 unit of a 6-decimal asset.
	// Rationale: Below this the venue deposit calls cost more than they earn.

	AutoCompoundEnabled: true,

	RiskProfile: types.RiskMedium, // Even split until the operator picks a profile.

	Weights: DefaultWeights,
}

// DefaultWeights is the per-profile split between venue A (lending pool) and
// venue B (pool-token market).
var DefaultWeights = types.WeightTable{
	types.RiskLow: {BpsA: 8000, BpsB: 2000},
	// Rationale: The lending pool is the deeper, more liquid venue. LOW keeps
	// most funds there and withdrawals rarely touch venue B.

	types.RiskMedium: {BpsA: 5000, BpsB: 5000},

	types.RiskHigh: {BpsA: 2000, BpsB: 8000},
	// Rationale: The pool-token market usually pays more but redeems in whole
	// tokens only and can run short of cash.
}

// DefaultMarketParameters drive the simulated venues in simulation mode.
var DefaultMarketParameters = types.MarketParameters{
	LendingAPR:       sdkmath.LegacyNewDecWithPrec(35, 3), // 3.5%
	LendingRewardAPR: sdkmath.LegacyNewDecWithPrec(5, 3),  // 0.5% in rewards
	// Rationale: Close to what large stablecoin lending pools pay.

	PoolTokenExchangeRate: sdkmath.LegacyNewDecWithPrec(2, 2), // 0.02 underlying per token
	PoolTokenRatePerBlock: sdkmath.LegacyNewDecWithPrec(95, 10),
	// Rationale: ~5% a year at 6s blocks. The starting rate is how pool-token
	// markets are usually initialised.

	BlockTime: 6 * time.Second,
}
