package vault

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/types"
)

// Strategy defines the allocator the share ledger forwards funds to.
// This interface keeps the ledger independent of how funds are deployed,
// allowing a strategy to be swapped through migration.
type Strategy interface {
	// Address is where the ledger transfers asset before calling Deposit.
	Address() types.Address

	// Ledger returns the ledger address the strategy accepts calls from.
	Ledger() types.Address

	// TotalAssets is everything the strategy can return, in asset units.
	TotalAssets() (sdkmath.Int, error)

	// Deposit deploys amount, already transferred to Address().
	Deposit(call chain.Call, amount sdkmath.Int) error

	// Withdraw sends up to amount to the ledger and returns what was sent.
	Withdraw(call chain.Call, amount sdkmath.Int) (sdkmath.Int, error)

	// Rebalance is the cooldown-gated re-split toward target weights.
	Rebalance(call chain.Call) (types.RebalanceReport, error)

	// EmergencyWithdraw moves everything back to the ledger.
	EmergencyWithdraw(call chain.Call) (sdkmath.Int, error)

	RiskProfile() types.RiskProfile
	SetRiskProfile(call chain.Call, p types.RiskProfile) error

	// RebalanceEligible reports whether Rebalance would pass its cooldown.
	RebalanceEligible(now time.Time) bool
}
