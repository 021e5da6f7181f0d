package simulations

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/allocator"
	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/vault"
	"github.com/elys-network/yield-vault/internal/venue"
)

// Fixed component addresses of a simulated deployment.
const (
	LedgerAddress    types.Address = "vault-ledger"
	AllocatorAddress types.Address = "vault-allocator"
	LendingAddress   types.Address = "venue-lending-pool"
	PoolTokenAddress types.Address = "venue-pool-token"
)

const (
	LendingVenueName   = "lending-pool"
	PoolTokenVenueName = "pool-token"
)

// DeploymentConfig describes a simulated vault.
type DeploymentConfig struct {
	AssetDenom   string
	Owner        types.Address
	FeeRecipient types.Address
	Params       types.VaultParameters
	Market       types.MarketParameters
	Clock        chain.Clock
}

// Deployment is a ledger and allocator wired to simulated venues on one chain.
type Deployment struct {
	Chain     *chain.Chain
	Bank      *chain.Bank
	Lending   *LendingPool
	PoolToken *PoolTokenMarket
	Allocator *allocator.Allocator
	Ledger    *vault.Ledger
}

// Deploy builds and registers every component of a simulated vault.
func Deploy(cfg DeploymentConfig) (*Deployment, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid vault parameters: %w", err)
	}
	if cfg.Market.PoolTokenExchangeRate.IsNil() {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("market parameters are required"))
	}
	c := chain.New(cfg.Clock)
	now := c.Now()

	bank, err := chain.NewBank(cfg.AssetDenom)
	if err != nil {
		return nil, err
	}
	lendingRate := sdkmath.LegacyZeroDec()
	if !cfg.Market.LendingAPR.IsNil() {
		lendingRate = cfg.Market.LendingAPR.Mul(ray)
	}
	lending, err := NewLendingPool(LendingPoolConfig{
		Address:        LendingAddress,
		Bank:           bank,
		ReserveRate:    lendingRate,
		RewardRate:     cfg.Market.LendingRewardAPR,
		RewardsEnabled: true,
		Start:          now,
	})
	if err != nil {
		return nil, err
	}
	market, err := NewPoolTokenMarket(PoolTokenMarketConfig{
		Address:            PoolTokenAddress,
		Bank:               bank,
		ExchangeRate:       cfg.Market.PoolTokenExchangeRate,
		SupplyRatePerBlock: cfg.Market.PoolTokenRatePerBlock,
		BlockTime:          cfg.Market.BlockTime,
		Start:              now,
	})
	if err != nil {
		return nil, err
	}

	venueA, err := venue.NewLendingVenue(LendingVenueName, lending, bank.Denom(), AllocatorAddress)
	if err != nil {
		return nil, err
	}
	venueB, err := venue.NewPoolTokenVenue(PoolTokenVenueName, market, AllocatorAddress, bank)
	if err != nil {
		return nil, err
	}

	ledger, err := vault.New(vault.Config{
		Address:           LedgerAddress,
		Owner:             cfg.Owner,
		FeeRecipient:      cfg.FeeRecipient,
		Bank:              bank,
		PerformanceFeeBps: cfg.Params.PerformanceFeeBps,
	})
	if err != nil {
		return nil, err
	}
	alloc, err := allocator.New(allocator.Config{
		Address: AllocatorAddress,
		Ledger:  LedgerAddress,
		Owner:   cfg.Owner,
		Bank:    bank,
		VenueA:  venueA,
		VenueB:  venueB,
		Weights: cfg.Params.Weights,
		Profile: cfg.Params.RiskProfile,
		AutoCompound: allocator.AutoCompoundConfig{
			Enabled:   cfg.Params.AutoCompoundEnabled,
			MinAmount: cfg.Params.MinCompoundAmount,
			FeeBps:    cfg.Params.CompoundFeeBps,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := ledger.Bind(alloc); err != nil {
		return nil, err
	}

	c.Register(bank, lending, market, alloc, ledger)
	return &Deployment{
		Chain:     c,
		Bank:      bank,
		Lending:   lending,
		PoolToken: market,
		Allocator: alloc,
		Ledger:    ledger,
	}, nil
}

// Fund mints amount of the asset to addr.
func (d *Deployment) Fund(ctx context.Context, addr types.Address, amount sdkmath.Int) error {
	return d.Chain.Execute(ctx, addr, func(call chain.Call) error {
		return d.Bank.Mint(addr, amount)
	})
}

// Accrue advances interest and rewards on both venues to the chain's time.
func (d *Deployment) Accrue(ctx context.Context) error {
	return d.Chain.Execute(ctx, "", func(call chain.Call) error {
		d.Lending.Accrue(call.Time)
		d.PoolToken.Accrue(call.Time)
		return nil
	})
}

// NewAllocator builds a second allocator over fresh venue adapters bound to
// the same simulated markets, for strategy migration. It is registered on
// the deployment's chain.
func (d *Deployment) NewAllocator(addr types.Address, owner types.Address, params types.VaultParameters) (*allocator.Allocator, error) {
	venueA, err := venue.NewLendingVenue(LendingVenueName, d.Lending, d.Bank.Denom(), addr)
	if err != nil {
		return nil, err
	}
	venueB, err := venue.NewPoolTokenVenue(PoolTokenVenueName, d.PoolToken, addr, d.Bank)
	if err != nil {
		return nil, err
	}
	alloc, err := allocator.New(allocator.Config{
		Address: addr,
		Ledger:  d.Ledger.Address(),
		Owner:   owner,
		Bank:    d.Bank,
		VenueA:  venueA,
		VenueB:  venueB,
		Weights: params.Weights,
		Profile: params.RiskProfile,
		AutoCompound: allocator.AutoCompoundConfig{
			Enabled:   params.AutoCompoundEnabled,
			MinAmount: params.MinCompoundAmount,
			FeeBps:    params.CompoundFeeBps,
		},
	})
	if err != nil {
		return nil, err
	}
	d.Chain.Register(alloc)
	return alloc, nil
}
