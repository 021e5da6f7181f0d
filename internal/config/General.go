package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yield-vault/internal/types"
)

// ModeSimulation runs the vault against in-process venues.
const ModeSimulation = "simulation"

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// AssetDenom is the single asset the vault accepts.
	AssetDenom string

	// Owner administers the ledger and the allocator.
	Owner types.Address
	// FeeRecipient receives performance-fee shares. Defaults to Owner.
	FeeRecipient types.Address
	// Keeper is the address the keeper sends permissionless calls from.
	Keeper types.Address

	// Mode selects how venues are backed. Only ModeSimulation is supported.
	Mode string

	// KeeperSchedule is the cron spec (with seconds) for keeper cycles.
	KeeperSchedule string

	// Overrides of DefaultVaultParameters, nil when unset.
	PerformanceFeeBps   *uint64
	CompoundFeeBps      *uint64
	MinCompoundAmount   *sdkmath.Int
	AutoCompoundEnabled *bool
	RiskProfile         *types.RiskProfile

	// SeedDeposit, when set, is minted to Owner and deposited at startup in
	// simulation mode.
	SeedDeposit *sdkmath.Int
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// VAULT_ASSET_DENOM, VAULT_OWNER and VAULT_MODE are required.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	AssetDenom, err = getEnv("VAULT_ASSET_DENOM")
	if err != nil {
		return err
	}
	if err := sdktypes.ValidateDenom(AssetDenom); err != nil {
		return fmt.Errorf("environment variable VAULT_ASSET_DENOM is invalid: %w", err)
	}

	if Owner, err = getEnvAsAddress("VAULT_OWNER"); err != nil {
		return err
	}
	FeeRecipient = Owner
	if _, ok := os.LookupEnv("VAULT_FEE_RECIPIENT"); ok {
		if FeeRecipient, err = getEnvAsAddress("VAULT_FEE_RECIPIENT"); err != nil {
			return err
		}
	}
	Keeper = Owner
	if _, ok := os.LookupEnv("VAULT_KEEPER"); ok {
		if Keeper, err = getEnvAsAddress("VAULT_KEEPER"); err != nil {
			return err
		}
	}

	Mode, err = getEnv("VAULT_MODE")
	if err != nil {
		return err
	}

	KeeperSchedule = getEnvOrDefault("KEEPER_SCHEDULE", "0 */10 * * * *")

	if PerformanceFeeBps, err = optionalUint64("PERFORMANCE_FEE_BPS"); err != nil {
		return err
	}
	if CompoundFeeBps, err = optionalUint64("COMPOUND_FEE_BPS"); err != nil {
		return err
	}
	MinCompoundAmount, AutoCompoundEnabled, RiskProfile, SeedDeposit = nil, nil, nil, nil
	if v, ok := os.LookupEnv("MIN_COMPOUND_AMOUNT"); ok {
		amount, ok := sdkmath.NewIntFromString(strings.TrimSpace(v))
		if !ok || amount.IsNegative() {
			return errors.New("environment variable MIN_COMPOUND_AMOUNT must be a non-negative integer, got: " + v)
		}
		MinCompoundAmount = &amount
	}
	if v, ok := os.LookupEnv("AUTO_COMPOUND_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.New("environment variable AUTO_COMPOUND_ENABLED must be a boolean, got: " + v)
		}
		AutoCompoundEnabled = &enabled
	}
	if v, ok := os.LookupEnv("RISK_PROFILE"); ok {
		profile, err := types.ParseRiskProfile(v)
		if err != nil {
			return fmt.Errorf("environment variable RISK_PROFILE: %w", err)
		}
		RiskProfile = &profile
	}

	if v, ok := os.LookupEnv("SIM_SEED_DEPOSIT"); ok {
		amount, ok := sdkmath.NewIntFromString(strings.TrimSpace(v))
		if !ok || !amount.IsPositive() {
			return errors.New("environment variable SIM_SEED_DEPOSIT must be a positive integer, got: " + v)
		}
		SeedDeposit = &amount
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("AssetDenom", AssetDenom).
		Str("Owner", Owner.String()).
		Str("Mode", Mode).
		Str("KeeperSchedule", KeeperSchedule).
		Msg("Configuration loaded successfully.")

	return nil
}

// VaultParameters applies the environment overrides to base.
func VaultParameters(base types.VaultParameters) (types.VaultParameters, error) {
	p := base
	if PerformanceFeeBps != nil {
		p.PerformanceFeeBps = *PerformanceFeeBps
	}
	if CompoundFeeBps != nil {
		p.CompoundFeeBps = *CompoundFeeBps
	}
	if MinCompoundAmount != nil {
		p.MinCompoundAmount = *MinCompoundAmount
	}
	if AutoCompoundEnabled != nil {
		p.AutoCompoundEnabled = *AutoCompoundEnabled
	}
	if RiskProfile != nil {
		p.RiskProfile = *RiskProfile
	}
	if err := p.Validate(); err != nil {
		return types.VaultParameters{}, err
	}
	return p, nil
}

// ValidateAddress accepts bech32 account addresses of any prefix.
func ValidateAddress(addr string) error {
	hrp, data, err := bech32.DecodeAndConvert(addr)
	if err != nil {
		return fmt.Errorf("invalid bech32 address %q: %w", addr, err)
	}
	if hrp == "" || len(data) == 0 {
		return fmt.Errorf("invalid bech32 address %q: empty prefix or payload", addr)
	}
	return sdktypes.VerifyAddressFormat(data)
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

func getEnvOrDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

func optionalUint64(key string) (*uint64, error) {
	if _, ok := os.LookupEnv(key); !ok {
		return nil, nil
	}
	value, err := getEnvAsUint64(key)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func getEnvAsAddress(key string) (types.Address, error) {
	value, err := getEnv(key)
	if err != nil {
		return "", err
	}
	if err := ValidateAddress(value); err != nil {
		return "", fmt.Errorf("environment variable %s: %w", key, err)
	}
	return types.Address(value), nil
}
