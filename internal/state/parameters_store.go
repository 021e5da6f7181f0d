// ./internal/state/parameters_store.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/yield-vault/internal/types"
)

// SaveVaultParameters saves a new version of the vault parameters under
// configName, optionally making it the active one.
func (s *PostgresStore) SaveVaultParameters(ctx context.Context, params types.VaultParameters, configName string, version int, makeActive bool) (paramsID int64, err error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	weightsJSON, err := json.Marshal(params.Weights)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal weights: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE vault_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		if _, err = tx.ExecContext(ctx, stmtDeactivate, configName); err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
		INSERT INTO vault_parameters (
			version, config_name, is_active, activated_at, created_at,
			performance_fee_bps, compound_fee_bps, min_compound_amount,
			auto_compound_enabled, risk_profile, weights
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING params_id;`

	currentTime := time.Now()
	err = tx.QueryRowContext(ctx,
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		params.PerformanceFeeBps, params.CompoundFeeBps, amountString(params.MinCompoundAmount),
		params.AutoCompoundEnabled, params.RiskProfile.String(), weightsJSON,
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert vault parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("paramsId", paramsID).
		Bool("active", makeActive).
		Msg("Saved vault parameters")
	return paramsID, nil
}

// LoadActiveVaultParameters loads the active parameters for configName and
// their version, or ErrNotFound.
func (s *PostgresStore) LoadActiveVaultParameters(ctx context.Context, configName string) (types.VaultParameters, int, error) {
	query := `
		SELECT
			version, performance_fee_bps, compound_fee_bps, min_compound_amount::TEXT,
			auto_compound_enabled, risk_profile, weights
		FROM vault_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	var (
		p                  types.VaultParameters
		version            int
		minAmount, profile string
		weightsJSON        []byte
	)
	err := s.db.QueryRowContext(ctx, query, configName).Scan(
		&version, &p.PerformanceFeeBps, &p.CompoundFeeBps, &minAmount,
		&p.AutoCompoundEnabled, &profile, &weightsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.VaultParameters{}, 0, fmt.Errorf("%w: no active vault parameters for config '%s'", ErrNotFound, configName)
		}
		return types.VaultParameters{}, 0, fmt.Errorf("failed to scan active vault parameters for config '%s': %w", configName, err)
	}

	if p.MinCompoundAmount, err = parseAmount("min_compound_amount", minAmount); err != nil {
		return types.VaultParameters{}, 0, err
	}
	if p.RiskProfile, err = types.ParseRiskProfile(profile); err != nil {
		return types.VaultParameters{}, 0, err
	}
	if err := json.Unmarshal(weightsJSON, &p.Weights); err != nil {
		return types.VaultParameters{}, 0, fmt.Errorf("failed to unmarshal weights: %w", err)
	}

	log.Info().Str("config", configName).Int("version", version).Msg("Loaded active vault parameters")
	return p, version, nil
}
