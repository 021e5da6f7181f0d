// ./internal/state/snapshot_store.go
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yield-vault/internal/types"
)

const cycleColumns = `
	snapshot_id, cycle_number, cycle_id, snapshot_timestamp,
	initial_state, actions, final_state,
	profit_assets::TEXT, fee_shares::TEXT, compounded::TEXT, error`

// SaveCycleSnapshot saves a complete cycle snapshot to the database.
func (s *PostgresStore) SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	initialJSON, err := json.Marshal(snapshot.Initial)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal initial_state: %w", err)
	}
	finalJSON, err := json.Marshal(snapshot.Final)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal final_state: %w", err)
	}

	query := `
		INSERT INTO cycle_snapshots (
			cycle_number, cycle_id, snapshot_timestamp,
			initial_state, actions, final_state, final_share_price,
			profit_assets, fee_shares, compounded, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = s.db.QueryRowContext(ctx,
		query,
		snapshot.CycleNumber, snapshot.CycleID, snapshot.Timestamp,
		initialJSON, pq.Array(snapshot.Actions), finalJSON, snapshot.Final.SharePrice,
		amountString(snapshot.ProfitAssets), amountString(snapshot.FeeShares), amountString(snapshot.Compounded),
		nullString(snapshot.Error),
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshotId", snapshotID).
		Int("cycleNumber", snapshot.CycleNumber).
		Str("finalTotalAssets", amountString(snapshot.Final.TotalAssets)).
		Msg("Cycle snapshot saved to database")

	return snapshotID, nil
}

// RecentCycles returns the latest cycle snapshots, newest first.
func (s *PostgresStore) RecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error) {
	query := `SELECT ` + cycleColumns + `
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent cycles")
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]types.CycleSnapshot, 0)
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle row")
			continue // Skip this row and continue with others
		}
		cycles = append(cycles, cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return cycles, nil
}

// LatestCycle returns the most recent cycle snapshot or ErrNotFound.
func (s *PostgresStore) LatestCycle(ctx context.Context) (types.CycleSnapshot, error) {
	query := `SELECT ` + cycleColumns + `
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT 1`
	cycle, err := scanCycle(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return types.CycleSnapshot{}, ErrNotFound
	}
	return cycle, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (types.CycleSnapshot, error) {
	var (
		cycle                         types.CycleSnapshot
		initialJSON, finalJSON        []byte
		profit, feeShares, compounded string
		errText                       sql.NullString
	)
	err := row.Scan(
		&cycle.SnapshotID, &cycle.CycleNumber, &cycle.CycleID, &cycle.Timestamp,
		&initialJSON, pq.Array(&cycle.Actions), &finalJSON,
		&profit, &feeShares, &compounded, &errText,
	)
	if err != nil {
		return types.CycleSnapshot{}, err
	}
	if err := json.Unmarshal(initialJSON, &cycle.Initial); err != nil {
		return types.CycleSnapshot{}, fmt.Errorf("failed to unmarshal initial state: %w", err)
	}
	if err := json.Unmarshal(finalJSON, &cycle.Final); err != nil {
		return types.CycleSnapshot{}, fmt.Errorf("failed to unmarshal final state: %w", err)
	}
	if cycle.ProfitAssets, err = parseAmount("profit_assets", profit); err != nil {
		return types.CycleSnapshot{}, err
	}
	if cycle.FeeShares, err = parseAmount("fee_shares", feeShares); err != nil {
		return types.CycleSnapshot{}, err
	}
	if cycle.Compounded, err = parseAmount("compounded", compounded); err != nil {
		return types.CycleSnapshot{}, err
	}
	cycle.Error = errText.String
	return cycle, nil
}
