package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/yield-vault/internal/analyzer"
)

// PerformanceSummary aggregates every recorded keeper cycle.
func (s *PostgresStore) PerformanceSummary(ctx context.Context) (PerformanceSummary, error) {
	query := `
		SELECT
			COUNT(*) AS total_cycles,
			COUNT(CASE WHEN error IS NOT NULL THEN 1 END) AS failed_cycles,
			COALESCE(SUM(profit_assets), 0)::TEXT AS total_profit,
			COALESCE(SUM(fee_shares), 0)::TEXT AS total_fee_shares,
			COALESCE(SUM(compounded), 0)::TEXT AS total_compounded
		FROM cycle_snapshots
	`

	var (
		summary                       PerformanceSummary
		profit, feeShares, compounded string
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&summary.TotalCycles, &summary.FailedCycles, &profit, &feeShares, &compounded,
	)
	if err != nil {
		return PerformanceSummary{}, fmt.Errorf("failed to get performance summary: %w", err)
	}
	if summary.TotalProfit, err = parseAmount("total_profit", profit); err != nil {
		return PerformanceSummary{}, err
	}
	if summary.TotalFeeShares, err = parseAmount("total_fee_shares", feeShares); err != nil {
		return PerformanceSummary{}, err
	}
	if summary.TotalCompounded, err = parseAmount("total_compounded", compounded); err != nil {
		return PerformanceSummary{}, err
	}

	var lastUpdated sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT final_share_price, snapshot_timestamp
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT 1`).Scan(&summary.LatestSharePrice, &lastUpdated)
	if err != nil && err != sql.ErrNoRows {
		return PerformanceSummary{}, fmt.Errorf("failed to get latest share price: %w", err)
	}
	summary.LastUpdated = lastUpdated.Time

	log.Info().
		Int("totalCycles", summary.TotalCycles).
		Str("totalProfit", summary.TotalProfit.String()).
		Msg("Retrieved performance summary")
	return summary, nil
}

// SharePriceHistory returns the final share price of every cycle since the
// given time, oldest first.
func (s *PostgresStore) SharePriceHistory(ctx context.Context, since time.Time) ([]analyzer.SharePricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_timestamp, final_share_price
		FROM cycle_snapshots
		WHERE snapshot_timestamp >= $1 AND error IS NULL
		ORDER BY snapshot_timestamp ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query share price history: %w", err)
	}
	defer rows.Close()

	points := make([]analyzer.SharePricePoint, 0)
	for rows.Next() {
		var p analyzer.SharePricePoint
		if err := rows.Scan(&p.Timestamp, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan share price row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return points, nil
}
