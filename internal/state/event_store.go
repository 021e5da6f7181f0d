package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yield-vault/internal/types"
)

// RecordEvents stores the events of one committed operation in a single
// transaction. Replays of the same event ids are ignored.
func (s *PostgresStore) RecordEvents(ctx context.Context, events []types.Event) (err error) {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vault_events (
			event_id, tx_id, kind, emitter, sender, owner, receiver,
			denom, assets, shares, detail, event_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (event_id) DO NOTHING;`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err = stmt.ExecContext(ctx,
			ev.ID, ev.TxID, string(ev.Kind), ev.Emitter.String(), ev.Sender.String(),
			nullString(ev.Owner.String()), nullString(ev.Receiver.String()),
			ev.Assets.Denom, amountString(ev.Assets.Amount), amountString(ev.Shares),
			nullString(ev.Detail), ev.Time,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event %s (%s): %w", ev.ID, ev.Kind, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.Debug().Int("count", len(events)).Str("txId", events[0].TxID).Msg("Recorded vault events")
	return nil
}

// Events returns matching events, newest first.
func (s *PostgresStore) Events(ctx context.Context, f EventFilter) ([]types.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if !f.Account.IsZero() {
		args = append(args, f.Account.String())
		n := len(args)
		where = append(where, fmt.Sprintf("(sender = $%d OR owner = $%d OR receiver = $%d)", n, n, n))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		where = append(where, fmt.Sprintf("event_time >= $%d", len(args)))
	}
	args = append(args, clampLimit(f.Limit))

	query := `
		SELECT event_id, tx_id, kind, emitter, sender, owner, receiver,
			denom, assets::TEXT, shares::TEXT, detail, event_time
		FROM vault_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY event_time DESC, event_id LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query vault events")
		return nil, fmt.Errorf("failed to query vault events: %w", err)
	}
	defer rows.Close()

	events := make([]types.Event, 0)
	for rows.Next() {
		var (
			ev                    types.Event
			kind, emitter, sender string
			owner, receiver       sql.NullString
			denom, assets, shares string
			detail                sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.TxID, &kind, &emitter, &sender, &owner, &receiver,
			&denom, &assets, &shares, &detail, &ev.Time); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		amount, err := parseAmount("assets", assets)
		if err != nil {
			return nil, err
		}
		if ev.Shares, err = parseAmount("shares", shares); err != nil {
			return nil, err
		}
		ev.Kind = types.EventKind(kind)
		ev.Emitter = types.Address(emitter)
		ev.Sender = types.Address(sender)
		ev.Owner = types.Address(owner.String)
		ev.Receiver = types.Address(receiver.String)
		ev.Assets = sdktypes.Coin{Denom: denom, Amount: amount}
		ev.Detail = detail.String
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
