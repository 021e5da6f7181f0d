/*

Persistence for the vault's operational history: committed events, keeper
cycle snapshots, the cycle counter and versioned vault parameters. Two
implementations share one method set: PostgresStore for deployments and
MemoryStore when no database is configured.

*/

package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/types"
)

var (
	ErrNotInitialized = errors.New("database not initialized")
	ErrNotFound       = errors.New("record not found")
)

const (
	defaultListLimit = 10
	maxListLimit     = 500
)

// EventFilter narrows an event query. Zero fields match everything.
type EventFilter struct {
	Kind    types.EventKind
	Account types.Address // matches sender, owner or receiver
	Since   time.Time
	Limit   int
}

// PerformanceSummary aggregates every recorded keeper cycle.
type PerformanceSummary struct {
	TotalCycles      int         `json:"total_cycles"`
	FailedCycles     int         `json:"failed_cycles"`
	TotalProfit      sdkmath.Int `json:"total_profit"`
	TotalFeeShares   sdkmath.Int `json:"total_fee_shares"`
	TotalCompounded  sdkmath.Int `json:"total_compounded"`
	LatestSharePrice float64     `json:"latest_share_price"`
	LastUpdated      time.Time   `json:"last_updated"`
}

// PostgresStore persists to PostgreSQL through lib/pq.
type PostgresStore struct {
	db *sql.DB
}

var _ chain.EventSink = (*PostgresStore)(nil)

// NewPostgresStore wraps an open pool, usually state.DB after InitDB.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, ErrNotInitialized
	}
	return &PostgresStore{db: db}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// parseAmount reads a NUMERIC column scanned as text.
func parseAmount(column, s string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("column %s holds non-integer amount %q", column, s)
	}
	return v, nil
}

func amountString(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}
