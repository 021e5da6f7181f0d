package state

import (
	"context"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/analyzer"
	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/types"
)

// MemoryStore keeps the same history as PostgresStore in process memory.
// It is used when no database is configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []types.Event
	seen     map[string]struct{}
	cycles   []types.CycleSnapshot
	counter  int
	nextID   int64
	params   map[string]types.VaultParameters
	versions map[string]int
}

var _ chain.EventSink = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:     make(map[string]struct{}),
		params:   make(map[string]types.VaultParameters),
		versions: make(map[string]int),
	}
}

func (m *MemoryStore) RecordEvents(_ context.Context, events []types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		if _, dup := m.seen[ev.ID]; dup {
			continue
		}
		m.seen[ev.ID] = struct{}{}
		m.events = append(m.events, ev)
	}
	return nil
}

// Events returns matching events, newest first.
func (m *MemoryStore) Events(_ context.Context, f EventFilter) ([]types.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit := clampLimit(f.Limit)
	out := make([]types.Event, 0)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.events[i]
		if f.Kind != "" && ev.Kind != f.Kind {
			continue
		}
		if !f.Account.IsZero() && ev.Sender != f.Account && ev.Owner != f.Account && ev.Receiver != f.Account {
			continue
		}
		if !f.Since.IsZero() && ev.Time.Before(f.Since) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *MemoryStore) NextCycleNumber(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return m.counter, nil
}

func (m *MemoryStore) CurrentCycleNumber(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counter, nil
}

func (m *MemoryStore) SaveCycleSnapshot(_ context.Context, snapshot types.CycleSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	snapshot.SnapshotID = m.nextID
	snapshot.Actions = append([]string(nil), snapshot.Actions...)
	m.cycles = append(m.cycles, snapshot)
	return snapshot.SnapshotID, nil
}

// sortedCycles returns cycles newest first. Callers hold the lock.
func (m *MemoryStore) sortedCycles() []types.CycleSnapshot {
	out := append([]types.CycleSnapshot(nil), m.cycles...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].SnapshotID > out[j].SnapshotID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (m *MemoryStore) RecentCycles(_ context.Context, limit int) ([]types.CycleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cycles := m.sortedCycles()
	if n := clampLimit(limit); len(cycles) > n {
		cycles = cycles[:n]
	}
	return cycles, nil
}

func (m *MemoryStore) LatestCycle(context.Context) (types.CycleSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.cycles) == 0 {
		return types.CycleSnapshot{}, ErrNotFound
	}
	return m.sortedCycles()[0], nil
}

func (m *MemoryStore) PerformanceSummary(context.Context) (PerformanceSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := PerformanceSummary{
		TotalProfit:     sdkmath.ZeroInt(),
		TotalFeeShares:  sdkmath.ZeroInt(),
		TotalCompounded: sdkmath.ZeroInt(),
	}
	for _, c := range m.cycles {
		summary.TotalCycles++
		if c.Error != "" {
			summary.FailedCycles++
		}
		if !c.ProfitAssets.IsNil() {
			summary.TotalProfit = summary.TotalProfit.Add(c.ProfitAssets)
		}
		if !c.FeeShares.IsNil() {
			summary.TotalFeeShares = summary.TotalFeeShares.Add(c.FeeShares)
		}
		if !c.Compounded.IsNil() {
			summary.TotalCompounded = summary.TotalCompounded.Add(c.Compounded)
		}
	}
	if len(m.cycles) > 0 {
		latest := m.sortedCycles()[0]
		summary.LatestSharePrice = latest.Final.SharePrice
		summary.LastUpdated = latest.Timestamp
	}
	return summary, nil
}

func (m *MemoryStore) SharePriceHistory(_ context.Context, since time.Time) ([]analyzer.SharePricePoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	points := make([]analyzer.SharePricePoint, 0, len(m.cycles))
	for _, c := range m.cycles {
		if c.Error != "" || c.Timestamp.Before(since) {
			continue
		}
		points = append(points, analyzer.SharePricePoint{Timestamp: c.Timestamp, Price: c.Final.SharePrice})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points, nil
}

func (m *MemoryStore) SaveVaultParameters(_ context.Context, params types.VaultParameters, configName string, version int, makeActive bool) (int64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	if makeActive {
		m.params[configName] = params
		m.versions[configName] = version
	}
	return m.nextID, nil
}

func (m *MemoryStore) LoadActiveVaultParameters(_ context.Context, configName string) (types.VaultParameters, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.params[configName]
	if !ok {
		return types.VaultParameters{}, 0, ErrNotFound
	}
	return p, m.versions[configName], nil
}
