// Package chain supplies the execution model the ledger and allocator rely
// on: operations are serialized, run to completion, and either commit all of
// their effects or none of them.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elys-network/yield-vault/internal/logger"
	"github.com/elys-network/yield-vault/internal/types"

	"github.com/google/uuid"
)

var chainLogger = logger.GetForComponent("chain")

// ErrPanic wraps a panic recovered from an operation.
var ErrPanic = errors.New("operation panicked")

// Stateful is implemented by every component whose state must roll back
// with a failed operation. Snapshot must return a deep copy.
type Stateful interface {
	Snapshot() any
	Restore(snapshot any)
}

// EventSink receives the events of committed operations.
type EventSink interface {
	RecordEvents(ctx context.Context, events []types.Event) error
}

// Clock returns the current block time.
type Clock func() time.Time

// Chain serializes operations over a fixed set of stateful components.
type Chain struct {
	mu     sync.Mutex
	clock  Clock
	states []Stateful
	sinks  []EventSink
}

// New creates a chain using clock for block time. A nil clock uses time.Now.
func New(clock Clock) *Chain {
	if clock == nil {
		clock = time.Now
	}
	return &Chain{clock: clock}
}

// Register adds components that take part in rollback.
func (c *Chain) Register(states ...Stateful) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, states...)
}

// AddSink subscribes a sink to committed events.
func (c *Chain) AddSink(sink EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, sink)
}

// Now returns the chain clock's current time.
func (c *Chain) Now() time.Time {
	return c.clock()
}

// Execute runs fn as one atomic operation sent by sender. If fn returns an
// error or panics, every registered component is restored to its state
// before the call and no events are published.
func (c *Chain) Execute(ctx context.Context, sender types.Address, fn func(call Call) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	snapshot := c.snapshotAll()
	t := &tx{id: uuid.New().String(), chain: c}
	call := Call{Sender: sender, Time: c.clock(), tx: t}

	err := protect(func() error { return fn(call) })
	if err != nil {
		c.restoreAll(snapshot)
		c.mu.Unlock()
		chainLogger.Debug().Err(err).Str("txId", t.id).Str("sender", sender.String()).Msg("Operation reverted")
		return err
	}

	events := t.events
	sinks := append([]EventSink(nil), c.sinks...)
	c.mu.Unlock()
	if len(events) == 0 {
		return nil
	}

	for _, sink := range sinks {
		if err := sink.RecordEvents(ctx, events); err != nil {
			chainLogger.Error().Err(err).Str("txId", t.id).Int("events", len(events)).Msg("Failed to publish committed events")
		}
	}
	return nil
}

// View runs a read-only fn under the chain lock.
func (c *Chain) View(fn func(now time.Time) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protect(func() error { return fn(c.clock()) })
}

func (c *Chain) snapshotAll() []any {
	snaps := make([]any, len(c.states))
	for i, s := range c.states {
		snaps[i] = s.Snapshot()
	}
	return snaps
}

func (c *Chain) restoreAll(snaps []any) {
	for i, s := range c.states {
		s.Restore(snaps[i])
	}
}

func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn()
}
