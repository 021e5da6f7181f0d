package chain

import (
	"time"

	"github.com/elys-network/yield-vault/internal/types"

	"github.com/google/uuid"
)

type tx struct {
	id     string
	chain  *Chain
	events []types.Event
}

// Call is the execution context of one operation: who is calling and at
// what block time. Sub-calls between components use As so the callee sees
// the calling component as its sender.
type Call struct {
	Sender types.Address
	Time   time.Time
	tx     *tx
}

// NewCall builds a standalone call outside any chain. It has no rollback;
// Try on it only recovers panics. Intended for tests and read paths.
func NewCall(sender types.Address, now time.Time) Call {
	return Call{Sender: sender, Time: now, tx: &tx{id: uuid.New().String()}}
}

// As returns the same call with a different sender.
func (c Call) As(sender types.Address) Call {
	c.Sender = sender
	return c
}

// TxID identifies the enclosing operation.
func (c Call) TxID() string {
	if c.tx == nil {
		return ""
	}
	return c.tx.id
}

// Emit buffers an event for publication on commit.
func (c Call) Emit(ev types.Event) {
	if c.tx == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.TxID = c.tx.id
	if ev.Time.IsZero() {
		ev.Time = c.Time
	}
	c.tx.events = append(c.tx.events, ev)
}

// Events returns the events buffered so far.
func (c Call) Events() []types.Event {
	if c.tx == nil {
		return nil
	}
	return append([]types.Event(nil), c.tx.events...)
}

// Try runs fn as an isolated sub-call. When fn fails or panics, the state of
// every component registered on the chain and any events fn emitted are
// rolled back, and the failure is returned to the caller instead of
// unwinding the enclosing operation.
func (c Call) Try(fn func() error) error {
	var (
		snaps     []any
		chain     *Chain
		eventMark int
	)
	if c.tx != nil {
		chain = c.tx.chain
		eventMark = len(c.tx.events)
	}
	if chain != nil {
		snaps = chain.snapshotAll()
	}

	err := protect(fn)
	if err != nil {
		if chain != nil {
			chain.restoreAll(snaps)
		}
		if c.tx != nil {
			c.tx.events = c.tx.events[:eventMark]
		}
	}
	return err
}
