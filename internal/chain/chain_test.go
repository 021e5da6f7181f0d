package chain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/types"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type counter struct{ n int }

func (c *counter) Snapshot() any        { return c.n }
func (c *counter) Restore(snapshot any) { c.n = snapshot.(int) }

type recordingSink struct {
	batches [][]types.Event
	err     error
}

func (s *recordingSink) RecordEvents(_ context.Context, events []types.Event) error {
	s.batches = append(s.batches, events)
	return s.err
}

func newChain(t *testing.T) (*chain.Chain, *counter, *chain.Bank, *recordingSink) {
	t.Helper()
	c := chain.New(func() time.Time { return start })
	bank, err := chain.NewBank("uusdc")
	require.NoError(t, err)
	cnt := &counter{}
	c.Register(cnt, bank)
	sink := &recordingSink{}
	c.AddSink(sink)
	return c, cnt, bank, sink
}

func TestExecuteCommitsAndPublishes(t *testing.T) {
	c, cnt, bank, sink := newChain(t)

	var txID string
	err := c.Execute(context.Background(), "alice", func(call chain.Call) error {
		assert.Equal(t, types.Address("alice"), call.Sender)
		assert.Equal(t, start, call.Time)
		txID = call.TxID()
		cnt.n++
		call.Emit(types.Event{Kind: types.EventDeposit})
		return bank.Mint("alice", sdkmath.NewInt(10))
	})
	require.NoError(t, err)

	assert.Equal(t, 1, cnt.n)
	assert.Equal(t, int64(10), bank.BalanceOf("alice").Int64())
	require.Len(t, sink.batches, 1)
	ev := sink.batches[0][0]
	assert.Equal(t, txID, ev.TxID)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, start, ev.Time)
}

func TestExecuteRollsBackOnError(t *testing.T) {
	c, cnt, bank, sink := newChain(t)
	require.NoError(t, c.Execute(context.Background(), "alice", func(call chain.Call) error {
		return bank.Mint("alice", sdkmath.NewInt(10))
	}))
	sink.batches = nil

	boom := errors.New("boom")
	err := c.Execute(context.Background(), "alice", func(call chain.Call) error {
		cnt.n = 42
		call.Emit(types.Event{Kind: types.EventWithdraw})
		require.NoError(t, bank.Transfer("alice", "bob", sdkmath.NewInt(4)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, cnt.n)
	assert.Equal(t, int64(10), bank.BalanceOf("alice").Int64())
	assert.True(t, bank.BalanceOf("bob").IsZero())
	assert.Empty(t, sink.batches)
}

func TestExecuteRecoversPanics(t *testing.T) {
	c, cnt, _, _ := newChain(t)

	err := c.Execute(context.Background(), "alice", func(chain.Call) error {
		cnt.n = 7
		panic("divide by zero")
	})
	require.ErrorIs(t, err, chain.ErrPanic)
	assert.Contains(t, err.Error(), "divide by zero")
	assert.Equal(t, 0, cnt.n)
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	c, cnt, _, _ := newChain(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Execute(ctx, "alice", func(chain.Call) error {
		cnt.n++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, cnt.n)
}

func TestSinkFailureDoesNotRevert(t *testing.T) {
	c, cnt, _, sink := newChain(t)
	sink.err = errors.New("db down")

	err := c.Execute(context.Background(), "alice", func(call chain.Call) error {
		cnt.n++
		call.Emit(types.Event{Kind: types.EventDeposit})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cnt.n)
	assert.Len(t, sink.batches, 1)
}

func TestTryIsolatesSubCall(t *testing.T) {
	c, cnt, _, sink := newChain(t)

	var tryErr error
	err := c.Execute(context.Background(), "alice", func(call chain.Call) error {
		cnt.n = 1
		call.Emit(types.Event{Kind: types.EventDeposit})
		tryErr = call.Try(func() error {
			cnt.n = 99
			call.Emit(types.Event{Kind: types.EventRewardsClaimed})
			return types.ErrRewardClaimUnavailable
		})
		assert.Equal(t, 1, cnt.n)
		assert.Len(t, call.Events(), 1)

		require.NoError(t, call.Try(func() error {
			cnt.n = 2
			return nil
		}))
		return nil
	})
	require.NoError(t, err)
	require.ErrorIs(t, tryErr, types.ErrRewardClaimUnavailable)
	assert.Equal(t, 2, cnt.n)
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 1)

	// Panics inside Try are recovered as well.
	require.NoError(t, c.Execute(context.Background(), "alice", func(call chain.Call) error {
		assert.ErrorIs(t, call.Try(func() error { panic("venue bug") }), chain.ErrPanic)
		return nil
	}))
}

func TestStandaloneCall(t *testing.T) {
	call := chain.NewCall("alice", start)
	assert.NotEmpty(t, call.TxID())
	call.Emit(types.Event{Kind: types.EventDeposit})
	assert.Len(t, call.Events(), 1)

	as := call.As("ledger")
	assert.Equal(t, types.Address("ledger"), as.Sender)
	assert.Equal(t, call.TxID(), as.TxID())

	var zero chain.Call
	assert.Empty(t, zero.TxID())
	zero.Emit(types.Event{})
	assert.Empty(t, zero.Events())
}

func TestViewSeesClock(t *testing.T) {
	c, _, _, _ := newChain(t)
	require.NoError(t, c.View(func(now time.Time) error {
		assert.Equal(t, start, now)
		return nil
	}))
	assert.ErrorIs(t, c.View(func(time.Time) error { panic("read bug") }), chain.ErrPanic)
}

func TestBank(t *testing.T) {
	_, err := chain.NewBank("")
	require.ErrorIs(t, err, types.ErrInvalidArgument)

	bank, err := chain.NewBank("uusdc")
	require.NoError(t, err)
	require.NoError(t, bank.Mint("alice", sdkmath.NewInt(100)))

	require.ErrorIs(t, bank.Transfer("alice", "bob", sdkmath.NewInt(101)), types.ErrInsufficientBalance)
	require.ErrorIs(t, bank.Transfer("alice", "bob", sdkmath.NewInt(-1)), types.ErrInvalidArgument)
	require.ErrorIs(t, bank.Transfer("alice", "", sdkmath.NewInt(1)), types.ErrInvalidArgument)
	require.NoError(t, bank.Transfer("alice", "bob", sdkmath.NewInt(40)))
	require.NoError(t, bank.Transfer("alice", "alice", sdkmath.NewInt(40)))
	assert.Equal(t, int64(60), bank.BalanceOf("alice").Int64())
	assert.Equal(t, int64(40), bank.BalanceOf("bob").Int64())

	require.ErrorIs(t, bank.Burn("bob", sdkmath.NewInt(41)), types.ErrInsufficientBalance)
	require.NoError(t, bank.Burn("bob", sdkmath.NewInt(40)))
	assert.Equal(t, int64(60), bank.Supply().Int64())

	coin := bank.Coin(sdkmath.Int{})
	assert.Equal(t, "uusdc", coin.Denom)
	assert.True(t, coin.Amount.IsZero())
}
