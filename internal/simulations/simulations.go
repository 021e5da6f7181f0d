// Package simulations provides in-process venues that behave like the two
// external yield venues: a lending pool with a rebasing receipt token and a
// pool-token market with a rising exchange rate. They hold real balances in
// the chain bank and take part in rollback, so the ledger and allocator can
// run end to end without a network.
package simulations

import (
	"errors"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/logger"
	"github.com/elys-network/yield-vault/internal/types"
)

var (
	lendingLogger   = logger.GetForComponent("sim_lending_pool")
	poolTokenLogger = logger.GetForComponent("sim_pool_token")
)

// Op names a venue operation for fault injection.
type Op string

const (
	OpDeposit  Op = "deposit"
	OpWithdraw Op = "withdraw"
	OpClaim    Op = "claim"
)

// ErrInjectedFault is returned by an operation armed with FailNext.
var ErrInjectedFault = errors.New("injected venue fault")

const secondsPerYear = 365 * 24 * 60 * 60

// ray is the 1e27 scale lending pools report rates in.
var ray = sdkmath.LegacyNewDec(10).Power(27)

// faults counts pending injected failures per operation.
type faults map[Op]int

func (f faults) take(op Op) bool {
	if f[op] > 0 {
		f[op]--
		return true
	}
	return false
}

// yearFraction returns elapsed/1y as a decimal, zero for non-positive spans.
func yearFraction(from, to time.Time) sdkmath.LegacyDec {
	if from.IsZero() || !to.After(from) {
		return sdkmath.LegacyZeroDec()
	}
	secs := int64(to.Sub(from) / time.Second)
	return sdkmath.LegacyNewDec(secs).QuoInt64(secondsPerYear)
}

// FlatMarket is a market that pays no interest or rewards and whose pool
// token converts exactly, so runs are deterministic.
func FlatMarket() types.MarketParameters {
	return types.MarketParameters{
		LendingAPR:            sdkmath.LegacyZeroDec(),
		LendingRewardAPR:      sdkmath.LegacyZeroDec(),
		PoolTokenExchangeRate: sdkmath.LegacyNewDecWithPrec(2, 2),
		PoolTokenRatePerBlock: sdkmath.LegacyZeroDec(),
		BlockTime:             6 * time.Second,
	}
}

// ManualClock is a block clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
