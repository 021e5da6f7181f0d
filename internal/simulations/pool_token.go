package simulations

import (
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yield-vault/internal/chain"
	"github.com/elys-network/yield-vault/internal/types"
	"github.com/elys-network/yield-vault/internal/venue"
)

// Error codes returned by PoolTokenMarket.Mint and Redeem.
const (
	CodeOK uint32 = iota
	CodeInjectedFault
	CodeZeroAmount
	CodeBelowOneToken
	CodeTransferFailed
	CodeInsufficientTokens
	CodeInsufficientCash
)

// PoolTokenMarketConfig configures a simulated pool-token market.
type PoolTokenMarketConfig struct {
	Address types.Address
	Bank    *chain.Bank
	// ExchangeRate is the initial underlying per pool token.
	ExchangeRate sdkmath.LegacyDec
	// SupplyRatePerBlock is the per-block growth of the exchange rate.
	SupplyRatePerBlock sdkmath.LegacyDec
	BlockTime          time.Duration
	Start              time.Time
}

// PoolTokenMarket is a simulated pool-token venue. Holders own tokens whose
// exchange rate into the underlying grows every block.
type PoolTokenMarket struct {
	address      types.Address
	bank         *chain.Bank
	supplyRate   sdkmath.LegacyDec
	blockTime    time.Duration
	exchangeRate sdkmath.LegacyDec

	tokens      map[types.Address]sdkmath.Int
	totalTokens sdkmath.Int
	lastAccrual time.Time
	faults      faults
}

var (
	_ venue.PoolToken = (*PoolTokenMarket)(nil)
	_ chain.Stateful  = (*PoolTokenMarket)(nil)
)

func NewPoolTokenMarket(cfg PoolTokenMarketConfig) (*PoolTokenMarket, error) {
	if cfg.Bank == nil || cfg.Address.IsZero() {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("pool-token market needs a bank and an address"))
	}
	if cfg.ExchangeRate.IsNil() || !cfg.ExchangeRate.IsPositive() {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("exchange rate must be positive"))
	}
	if cfg.SupplyRatePerBlock.IsNil() {
		cfg.SupplyRatePerBlock = sdkmath.LegacyZeroDec()
	}
	if cfg.SupplyRatePerBlock.IsNegative() {
		return nil, errors.Join(types.ErrInvalidArgument, errors.New("supply rate cannot be negative"))
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = 6 * time.Second
	}
	return &PoolTokenMarket{
		address:      cfg.Address,
		bank:         cfg.Bank,
		supplyRate:   cfg.SupplyRatePerBlock,
		blockTime:    cfg.BlockTime,
		exchangeRate: cfg.ExchangeRate,
		tokens:       make(map[types.Address]sdkmath.Int),
		totalTokens:  sdkmath.ZeroInt(),
		lastAccrual:  cfg.Start,
		faults:       make(faults),
	}, nil
}

func (m *PoolTokenMarket) Address() types.Address { return m.address }

// Mint pulls amount of the underlying from caller and credits
// floor(amount / exchangeRate) pool tokens.
func (m *PoolTokenMarket) Mint(caller types.Address, amount sdkmath.Int) uint32 {
	if m.faults.take(OpDeposit) {
		return CodeInjectedFault
	}
	if amount.IsNil() || !amount.IsPositive() {
		return CodeZeroAmount
	}
	minted := sdkmath.LegacyNewDecFromInt(amount).Quo(m.exchangeRate).TruncateInt()
	if minted.IsZero() {
		return CodeBelowOneToken
	}
	if err := m.bank.Transfer(caller, m.address, amount); err != nil {
		poolTokenLogger.Debug().Err(err).Str("caller", caller.String()).Msg("Mint transfer failed")
		return CodeTransferFailed
	}
	m.tokens[caller] = m.BalanceOf(caller).Add(minted)
	m.totalTokens = m.totalTokens.Add(minted)
	return CodeOK
}

// Redeem burns tokenAmount pool tokens and pays floor(tokens * rate).
func (m *PoolTokenMarket) Redeem(caller types.Address, tokenAmount sdkmath.Int) uint32 {
	if m.faults.take(OpWithdraw) {
		return CodeInjectedFault
	}
	if tokenAmount.IsNil() || !tokenAmount.IsPositive() {
		return CodeZeroAmount
	}
	held := m.BalanceOf(caller)
	if tokenAmount.GT(held) {
		return CodeInsufficientTokens
	}
	underlying := sdkmath.LegacyNewDecFromInt(tokenAmount).Mul(m.exchangeRate).TruncateInt()
	if m.bank.BalanceOf(m.address).LT(underlying) {
		return CodeInsufficientCash
	}
	if err := m.bank.Transfer(m.address, caller, underlying); err != nil {
		return CodeTransferFailed
	}
	m.tokens[caller] = held.Sub(tokenAmount)
	m.totalTokens = m.totalTokens.Sub(tokenAmount)
	return CodeOK
}

func (m *PoolTokenMarket) BalanceOf(holder types.Address) sdkmath.Int {
	if bal, ok := m.tokens[holder]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

func (m *PoolTokenMarket) ExchangeRateStored() sdkmath.LegacyDec { return m.exchangeRate }

func (m *PoolTokenMarket) SupplyRatePerBlock() sdkmath.LegacyDec { return m.supplyRate }

// Accrue advances the exchange rate by the blocks elapsed since the last
// accrual and mints the resulting interest into the market.
func (m *PoolTokenMarket) Accrue(now time.Time) {
	if m.lastAccrual.IsZero() {
		m.lastAccrual = now
		return
	}
	if !now.After(m.lastAccrual) {
		return
	}
	blocks := int64(now.Sub(m.lastAccrual) / m.blockTime)
	if blocks == 0 {
		return
	}
	m.lastAccrual = m.lastAccrual.Add(time.Duration(blocks) * m.blockTime)

	before := sdkmath.LegacyNewDecFromInt(m.totalTokens).Mul(m.exchangeRate).TruncateInt()
	growth := sdkmath.LegacyOneDec().Add(m.supplyRate.MulInt64(blocks))
	m.exchangeRate = m.exchangeRate.Mul(growth)
	after := sdkmath.LegacyNewDecFromInt(m.totalTokens).Mul(m.exchangeRate).TruncateInt()

	if interest := after.Sub(before); interest.IsPositive() {
		if err := m.bank.Mint(m.address, interest); err != nil {
			poolTokenLogger.Error().Err(err).Msg("Failed to fund accrued interest")
		}
	}
}

// SetExchangeRate overrides the stored rate. A drop models a loss; the
// market's cash is not adjusted.
func (m *PoolTokenMarket) SetExchangeRate(rate sdkmath.LegacyDec) { m.exchangeRate = rate }

// FailNext makes the next n mints (OpDeposit) or redeems (OpWithdraw) fail.
func (m *PoolTokenMarket) FailNext(op Op, n int) { m.faults[op] += n }

// poolTokenSnapshot leaves injected faults out, like lendingSnapshot.
type poolTokenSnapshot struct {
	tokens       map[types.Address]sdkmath.Int
	totalTokens  sdkmath.Int
	exchangeRate sdkmath.LegacyDec
	lastAccrual  time.Time
}

func (m *PoolTokenMarket) Snapshot() any {
	return poolTokenSnapshot{
		tokens:       cloneBalances(m.tokens),
		totalTokens:  m.totalTokens,
		exchangeRate: m.exchangeRate,
		lastAccrual:  m.lastAccrual,
	}
}

func (m *PoolTokenMarket) Restore(snapshot any) {
	s := snapshot.(poolTokenSnapshot)
	m.tokens = s.tokens
	m.totalTokens = s.totalTokens
	m.exchangeRate = s.exchangeRate
	m.lastAccrual = s.lastAccrual
}
