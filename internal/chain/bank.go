package chain

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/yield-vault/internal/types"
)

// Bank holds balances of the vault's single asset for every address: users,
// the ledger, the allocator and the venues.
type Bank struct {
	denom    string
	balances map[types.Address]sdkmath.Int
	supply   sdkmath.Int
}

// NewBank creates an empty bank for denom.
func NewBank(denom string) (*Bank, error) {
	if err := sdktypes.ValidateDenom(denom); err != nil {
		return nil, errors.Join(types.ErrInvalidArgument, err)
	}
	return &Bank{
		denom:    denom,
		balances: make(map[types.Address]sdkmath.Int),
		supply:   sdkmath.ZeroInt(),
	}, nil
}

func (b *Bank) Denom() string {
	return b.denom
}

// Coin wraps amount in the bank's denom.
func (b *Bank) Coin(amount sdkmath.Int) sdktypes.Coin {
	if amount.IsNil() {
		amount = sdkmath.ZeroInt()
	}
	return sdktypes.NewCoin(b.denom, amount)
}

func (b *Bank) BalanceOf(addr types.Address) sdkmath.Int {
	if bal, ok := b.balances[addr]; ok {
		return bal
	}
	return sdkmath.ZeroInt()
}

// Supply is the total amount ever minted minus burned.
func (b *Bank) Supply() sdkmath.Int {
	return b.supply
}

// Transfer moves amount from one address to another.
func (b *Bank) Transfer(from, to types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return errors.Join(types.ErrInvalidArgument, errors.New("transfer amount must be non-negative"))
	}
	if from.IsZero() || to.IsZero() {
		return errors.Join(types.ErrInvalidArgument, errors.New("transfer address cannot be empty"))
	}
	if amount.IsZero() || from == to {
		return nil
	}
	bal := b.BalanceOf(from)
	if bal.LT(amount) {
		return errors.Join(types.ErrInsufficientBalance,
			fmt.Errorf("%s holds %s%s, needs %s%s", from, bal, b.denom, amount, b.denom))
	}
	b.balances[from] = bal.Sub(amount)
	b.balances[to] = b.BalanceOf(to).Add(amount)
	return nil
}

// Mint creates new asset at addr. Used by faucets and simulated interest.
func (b *Bank) Mint(to types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() || to.IsZero() {
		return errors.Join(types.ErrInvalidArgument, errors.New("invalid mint"))
	}
	b.balances[to] = b.BalanceOf(to).Add(amount)
	b.supply = b.supply.Add(amount)
	return nil
}

// Burn destroys asset held at addr. Used by simulated losses.
func (b *Bank) Burn(from types.Address, amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return errors.Join(types.ErrInvalidArgument, errors.New("invalid burn"))
	}
	bal := b.BalanceOf(from)
	if bal.LT(amount) {
		return errors.Join(types.ErrInsufficientBalance, fmt.Errorf("%s cannot burn %s", from, amount))
	}
	b.balances[from] = bal.Sub(amount)
	b.supply = b.supply.Sub(amount)
	return nil
}

type bankSnapshot struct {
	balances map[types.Address]sdkmath.Int
	supply   sdkmath.Int
}

func (b *Bank) Snapshot() any {
	balances := make(map[types.Address]sdkmath.Int, len(b.balances))
	for k, v := range b.balances {
		balances[k] = v
	}
	return bankSnapshot{balances: balances, supply: b.supply}
}

func (b *Bank) Restore(snapshot any) {
	s := snapshot.(bankSnapshot)
	b.balances = s.balances
	b.supply = s.supply
}
