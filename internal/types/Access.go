package types

import (
	"errors"
	"fmt"
)

// Address identifies an account, a component or a venue. Components use
// plain strings so tests and simulations can use readable names; the config
// layer validates bech32 addresses for deployments.
type Address string

func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}

// AccessControl is the explicit owner record carried in a component's state.
type AccessControl struct {
	Owner Address `json:"owner"`
}

// RequireOwner fails with ErrUnauthorized unless caller is the owner.
func (ac AccessControl) RequireOwner(caller Address) error {
	if caller.IsZero() || caller != ac.Owner {
		return errors.Join(ErrUnauthorized, fmt.Errorf("%s is not the owner", caller))
	}
	return nil
}

// RequireOneOf passes when caller is the owner or one of the extra roles.
func (ac AccessControl) RequireOneOf(caller Address, roles ...Address) error {
	if !caller.IsZero() && caller == ac.Owner {
		return nil
	}
	for _, r := range roles {
		if !r.IsZero() && caller == r {
			return nil
		}
	}
	return errors.Join(ErrUnauthorized, fmt.Errorf("%s holds no required role", caller))
}
