package types

import "errors"

// Error taxonomy shared by the share ledger and the allocator. Every failure
// surfaced to a caller wraps exactly one of these so callers can branch with
// errors.Is.
var (
	ErrUnauthorized           = errors.New("caller is not authorized")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientAllowance  = errors.New("insufficient allowance")
	ErrCooldownActive         = errors.New("cooldown active")
	ErrVenueOperationFailed   = errors.New("venue operation failed")
	ErrRewardClaimUnavailable = errors.New("reward claim unavailable")
)
