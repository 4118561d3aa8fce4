package domain

import "errors"

// Every error below is user-facing and recoverable. Layers wrap them with
// context but must keep them matchable via errors.Is so the transport can
// map each one to an accurate response instead of a generic failure.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrForbidden          = errors.New("forbidden")
	ErrAlreadyResolved    = errors.New("transfer already resolved")
	ErrDuplicateOwner     = errors.New("owner already has an account")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
