package common

import "errors"

// Shared failure taxonomy. Every engine wraps these roots so the RPC layer can
// map a rejected call onto a discriminable error kind with errors.Is. A failed
// call never leaves a partial mutation behind: engines validate every
// precondition before touching state.
var (
	// ErrUnauthorized marks a caller lacking the required role or identity
	// match for the operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidState marks an operation attempted from a status that does
	// not permit it.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound marks a referenced listing, order, charity, goal, or
	// request id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPaymentMismatch marks a payment that does not exactly equal the
	// required amount.
	ErrPaymentMismatch = errors.New("payment mismatch")
	// ErrCharityNotVerified marks a target charity whose verified flag is
	// not currently set.
	ErrCharityNotVerified = errors.New("charity not verified")
	// ErrInvariant marks a request that would violate a structural
	// invariant, e.g. removing the primary admin or a zero-target goal.
	ErrInvariant = errors.New("invariant violation")
)
