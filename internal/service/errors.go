package service

import "errors"

// Sentinel errors shared by the service layer. Handlers map these to HTTP
// statuses at the boundary with errors.Is; anything unrecognized is a server
// fault.
var (
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords. The single value keeps login failures indistinguishable,
	// so responses leak no enumeration signal.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidRefreshToken marks a refresh token that is unknown,
	// expired, revoked, or lost a rotation race. Terminal for the attempt:
	// the client must log in again.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

	// ErrUnauthorized marks a missing, malformed, expired or revoked
	// access token presented to a token-gated operation.
	ErrUnauthorized = errors.New("invalid or expired access token")

	// ErrInvalidState is an internal invariant violation, treated as a
	// server fault rather than a client error.
	ErrInvalidState = errors.New("invalid internal state")

	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource already exists")
	ErrValidation = errors.New("validation failed")
)
