package repository

import "errors"

var (
	// ErrRateLimited is a transient provider error; callers may retry after a delay.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrMissingCredential is a configuration error and is never retried.
	ErrMissingCredential = errors.New("provider credential missing")
	// ErrProviderUnavailable wraps hard failures of the last provider in the chain.
	ErrProviderUnavailable = errors.New("price provider unavailable")
)
