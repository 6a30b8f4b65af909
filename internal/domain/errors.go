package domain

import "errors"

var (
	// ErrInvalidInput marks malformed coordinates, duplicate stop ids or
	// threshold misconfiguration. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable marks a distance provider that is unreachable,
	// timed out, misconfigured or refused the request.
	ErrProviderUnavailable = errors.New("distance provider unavailable")

	ErrTripNotFound = errors.New("trip not found")
)
