package model

import "errors"

// Error taxonomy. Only these two classes ever propagate out of a fetch;
// transient network failures are absorbed into the run report instead.
var (
	// ErrInvalidInput marks malformed or missing call parameters
	// (unknown site, non-UTC timestamp).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration marks a broken environment: missing credentials,
	// missing timezone data, or an exhausted split-depth budget.
	ErrConfiguration = errors.New("configuration error")
)
