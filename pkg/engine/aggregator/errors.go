// Package aggregator provides the per-pair quote aggregation and
// fault-isolation core.
package aggregator

import "errors"

var (
	// ErrNoValidQuotes indicates that no registered source produced a usable quote.
	ErrNoValidQuotes = errors.New("no valid quotes from any source")
	// ErrDeviationExceeded indicates that a contributing quote deviated from the
	// aggregate beyond the configured ceiling; the whole call is rejected.
	ErrDeviationExceeded = errors.New("quote deviation exceeds ceiling")
	// ErrInvalidDeviation indicates a deviation ceiling outside [0, 10000] bps.
	ErrInvalidDeviation = errors.New("deviation ceiling must be within [0, 10000] bps")
	// ErrIndexOutOfRange indicates an oracle index beyond the registration list.
	ErrIndexOutOfRange = errors.New("oracle index out of range")
	// ErrDuplicateOracle indicates that the source is already registered for the pair.
	ErrDuplicateOracle = errors.New("oracle already registered for pair")
	// ErrPairMismatch indicates that the requested pair is not the one this
	// aggregator was provisioned for.
	ErrPairMismatch = errors.New("pair does not match aggregator")
	// ErrNoOracles indicates that an aggregator was created without sources.
	ErrNoOracles = errors.New("at least one oracle is required")
	// ErrNilLogic indicates a null aggregation logic reference.
	ErrNilLogic = errors.New("aggregation logic cannot be nil")
)
