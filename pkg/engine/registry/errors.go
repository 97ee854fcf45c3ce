// Package registry provisions and tracks one pair aggregator per pair.
package registry

import "errors"

var (
	// ErrAlreadyExists indicates that the pair or its mirror is already registered.
	ErrAlreadyExists = errors.New("aggregator already exists for pair or its mirror")
	// ErrNotFound indicates that no aggregator is registered for the pair.
	ErrNotFound = errors.New("no aggregator registered for pair")
)
