package config

import "errors"

var (
	// ErrNoOwner indicates that registry.owner is not set.
	ErrNoOwner = errors.New("registry owner must be specified")
	// ErrNoPairsConfigured indicates that no pairs are configured.
	ErrNoPairsConfigured = errors.New("at least one pair must be configured")
	// ErrNoAdaptersConfigured indicates that no adapters are configured.
	ErrNoAdaptersConfigured = errors.New("at least one adapter must be configured")
	// ErrInvalidFeedType indicates an unknown feed type.
	ErrInvalidFeedType = errors.New("feed type must be 'http' or 'static'")
	// ErrInvalidAdapterType indicates an unknown adapter type.
	ErrInvalidAdapterType = errors.New("adapter type must be 'feed' or 'getter'")
	// ErrUnknownFeedRef indicates an adapter referencing an unconfigured feed.
	ErrUnknownFeedRef = errors.New("adapter references unknown feed")
	// ErrUnknownAdapterRef indicates a pair referencing an unconfigured adapter.
	ErrUnknownAdapterRef = errors.New("pair references unknown adapter")
	// ErrDuplicateName indicates a duplicate feed or adapter name.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrDuplicatePair indicates the same pair (or its mirror) configured twice.
	ErrDuplicatePair = errors.New("pair or its mirror configured twice")
	// ErrInvalidDeviationBps indicates a deviation ceiling outside [0, 10000].
	ErrInvalidDeviationBps = errors.New("max_deviation_bps must be within [0, 10000]")
	// ErrInvalidLogLevel indicates an invalid logging level.
	ErrInvalidLogLevel = errors.New("invalid logging level")
	// ErrInvalidLogFormat indicates an invalid logging format.
	ErrInvalidLogFormat = errors.New("invalid logging format")
)
