package feeds

import "errors"

var (
	// ErrPairNotSet indicates that no feed key is mapped for the requested pair.
	ErrPairNotSet = errors.New("no feed key set for pair")
	// ErrZeroPrice indicates that the underlying feed reported a zero price.
	ErrZeroPrice = errors.New("feed reported zero price")
	// ErrStalePrice indicates that the feed observation is older than the freshness window.
	ErrStalePrice = errors.New("feed price is stale")
	// ErrZeroAddress indicates a null source, feed or owner reference.
	ErrZeroAddress = errors.New("zero address")
	// ErrUnauthorized indicates that the caller is not the owner of the scope.
	ErrUnauthorized = errors.New("caller is not the owner")
	// ErrEmptyKey indicates an empty feed key.
	ErrEmptyKey = errors.New("feed key cannot be empty")
	// ErrInvalidPairFormat indicates a symbol not in BASE/QUOTE format.
	ErrInvalidPairFormat = errors.New("pair must be in BASE/QUOTE format")
	// ErrNegativeAmount indicates a negative input amount.
	ErrNegativeAmount = errors.New("amount cannot be negative")
	// ErrFeedUnavailable indicates that the external feed could not be reached.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrInvalidFeedResponse indicates that the feed response could not be parsed.
	ErrInvalidFeedResponse = errors.New("invalid feed response")
)
