// Package feeds provides quote source adapters that normalize heterogeneous
// external price feeds into one canonical conversion interface.
package feeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// QuoteDecimals is the canonical fixed-point precision of all converted
	// amounts produced by adapters.
	QuoteDecimals = 18

	// MaxPriceAge is the freshness window for external observations. A price
	// older than this is rejected with ErrStalePrice. The window is a fixed
	// policy constant so it cannot be weakened per adapter.
	MaxPriceAge = time.Hour
)

// Pair identifies a base/quote asset pairing, e.g. USDC/ETH.
type Pair struct {
	Base  string
	Quote string
}

// NewPair creates a pair from upper-cased asset symbols.
func NewPair(base, quote string) Pair {
	return Pair{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
}

// ParsePair parses a "BASE/QUOTE" symbol into a pair.
func ParsePair(symbol string) (Pair, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("%w: %s", ErrInvalidPairFormat, symbol)
	}
	base := strings.TrimSpace(parts[0])
	quote := strings.TrimSpace(parts[1])
	if base == "" || quote == "" {
		return Pair{}, fmt.Errorf("%w: %s", ErrInvalidPairFormat, symbol)
	}
	return NewPair(base, quote), nil
}

// String returns the unified "BASE/QUOTE" symbol.
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Mirror returns the pair with base and quote swapped.
func (p Pair) Mirror() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

// Equal reports whether two pairs have the same base and quote.
func (p Pair) Equal(other Pair) bool {
	return p.Base == other.Base && p.Quote == other.Quote
}

// IsZero reports whether the pair is unset.
func (p Pair) IsZero() bool {
	return p.Base == "" || p.Quote == ""
}

// Account is an opaque owner identity used for administrative gating.
type Account string

// ZeroAccount is the null account.
const ZeroAccount Account = ""

// IsZero reports whether the account is the null account.
func (a Account) IsZero() bool {
	return a == ZeroAccount
}

// PriceData is one observation from an external feed: a fixed-point price
// mantissa at the feed's native precision, and when it was observed.
type PriceData struct {
	Price      decimal.Decimal
	Decimals   int32
	ObservedAt time.Time
}

// Source is the canonical quote capability. GetQuote converts amountIn units
// of pair.Base into pair.Quote units at 18-decimal precision, truncated.
type Source interface {
	// Name returns the unique name of this adapter.
	Name() string

	// GetQuote converts amountIn of the base asset into the quote asset.
	GetQuote(ctx context.Context, amountIn decimal.Decimal, pair Pair) (decimal.Decimal, error)
}

// FeedStore is a key/value style external feed: each key addresses one price
// series with its own precision.
type FeedStore interface {
	// Latest returns the most recent observation for the given feed key.
	Latest(ctx context.Context, key string) (PriceData, error)
}

// PriceGetter is a direct price-getter style external feed: it reports a
// ready-to-use decimal price (quote units per one base unit) per key.
type PriceGetter interface {
	// SpotPrice returns the current price and its observation time for the key.
	SpotPrice(ctx context.Context, key string) (decimal.Decimal, time.Time, error)
}
