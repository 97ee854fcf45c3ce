package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimblefi/quotefuse/pkg/engine/events"
	"github.com/nimblefi/quotefuse/pkg/logging"
)

// FeedAdapter normalizes a key/value style feed store into the canonical
// quote capability. The store reports fixed-point price mantissas at a
// per-key native precision; the adapter aligns them to 18-decimal output.
type FeedAdapter struct {
	*BaseAdapter
	store FeedStore
}

// Ensure FeedAdapter implements Source interface.
var _ Source = (*FeedAdapter)(nil)

// NewFeedAdapter creates an adapter over a feed store. The store must be non-nil.
func NewFeedAdapter(name string, owner Account, store FeedStore, bus *events.Bus, logger *logging.Logger) (*FeedAdapter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: feed store", ErrZeroAddress)
	}
	base, err := NewBaseAdapter(name, owner, bus, logger)
	if err != nil {
		return nil, err
	}
	return &FeedAdapter{BaseAdapter: base, store: store}, nil
}

// GetQuote converts amountIn of pair.Base into pair.Quote units.
// The conversion is amountOut = price * amountIn / 10^decimals, truncated.
func (a *FeedAdapter) GetQuote(ctx context.Context, amountIn decimal.Decimal, pair Pair) (decimal.Decimal, error) {
	if err := validateAmount(amountIn); err != nil {
		return decimal.Zero, err
	}

	key, ok := a.PairKey(pair)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrPairNotSet, pair, a.Name())
	}

	data, err := a.store.Latest(ctx, key)
	if err != nil {
		return decimal.Zero, fmt.Errorf("feed %s key %s: %w", a.Name(), key, err)
	}

	if !data.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s key %s", ErrZeroPrice, a.Name(), key)
	}
	if err := checkFreshness(data.ObservedAt, time.Now()); err != nil {
		return decimal.Zero, fmt.Errorf("%s key %s: %w", a.Name(), key, err)
	}

	return data.Price.Mul(amountIn).Shift(-data.Decimals).Truncate(0), nil
}
