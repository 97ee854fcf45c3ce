package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimblefi/quotefuse/pkg/engine/events"
	"github.com/nimblefi/quotefuse/pkg/logging"
)

// GetterAdapter normalizes a direct price-getter feed into the canonical
// quote capability. The getter already reports a decimal price (quote units
// per base unit), so no mantissa alignment is needed.
type GetterAdapter struct {
	*BaseAdapter
	getter PriceGetter
}

// Ensure GetterAdapter implements Source interface.
var _ Source = (*GetterAdapter)(nil)

// NewGetterAdapter creates an adapter over a price getter. The getter must be non-nil.
func NewGetterAdapter(name string, owner Account, getter PriceGetter, bus *events.Bus, logger *logging.Logger) (*GetterAdapter, error) {
	if getter == nil {
		return nil, fmt.Errorf("%w: price getter", ErrZeroAddress)
	}
	base, err := NewBaseAdapter(name, owner, bus, logger)
	if err != nil {
		return nil, err
	}
	return &GetterAdapter{BaseAdapter: base, getter: getter}, nil
}

// GetQuote converts amountIn of pair.Base into pair.Quote units, truncated.
func (a *GetterAdapter) GetQuote(ctx context.Context, amountIn decimal.Decimal, pair Pair) (decimal.Decimal, error) {
	if err := validateAmount(amountIn); err != nil {
		return decimal.Zero, err
	}

	key, ok := a.PairKey(pair)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s on %s", ErrPairNotSet, pair, a.Name())
	}

	price, observedAt, err := a.getter.SpotPrice(ctx, key)
	if err != nil {
		return decimal.Zero, fmt.Errorf("getter %s key %s: %w", a.Name(), key, err)
	}

	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s key %s", ErrZeroPrice, a.Name(), key)
	}
	if err := checkFreshness(observedAt, time.Now()); err != nil {
		return decimal.Zero, fmt.Errorf("%s key %s: %w", a.Name(), key, err)
	}

	return amountIn.Mul(price).Truncate(0), nil
}
