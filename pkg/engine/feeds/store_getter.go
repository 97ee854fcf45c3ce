package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StoreGetter exposes a FeedStore through the direct price-getter capability
// by collapsing the mantissa and precision into a plain decimal price.
type StoreGetter struct {
	store FeedStore
}

// Ensure StoreGetter implements PriceGetter interface.
var _ PriceGetter = (*StoreGetter)(nil)

// NewStoreGetter wraps a feed store as a price getter.
func NewStoreGetter(store FeedStore) (*StoreGetter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: feed store", ErrZeroAddress)
	}
	return &StoreGetter{store: store}, nil
}

// SpotPrice returns the store's latest observation as a decimal price.
func (g *StoreGetter) SpotPrice(ctx context.Context, key string) (decimal.Decimal, time.Time, error) {
	data, err := g.store.Latest(ctx, key)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	return data.Price.Shift(-data.Decimals), data.ObservedAt, nil
}
