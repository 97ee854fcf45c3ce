package feeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// StaticFeedStore is an in-memory feed store. It backs config-pinned prices
// and the test suite.
type StaticFeedStore struct {
	mu     sync.RWMutex
	prices map[string]PriceData
}

// Ensure StaticFeedStore implements FeedStore interface.
var _ FeedStore = (*StaticFeedStore)(nil)

// NewStaticFeedStore creates an empty static feed store.
func NewStaticFeedStore() *StaticFeedStore {
	return &StaticFeedStore{prices: make(map[string]PriceData)}
}

// Set stores an observation for a key.
func (s *StaticFeedStore) Set(key string, price decimal.Decimal, decimals int32, observedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[key] = PriceData{Price: price, Decimals: decimals, ObservedAt: observedAt}
}

// Latest returns the stored observation for a key.
func (s *StaticFeedStore) Latest(_ context.Context, key string) (PriceData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.prices[key]
	if !ok {
		return PriceData{}, fmt.Errorf("%w: key %s", ErrFeedUnavailable, key)
	}
	return data, nil
}
