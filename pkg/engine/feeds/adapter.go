package feeds

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimblefi/quotefuse/pkg/engine/events"
	"github.com/nimblefi/quotefuse/pkg/logging"
)

// BaseAdapter provides the pair-key mapping and owner gating shared by all
// quote source adapters. An adapter may serve multiple pairs, each mapped to
// a feed-specific key.
type BaseAdapter struct {
	name   string
	owner  Account
	keys   map[Pair]string
	keysMu sync.RWMutex
	bus    *events.Bus
	logger *logging.Logger
}

// NewBaseAdapter creates the shared adapter state. The owner must be non-zero.
func NewBaseAdapter(name string, owner Account, bus *events.Bus, logger *logging.Logger) (*BaseAdapter, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: owner", ErrZeroAddress)
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &BaseAdapter{
		name:   name,
		owner:  owner,
		keys:   make(map[Pair]string),
		bus:    bus,
		logger: logger,
	}, nil
}

// Name returns the adapter name.
func (b *BaseAdapter) Name() string {
	return b.name
}

// Owner returns the current owner.
func (b *BaseAdapter) Owner() Account {
	b.keysMu.RLock()
	defer b.keysMu.RUnlock()
	return b.owner
}

// SetPairKey maps a pair to the adapter's internal feed key. Owner-gated.
func (b *BaseAdapter) SetPairKey(caller Account, pair Pair, key string) error {
	b.keysMu.Lock()
	defer b.keysMu.Unlock()

	if caller != b.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	if pair.IsZero() {
		return fmt.Errorf("%w: pair", ErrZeroAddress)
	}
	if key == "" {
		return fmt.Errorf("%w: %s", ErrEmptyKey, pair)
	}

	b.keys[pair] = key
	b.logger.Info("Pair key set", "adapter", b.name, "pair", pair.String(), "key", key)
	b.bus.Publish(events.Event{
		Type:   events.TypePairKeySet,
		Pair:   pair.String(),
		Source: b.name,
		Attrs:  map[string]string{"key": key},
		At:     time.Now(),
	})
	return nil
}

// PairKey returns the feed key mapped for a pair.
func (b *BaseAdapter) PairKey(pair Pair) (string, bool) {
	b.keysMu.RLock()
	defer b.keysMu.RUnlock()
	key, ok := b.keys[pair]
	return key, ok
}

// TransferOwnership hands administrative control to a new owner. Owner-gated.
func (b *BaseAdapter) TransferOwnership(caller, newOwner Account) error {
	b.keysMu.Lock()
	defer b.keysMu.Unlock()

	if caller != b.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	if newOwner.IsZero() {
		return fmt.Errorf("%w: new owner", ErrZeroAddress)
	}

	previous := b.owner
	b.owner = newOwner
	b.bus.Publish(events.Event{
		Type:   events.TypeOwnershipTransferred,
		Source: b.name,
		Attrs:  map[string]string{"from": string(previous), "to": string(newOwner)},
		At:     time.Now(),
	})
	return nil
}

// Logger returns the adapter logger.
func (b *BaseAdapter) Logger() *logging.Logger {
	return b.logger
}

// Bus returns the adapter event bus.
func (b *BaseAdapter) Bus() *events.Bus {
	return b.bus
}

// checkFreshness validates an observation against the fixed freshness window.
func checkFreshness(observedAt time.Time, now time.Time) error {
	if observedAt.IsZero() || now.Sub(observedAt) > MaxPriceAge {
		return fmt.Errorf("%w: observed at %s", ErrStalePrice, observedAt.Format(time.RFC3339))
	}
	return nil
}

// validateAmount rejects negative input amounts.
func validateAmount(amountIn decimal.Decimal) error {
	if amountIn.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amountIn)
	}
	return nil
}
