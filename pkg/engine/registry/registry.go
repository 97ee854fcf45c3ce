package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nimblefi/quotefuse/pkg/engine/aggregator"
	"github.com/nimblefi/quotefuse/pkg/engine/events"
	"github.com/nimblefi/quotefuse/pkg/engine/feeds"
	"github.com/nimblefi/quotefuse/pkg/logging"
	"github.com/nimblefi/quotefuse/pkg/metrics"
)

// instance is one provisioned pair aggregator and its stable handle.
type instance struct {
	handle     string
	aggregator *aggregator.PairAggregator
}

// Registry provisions one pair aggregator per pair, prevents duplicate or
// mirrored-pair registration, and routes quote requests to the right instance.
//
// Instances are created under the registry's own administrative account, so
// the registry can later delegate or upgrade them until their ownership is
// transferred away.
type Registry struct {
	mu        sync.RWMutex
	owner     feeds.Account
	account   feeds.Account
	instances map[feeds.Pair]*instance
	bus       *events.Bus
	logger    *logging.Logger
}

// New creates a registry. The owner must be non-zero.
func New(owner feeds.Account, bus *events.Bus, logger *logging.Logger) (*Registry, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: owner", feeds.ErrZeroAddress)
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Registry{
		owner:     owner,
		account:   feeds.Account("registry:" + uuid.NewString()),
		instances: make(map[feeds.Pair]*instance),
		bus:       bus,
		logger:    logger,
	}, nil
}

// Owner returns the registry owner.
func (r *Registry) Owner() feeds.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// CreateAggregator provisions a new pair aggregator seeded with the given
// sources and deviation ceiling, and returns its stable handle. Fails if an
// instance already exists for the pair or its mirror. Owner-gated.
func (r *Registry) CreateAggregator(caller feeds.Account, pair feeds.Pair, sources []feeds.Source, maxDeviationBps uint32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.authorize(caller); err != nil {
		return "", err
	}
	if _, ok := r.instances[pair]; ok {
		return "", fmt.Errorf("%w: %s", ErrAlreadyExists, pair)
	}
	if _, ok := r.instances[pair.Mirror()]; ok {
		return "", fmt.Errorf("%w: %s mirrors %s", ErrAlreadyExists, pair, pair.Mirror())
	}

	agg, err := aggregator.New(pair, r.account, sources, maxDeviationBps, r.bus, r.logger)
	if err != nil {
		return "", err
	}

	handle := uuid.NewString()
	r.instances[pair] = &instance{handle: handle, aggregator: agg}
	metrics.RegisteredPairs.Set(float64(len(r.instances)))

	r.logger.Info("Aggregator created",
		"pair", pair.String(), "handle", handle,
		"oracles", len(sources), "max_deviation_bps", maxDeviationBps)
	r.bus.Publish(events.Event{
		Type:  events.TypeInstanceCreated,
		Pair:  pair.String(),
		Attrs: map[string]string{"handle": handle},
	})
	return handle, nil
}

// RemoveAggregator clears the registry mapping for a pair. The instance's own
// state is not destroyed; a later CreateAggregator provisions a fresh one.
// Owner-gated.
func (r *Registry) RemoveAggregator(caller feeds.Account, pair feeds.Pair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.authorize(caller); err != nil {
		return err
	}
	inst, ok := r.instances[pair]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, pair)
	}

	delete(r.instances, pair)
	metrics.RegisteredPairs.Set(float64(len(r.instances)))

	r.logger.Info("Aggregator removed", "pair", pair.String(), "handle", inst.handle)
	r.bus.Publish(events.Event{
		Type:  events.TypeInstanceRemoved,
		Pair:  pair.String(),
		Attrs: map[string]string{"handle": inst.handle},
	})
	return nil
}

// TransferAggregatorOwnership delegates administrative control of one instance
// to a new owner without touching the registry's own ownership. Owner-gated;
// fails once the instance's ownership has already been transferred away from
// the registry.
func (r *Registry) TransferAggregatorOwnership(caller feeds.Account, pair feeds.Pair, newOwner feeds.Account) error {
	r.mu.RLock()
	inst, ok := r.instances[pair]
	account := r.account
	r.mu.RUnlock()

	if err := r.authorizeRead(caller); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, pair)
	}

	return inst.aggregator.TransferOwnership(account, newOwner)
}

// TransferOwnership hands the registry itself to a new owner. Owner-gated.
func (r *Registry) TransferOwnership(caller, newOwner feeds.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.authorize(caller); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return fmt.Errorf("%w: new owner", feeds.ErrZeroAddress)
	}

	previous := r.owner
	r.owner = newOwner
	r.bus.Publish(events.Event{
		Type:  events.TypeOwnershipTransferred,
		Attrs: map[string]string{"from": string(previous), "to": string(newOwner), "scope": "registry"},
	})
	return nil
}

// UpgradeAggregatorLogic swaps an instance's statistic implementation in place,
// preserving its configuration. Owner-gated.
func (r *Registry) UpgradeAggregatorLogic(caller feeds.Account, pair feeds.Pair, logic aggregator.Logic) error {
	r.mu.RLock()
	inst, ok := r.instances[pair]
	account := r.account
	r.mu.RUnlock()

	if err := r.authorizeRead(caller); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, pair)
	}

	return inst.aggregator.UpgradeLogic(account, logic)
}

// GetAggregator resolves the instance for a pair.
func (r *Registry) GetAggregator(pair feeds.Pair) (*aggregator.PairAggregator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[pair]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pair)
	}
	return inst.aggregator, nil
}

// Handle returns the stable handle of the instance for a pair.
func (r *Registry) Handle(pair feeds.Pair) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[pair]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, pair)
	}
	return inst.handle, nil
}

// ExistsAggregator reports whether an instance is registered for a pair.
func (r *Registry) ExistsAggregator(pair feeds.Pair) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.instances[pair]
	return ok
}

// LogicVersion returns the active logic revision of the instance for a pair.
func (r *Registry) LogicVersion(pair feeds.Pair) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[pair]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, pair)
	}
	return inst.aggregator.LogicVersion(), nil
}

// Pairs returns all registered pairs.
func (r *Registry) Pairs() []feeds.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pairs := make([]feeds.Pair, 0, len(r.instances))
	for pair := range r.instances {
		pairs = append(pairs, pair)
	}
	return pairs
}

// Quote resolves the instance for a pair and forwards to its average or
// median computation. A missing instance surfaces as ErrNotFound, distinct
// from any computation failure inside the instance.
func (r *Registry) Quote(ctx context.Context, pair feeds.Pair, amount decimal.Decimal, useMedian bool) (decimal.Decimal, error) {
	agg, err := r.GetAggregator(pair)
	if err != nil {
		return decimal.Zero, err
	}

	if useMedian {
		return agg.ComputeQuoteMedian(ctx, amount, pair)
	}
	return agg.ComputeQuoteAverage(ctx, amount, pair)
}

// authorize checks the caller against the owner. Callers must hold r.mu.
func (r *Registry) authorize(caller feeds.Account) error {
	if caller != r.owner {
		return fmt.Errorf("%w: %s", feeds.ErrUnauthorized, caller)
	}
	return nil
}

// authorizeRead is authorize for paths that only hold the read lock briefly.
func (r *Registry) authorizeRead(caller feeds.Account) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.authorize(caller)
}
