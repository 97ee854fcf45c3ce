package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nimblefi/quotefuse/pkg/engine/events"
	"github.com/nimblefi/quotefuse/pkg/engine/feeds"
	"github.com/nimblefi/quotefuse/pkg/logging"
	"github.com/nimblefi/quotefuse/pkg/metrics"
)

const (
	// MaxDeviationCeiling is the upper bound of the deviation ceiling in basis
	// points. A ceiling of 10000 accepts any quote within 100% of the aggregate.
	MaxDeviationCeiling = 10_000

	methodAverage = "average"
	methodMedian  = "median"
)

// Registration is one adapter registered for the pair. Disabled entries are
// skipped during aggregation but retained so indices stay meaningful.
type Registration struct {
	Source  feeds.Source
	Enabled bool
}

// PairAggregator combines all enabled adapters for one pair and rejects the
// result if any individual source disagrees too strongly with the statistic.
type PairAggregator struct {
	mu              sync.RWMutex
	pair            feeds.Pair
	owner           feeds.Account
	maxDeviationBps uint32
	oracles         []Registration
	logic           Logic
	bus             *events.Bus
	logger          *logging.Logger
}

// New creates a pair aggregator seeded with the given sources. All sources
// start enabled. The deviation ceiling must be within [0, 10000] bps.
func New(pair feeds.Pair, owner feeds.Account, sources []feeds.Source, maxDeviationBps uint32, bus *events.Bus, logger *logging.Logger) (*PairAggregator, error) {
	if pair.IsZero() {
		return nil, fmt.Errorf("%w: pair", feeds.ErrZeroAddress)
	}
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: owner", feeds.ErrZeroAddress)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOracles, pair)
	}
	if maxDeviationBps > MaxDeviationCeiling {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDeviation, maxDeviationBps)
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	a := &PairAggregator{
		pair:            pair,
		owner:           owner,
		maxDeviationBps: maxDeviationBps,
		logic:           NewStandardLogic(),
		bus:             bus,
		logger:          logger,
	}

	for _, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("%w: source", feeds.ErrZeroAddress)
		}
		if a.indexOf(src.Name()) >= 0 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOracle, src.Name())
		}
		a.oracles = append(a.oracles, Registration{Source: src, Enabled: true})
	}

	return a, nil
}

// Pair returns the pair this aggregator serves.
func (a *PairAggregator) Pair() feeds.Pair {
	return a.pair
}

// Owner returns the current owner.
func (a *PairAggregator) Owner() feeds.Account {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.owner
}

// MaxDeviationBps returns the current deviation ceiling.
func (a *PairAggregator) MaxDeviationBps() uint32 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.maxDeviationBps
}

// Oracles returns a copy of the registration list.
func (a *PairAggregator) Oracles() []Registration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	oracles := make([]Registration, len(a.oracles))
	copy(oracles, a.oracles)
	return oracles
}

// LogicVersion returns the active logic revision tag.
func (a *PairAggregator) LogicVersion() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.logic.Version()
}

// AddOracle appends a new adapter registration, enabled by default. Owner-gated.
func (a *PairAggregator) AddOracle(caller feeds.Account, pair feeds.Pair, src feeds.Source) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.authorize(caller); err != nil {
		return err
	}
	if err := a.checkPair(pair); err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("%w: source", feeds.ErrZeroAddress)
	}
	if a.indexOf(src.Name()) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateOracle, src.Name())
	}

	a.oracles = append(a.oracles, Registration{Source: src, Enabled: true})
	a.logger.Info("Oracle added", "pair", a.pair.String(), "oracle", src.Name())
	a.bus.Publish(events.Event{
		Type:   events.TypeOracleAdded,
		Pair:   a.pair.String(),
		Source: src.Name(),
	})
	return nil
}

// RemoveOracle removes the registration at index. Removal shifts the remaining
// entries left by one, so previously recorded higher indices move down.
// Owner-gated.
func (a *PairAggregator) RemoveOracle(caller feeds.Account, pair feeds.Pair, index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.authorize(caller); err != nil {
		return err
	}
	if err := a.checkPair(pair); err != nil {
		return err
	}
	if index < 0 || index >= len(a.oracles) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(a.oracles))
	}

	removed := a.oracles[index].Source.Name()
	a.oracles = append(a.oracles[:index], a.oracles[index+1:]...)
	a.logger.Info("Oracle removed", "pair", a.pair.String(), "oracle", removed, "index", index)
	a.bus.Publish(events.Event{
		Type:   events.TypeOracleRemoved,
		Pair:   a.pair.String(),
		Source: removed,
		Attrs:  map[string]string{"index": strconv.Itoa(index)},
	})
	return nil
}

// ToggleOracle flips the enabled flag of the registration at index without
// removing its history. Owner-gated.
func (a *PairAggregator) ToggleOracle(caller feeds.Account, pair feeds.Pair, index int, enabled bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.authorize(caller); err != nil {
		return err
	}
	if err := a.checkPair(pair); err != nil {
		return err
	}
	if index < 0 || index >= len(a.oracles) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(a.oracles))
	}

	a.oracles[index].Enabled = enabled
	a.bus.Publish(events.Event{
		Type:   events.TypeOracleToggled,
		Pair:   a.pair.String(),
		Source: a.oracles[index].Source.Name(),
		Attrs:  map[string]string{"enabled": strconv.FormatBool(enabled)},
	})
	return nil
}

// SetMaxDeviationBps updates the deviation ceiling. Owner-gated.
func (a *PairAggregator) SetMaxDeviationBps(caller feeds.Account, bps uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.authorize(caller); err != nil {
		return err
	}
	if bps > MaxDeviationCeiling {
		return fmt.Errorf("%w: %d", ErrInvalidDeviation, bps)
	}

	previous := a.maxDeviationBps
	a.maxDeviationBps = bps
	a.logger.Info("Deviation ceiling changed", "pair", a.pair.String(), "from", previous, "to", bps)
	a.bus.Publish(events.Event{
		Type: events.TypeDeviationCeilingChanged,
		Pair: a.pair.String(),
		Attrs: map[string]string{
			"from": strconv.FormatUint(uint64(previous), 10),
			"to":   strconv.FormatUint(uint64(bps), 10),
		},
	})
	return nil
}

// TransferOwnership hands administrative control to a new owner. Owner-gated.
func (a *PairAggregator) TransferOwnership(caller, newOwner feeds.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.authorize(caller); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return fmt.Errorf("%w: new owner", feeds.ErrZeroAddress)
	}

	previous := a.owner
	a.owner = newOwner
	a.bus.Publish(events.Event{
		Type:  events.TypeOwnershipTransferred,
		Pair:  a.pair.String(),
		Attrs: map[string]string{"from": string(previous), "to": string(newOwner)},
	})
	return nil
}

// UpgradeLogic swaps the statistic implementation in place. The registration
// list, deviation ceiling and owner are untouched. Upgrading to the already
// active version is a no-op. Owner-gated.
func (a *PairAggregator) UpgradeLogic(caller feeds.Account, logic Logic) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.authorize(caller); err != nil {
		return err
	}
	if logic == nil {
		return fmt.Errorf("%w", ErrNilLogic)
	}
	if logic.Version() == a.logic.Version() {
		return nil
	}

	previous := a.logic.Version()
	a.logic = logic
	a.logger.Info("Aggregator logic upgraded", "pair", a.pair.String(), "from", previous, "to", logic.Version())
	a.bus.Publish(events.Event{
		Type:  events.TypeLogicUpgraded,
		Pair:  a.pair.String(),
		Attrs: map[string]string{"from": previous, "to": logic.Version()},
	})
	return nil
}

// ComputeQuoteAverage converts amount via the truncated arithmetic mean of all
// contributing quotes.
func (a *PairAggregator) ComputeQuoteAverage(ctx context.Context, amount decimal.Decimal, pair feeds.Pair) (decimal.Decimal, error) {
	return a.compute(ctx, amount, pair, methodAverage)
}

// ComputeQuoteMedian converts amount via the median of all contributing quotes.
func (a *PairAggregator) ComputeQuoteMedian(ctx context.Context, amount decimal.Decimal, pair feeds.Pair) (decimal.Decimal, error) {
	return a.compute(ctx, amount, pair, methodMedian)
}

// contribution is one source quote that survived the fan-out.
type contribution struct {
	source string
	amount decimal.Decimal
}

// compute runs the shared aggregation algorithm:
// fan out to enabled sources, drop individual failures, compute the statistic,
// then reject the whole call if any contributing quote deviates beyond the
// ceiling.
func (a *PairAggregator) compute(ctx context.Context, amount decimal.Decimal, pair feeds.Pair, method string) (decimal.Decimal, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		metrics.RecordQuoteRequest(a.pair.String(), method, status, time.Since(start))
	}()

	a.mu.RLock()
	enabled := make([]feeds.Source, 0, len(a.oracles))
	for _, reg := range a.oracles {
		if reg.Enabled {
			enabled = append(enabled, reg.Source)
		}
	}
	maxBps := a.maxDeviationBps
	logic := a.logic
	a.mu.RUnlock()

	if !pair.Equal(a.pair) {
		status = "pair_mismatch"
		return decimal.Zero, fmt.Errorf("%w: got %s, serving %s", ErrPairMismatch, pair, a.pair)
	}

	// Fan out. A source that cannot answer is excluded from this call's
	// contributing set instead of aborting the computation.
	contributions := make([]contribution, 0, len(enabled))
	for _, src := range enabled {
		out, err := src.GetQuote(ctx, amount, pair)
		if err != nil {
			a.logger.Warn("Source quote failed, excluding from aggregation",
				"pair", a.pair.String(), "source", src.Name(), "error", err.Error())
			metrics.RecordAdapterFailure(src.Name(), failureReason(err))
			continue
		}
		contributions = append(contributions, contribution{source: src.Name(), amount: out})
	}

	if len(contributions) == 0 {
		status = "no_valid_quotes"
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoValidQuotes, a.pair)
	}

	values := make([]decimal.Decimal, len(contributions))
	for i, c := range contributions {
		values[i] = c.amount
	}

	var aggregate decimal.Decimal
	if method == methodMedian {
		aggregate = logic.Median(values)
	} else {
		aggregate = logic.Average(values)
	}

	// Deviation check. Unlike the fan-out above, a single source contradicting
	// the statistic rejects the entire call.
	for _, c := range contributions {
		bps, excessive := deviationBps(c.amount, aggregate)
		if excessive || bps > int64(maxBps) {
			status = "deviation_rejected"
			a.logger.Warn("Aggregation rejected: source deviates beyond ceiling",
				"pair", a.pair.String(), "source", c.source,
				"quote", c.amount.String(), "aggregate", aggregate.String(),
				"deviation_bps", bps, "ceiling_bps", maxBps)
			metrics.RecordDeviationRejection(a.pair.String())
			a.bus.Publish(events.Event{
				Type:   events.TypeDeviationRejected,
				Pair:   a.pair.String(),
				Source: c.source,
				Attrs: map[string]string{
					"quote":         c.amount.String(),
					"aggregate":     aggregate.String(),
					"deviation_bps": strconv.FormatInt(bps, 10),
				},
			})
			return decimal.Zero, fmt.Errorf("%w: %s deviates %d bps from %s (ceiling %d)",
				ErrDeviationExceeded, c.source, bps, aggregate, maxBps)
		}
	}

	for _, c := range contributions {
		metrics.RecordQuoteUsed(c.source, a.pair.String())
		a.bus.Publish(events.Event{
			Type:   events.TypeQuoteUsed,
			Pair:   a.pair.String(),
			Source: c.source,
			Attrs:  map[string]string{"amount": c.amount.String(), "method": method},
		})
	}

	a.logger.Debug("Quote aggregated",
		"pair", a.pair.String(), "method", method,
		"sources", len(contributions), "amount_out", aggregate.String())
	return aggregate, nil
}

// deviationBps returns the integer basis-point deviation of a quote from the
// aggregate. A nonzero quote against a zero aggregate has no finite deviation
// and is reported as excessive.
func deviationBps(quote, aggregate decimal.Decimal) (int64, bool) {
	if aggregate.IsZero() {
		return 0, !quote.IsZero()
	}
	return quote.Sub(aggregate).Abs().
		Mul(decimal.NewFromInt(MaxDeviationCeiling)).
		Div(aggregate).
		Truncate(0).
		IntPart(), false
}

// failureReason maps adapter errors to a bounded metric label set.
func failureReason(err error) string {
	switch {
	case errors.Is(err, feeds.ErrStalePrice):
		return "stale_price"
	case errors.Is(err, feeds.ErrZeroPrice):
		return "zero_price"
	case errors.Is(err, feeds.ErrPairNotSet):
		return "pair_not_set"
	case errors.Is(err, feeds.ErrFeedUnavailable):
		return "feed_unavailable"
	default:
		return "other"
	}
}

// authorize checks the caller against the owner. Callers must hold a.mu.
func (a *PairAggregator) authorize(caller feeds.Account) error {
	if caller != a.owner {
		return fmt.Errorf("%w: %s", feeds.ErrUnauthorized, caller)
	}
	return nil
}

// checkPair verifies that an operation addresses the pair this aggregator
// serves. Callers must hold a.mu.
func (a *PairAggregator) checkPair(pair feeds.Pair) error {
	if !pair.Equal(a.pair) {
		return fmt.Errorf("%w: got %s, serving %s", ErrPairMismatch, pair, a.pair)
	}
	return nil
}

// indexOf returns the registration index of a source name, or -1.
// Callers must hold a.mu.
func (a *PairAggregator) indexOf(name string) int {
	for i, reg := range a.oracles {
		if reg.Source.Name() == name {
			return i
		}
	}
	return -1
}
