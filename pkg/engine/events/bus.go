// Package events provides the notification bus for off-system observers.
package events

import (
	"sync"
	"time"

	"github.com/nimblefi/quotefuse/pkg/logging"
)

// Type identifies the kind of notification.
type Type string

const (
	// TypeInstanceCreated is emitted when the registry provisions a pair aggregator.
	TypeInstanceCreated Type = "instance_created"
	// TypeInstanceRemoved is emitted when the registry deregisters a pair aggregator.
	TypeInstanceRemoved Type = "instance_removed"
	// TypeOwnershipTransferred is emitted when administrative control changes hands.
	TypeOwnershipTransferred Type = "ownership_transferred"
	// TypeDeviationCeilingChanged is emitted when a pair's deviation ceiling changes.
	TypeDeviationCeilingChanged Type = "deviation_ceiling_changed"
	// TypeQuoteUsed is emitted per source quote that contributed to an aggregate.
	TypeQuoteUsed Type = "quote_used"
	// TypeDeviationRejected is emitted when an aggregation is rejected because a
	// source exceeded the deviation ceiling.
	TypeDeviationRejected Type = "deviation_rejected"
	// TypePairKeySet is emitted when an adapter maps a pair to a feed key.
	TypePairKeySet Type = "pair_key_set"
	// TypeOracleAdded is emitted when an adapter is registered for a pair.
	TypeOracleAdded Type = "oracle_added"
	// TypeOracleRemoved is emitted when an adapter registration is removed.
	TypeOracleRemoved Type = "oracle_removed"
	// TypeOracleToggled is emitted when an adapter registration is enabled or disabled.
	TypeOracleToggled Type = "oracle_toggled"
	// TypeLogicUpgraded is emitted when a pair aggregator's logic is swapped.
	TypeLogicUpgraded Type = "logic_upgraded"
)

// Event is a single notification. Pair and Source are string identifiers so
// observers need no engine types to consume the stream.
type Event struct {
	Type   Type
	Pair   string
	Source string
	Attrs  map[string]string
	At     time.Time
}

// Bus fans events out to subscriber channels. Publishing never blocks: a
// subscriber whose channel is full misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
	logger      *logging.Logger
}

// NewBus creates an event bus.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &Bus{logger: logger}
}

// Subscribe adds a subscriber channel.
func (b *Bus) Subscribe(ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, ch)
}

// Unsubscribe removes a subscriber channel.
func (b *Bus) Unsubscribe(ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, subscriber := range b.subscribers {
		if subscriber == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers. Safe on a nil bus so components
// can run without observers attached.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			// Channel full, skip
			b.logger.Warn("Subscriber channel full, dropping event",
				"type", string(evt.Type), "pair", evt.Pair)
		}
	}
}
