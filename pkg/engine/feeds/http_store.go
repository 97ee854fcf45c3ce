package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/nimblefi/quotefuse/pkg/logging"
	"github.com/nimblefi/quotefuse/pkg/metrics"
)

const (
	httpFeedTimeout = 10 * time.Second
	maxResponseSize = 1 << 20 // 1 MiB
)

// FeedEndpoint describes where and how to read one price series.
type FeedEndpoint struct {
	// URL is the JSON document to fetch.
	URL string
	// PricePath is the gjson path of the decimal price value.
	PricePath string
	// TimePath is the optional gjson path of the observation timestamp
	// (unix seconds or RFC3339). When empty the fetch time is used.
	TimePath string
	// Decimals is the precision the price is normalized to.
	Decimals int32
}

// HTTPFeedStore fetches price observations from JSON HTTP endpoints, one per
// feed key. Fetches are rate limited and guarded by a circuit breaker so a
// misbehaving upstream cannot be hammered.
type HTTPFeedStore struct {
	name      string
	client    *http.Client
	endpoints map[string]FeedEndpoint
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[PriceData]
	logger    *logging.Logger
}

// Ensure HTTPFeedStore implements FeedStore interface.
var _ FeedStore = (*HTTPFeedStore)(nil)

// NewHTTPFeedStore creates an HTTP feed store.
// requestsPerSecond limits outgoing fetches; zero means no limit.
func NewHTTPFeedStore(name string, endpoints map[string]FeedEndpoint, requestsPerSecond float64, logger *logging.Logger) *HTTPFeedStore {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	store := &HTTPFeedStore{
		name:      name,
		client:    &http.Client{Timeout: httpFeedTimeout},
		endpoints: endpoints,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}

	store.breaker = gobreaker.NewCircuitBreaker[PriceData](gobreaker.Settings{
		Name:    "feed-" + name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			logger.Warn("Feed circuit breaker state change",
				"breaker", cbName, "from", from.String(), "to", to.String())
		},
	})

	return store
}

// Latest fetches the most recent observation for a feed key.
func (s *HTTPFeedStore) Latest(ctx context.Context, key string) (PriceData, error) {
	ep, ok := s.endpoints[key]
	if !ok {
		return PriceData{}, fmt.Errorf("%w: no endpoint for key %s", ErrFeedUnavailable, key)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return PriceData{}, fmt.Errorf("%w: rate limit wait: %w", ErrFeedUnavailable, err)
	}

	start := time.Now()
	data, err := s.breaker.Execute(func() (PriceData, error) {
		return s.fetch(ctx, ep)
	})
	if err != nil {
		metrics.RecordFeedFetch(s.name, "error", time.Since(start))
		return PriceData{}, err
	}
	metrics.RecordFeedFetch(s.name, "ok", time.Since(start))
	return data, nil
}

// fetch retrieves and parses one endpoint document.
func (s *HTTPFeedStore) fetch(ctx context.Context, ep FeedEndpoint) (PriceData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return PriceData{}, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return PriceData{}, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PriceData{}, fmt.Errorf("%w: status %d from %s", ErrFeedUnavailable, resp.StatusCode, ep.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return PriceData{}, fmt.Errorf("%w: %w", ErrInvalidFeedResponse, err)
	}

	return parseFeedDocument(body, ep)
}

// parseFeedDocument extracts price and observation time from a JSON document.
func parseFeedDocument(body []byte, ep FeedEndpoint) (PriceData, error) {
	priceResult := gjson.GetBytes(body, ep.PricePath)
	if !priceResult.Exists() {
		return PriceData{}, fmt.Errorf("%w: price path %q not found", ErrInvalidFeedResponse, ep.PricePath)
	}

	price, err := decimal.NewFromString(priceResult.String())
	if err != nil {
		return PriceData{}, fmt.Errorf("%w: price %q: %w", ErrInvalidFeedResponse, priceResult.String(), err)
	}

	observedAt := time.Now()
	if ep.TimePath != "" {
		timeResult := gjson.GetBytes(body, ep.TimePath)
		if !timeResult.Exists() {
			return PriceData{}, fmt.Errorf("%w: time path %q not found", ErrInvalidFeedResponse, ep.TimePath)
		}
		if timeResult.Type == gjson.Number {
			observedAt = time.Unix(timeResult.Int(), 0)
		} else {
			parsed, err := time.Parse(time.RFC3339, timeResult.String())
			if err != nil {
				return PriceData{}, fmt.Errorf("%w: time %q: %w", ErrInvalidFeedResponse, timeResult.String(), err)
			}
			observedAt = parsed
		}
	}

	return PriceData{
		Price:      price.Shift(ep.Decimals).Truncate(0),
		Decimals:   ep.Decimals,
		ObservedAt: observedAt,
	}, nil
}
