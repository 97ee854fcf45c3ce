package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimblefi/quotefuse/pkg/logging"
)

func TestParseFeedDocument(t *testing.T) {
	body := []byte(`{"data":{"price":"1850.42","updated_at":1700000000}}`)
	ep := FeedEndpoint{
		PricePath: "data.price",
		TimePath:  "data.updated_at",
		Decimals:  8,
	}

	data, err := parseFeedDocument(body, ep)
	require.NoError(t, err)
	assert.True(t, data.Price.Equal(decimal.NewFromInt(185_042_000_000)), "1850.42 at 8 decimals, got %s", data.Price)
	assert.Equal(t, int32(8), data.Decimals)
	assert.Equal(t, time.Unix(1_700_000_000, 0), data.ObservedAt)
}

func TestParseFeedDocument_RFC3339Time(t *testing.T) {
	body := []byte(`{"price":2.5,"time":"2026-08-30T10:00:00Z"}`)
	ep := FeedEndpoint{PricePath: "price", TimePath: "time", Decimals: 2}

	data, err := parseFeedDocument(body, ep)
	require.NoError(t, err)
	assert.True(t, data.Price.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, 2026, data.ObservedAt.Year())
}

func TestParseFeedDocument_Invalid(t *testing.T) {
	ep := FeedEndpoint{PricePath: "price", Decimals: 2}

	_, err := parseFeedDocument([]byte(`{"other":1}`), ep)
	require.ErrorIs(t, err, ErrInvalidFeedResponse)

	_, err = parseFeedDocument([]byte(`{"price":"not-a-number"}`), ep)
	require.ErrorIs(t, err, ErrInvalidFeedResponse)

	ep.TimePath = "time"
	_, err = parseFeedDocument([]byte(`{"price":"1.0"}`), ep)
	require.ErrorIs(t, err, ErrInvalidFeedResponse)
}

func TestHTTPFeedStore_Latest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"price":"0.5"}`))
	}))
	defer server.Close()

	store := NewHTTPFeedStore("test", map[string]FeedEndpoint{
		"usdc-eth": {URL: server.URL, PricePath: "price", Decimals: 8},
	}, 0, logging.NewNoopLogger())

	data, err := store.Latest(context.Background(), "usdc-eth")
	require.NoError(t, err)
	assert.True(t, data.Price.Equal(decimal.NewFromInt(50_000_000)))
	assert.WithinDuration(t, time.Now(), data.ObservedAt, time.Minute)

	_, err = store.Latest(context.Background(), "unknown-key")
	require.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestHTTPFeedStore_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := NewHTTPFeedStore("test", map[string]FeedEndpoint{
		"usdc-eth": {URL: server.URL, PricePath: "price", Decimals: 8},
	}, 0, logging.NewNoopLogger())

	_, err := store.Latest(context.Background(), "usdc-eth")
	require.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestHTTPFeedStore_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := NewHTTPFeedStore("test", map[string]FeedEndpoint{
		"usdc-eth": {URL: server.URL, PricePath: "price", Decimals: 8},
	}, 0, logging.NewNoopLogger())

	for i := 0; i < 10; i++ {
		_, err := store.Latest(context.Background(), "usdc-eth")
		require.Error(t, err)
	}

	assert.LessOrEqual(t, hits, 5, "breaker must stop hammering a failing upstream")
}
