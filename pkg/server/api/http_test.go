package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimblefi/quotefuse/pkg/engine/feeds"
	"github.com/nimblefi/quotefuse/pkg/engine/registry"
	"github.com/nimblefi/quotefuse/pkg/logging"
)

const owner = feeds.Account("ops")

// stubSource is a quote source returning a fixed amount or error.
type stubSource struct {
	name string
	out  decimal.Decimal
	err  error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) GetQuote(_ context.Context, _ decimal.Decimal, _ feeds.Pair) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.out, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg, err := registry.New(owner, nil, logging.NewNoopLogger())
	require.NoError(t, err)

	_, err = reg.CreateAggregator(owner, feeds.NewPair("USDC", "ETH"), []feeds.Source{
		&stubSource{name: "a", out: decimal.NewFromInt(100)},
		&stubSource{name: "b", out: decimal.NewFromInt(101)},
		&stubSource{name: "c", out: decimal.NewFromInt(103)},
	}, 500)
	require.NoError(t, err)

	_, err = reg.CreateAggregator(owner, feeds.NewPair("WBTC", "ETH"), []feeds.Source{
		&stubSource{name: "dead", err: feeds.ErrStalePrice},
	}, 500)
	require.NoError(t, err)

	return NewServer(":0", reg, logging.NewNoopLogger())
}

func get(t *testing.T, server *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	switch req.URL.Path {
	case "/v1/quote":
		server.handleQuote(rec, req)
	case "/v1/pairs":
		server.handlePairs(rec, req)
	case "/health":
		server.handleHealth(rec, req)
	}
	return rec
}

func TestHandleQuote_OK(t *testing.T) {
	server := newTestServer(t)

	rec := get(t, server, "/v1/quote?base=USDC&quote=ETH&amount=1&method=average")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp quoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "USDC/ETH", resp.Pair)
	assert.Equal(t, "average", resp.Method)
	assert.Equal(t, "101", resp.AmountOut)

	rec = get(t, server, "/v1/quote?base=USDC&quote=ETH&amount=1&method=median")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "101", resp.AmountOut)
}

func TestHandleQuote_BadRequest(t *testing.T) {
	server := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, get(t, server, "/v1/quote?quote=ETH&amount=1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, server, "/v1/quote?base=USDC&quote=ETH&amount=nope").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, server, "/v1/quote?base=USDC&quote=ETH&amount=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, server, "/v1/quote?base=USDC&quote=ETH&amount=1&method=mode").Code)
}

func TestHandleQuote_NotFound(t *testing.T) {
	server := newTestServer(t)

	rec := get(t, server, "/v1/quote?base=DOGE&quote=ETH&amount=1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleQuote_Unavailable(t *testing.T) {
	server := newTestServer(t)

	// All sources for the pair fail: price unavailable right now, not a 404.
	rec := get(t, server, "/v1/quote?base=WBTC&quote=ETH&amount=1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlePairs(t *testing.T) {
	server := newTestServer(t)

	rec := get(t, server, "/v1/pairs")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []pairInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	for _, info := range infos {
		assert.NotEmpty(t, info.Handle)
		assert.Equal(t, "v1", info.LogicVersion)
		assert.Equal(t, uint32(500), info.MaxDeviationBps)
	}
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t)

	rec := get(t, server, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
