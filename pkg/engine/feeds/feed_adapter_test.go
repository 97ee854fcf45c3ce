package feeds

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimblefi/quotefuse/pkg/engine/events"
	"github.com/nimblefi/quotefuse/pkg/logging"
)

const owner = Account("ops")

var testPair = NewPair("USDC", "ETH")

func newFeedAdapter(t *testing.T, store FeedStore) *FeedAdapter {
	t.Helper()
	adapter, err := NewFeedAdapter("chainlink", owner, store, nil, logging.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, adapter.SetPairKey(owner, testPair, "usdc-eth"))
	return adapter
}

func TestFeedAdapter_NormalizesDecimals(t *testing.T) {
	store := NewStaticFeedStore()
	// Price 0.5 quote per base at 8-decimal native precision.
	store.Set("usdc-eth", decimal.NewFromInt(50_000_000), 8, time.Now())
	adapter := newFeedAdapter(t, store)

	// 2e18 base units at price 0.5 convert to 1e18 quote units.
	amountIn := decimal.New(2, 18)
	out, err := adapter.GetQuote(context.Background(), amountIn, testPair)
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.New(1, 18)), "got %s", out)
}

func TestFeedAdapter_TruncatesOutput(t *testing.T) {
	store := NewStaticFeedStore()
	store.Set("usdc-eth", decimal.NewFromInt(33_333_333), 8, time.Now())
	adapter := newFeedAdapter(t, store)

	out, err := adapter.GetQuote(context.Background(), decimal.NewFromInt(3), testPair)
	require.NoError(t, err)
	// 33333333 * 3 / 1e8 = 0.99999999, truncated to 0.
	assert.True(t, out.IsZero(), "got %s", out)
}

func TestFeedAdapter_PairNotSet(t *testing.T) {
	store := NewStaticFeedStore()
	adapter := newFeedAdapter(t, store)

	_, err := adapter.GetQuote(context.Background(), decimal.NewFromInt(1), NewPair("WBTC", "ETH"))
	require.ErrorIs(t, err, ErrPairNotSet)
}

func TestFeedAdapter_ZeroPrice(t *testing.T) {
	store := NewStaticFeedStore()
	store.Set("usdc-eth", decimal.Zero, 8, time.Now())
	adapter := newFeedAdapter(t, store)

	_, err := adapter.GetQuote(context.Background(), decimal.NewFromInt(1), testPair)
	require.ErrorIs(t, err, ErrZeroPrice)
}

func TestFeedAdapter_StalePrice(t *testing.T) {
	store := NewStaticFeedStore()
	store.Set("usdc-eth", decimal.NewFromInt(50_000_000), 8, time.Now().Add(-MaxPriceAge-time.Minute))
	adapter := newFeedAdapter(t, store)

	_, err := adapter.GetQuote(context.Background(), decimal.NewFromInt(1), testPair)
	require.ErrorIs(t, err, ErrStalePrice)
}

func TestFeedAdapter_FreshWithinWindow(t *testing.T) {
	store := NewStaticFeedStore()
	store.Set("usdc-eth", decimal.NewFromInt(50_000_000), 8, time.Now().Add(-MaxPriceAge+time.Minute))
	adapter := newFeedAdapter(t, store)

	_, err := adapter.GetQuote(context.Background(), decimal.NewFromInt(100), testPair)
	require.NoError(t, err)
}

func TestFeedAdapter_NegativeAmount(t *testing.T) {
	store := NewStaticFeedStore()
	store.Set("usdc-eth", decimal.NewFromInt(50_000_000), 8, time.Now())
	adapter := newFeedAdapter(t, store)

	_, err := adapter.GetQuote(context.Background(), decimal.NewFromInt(-1), testPair)
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestNewFeedAdapter_NilStore(t *testing.T) {
	_, err := NewFeedAdapter("chainlink", owner, nil, nil, logging.NewNoopLogger())
	require.ErrorIs(t, err, ErrZeroAddress)

	_, err = NewFeedAdapter("chainlink", ZeroAccount, NewStaticFeedStore(), nil, logging.NewNoopLogger())
	require.ErrorIs(t, err, ErrZeroAddress)
}

func TestSetPairKey_Gating(t *testing.T) {
	adapter, err := NewFeedAdapter("chainlink", owner, NewStaticFeedStore(), nil, logging.NewNoopLogger())
	require.NoError(t, err)

	require.ErrorIs(t, adapter.SetPairKey(Account("intruder"), testPair, "usdc-eth"), ErrUnauthorized)
	require.ErrorIs(t, adapter.SetPairKey(owner, testPair, ""), ErrEmptyKey)
	require.ErrorIs(t, adapter.SetPairKey(owner, Pair{}, "usdc-eth"), ErrZeroAddress)

	require.NoError(t, adapter.SetPairKey(owner, testPair, "usdc-eth"))
	key, ok := adapter.PairKey(testPair)
	require.True(t, ok)
	assert.Equal(t, "usdc-eth", key)
}

func TestSetPairKey_EmitsEvent(t *testing.T) {
	bus := events.NewBus(logging.NewNoopLogger())
	ch := make(chan events.Event, 1)
	bus.Subscribe(ch)

	adapter, err := NewFeedAdapter("chainlink", owner, NewStaticFeedStore(), bus, logging.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, adapter.SetPairKey(owner, testPair, "usdc-eth"))

	select {
	case evt := <-ch:
		assert.Equal(t, events.TypePairKeySet, evt.Type)
		assert.Equal(t, testPair.String(), evt.Pair)
		assert.Equal(t, "chainlink", evt.Source)
		assert.Equal(t, "usdc-eth", evt.Attrs["key"])
	default:
		t.Fatal("expected pair_key_set event")
	}
}

func TestAdapterTransferOwnership(t *testing.T) {
	adapter, err := NewFeedAdapter("chainlink", owner, NewStaticFeedStore(), nil, logging.NewNoopLogger())
	require.NoError(t, err)
	newOwner := Account("treasury")

	require.ErrorIs(t, adapter.TransferOwnership(newOwner, newOwner), ErrUnauthorized)
	require.ErrorIs(t, adapter.TransferOwnership(owner, ZeroAccount), ErrZeroAddress)

	require.NoError(t, adapter.TransferOwnership(owner, newOwner))
	assert.Equal(t, newOwner, adapter.Owner())

	require.ErrorIs(t, adapter.SetPairKey(owner, testPair, "usdc-eth"), ErrUnauthorized)
	require.NoError(t, adapter.SetPairKey(newOwner, testPair, "usdc-eth"))
}
