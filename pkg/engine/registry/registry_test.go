package registry

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimblefi/quotefuse/pkg/engine/aggregator"
	"github.com/nimblefi/quotefuse/pkg/engine/feeds"
	"github.com/nimblefi/quotefuse/pkg/logging"
)

const owner = feeds.Account("ops")

var testPair = feeds.NewPair("USDC", "ETH")

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

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(owner, nil, logging.NewNoopLogger())
	require.NoError(t, err)
	return reg
}

func testSources(values ...int64) []feeds.Source {
	sources := make([]feeds.Source, len(values))
	for i, v := range values {
		sources[i] = &stubSource{name: string(rune('a' + i)), out: decimal.NewFromInt(v)}
	}
	return sources
}

func TestCreateAggregator_DuplicateAndMirrorRejected(t *testing.T) {
	reg := newTestRegistry(t)

	handle, err := reg.CreateAggregator(owner, testPair, testSources(100), 500)
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	_, err = reg.CreateAggregator(owner, testPair, testSources(100), 500)
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = reg.CreateAggregator(owner, testPair.Mirror(), testSources(100), 500)
	require.ErrorIs(t, err, ErrAlreadyExists, "mirrored pair is the same logical pair")
}

func TestCreateAggregator_Gating(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.CreateAggregator(feeds.Account("intruder"), testPair, testSources(100), 500)
	require.ErrorIs(t, err, feeds.ErrUnauthorized)

	_, err = reg.CreateAggregator(owner, testPair, testSources(100), 10_001)
	require.ErrorIs(t, err, aggregator.ErrInvalidDeviation)

	_, err = reg.CreateAggregator(owner, testPair, nil, 500)
	require.ErrorIs(t, err, aggregator.ErrNoOracles)
}

func TestExistsAggregator_Lifecycle(t *testing.T) {
	reg := newTestRegistry(t)

	assert.False(t, reg.ExistsAggregator(testPair))

	handle, err := reg.CreateAggregator(owner, testPair, testSources(100), 500)
	require.NoError(t, err)
	assert.True(t, reg.ExistsAggregator(testPair))

	got, err := reg.Handle(testPair)
	require.NoError(t, err)
	assert.Equal(t, handle, got)

	require.NoError(t, reg.RemoveAggregator(owner, testPair))
	assert.False(t, reg.ExistsAggregator(testPair))

	_, err = reg.GetAggregator(testPair)
	require.ErrorIs(t, err, ErrNotFound)

	// Removal allows recreation with a fresh instance.
	recreated, err := reg.CreateAggregator(owner, testPair, testSources(100), 500)
	require.NoError(t, err)
	assert.NotEqual(t, handle, recreated, "a recreated instance gets a fresh handle")
}

func TestRemoveAggregator_NotFound(t *testing.T) {
	reg := newTestRegistry(t)

	require.ErrorIs(t, reg.RemoveAggregator(owner, testPair), ErrNotFound)
}

func TestQuote_ForwardsAndDistinguishesFailures(t *testing.T) {
	reg := newTestRegistry(t)

	// Unprovisioned pair surfaces as a lookup failure, not a consensus failure.
	_, err := reg.Quote(context.Background(), testPair, decimal.NewFromInt(1), false)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = reg.CreateAggregator(owner, testPair, testSources(100, 101, 103), 500)
	require.NoError(t, err)

	out, err := reg.Quote(context.Background(), testPair, decimal.NewFromInt(1), false)
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(101)))

	out, err = reg.Quote(context.Background(), testPair, decimal.NewFromInt(1), true)
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(101)))

	// A pair whose sources all fail surfaces the consensus failure unchanged.
	deadPair := feeds.NewPair("WBTC", "ETH")
	_, err = reg.CreateAggregator(owner, deadPair, []feeds.Source{
		&stubSource{name: "dead", err: feeds.ErrStalePrice},
	}, 500)
	require.NoError(t, err)

	_, err = reg.Quote(context.Background(), deadPair, decimal.NewFromInt(1), false)
	require.ErrorIs(t, err, aggregator.ErrNoValidQuotes)
}

func TestTransferAggregatorOwnership(t *testing.T) {
	reg := newTestRegistry(t)
	newOwner := feeds.Account("treasury")

	require.ErrorIs(t, reg.TransferAggregatorOwnership(owner, testPair, newOwner), ErrNotFound)

	_, err := reg.CreateAggregator(owner, testPair, testSources(100), 500)
	require.NoError(t, err)

	require.ErrorIs(t,
		reg.TransferAggregatorOwnership(feeds.Account("intruder"), testPair, newOwner),
		feeds.ErrUnauthorized)

	require.NoError(t, reg.TransferAggregatorOwnership(owner, testPair, newOwner))

	agg, err := reg.GetAggregator(testPair)
	require.NoError(t, err)
	assert.Equal(t, newOwner, agg.Owner())

	// Control is delegated: the registry can no longer administer the instance.
	require.ErrorIs(t,
		reg.TransferAggregatorOwnership(owner, testPair, feeds.Account("other")),
		feeds.ErrUnauthorized)

	// The registry's own ownership is untouched.
	assert.Equal(t, owner, reg.Owner())
}

func TestRegistryTransferOwnership(t *testing.T) {
	reg := newTestRegistry(t)
	newOwner := feeds.Account("treasury")

	require.ErrorIs(t, reg.TransferOwnership(owner, feeds.ZeroAccount), feeds.ErrZeroAddress)
	require.ErrorIs(t, reg.TransferOwnership(feeds.Account("intruder"), newOwner), feeds.ErrUnauthorized)

	require.NoError(t, reg.TransferOwnership(owner, newOwner))
	assert.Equal(t, newOwner, reg.Owner())

	_, err := reg.CreateAggregator(owner, testPair, testSources(100), 500)
	require.ErrorIs(t, err, feeds.ErrUnauthorized)
}

// versionedLogic delegates to StandardLogic under a different version tag.
type versionedLogic struct {
	aggregator.StandardLogic
	version string
}

func (l *versionedLogic) Version() string { return l.version }

func TestUpgradeAggregatorLogic(t *testing.T) {
	reg := newTestRegistry(t)

	require.ErrorIs(t,
		reg.UpgradeAggregatorLogic(owner, testPair, &versionedLogic{version: "v2"}),
		ErrNotFound)

	_, err := reg.CreateAggregator(owner, testPair, testSources(100, 101, 103), 500)
	require.NoError(t, err)

	ver, err := reg.LogicVersion(testPair)
	require.NoError(t, err)
	assert.Equal(t, "v1", ver)

	require.NoError(t, reg.UpgradeAggregatorLogic(owner, testPair, &versionedLogic{version: "v2"}))

	ver, err = reg.LogicVersion(testPair)
	require.NoError(t, err)
	assert.Equal(t, "v2", ver)

	// Configuration and handle survive the upgrade.
	agg, err := reg.GetAggregator(testPair)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), agg.MaxDeviationBps())
	assert.Len(t, agg.Oracles(), 3)

	out, err := reg.Quote(context.Background(), testPair, decimal.NewFromInt(1), false)
	require.NoError(t, err)
	assert.True(t, out.Equal(decimal.NewFromInt(101)))
}
