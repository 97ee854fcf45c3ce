package aggregator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Logic is the swappable statistic implementation of a pair aggregator.
// Configuration (registrations, deviation ceiling, owner) lives outside the
// logic, so an upgrade replaces the computation without touching stored state.
type Logic interface {
	// Average returns the integer-truncated arithmetic mean of the quotes.
	Average(quotes []decimal.Decimal) decimal.Decimal

	// Median returns the middle value for an odd count, or the truncated mean
	// of the two middle values for an even count.
	Median(quotes []decimal.Decimal) decimal.Decimal

	// Version identifies the logic revision for external verification.
	Version() string
}

// StandardLogic is the v1 statistic implementation.
type StandardLogic struct{}

// Ensure StandardLogic implements Logic interface.
var _ Logic = (*StandardLogic)(nil)

// NewStandardLogic creates the v1 logic.
func NewStandardLogic() *StandardLogic {
	return &StandardLogic{}
}

// Average returns the integer-truncated arithmetic mean.
func (l *StandardLogic) Average(quotes []decimal.Decimal) decimal.Decimal {
	if len(quotes) == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, q := range quotes {
		sum = sum.Add(q)
	}
	return sum.Div(decimal.NewFromInt(int64(len(quotes)))).Truncate(0)
}

// Median returns the sorted middle value, averaging the two middle values for
// an even count.
func (l *StandardLogic) Median(quotes []decimal.Decimal) decimal.Decimal {
	n := len(quotes)
	if n == 0 {
		return decimal.Zero
	}

	sorted := make([]decimal.Decimal, n)
	copy(sorted, quotes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	if n%2 == 1 {
		return sorted[n/2]
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(decimal.NewFromInt(2)).Truncate(0)
}

// Version returns the logic revision tag.
func (l *StandardLogic) Version() string {
	return "v1"
}
