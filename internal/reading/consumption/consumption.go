// Package consumption derives per-item usage from a pair of meter indexes.
package consumption

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/numeric"
	"github.com/smallbiznis/rentbook/internal/reading/domain"
)

// Result is the usage of one item. Value is never clamped; Negative marks a
// new index below the previous one (meter reset or swap).
type Result struct {
	Value    decimal.Decimal
	Display  string
	Negative bool
}

// Calculator computes consumption, reporting dirty indexes through Parser.
type Calculator struct {
	Parser *numeric.Parser
}

func (c Calculator) Of(item domain.ReadingItem) Result {
	parser := c.Parser
	if parser == nil {
		parser = numeric.Default
	}

	newIndex := item.NewIndex
	next := parser.ParseIndex("newIndex", &newIndex).Value
	prev := parser.ParseIndex("previousIndex", item.PreviousIndex).Value

	value := next.Sub(prev)
	return Result{
		Value:    value,
		Display:  numeric.Display(value),
		Negative: value.IsNegative(),
	}
}

// Of computes consumption without diagnostics.
func Of(item domain.ReadingItem) Result {
	return Calculator{}.Of(item)
}
