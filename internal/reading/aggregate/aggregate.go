// Package aggregate folds a collection of readings into summary counters.
package aggregate

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/numeric"
	"github.com/smallbiznis/rentbook/internal/reading/consumption"
	"github.com/smallbiznis/rentbook/internal/reading/domain"
	"github.com/smallbiznis/rentbook/internal/reading/review"
)

// Aggregator computes Stats. It holds no state between calls.
type Aggregator struct {
	Calculator consumption.Calculator
}

// Readings summarises readings under the given scope. Negative item
// consumption contributes zero to the total and is counted in NegativeItems.
func (a Aggregator) Readings(readings []domain.MeterReading, scope domain.Scope) domain.Stats {
	stats := domain.Stats{
		TotalConsumption: decimal.Zero,
		Scope:            scope,
	}

	for _, reading := range readings {
		switch review.Resolve(reading) {
		case domain.ReviewStateNotFinalized:
			stats.NotFinalized++
		case domain.ReviewStateReviewed:
			stats.Reviewed++
		default:
			stats.NotReviewed++
		}

		for _, item := range reading.Items {
			res := a.Calculator.Of(item)
			if res.Negative {
				stats.NegativeItems++
				continue
			}
			stats.TotalConsumption = stats.TotalConsumption.Add(res.Value)
		}
	}

	stats.TotalConsumptionDisplay = numeric.Display(stats.TotalConsumption)
	return stats
}

// Readings summarises with a diagnostics-free calculator.
func Readings(readings []domain.MeterReading, scope domain.Scope) domain.Stats {
	return Aggregator{}.Readings(readings, scope)
}
