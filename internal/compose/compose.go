// Package compose splices actual and forecast series into continuous,
// chartable sequences.
package compose

import "MarketPulse/internal/domain/models"

// Continuous splices the last actual observation onto the head of the
// forecast so the chart line and its confidence band start from a single
// anchor point instead of a discontinuous jump.
//
// Returns nil when actual is empty: there is nothing to anchor the forecast
// to. Inputs are never mutated; every parallel array in the result has length
// len(predicted)+1.
func Continuous(actual models.PriceSeries, predicted models.PredictedSeries) *models.ContinuousSeries {
	if actual.Len() == 0 {
		return nil
	}

	anchorDate := actual.Dates[len(actual.Dates)-1]
	anchorPrice := actual.Prices[len(actual.Prices)-1]

	n := len(predicted.Dates)
	out := &models.ContinuousSeries{
		Dates:  make([]string, 0, n+1),
		Prices: make([]float64, 0, n+1),
		High:   make([]float64, 0, n+1),
		Low:    make([]float64, 0, n+1),
	}

	out.Dates = append(append(out.Dates, anchorDate), predicted.Dates...)
	out.Prices = append(append(out.Prices, anchorPrice), predicted.Prices...)
	// The band collapses to the anchor price at its start
	out.High = append(append(out.High, anchorPrice), predicted.High...)
	out.Low = append(append(out.Low, anchorPrice), predicted.Low...)

	return out
}

// Bundle composes a full prediction bundle, or nil when the bundle has no
// actual history yet.
func Bundle(b *models.PredictionBundle) *models.ContinuousSeries {
	if b == nil {
		return nil
	}
	return Continuous(b.Actual, b.Predicted)
}
