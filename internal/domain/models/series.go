package models

import "fmt"

// PriceSeries holds parallel date/price arrays. Index i of Dates corresponds
// to index i of Prices; both are always the same length.
type PriceSeries struct {
	Dates  []string  `json:"dates"`
	Prices []float64 `json:"prices"`
}

// Len returns the number of points in the series.
func (s PriceSeries) Len() int { return len(s.Dates) }

// PredictedSeries is a forecast with a confidence band. High and Low are
// parallel to Dates/Prices.
type PredictedSeries struct {
	Dates  []string  `json:"dates"`
	Prices []float64 `json:"prices"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
}

// ContinuousSeries is an actual+forecast splice ready for charting. The first
// point is the last actual observation, the rest is the forecast.
type ContinuousSeries struct {
	Dates  []string  `json:"dates"`
	Prices []float64 `json:"prices"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
}

// PredictionBundle pairs the actual history with the model forecast for one
// symbol. Predicted covers a time range strictly after Actual's last date.
type PredictionBundle struct {
	Symbol    string          `json:"symbol"`
	Actual    PriceSeries     `json:"actual"`
	Predicted PredictedSeries `json:"predicted"`
}

// Validate checks that every parallel array in the bundle agrees in length.
func (b *PredictionBundle) Validate() error {
	if len(b.Actual.Dates) != len(b.Actual.Prices) {
		return fmt.Errorf("actual dates/prices length mismatch")
	}
	p := b.Predicted
	if len(p.Dates) != len(p.Prices) {
		return fmt.Errorf("predicted dates/prices length mismatch")
	}
	if len(p.High) != len(p.Dates) || len(p.Low) != len(p.Dates) {
		return fmt.Errorf("predicted high/low length mismatch")
	}
	return nil
}
