package models

// MetricValue is one named metric inside a snapshot. Order within a snapshot
// is meaningful: sources deliver metrics pre-ranked, most salient first.
type MetricValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// MetricSnapshot is one timestamped metrics record, e.g. a backtest run or a
// feature-importance ranking.
type MetricSnapshot struct {
	Timestamp string        `json:"timestamp"`
	Metrics   []MetricValue `json:"metrics"`
}

// Lookup returns the value for a metric name, or (0, false) if absent.
func (s MetricSnapshot) Lookup(name string) (float64, bool) {
	for _, m := range s.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// TrendSeries is one metric projected across a window of snapshots. Values[i]
// is nil when the metric was absent from snapshot i.
type TrendSeries struct {
	Timestamps []string   `json:"timestamps"`
	Values     []*float64 `json:"values"`
}
