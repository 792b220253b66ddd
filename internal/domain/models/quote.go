package models

import "time"

// Quote is the latest known state of one symbol. Price and ChangePercent are
// nil until the backend has observed at least one (two, for the change) ticks.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         *float64  `json:"price"`
	ChangePercent *float64  `json:"changePercent"`
	Volume        *float64  `json:"volume,omitempty"`
	ObservedAt    time.Time `json:"observedAt"`
}

// Tick is one raw upstream trade event, before it becomes a Quote.
type Tick struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix seconds
}

// TopicPayload is the merged value a supervisor exposes for one topic.
// Exactly one of the fields is set, depending on the topic kind.
type TopicPayload struct {
	Quotes     map[string]Quote  `json:"quotes,omitempty"`
	Prediction *PredictionBundle `json:"prediction,omitempty"`
	Snapshots  []MetricSnapshot  `json:"snapshots,omitempty"`
	Health     *HealthReport     `json:"health,omitempty"`
}
