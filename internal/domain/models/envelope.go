package models

import (
	"encoding/json"
	"fmt"
)

// Stream envelope type tags.
const (
	EnvelopeLivePrices = "live_prices"
	EnvelopePrediction = "prediction"
	EnvelopeMetrics    = "metrics"
)

// StreamEnvelope is the wire frame of the push channel: either a tagged data
// variant or an error frame.
type StreamEnvelope struct {
	Type  string          `json:"type,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewEnvelope builds a tagged data frame around a payload.
func NewEnvelope(envType string, payload interface{}) (*StreamEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("envelope marshal: %w", err)
	}
	return &StreamEnvelope{Type: envType, Data: data}, nil
}

// DecodeEnvelope validates a raw push-channel frame and converts it into a
// TopicPayload. Invalid shapes and error frames return an error; callers
// treat that as a decode failure, not a disconnect.
func DecodeEnvelope(raw []byte) (*TopicPayload, error) {
	var env StreamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("envelope unmarshal: %w", err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("error frame: %s", env.Error)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("envelope %q has no data", env.Type)
	}

	switch env.Type {
	case EnvelopeLivePrices:
		var quotes map[string]Quote
		if err := json.Unmarshal(env.Data, &quotes); err != nil {
			return nil, fmt.Errorf("live_prices payload: %w", err)
		}
		return &TopicPayload{Quotes: quotes}, nil
	case EnvelopePrediction:
		var bundle PredictionBundle
		if err := json.Unmarshal(env.Data, &bundle); err != nil {
			return nil, fmt.Errorf("prediction payload: %w", err)
		}
		if err := bundle.Validate(); err != nil {
			return nil, fmt.Errorf("prediction payload: %w", err)
		}
		return &TopicPayload{Prediction: &bundle}, nil
	case EnvelopeMetrics:
		var snaps []MetricSnapshot
		if err := json.Unmarshal(env.Data, &snaps); err != nil {
			return nil, fmt.Errorf("metrics payload: %w", err)
		}
		return &TopicPayload{Snapshots: snaps}, nil
	default:
		return nil, fmt.Errorf("unknown envelope type %q", env.Type)
	}
}
