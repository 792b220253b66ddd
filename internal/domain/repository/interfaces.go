package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
)

// MarketStream is the upstream tick feed the server side ingests from.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher fans ticks into the message bus.
type Publisher interface {
	Publish(ctx context.Context, t *models.Tick) error
	Close() error
}

// QuoteStore holds the latest quote and prediction state per symbol.
type QuoteStore interface {
	SaveTick(ctx context.Context, t *models.Tick) error
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, error)
	SavePrediction(ctx context.Context, bundle *models.PredictionBundle) error
	Prediction(ctx context.Context, symbol string) (*models.PredictionBundle, error)
	SaveSnapshots(ctx context.Context, kind string, snaps []models.MetricSnapshot) error
	Snapshots(ctx context.Context, kind string) ([]models.MetricSnapshot, error)
	LastUpdate(ctx context.Context, symbol string) (*time.Time, error)
	Close() error
}

// HistoryStore persists tick history and serves chartable series.
type HistoryStore interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, t *models.Tick) error
	Series(ctx context.Context, symbol string, from, to time.Time, limit int) (models.PriceSeries, error)
	Health(ctx context.Context) error
	Close() error
}

// Broadcaster pushes envelopes to subscribed push-channel clients.
type Broadcaster interface {
	Broadcast(topic string, env *models.StreamEnvelope)
}

// Metrics records operational measurements.
type Metrics interface {
	RecordChannelState(topic string, state int)
	RecordPoll(topic, outcome string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordStaleness(symbol string, seconds float64)
	RecordLatency(op string, seconds float64)
}
