package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

type memQuoteStore struct {
	mu          sync.Mutex
	quotes      map[string]models.Quote
	predictions map[string]*models.PredictionBundle
	snapshots   map[string][]models.MetricSnapshot
}

func newMemQuoteStore() *memQuoteStore {
	return &memQuoteStore{
		quotes:      make(map[string]models.Quote),
		predictions: make(map[string]*models.PredictionBundle),
		snapshots:   make(map[string][]models.MetricSnapshot),
	}
}

func (s *memQuoteStore) SaveTick(ctx context.Context, t *models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	price := t.Price
	s.quotes[t.Symbol] = models.Quote{
		Symbol:     t.Symbol,
		Price:      &price,
		ObservedAt: time.Unix(t.Timestamp, 0).UTC(),
	}
	return nil
}

func (s *memQuoteStore) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (s *memQuoteStore) Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	out := make(map[string]models.Quote)
	for _, sym := range symbols {
		if q, _ := s.Quote(ctx, sym); q != nil {
			out[sym] = *q
		}
	}
	return out, nil
}

func (s *memQuoteStore) SavePrediction(ctx context.Context, b *models.PredictionBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[b.Symbol] = b
	return nil
}

func (s *memQuoteStore) Prediction(ctx context.Context, symbol string) (*models.PredictionBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.predictions[symbol], nil
}

func (s *memQuoteStore) SaveSnapshots(ctx context.Context, kind string, snaps []models.MetricSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[kind] = append(s.snapshots[kind], snaps...)
	return nil
}

func (s *memQuoteStore) Snapshots(ctx context.Context, kind string) ([]models.MetricSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[kind], nil
}

func (s *memQuoteStore) LastUpdate(ctx context.Context, symbol string) (*time.Time, error) {
	q, _ := s.Quote(ctx, symbol)
	if q == nil {
		return nil, nil
	}
	ts := q.ObservedAt
	return &ts, nil
}

func (s *memQuoteStore) Close() error { return nil }

type memHistoryStore struct {
	mu    sync.Mutex
	ticks []*models.Tick
}

func (s *memHistoryStore) Init(ctx context.Context) error { return nil }

func (s *memHistoryStore) Append(ctx context.Context, t *models.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, t)
	return nil
}

func (s *memHistoryStore) Series(ctx context.Context, symbol string, from, to time.Time, limit int) (models.PriceSeries, error) {
	return models.PriceSeries{}, nil
}

func (s *memHistoryStore) Health(ctx context.Context) error { return nil }
func (s *memHistoryStore) Close() error                     { return nil }

func (s *memHistoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

type captureHub struct {
	mu     sync.Mutex
	topics []string
	envs   []*models.StreamEnvelope
}

func (h *captureHub) Broadcast(topic string, env *models.StreamEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.topics = append(h.topics, topic)
	h.envs = append(h.envs, env)
}

type nopMetrics struct{}

func (nopMetrics) RecordChannelState(topic string, state int)     {}
func (nopMetrics) RecordPoll(topic, outcome string)               {}
func (nopMetrics) RecordError(kind string)                        {}
func (nopMetrics) RecordLastPrice(symbol string, price float64)   {}
func (nopMetrics) RecordStaleness(symbol string, seconds float64) {}
func (nopMetrics) RecordLatency(op string, seconds float64)       {}

func TestKafkaQuotesHandlerFansIn(t *testing.T) {
	quotes := newMemQuoteStore()
	history := &memHistoryStore{}
	hub := &captureHub{}
	h := NewKafkaQuotesHandler("mp_quotes", quotes, history, hub, nopMetrics{})

	msg := []byte(`{"symbol":"AAPL","t":1700000000,"c":187.5,"v":12}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	q, _ := quotes.Quote(context.Background(), "AAPL")
	if q == nil || q.Price == nil || *q.Price != 187.5 {
		t.Fatalf("quote not stored: %+v", q)
	}
	if history.count() != 1 {
		t.Fatalf("history not appended")
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.envs) != 1 || hub.topics[0] != "live-prices" {
		t.Fatalf("expected one live-prices broadcast, got %v", hub.topics)
	}
	if hub.envs[0].Type != models.EnvelopeLivePrices {
		t.Fatalf("unexpected envelope type %q", hub.envs[0].Type)
	}
	raw, err := json.Marshal(hub.envs[0])
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	payload, err := models.DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("broadcast envelope must round-trip: %v", err)
	}
	if payload.Quotes["AAPL"].Symbol != "AAPL" {
		t.Fatalf("unexpected broadcast payload %+v", payload)
	}
}

func TestKafkaQuotesHandlerNormalizesMilliseconds(t *testing.T) {
	quotes := newMemQuoteStore()
	h := NewKafkaQuotesHandler("mp_quotes", quotes, &memHistoryStore{}, nil, nopMetrics{})

	msg := []byte(`{"symbol":"AAPL","t":1700000000000,"c":187.5,"v":12}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	q, _ := quotes.Quote(context.Background(), "AAPL")
	if q.ObservedAt.Unix() != 1700000000 {
		t.Fatalf("millisecond timestamp not normalized: %v", q.ObservedAt)
	}
}

func TestKafkaQuotesHandlerRejectsMalformed(t *testing.T) {
	h := NewKafkaQuotesHandler("mp_quotes", newMemQuoteStore(), &memHistoryStore{}, nil, nopMetrics{})
	if err := h.Handle(context.Background(), []byte(`{"symbol"`)); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}
