package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgkafka "MarketPulse/pkg/kafka"
)

// KafkaQuotesHandler consumes tick messages off the bus and fans them into
// the quote store, the history store, and the push hub.
type KafkaQuotesHandler struct {
	topic   string
	quotes  domrepo.QuoteStore
	history domrepo.HistoryStore
	hub     domrepo.Broadcaster
	metrics domrepo.Metrics
}

func NewKafkaQuotesHandler(topic string, quotes domrepo.QuoteStore, history domrepo.HistoryStore, hub domrepo.Broadcaster, metrics domrepo.Metrics) *KafkaQuotesHandler {
	return &KafkaQuotesHandler{topic: topic, quotes: quotes, history: history, hub: hub, metrics: metrics}
}

func (h *KafkaQuotesHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c, v}
func (h *KafkaQuotesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.T, 0)).Seconds())

	tick := &models.Tick{Symbol: m.Symbol, Timestamp: m.T, Price: m.C, Volume: m.V}

	if err := h.quotes.SaveTick(ctx, tick); err != nil {
		h.metrics.RecordError("consumer_quote_store")
		return err
	}
	if err := h.history.Append(ctx, tick); err != nil {
		h.metrics.RecordError("consumer_history_store")
		return err
	}
	h.metrics.RecordLastPrice(m.Symbol, m.C)

	h.broadcast(ctx, m.Symbol)
	return nil
}

// broadcast pushes the updated quote to live-prices subscribers. A push
// failure never fails the ingest; subscribers fall back to polling.
func (h *KafkaQuotesHandler) broadcast(ctx context.Context, symbol string) {
	if h.hub == nil {
		return
	}
	q, err := h.quotes.Quote(ctx, symbol)
	if err != nil || q == nil {
		return
	}
	env, err := models.NewEnvelope(models.EnvelopeLivePrices, map[string]models.Quote{q.Symbol: *q})
	if err != nil {
		return
	}
	h.hub.Broadcast("live-prices", env)
}

var _ pkgkafka.MessageHandler = (*KafkaQuotesHandler)(nil)
