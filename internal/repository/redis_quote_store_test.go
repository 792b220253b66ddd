package repository

import (
	"context"
	"fmt"
	"testing"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/cache"
)

// The store is exercised against the in-memory cache, which shares the
// JSON round-trip and miss semantics of the Redis implementation.
func newTestStore(t *testing.T) *RedisQuoteStore {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })
	return &RedisQuoteStore{cache: mc}
}

func TestQuoteStoreSaveTick(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveTick(ctx, &models.Tick{Symbol: "aapl", Timestamp: 1700000000, Price: 100, Volume: 5})
	if err != nil {
		t.Fatalf("save tick: %v", err)
	}

	q, err := s.Quote(ctx, "AAPL")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q == nil || q.Price == nil || *q.Price != 100 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if q.ChangePercent != nil {
		t.Fatalf("first tick must not carry a change percent")
	}
	if q.ObservedAt.Unix() != 1700000000 {
		t.Fatalf("unexpected observedAt %v", q.ObservedAt)
	}

	// Second tick computes the change against the previous price.
	if err := s.SaveTick(ctx, &models.Tick{Symbol: "AAPL", Timestamp: 1700000060, Price: 110, Volume: 5}); err != nil {
		t.Fatalf("save tick: %v", err)
	}
	q, _ = s.Quote(ctx, "AAPL")
	if q.ChangePercent == nil || *q.ChangePercent < 9.99 || *q.ChangePercent > 10.01 {
		t.Fatalf("unexpected change percent %v", q.ChangePercent)
	}
}

func TestQuoteStoreMissIsNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	q, err := s.Quote(ctx, "TSLA")
	if err != nil || q != nil {
		t.Fatalf("expected nil quote on miss, got %+v (%v)", q, err)
	}
	b, err := s.Prediction(ctx, "TSLA")
	if err != nil || b != nil {
		t.Fatalf("expected nil prediction on miss, got %+v (%v)", b, err)
	}
	last, err := s.LastUpdate(ctx, "TSLA")
	if err != nil || last != nil {
		t.Fatalf("expected nil last update on miss, got %v (%v)", last, err)
	}
}

func TestQuoteStoreQuotesSkipsAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveTick(ctx, &models.Tick{Symbol: "AAPL", Timestamp: 1700000000, Price: 100}); err != nil {
		t.Fatalf("save tick: %v", err)
	}

	quotes, err := s.Quotes(ctx, []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("expected only observed symbols, got %v", quotes)
	}
	if _, ok := quotes["AAPL"]; !ok {
		t.Fatalf("AAPL missing from %v", quotes)
	}
}

func TestQuoteStorePredictionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bundle := &models.PredictionBundle{
		Symbol: "aapl",
		Predicted: models.PredictedSeries{
			Dates:  []string{"2024-01-03"},
			Prices: []float64{103},
			High:   []float64{106},
			Low:    []float64{101},
		},
	}
	if err := s.SavePrediction(ctx, bundle); err != nil {
		t.Fatalf("save prediction: %v", err)
	}

	got, err := s.Prediction(ctx, "AAPL")
	if err != nil {
		t.Fatalf("prediction: %v", err)
	}
	if got == nil || len(got.Predicted.Prices) != 1 || got.Predicted.Prices[0] != 103 {
		t.Fatalf("unexpected bundle %+v", got)
	}

	if err := s.SavePrediction(ctx, nil); err == nil {
		t.Fatalf("nil bundle must be rejected")
	}
}

func TestQuoteStoreSnapshotWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < snapshotWindow+5; i++ {
		snap := models.MetricSnapshot{
			Timestamp: fmt.Sprintf("2024-01-01T00:00:%02dZ", i%60),
			Metrics:   []models.MetricValue{{Name: "rsi", Value: float64(i)}},
		}
		if err := s.SaveSnapshots(ctx, "backtests", []models.MetricSnapshot{snap}); err != nil {
			t.Fatalf("save snapshots: %v", err)
		}
	}

	snaps, err := s.Snapshots(ctx, "backtests")
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snaps) != snapshotWindow {
		t.Fatalf("window not trimmed: %d", len(snaps))
	}
	// Oldest entries fall off; the newest survives.
	last := snaps[len(snaps)-1]
	if last.Metrics[0].Value != float64(snapshotWindow+4) {
		t.Fatalf("unexpected newest snapshot %+v", last)
	}
}
