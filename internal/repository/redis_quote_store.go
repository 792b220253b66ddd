package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/util"
)

// Keyspace mirrors the dashboard backend: live:price:{symbol} for the latest
// quote, prediction:{symbol} for the forecast bundle, snapshots:{kind} for
// metric snapshot windows.
const (
	keyLivePrice  = "live:price:"
	keyPrediction = "prediction:"
	keySnapshots  = "snapshots:"

	snapshotWindow = 50 // snapshots retained per kind
)

// RedisQuoteStore implements QuoteStore on a cache service, Redis in
// production and the in-memory cache in tests.
type RedisQuoteStore struct {
	cache cache.Service
}

// NewRedisQuoteStore creates a cache-backed quote store.
func NewRedisQuoteStore(c cache.Service) repository.QuoteStore {
	return &RedisQuoteStore{cache: c}
}

// SaveTick folds one tick into the symbol's quote. ChangePercent appears once
// a previous price exists to compare against.
func (s *RedisQuoteStore) SaveTick(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	symbol := util.UpperSymbol(t.Symbol)

	q := models.Quote{Symbol: symbol}
	prev, err := s.Quote(ctx, symbol)
	if err != nil {
		return err
	}

	price := t.Price
	q.Price = &price
	if t.Volume > 0 {
		volume := t.Volume
		q.Volume = &volume
	}
	if prev != nil && prev.Price != nil && *prev.Price != 0 {
		change := (t.Price - *prev.Price) / *prev.Price * 100
		q.ChangePercent = &change
	}
	q.ObservedAt = time.Unix(t.Timestamp, 0).UTC()

	return s.cache.Set(ctx, keyLivePrice+symbol, q, 0)
}

// Quote returns the latest quote for a symbol, or nil when never observed.
func (s *RedisQuoteStore) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	var q models.Quote
	err := s.cache.Get(ctx, keyLivePrice+util.UpperSymbol(symbol), &q)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quote %s: %w", symbol, err)
	}
	return &q, nil
}

// Quotes returns the latest quotes for the given symbols. Never-observed
// symbols are simply absent from the result.
func (s *RedisQuoteStore) Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, error) {
	out := make(map[string]models.Quote, len(symbols))
	for _, symbol := range symbols {
		q, err := s.Quote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if q != nil {
			out[q.Symbol] = *q
		}
	}
	return out, nil
}

func (s *RedisQuoteStore) SavePrediction(ctx context.Context, bundle *models.PredictionBundle) error {
	if bundle == nil || bundle.Symbol == "" {
		return fmt.Errorf("prediction bundle invalid")
	}
	return s.cache.Set(ctx, keyPrediction+util.UpperSymbol(bundle.Symbol), bundle, 0)
}

func (s *RedisQuoteStore) Prediction(ctx context.Context, symbol string) (*models.PredictionBundle, error) {
	var bundle models.PredictionBundle
	err := s.cache.Get(ctx, keyPrediction+util.UpperSymbol(symbol), &bundle)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction %s: %w", symbol, err)
	}
	return &bundle, nil
}

// SaveSnapshots appends snapshots to the kind's window, trimming to the
// newest entries.
func (s *RedisQuoteStore) SaveSnapshots(ctx context.Context, kind string, snaps []models.MetricSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	existing, err := s.Snapshots(ctx, kind)
	if err != nil {
		return err
	}
	merged := append(existing, snaps...)
	if len(merged) > snapshotWindow {
		merged = merged[len(merged)-snapshotWindow:]
	}
	return s.cache.Set(ctx, keySnapshots+kind, merged, 0)
}

func (s *RedisQuoteStore) Snapshots(ctx context.Context, kind string) ([]models.MetricSnapshot, error) {
	var snaps []models.MetricSnapshot
	err := s.cache.Get(ctx, keySnapshots+kind, &snaps)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshots %s: %w", kind, err)
	}
	return snaps, nil
}

// LastUpdate returns when the symbol's quote was last written, or nil when it
// never was.
func (s *RedisQuoteStore) LastUpdate(ctx context.Context, symbol string) (*time.Time, error) {
	q, err := s.Quote(ctx, symbol)
	if err != nil || q == nil {
		return nil, err
	}
	ts := q.ObservedAt
	return &ts, nil
}

func (s *RedisQuoteStore) Close() error {
	if c, ok := s.cache.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
