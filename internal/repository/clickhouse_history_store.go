package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	pkgch "MarketPulse/pkg/clickhouse"
)

// ClickHouseHistoryStore persists ticks and serves the chartable daily series
// behind prediction bundles.
type ClickHouseHistoryStore struct {
	client *pkgch.Client
	db     *sql.DB
	table  string
}

// NewClickHouseHistoryStore creates a ClickHouse-backed history store.
func NewClickHouseHistoryStore(client *pkgch.Client, table string) repository.HistoryStore {
	return &ClickHouseHistoryStore{client: client, db: client.DB(), table: table}
}

// Init ensures the tick table exists. Idempotent.
func (s *ClickHouseHistoryStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ts DateTime,
			symbol String,
			price Float64,
			volume Float64
		) ENGINE = MergeTree ORDER BY (symbol, ts)`, s.table),
	})
}

func (s *ClickHouseHistoryStore) Append(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}
	q := fmt.Sprintf("INSERT INTO %s (ts, symbol, price, volume) VALUES (?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, time.Unix(t.Timestamp, 0), t.Symbol, t.Price, t.Volume)
	return err
}

// Series returns one point per day: the day's closing price, oldest first.
// Dates use the YYYY-MM-DD form the chart layer expects.
func (s *ClickHouseHistoryStore) Series(ctx context.Context, symbol string, from, to time.Time, limit int) (models.PriceSeries, error) {
	q := fmt.Sprintf(`SELECT toDate(ts) AS d, argMax(price, ts) AS close
		FROM %s
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		GROUP BY d ORDER BY d ASC LIMIT ?`, s.table)

	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("series query: %w", err)
	}
	defer rows.Close()

	var series models.PriceSeries
	for rows.Next() {
		var d time.Time
		var px float64
		if err := rows.Scan(&d, &px); err != nil {
			return models.PriceSeries{}, fmt.Errorf("series scan: %w", err)
		}
		series.Dates = append(series.Dates, d.Format("2006-01-02"))
		series.Prices = append(series.Prices, px)
	}
	return series, rows.Err()
}

func (s *ClickHouseHistoryStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseHistoryStore) Close() error {
	return nil // connection pool is owned by pkg/clickhouse
}
