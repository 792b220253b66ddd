package freshness

import (
	"context"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	"MarketPulse/internal/livesync"
	"MarketPulse/pkg/logger"
)

// HealthSource pulls one health report.
type HealthSource interface {
	FetchHealth(ctx context.Context) (*models.HealthReport, error)
}

// Monitor polls the health endpoint on a slow fixed interval, independent of
// live-quote polling, and keeps the latest report for health displays. A
// failed poll keeps the previous report in place.
type Monitor struct {
	source   HealthSource
	interval time.Duration
	clock    livesync.Clock
	logger   *logger.Logger
	metrics  repository.Metrics

	mu   sync.Mutex
	last *models.HealthReport
}

// NewMonitor creates a health monitor. Start must be called to begin polling.
func NewMonitor(source HealthSource, interval time.Duration, clock livesync.Clock, l *logger.Logger, m repository.Metrics) *Monitor {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Monitor{source: source, interval: interval, clock: clock, logger: l, metrics: m}
}

// Start runs the poll loop until ctx is cancelled. The first poll is issued
// immediately.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.poll(ctx)
		for {
			t := m.clock.NewTimer(m.interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C():
				m.poll(ctx)
			}
		}
	}()
}

// Last returns the most recent health report, or nil before the first
// successful poll.
func (m *Monitor) Last() *models.HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) poll(ctx context.Context) {
	report, err := m.source.FetchHealth(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("health poll failed", logger.Error(err))
		}
		m.metrics.RecordError("health_poll")
		return
	}

	for _, rec := range report.Freshness {
		if rec.AgeSeconds != nil {
			m.metrics.RecordStaleness(rec.Symbol, *rec.AgeSeconds)
		}
	}

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
}
