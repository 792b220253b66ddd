package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
)

// QuoteProcessor publishes validated ticks onto the message bus.
type QuoteProcessor struct {
	pub     drepo.Publisher
	metrics drepo.Metrics
}

// NewQuoteProcessor creates a processor in front of the bus.
func NewQuoteProcessor(pub drepo.Publisher, metrics drepo.Metrics) *QuoteProcessor {
	return &QuoteProcessor{pub: pub, metrics: metrics}
}

// Process publishes one tick.
func (p *QuoteProcessor) Process(ctx context.Context, t *models.Tick) error {
	if t == nil {
		return fmt.Errorf("tick is nil")
	}

	start := time.Now()
	if err := p.pub.Publish(ctx, t); err != nil {
		p.metrics.RecordError("publish")
		return fmt.Errorf("publish tick: %w", err)
	}
	p.metrics.RecordLatency("publish", time.Since(start).Seconds())
	return nil
}

// Close closes the publisher.
func (p *QuoteProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
}
