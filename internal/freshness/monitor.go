// Package freshness derives human-relevant staleness signals from
// last-update timestamps. Staleness is a health display concern only, never
// a correctness decision.
package freshness

import (
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
)

// DefaultStaleAfter is the fresh/stale boundary used by health displays.
const DefaultStaleAfter = 120 * time.Second

// AgeSeconds returns the non-negative age of lastUpdate at now, or nil when
// the value was never observed. Clock skew that would make the age negative
// clamps to zero.
func AgeSeconds(lastUpdate *time.Time, now time.Time) *float64 {
	if lastUpdate == nil {
		return nil
	}
	age := now.Sub(*lastUpdate).Seconds()
	if age < 0 {
		age = 0
	}
	return &age
}

// Record builds the freshness record for one symbol.
func Record(symbol string, lastUpdate *time.Time, now time.Time) models.FreshnessRecord {
	return models.FreshnessRecord{
		Symbol:     symbol,
		LastUpdate: lastUpdate,
		AgeSeconds: AgeSeconds(lastUpdate, now),
	}
}

// Stale reports whether a record is past the stale boundary. A never-observed
// symbol counts as stale.
func Stale(rec models.FreshnessRecord, staleAfter time.Duration) bool {
	if rec.AgeSeconds == nil {
		return true
	}
	return *rec.AgeSeconds > staleAfter.Seconds()
}

// FormatDuration renders whole seconds as "{d}d {h}h {m}m" for health
// displays. Seconds are truncated away; negative input renders as zero.
func FormatDuration(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}
