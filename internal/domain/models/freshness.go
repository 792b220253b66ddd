package models

import "time"

// FreshnessRecord describes how stale one symbol's data is. AgeSeconds is nil
// iff LastUpdate is nil (never observed).
type FreshnessRecord struct {
	Symbol     string     `json:"symbol"`
	LastUpdate *time.Time `json:"lastUpdate"`
	AgeSeconds *float64   `json:"ageSeconds"`
}

// HealthReport is the payload of the health endpoint.
type HealthReport struct {
	Status        string            `json:"status"`
	ServerTime    time.Time         `json:"serverTime"`
	UptimeSeconds float64           `json:"uptimeSeconds"`
	LastIngestAt  *time.Time        `json:"lastIngestAt"`
	Freshness     []FreshnessRecord `json:"freshness"`
}
