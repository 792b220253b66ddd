package main

import (
	"testing"

	"MarketPulse/internal/livesync"
)

func TestParseTopics(t *testing.T) {
	got := parseTopics(" live-prices, predict:aapl ,, backtests ")
	want := []string{livesync.TopicLivePrices, livesync.PredictionTopic("AAPL"), livesync.TopicBacktests}
	if len(got) != len(want) {
		t.Fatalf("unexpected topics %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("topic %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestParseTopicsEmpty(t *testing.T) {
	if got := parseTopics(" , "); got != nil {
		t.Fatalf("expected no topics, got %v", got)
	}
}
