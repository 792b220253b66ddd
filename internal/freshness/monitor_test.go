package freshness

import (
	"testing"
	"time"
)

func TestAgeSecondsNeverObserved(t *testing.T) {
	if got := AgeSeconds(nil, time.Now()); got != nil {
		t.Fatalf("expected nil, got %v", *got)
	}
}

func TestAgeSeconds(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	last := now.Add(-90 * time.Second)

	got := AgeSeconds(&last, now)
	if got == nil || *got != 90 {
		t.Fatalf("expected 90, got %v", got)
	}
}

func TestAgeSecondsClampsClockSkew(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	future := now.Add(30 * time.Second)

	got := AgeSeconds(&future, now)
	if got == nil || *got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}

func TestRecord(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	last := now.Add(-5 * time.Second)

	rec := Record("AAPL", &last, now)
	if rec.Symbol != "AAPL" {
		t.Fatalf("unexpected symbol %q", rec.Symbol)
	}
	if rec.AgeSeconds == nil || *rec.AgeSeconds != 5 {
		t.Fatalf("unexpected age %v", rec.AgeSeconds)
	}

	rec = Record("MSFT", nil, now)
	if rec.AgeSeconds != nil || rec.LastUpdate != nil {
		t.Fatalf("never-observed symbol should carry nil fields: %+v", rec)
	}
}

func TestStale(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	fresh := now.Add(-30 * time.Second)
	if Stale(Record("AAPL", &fresh, now), DefaultStaleAfter) {
		t.Fatalf("30s should be fresh")
	}

	old := now.Add(-10 * time.Minute)
	if !Stale(Record("AAPL", &old, now), DefaultStaleAfter) {
		t.Fatalf("10m should be stale")
	}

	if !Stale(Record("AAPL", nil, now), DefaultStaleAfter) {
		t.Fatalf("never observed should be stale")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "0d 0h 0m"},
		{59, "0d 0h 0m"},
		{60, "0d 0h 1m"},
		{3600, "0d 1h 0m"},
		{90061, "1d 1h 1m"},
		{-5, "0d 0h 0m"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.seconds); got != c.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", c.seconds, got, c.want)
		}
	}
}
