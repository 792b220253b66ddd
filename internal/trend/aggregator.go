// Package trend turns repeated timestamped metric snapshots into per-metric
// time series for line charts.
package trend

import (
	"sort"

	"MarketPulse/internal/domain/models"
)

// TopKeys selects the k highest-ranked metric names from the latest snapshot
// in the window. Snapshots arrive pre-ranked, so source order is kept and no
// further tie-break is applied. Fewer than k metrics returns them all.
func TopKeys(snapshots []models.MetricSnapshot, k int) []string {
	if len(snapshots) == 0 || k <= 0 {
		return nil
	}

	ordered := Chronological(snapshots)
	latest := ordered[len(ordered)-1]
	if k > len(latest.Metrics) {
		k = len(latest.Metrics)
	}

	names := make([]string, 0, k)
	for _, m := range latest.Metrics[:k] {
		names = append(names, m.Name)
	}
	return names
}

// Project builds one series per selected name across all snapshots. The
// x-axis is every snapshot's timestamp; a nil value marks a snapshot the
// metric was absent from (introduced after the window started). Absent values
// stay nil so charting layers can render gaps honestly.
func Project(snapshots []models.MetricSnapshot, names []string) map[string]models.TrendSeries {
	ordered := Chronological(snapshots)

	timestamps := make([]string, len(ordered))
	for i, s := range ordered {
		timestamps[i] = s.Timestamp
	}

	out := make(map[string]models.TrendSeries, len(names))
	for _, name := range names {
		values := make([]*float64, len(ordered))
		for i, s := range ordered {
			if v, ok := s.Lookup(name); ok {
				v := v
				values[i] = &v
			}
		}
		out[name] = models.TrendSeries{Timestamps: timestamps, Values: values}
	}
	return out
}

// Chronological returns the snapshots sorted oldest first. Sources usually
// deliver them in order already, but that is not guaranteed; the sort is
// stable so equal timestamps keep their arrival order. The input is not
// mutated.
func Chronological(snapshots []models.MetricSnapshot) []models.MetricSnapshot {
	out := make([]models.MetricSnapshot, len(snapshots))
	copy(out, snapshots)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
