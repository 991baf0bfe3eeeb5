package perf

import (
	"context"
	"strings"
)

// StartupStats aggregates startup timings over snapshots that carry them.
// All values are 0 when no snapshot has startup data.
type StartupStats struct {
	AvgJSLoaded    float64 `json:"avg_js_loaded"`
	AvgFirstRender float64 `json:"avg_first_render"`
	AvgInteractive float64 `json:"avg_interactive"`
	MinInteractive float64 `json:"min_interactive"`
	MaxInteractive float64 `json:"max_interactive"`
}

// VitalStats aggregates one named web vital across all snapshots.
type VitalStats struct {
	Avg              float64 `json:"avg"`
	Good             int     `json:"good"`
	NeedsImprovement int     `json:"needs_improvement"`
	Poor             int     `json:"poor"`
}

// Stats is the summary computed over the whole persisted history. WebVitals
// is keyed by lowercased metric name ("lcp", "fid", "cls", ...).
type Stats struct {
	Startup        StartupStats          `json:"startup"`
	WebVitals      map[string]VitalStats `json:"web_vitals"`
	TotalSnapshots int                   `json:"total_snapshots"`
}

// Stats computes aggregate statistics over all persisted snapshots. Averages
// are plain arithmetic means with no recency weighting; empty input yields
// zeros, never NaN.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	snaps, err := s.Snapshots(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		WebVitals:      make(map[string]VitalStats),
		TotalSnapshots: len(snaps),
	}

	var startupCount int
	var sumJSLoaded, sumFirst, sumInter float64
	var minInteractive, maxInteractive float64
	for _, snap := range snaps {
		if snap.Startup == nil {
			continue
		}
		m := snap.Startup
		if startupCount == 0 || m.Interactive < minInteractive {
			minInteractive = m.Interactive
		}
		if startupCount == 0 || m.Interactive > maxInteractive {
			maxInteractive = m.Interactive
		}
		sumJSLoaded += m.JSLoaded
		sumFirst += m.FirstRender
		sumInter += m.Interactive
		startupCount++
	}
	if startupCount > 0 {
		n := float64(startupCount)
		stats.Startup = StartupStats{
			AvgJSLoaded:    sumJSLoaded / n,
			AvgFirstRender: sumFirst / n,
			AvgInteractive: sumInter / n,
			MinInteractive: minInteractive,
			MaxInteractive: maxInteractive,
		}
	}

	type acc struct {
		sum                          float64
		count, good, needsWork, poor int
	}
	vitals := make(map[string]*acc)
	for _, snap := range snaps {
		for _, v := range snap.WebVitals {
			name := strings.ToLower(v.Name)
			a := vitals[name]
			if a == nil {
				a = &acc{}
				vitals[name] = a
			}
			a.sum += v.Value
			a.count++
			switch v.Rating {
			case RatingGood:
				a.good++
			case RatingNeedsImprovement:
				a.needsWork++
			case RatingPoor:
				a.poor++
			}
		}
	}
	for name, a := range vitals {
		vs := VitalStats{
			Good:             a.good,
			NeedsImprovement: a.needsWork,
			Poor:             a.poor,
		}
		if a.count > 0 {
			vs.Avg = a.sum / float64(a.count)
		}
		stats.WebVitals[name] = vs
	}

	return stats, nil
}
