// Package dashboard aggregates queue and snapshot state for the monitoring view.
package dashboard

import (
	"net/http"
	"time"

	"github.com/fanrally/syncbox/internal/httputil"
	"github.com/fanrally/syncbox/internal/perf"
	"github.com/fanrally/syncbox/internal/queue"
)

type Dashboard struct {
	queue *queue.Queue
	perf  *perf.Store
}

type Stats struct {
	PendingActions   int            `json:"pending_actions"`
	RetryingActions  int            `json:"retrying_actions"`
	ExhaustedActions int            `json:"exhausted_actions"`
	ActionsByType    map[string]int `json:"actions_by_type"`
	OldestPending    string         `json:"oldest_pending"`
	TotalSnapshots   int            `json:"total_snapshots"`
	LastUpdated      time.Time      `json:"last_updated"`
}

// maxRetries mirrors the engine default; actions at or past it are shown as
// exhausted so operators know a manual retry or delete is needed.
const maxRetries = 3

func New(q *queue.Queue, p *perf.Store) *Dashboard {
	return &Dashboard{queue: q, perf: p}
}

func (d *Dashboard) GetStats(w http.ResponseWriter, r *http.Request) {
	actions, err := d.queue.Actions(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stats := Stats{
		PendingActions: len(actions),
		ActionsByType:  make(map[string]int),
		LastUpdated:    time.Now(),
	}

	now := time.Now()
	var oldest time.Duration
	for _, a := range actions {
		stats.ActionsByType[a.Type]++

		if a.RetryCount >= maxRetries {
			stats.ExhaustedActions++
		} else if a.RetryCount > 0 {
			stats.RetryingActions++
		}

		if age := a.Age(now); age > oldest {
			oldest = age
		}
	}

	if len(actions) > 0 {
		stats.OldestPending = oldest.Round(time.Second).String()
	} else {
		stats.OldestPending = "N/A"
	}

	snaps, err := d.perf.Snapshots(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats.TotalSnapshots = len(snaps)

	httputil.WriteJSON(w, stats, http.StatusOK)
}
