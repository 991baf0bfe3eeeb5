package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fanrally/syncbox/internal/metrics"
	"github.com/fanrally/syncbox/internal/queue"
)

// startQueueDepthCollector keeps the queue depth gauge fresh even when no
// mutation has fired the change hook recently (e.g. after a restart with a
// pre-existing queue).
func startQueueDepthCollector(q *queue.Queue, log zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		depth, err := q.Len(ctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("failed to read queue depth for metrics")
			continue
		}

		metrics.UpdateQueueDepth(depth)
	}
}
