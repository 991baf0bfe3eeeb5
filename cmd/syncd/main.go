package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fanrally/syncbox/internal/api"
	"github.com/fanrally/syncbox/internal/connectivity"
	"github.com/fanrally/syncbox/internal/engine"
	"github.com/fanrally/syncbox/internal/middleware"
	"github.com/fanrally/syncbox/internal/perf"
	"github.com/fanrally/syncbox/internal/queue"
	"github.com/fanrally/syncbox/internal/replay"
	"github.com/fanrally/syncbox/internal/storage"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info")); err == nil {
		logger = logger.Level(lvl)
	}

	store, err := storage.Open(storage.Config{
		Driver: envOr("STORAGE_DRIVER", "sqlite"),
		Addr:   envOr("REDIS_ADDR", "localhost:6379"),
		Path:   envOr("SQLITE_PATH", "./data/syncbox.db"),
		DSN:    os.Getenv("POSTGRES_DSN"),
	}, logger.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal(err)
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close storage")
		}
	}()

	probeAddr := envOr("PROBE_ADDR", "api.fanrally.jp:443")
	monitor := connectivity.NewMonitor(
		connectivity.TCPProbe(probeAddr, 3*time.Second),
		15*time.Second,
		logger.With().Str("component", "connectivity").Logger(),
	)
	monitor.Start()
	defer monitor.Stop()

	q := queue.New(store, logger.With().Str("component", "queue").Logger())
	perfStore := perf.NewStore(store, logger.With().Str("component", "perf").Logger())

	registry := engine.NewRegistry()
	if os.Getenv("EMAIL_API_KEY") != "" {
		registry.Register("notify_supporters", replay.NotifySupportersHandler)
	}

	eng := engine.New(q, registry, monitor, logger.With().Str("component", "engine").Logger())

	stopAutoSync := eng.AutoSync()
	defer stopAutoSync()

	go startQueueDepthCollector(q, logger)

	apiHandler := api.New(eng, q, perfStore, logger.With().Str("component", "api").Logger())

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.MetricsMiddleware(apiHandler))
	mux.Handle("/metrics", promhttp.Handler())

	port := envOr("PORT", "8080")
	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("port", port).Str("probe", probeAddr).Msg("syncd starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	_ = server.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
