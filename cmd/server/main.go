package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/engine"
	"github.com/pulsewatch/pulsewatch/internal/model"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/scrape"
	"github.com/pulsewatch/pulsewatch/internal/store"
	"github.com/pulsewatch/pulsewatch/internal/ws"
)

// retentionPeriod is how often the retention purge runs.
const retentionPeriod = time.Hour

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("pulsewatch-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"db_path", cfg.Server.DBPath,
		"auth_mode", cfg.Server.Auth.Mode,
		"sweep_interval", cfg.Server.Engine.SweepInterval,
		"scrape_sources", len(cfg.Server.Scrape.Sources),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.New(cfg.Server.DBPath)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.Server.DBPath, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	// Webhook dispatcher with its bounded worker queue.
	dispatcher := notify.NewDispatcher(st, notify.Options{
		Workers:   cfg.Server.Engine.DispatchWorkers,
		QueueSize: cfg.Server.Engine.DispatchQueue,
		Timeout:   cfg.Server.Engine.DispatchTimeout,
	})
	go dispatcher.Run(ctx)

	eng := engine.New(st, dispatcher)

	// WebSocket hub receives every committed transition.
	hub := ws.New()
	go hub.Run(ctx)
	eng.OnTransition(hub.Broadcast)

	// Missing-data monitor.
	monitor := engine.NewMonitor(eng, cfg.Server.Engine.SweepInterval)
	go monitor.Run(ctx)

	// Pull-mode ingestion, restarted on config reload so source edits
	// take effect without a server restart.
	sink := &ingestSink{store: st, engine: eng}
	scrapeCtx, stopScrape := context.WithCancel(ctx)
	go scrape.New(cfg.Server.Scrape, sink).Run(scrapeCtx)

	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			stopScrape()
			scrapeCtx, stopScrape = context.WithCancel(ctx)
			go scrape.New(next.Server.Scrape, sink).Run(scrapeCtx)
			slog.Info("scrape sources reloaded", "sources", len(next.Server.Scrape.Sources))
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	go runRetention(ctx, st, cfg.Server.Retention)

	// Combined HTTP server: REST API + WebSocket hub + Prometheus metrics.
	guarded := api.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		api.New(st, eng),
	)
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", guarded)
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("pulsewatch-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}

// ingestSink feeds scraped samples into durable storage and evaluation,
// the same path push ingestion takes.
type ingestSink struct {
	store  *store.Store
	engine *engine.Engine
}

func (s *ingestSink) Ingest(sample *model.Sample) {
	if err := s.store.InsertSample(sample); err != nil {
		slog.Error("scrape: storing sample failed",
			"tenant", sample.TenantID, "metric", sample.Metric, "err", err)
		return
	}
	s.engine.OnSample(sample.TenantID, sample.Metric, sample.Value, sample.Timestamp)
}

// runRetention purges old samples and audit rows once per hour. A zero
// retention disables the corresponding purge.
func runRetention(ctx context.Context, st *store.Store, cfg config.RetentionConfig) {
	if cfg.Samples <= 0 && cfg.Audit <= 0 {
		return
	}
	t := time.NewTicker(retentionPeriod)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := time.Now()
			if cfg.Samples > 0 {
				n, err := st.PurgeSamplesBefore(now.Add(-cfg.Samples).Unix())
				if err != nil {
					slog.Error("retention: sample purge failed", "err", err)
				} else if n > 0 {
					slog.Info("retention: samples purged", "rows", n)
				}
			}
			if cfg.Audit > 0 {
				n, err := st.PurgeAuditBefore(now.Add(-cfg.Audit).Unix())
				if err != nil {
					slog.Error("retention: audit purge failed", "err", err)
				} else if n > 0 {
					slog.Info("retention: audit purged", "rows", n)
				}
			}
		}
	}
}
