package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/model"
)

// DefaultSweepInterval is how often the missing-data monitor runs.
const DefaultSweepInterval = 10 * time.Second

// Monitor periodically sweeps alerts that opted into missing-data
// detection and synthesizes a breach when the expected reporting interval
// has been missed twice over. Each tick contributes at most one synthetic
// breach per alert; elapsed intervals are not backfilled.
type Monitor struct {
	engine   *Engine
	interval time.Duration
	now      func() time.Time // injectable for deterministic tests
}

// NewMonitor creates a Monitor sweeping on the given interval.
// interval <= 0 falls back to DefaultSweepInterval.
func NewMonitor(e *Engine, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Monitor{engine: e, interval: interval, now: time.Now}
}

// Run starts the sweep loop and blocks until ctx is cancelled. Sweeps run
// inline on the ticker goroutine, so a tick never overlaps the previous
// sweep; a slow sweep simply delays the next one.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	slog.Info("monitor: missing-data sweep started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

// Sweep runs one pass over all gap candidates. A fault on one alert does
// not abort the sweep of the remaining alerts.
func (m *Monitor) Sweep() {
	start := m.now()
	defer func() {
		metrics.SweepDuration.Observe(m.now().Sub(start).Seconds())
	}()

	candidates, err := m.engine.store.ListGapCandidates()
	if err != nil {
		slog.Error("monitor: listing gap candidates failed", "err", err)
		return
	}

	now := start.Unix()
	for _, cfg := range candidates {
		if !gapDetected(cfg, now) {
			continue
		}
		metrics.SyntheticBreaches.Inc()
		slog.Debug("monitor: synthesizing missing-data breach",
			"alert_id", cfg.ID,
			"tenant", cfg.TenantID,
			"metric", cfg.Metric,
			"last_sample_at", cfg.State.LastSampleAt,
		)
		m.engine.evaluate(cfg, model.MissingValue, now, true)
	}
}

// gapDetected reports whether at least two full expected intervals have
// elapsed since the alert's last real sample. The 2x factor debounces
// single-sample jitter.
func gapDetected(cfg *model.AlertConfig, now int64) bool {
	if cfg.State.LastSampleAt <= 0 || cfg.ExpectedInterval <= 0 {
		return false
	}
	return now-cfg.State.LastSampleAt >= 2*cfg.ExpectedInterval
}
