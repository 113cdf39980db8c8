package engine

import (
	"log/slog"
	"sync"

	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/model"
)

// Storage is the persistence surface the engine needs. Implemented by
// *store.Store.
type Storage interface {
	ListEnabledAlerts(tenantID, metric string) ([]*model.AlertConfig, error)
	ListGapCandidates() ([]*model.AlertConfig, error)
	GetAlert(id string) (*model.AlertConfig, error)
	PersistRuntimeState(alertID string, st model.RuntimeState) (bool, error)
}

// Dispatcher receives notification requests for committed transitions.
// Dispatch must not block: delivery runs on its own queue so a slow
// webhook never stalls sample evaluation.
type Dispatcher interface {
	Dispatch(req *model.NotificationRequest)
}

// Engine fans incoming samples out to the matching alert configurations
// and runs each through the state machine. Evaluations for the same alert
// serialize on a per-alert lock (single-writer discipline); different
// alerts never block each other beyond the lock registry lookup.
type Engine struct {
	store    Storage
	dispatch Dispatcher

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// onTransition, if set, is called after a transition is committed
	// and its notifications queued. Used to feed the websocket hub.
	onTransition func(*model.NotificationRequest)
}

// New creates an Engine on the given storage and dispatcher.
func New(st Storage, d Dispatcher) *Engine {
	return &Engine{
		store:    st,
		dispatch: d,
		locks:    make(map[string]*sync.Mutex),
	}
}

// OnTransition registers a callback invoked for every committed
// transition. Must be set before the first sample is evaluated.
func (e *Engine) OnTransition(fn func(*model.NotificationRequest)) {
	e.onTransition = fn
}

// OnSample evaluates one sample against every enabled alert for
// (tenant, metric). A fault on one alert is logged and does not prevent
// evaluation of its siblings. Callers run OnSample on their own goroutine;
// errors are not surfaced to the sample submitter.
func (e *Engine) OnSample(tenantID, metric, value string, ts int64) {
	alerts, err := e.store.ListEnabledAlerts(tenantID, metric)
	if err != nil {
		slog.Error("engine: loading alerts failed",
			"tenant", tenantID, "metric", metric, "err", err)
		return
	}
	for _, cfg := range alerts {
		e.evaluate(cfg, value, ts, false)
	}
}

// evaluate runs one observation through an alert's state machine under its
// lock, persists the result, and queues notifications. missing marks a
// synthetic breach from the sweep; only real samples advance LastSampleAt.
func (e *Engine) evaluate(cfg *model.AlertConfig, value string, ts int64, missing bool) {
	lock := e.lockFor(cfg.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: the listing that produced cfg ran before the
	// lock was held, and a concurrent evaluation may have advanced the
	// counters since. The read-modify-write must be fully serialized.
	fresh, err := e.store.GetAlert(cfg.ID)
	if err != nil {
		slog.Error("engine: reloading alert failed", "alert_id", cfg.ID, "err", err)
		return
	}
	if fresh == nil || !fresh.Enabled {
		slog.Debug("engine: alert deleted or disabled during evaluation", "alert_id", cfg.ID)
		return
	}
	cfg = fresh

	requests := observe(cfg, value, ts, missing)
	if !missing {
		cfg.State.LastSampleAt = ts
	}

	ok, err := e.store.PersistRuntimeState(cfg.ID, cfg.State)
	if err != nil {
		// Do not notify on an uncommitted transition. The counters will
		// be re-derived from the stored state on the next sample.
		slog.Error("engine: persisting runtime state failed, suppressing notifications",
			"alert_id", cfg.ID, "err", err)
		return
	}
	if !ok {
		// Alert was deleted mid-evaluation; the observation is a no-op.
		slog.Debug("engine: alert deleted during evaluation", "alert_id", cfg.ID)
		return
	}

	for _, req := range requests {
		metrics.TransitionsTotal.WithLabelValues(string(req.Kind)).Inc()
		slog.Info("engine: alert transition",
			"alert_id", cfg.ID,
			"tenant", cfg.TenantID,
			"metric", cfg.Metric,
			"kind", req.Kind,
			"value", req.Value,
			"reason", req.Reason,
		)
		e.dispatch.Dispatch(req)
		if e.onTransition != nil {
			e.onTransition(req)
		}
	}
}

// lockFor returns the mutex serializing evaluations of one alert.
func (e *Engine) lockFor(alertID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[alertID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[alertID] = l
	}
	return l
}
