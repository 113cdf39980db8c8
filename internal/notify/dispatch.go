package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/model"
)

const (
	// DefaultTimeout bounds a single webhook delivery.
	DefaultTimeout = 5 * time.Second

	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Store is the persistence surface the dispatcher needs. Implemented by
// *store.Store.
type Store interface {
	ListEnabledDestinations(tenantID string) ([]*model.Destination, error)
	AppendAudit(r *model.AuditRecord) error
}

// delivery is one (destination, request) pair waiting for a worker.
type delivery struct {
	dest *model.Destination
	req  *model.NotificationRequest
}

// Dispatcher fans notification requests out to a tenant's enabled
// destinations. Deliveries run on a bounded worker queue, so a slow or
// failing webhook never blocks the engine; when the queue is full new
// deliveries are dropped with a failed audit record. Every delivery
// produces exactly one audit record, attempted or dropped, success or
// not. Failed deliveries are never retried.
type Dispatcher struct {
	store  Store
	client *http.Client
	queue  chan delivery
	now    func() time.Time // injectable for deterministic tests

	workers int
}

// Options tunes the dispatcher. Zero values fall back to defaults.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// NewDispatcher creates a Dispatcher writing audit records to st.
// Call Run to start the delivery workers.
func NewDispatcher(st Store, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		store:   st,
		client:  &http.Client{Timeout: opts.Timeout},
		queue:   make(chan delivery, opts.QueueSize),
		now:     time.Now,
		workers: opts.Workers,
	}
}

// Run starts the delivery workers and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("dispatch: workers started", "workers", d.workers, "queue", cap(d.queue))
	for i := 0; i < d.workers; i++ {
		go d.worker(ctx)
	}
	<-ctx.Done()
}

// Dispatch queues one delivery per enabled destination of the request's
// tenant. Never blocks: a full queue drops the delivery. The drop is a
// delivery failure like any other and leaves a failed audit record, so
// the history surface accounts for every destination of a transition.
func (d *Dispatcher) Dispatch(req *model.NotificationRequest) {
	dests, err := d.store.ListEnabledDestinations(req.TenantID)
	if err != nil {
		slog.Error("dispatch: listing destinations failed",
			"tenant", req.TenantID, "alert_id", req.Alert.ID, "err", err)
		return
	}
	for _, dest := range dests {
		select {
		case d.queue <- delivery{dest: dest, req: req}:
			metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		default:
			metrics.DispatchDropped.Inc()
			metrics.DispatchTotal.WithLabelValues(dest.Format, "failure").Inc()
			d.audit(dest, req, false, "queue full")
			slog.Warn("dispatch: queue full, dropping delivery",
				"destination", dest.Name, "alert_id", req.Alert.ID)
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case dl := <-d.queue:
			metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
			d.deliver(dl.dest, dl.req)
		}
	}
}

// deliver performs one webhook POST and records the outcome. Delivery
// failure is audit data, not an error: the alert transition was already
// committed and is never rolled back or retried here.
func (d *Dispatcher) deliver(dest *model.Destination, req *model.NotificationRequest) {
	start := d.now()
	success, detail := d.post(dest, req)
	metrics.DispatchDuration.Observe(d.now().Sub(start).Seconds())

	status := "failure"
	if success {
		status = "success"
	}
	metrics.DispatchTotal.WithLabelValues(dest.Format, status).Inc()

	d.audit(dest, req, success, detail)

	if success {
		slog.Debug("dispatch: delivered",
			"destination", dest.Name, "format", dest.Format, "kind", req.Kind)
	} else {
		slog.Warn("dispatch: delivery failed",
			"destination", dest.Name, "format", dest.Format, "kind", req.Kind, "detail", detail)
	}
}

// audit writes the one audit record a delivery outcome produces.
func (d *Dispatcher) audit(dest *model.Destination, req *model.NotificationRequest, success bool, detail string) {
	rec := &model.AuditRecord{
		ID:            uuid.NewString(),
		TenantID:      req.TenantID,
		AlertID:       req.Alert.ID,
		DestinationID: dest.ID,
		Kind:          req.Kind,
		Success:       success,
		Detail:        detail,
		Timestamp:     d.now().Unix(),
	}
	if err := d.store.AppendAudit(rec); err != nil {
		slog.Error("dispatch: writing audit record failed",
			"alert_id", req.Alert.ID, "destination", dest.Name, "err", err)
	}
}

// post sends the formatted payload and returns (success, detail) where
// detail is the HTTP status or error text for the audit record.
func (d *Dispatcher) post(dest *model.Destination, req *model.NotificationRequest) (bool, string) {
	body, err := Format(req, dest.Format)
	if err != nil {
		return false, fmt.Sprintf("format: %v", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, resp.Status
	}
	return true, resp.Status
}
