package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/engine"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/model"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store  *store.Store
	engine *engine.Engine
	mux    *http.ServeMux
	now    func() time.Time // injectable for deterministic tests
}

// New creates a Handler wired to the given store and engine and registers
// all routes.
func New(st *store.Store, e *engine.Engine) *Handler {
	h := &Handler{store: st, engine: e, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/samples", h.samples)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/alerts/", h.alertByID) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/destinations", h.destinations)
	h.mux.HandleFunc("/api/v1/destinations/", h.destinationByID)
	h.mux.HandleFunc("/api/v1/history", h.history)
	h.mux.HandleFunc("/api/v1/metrics", h.metricNames)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// samples handles POST (ingest) and GET (time-range query) on
// /api/v1/samples.
func (h *Handler) samples(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.ingest(w, r)
	case http.MethodGet:
		h.querySamples(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// ingest accepts one sample, stores it durably, and triggers evaluation
// asynchronously. The submitter never waits on (or learns about)
// evaluation or notification outcomes.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TenantID == "" || req.Metric == "" || req.Value == "" {
		jsonErr(w, http.StatusBadRequest, "tenant_id, metric, and value are required")
		return
	}
	if req.Timestamp == 0 {
		req.Timestamp = h.now().Unix()
	}

	sample := &model.Sample{
		TenantID:  req.TenantID,
		Metric:    req.Metric,
		Value:     req.Value,
		Timestamp: req.Timestamp,
	}
	if err := h.store.InsertSample(sample); err != nil {
		slog.Error("api: storing sample failed",
			"tenant", req.TenantID, "metric", req.Metric, "err", err)
		jsonErr(w, http.StatusInternalServerError, "failed to store sample")
		return
	}
	metrics.SamplesIngested.WithLabelValues("push").Inc()

	go h.engine.OnSample(req.TenantID, req.Metric, req.Value, req.Timestamp)

	jsonResp(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// querySamples returns GET /api/v1/samples?tenant=&metric=&from=&to=.
func (h *Handler) querySamples(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenant, metric := q.Get("tenant"), q.Get("metric")
	if tenant == "" || metric == "" {
		jsonErr(w, http.StatusBadRequest, "tenant and metric are required")
		return
	}
	from, _ := strconv.ParseInt(q.Get("from"), 10, 64)
	to, _ := strconv.ParseInt(q.Get("to"), 10, 64)
	if to == 0 {
		to = h.now().Unix()
	}

	samples, err := h.store.QuerySamples(tenant, metric, from, to)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "query failed")
		return
	}
	if samples == nil {
		samples = []*model.Sample{}
	}
	jsonResp(w, http.StatusOK, samples)
}

// alerts handles GET (list) and POST (create) on /api/v1/alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tenant := r.URL.Query().Get("tenant")
		if tenant == "" {
			jsonErr(w, http.StatusBadRequest, "tenant is required")
			return
		}
		alerts, err := h.store.ListAlerts(tenant)
		if err != nil {
			jsonErr(w, http.StatusInternalServerError, "list failed")
			return
		}
		if alerts == nil {
			alerts = []*model.AlertConfig{}
		}
		jsonResp(w, http.StatusOK, alerts)

	case http.MethodPost:
		var req alertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		cfg, errMsg := alertFromRequest(&req)
		if errMsg != "" {
			jsonErr(w, http.StatusBadRequest, errMsg)
			return
		}
		cfg.ID = uuid.NewString()
		if err := h.store.CreateAlert(cfg); err != nil {
			jsonErr(w, http.StatusInternalServerError, "create failed")
			return
		}
		jsonResp(w, http.StatusCreated, cfg)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// alertByID handles GET/PUT/DELETE /api/v1/alerts/{id} and
// GET /api/v1/alerts/{id}/state.
func (h *Handler) alertByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		jsonErr(w, http.StatusNotFound, "alert not found")
		return
	}

	cfg, err := h.store.GetAlert(id)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if cfg == nil {
		jsonErr(w, http.StatusNotFound, "alert not found")
		return
	}

	switch {
	case sub == "state" && r.Method == http.MethodGet:
		jsonResp(w, http.StatusOK, toStateResponse(cfg))

	case sub == "" && r.Method == http.MethodGet:
		jsonResp(w, http.StatusOK, cfg)

	case sub == "" && r.Method == http.MethodPut:
		var req alertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		// Identity fields are immutable; only rule fields update.
		req.TenantID, req.Metric = cfg.TenantID, cfg.Metric
		updated, errMsg := alertFromRequest(&req)
		if errMsg != "" {
			jsonErr(w, http.StatusBadRequest, errMsg)
			return
		}
		updated.ID = cfg.ID
		if err := h.store.UpdateAlert(updated); err != nil {
			jsonErr(w, http.StatusInternalServerError, "update failed")
			return
		}
		updated.State = cfg.State
		jsonResp(w, http.StatusOK, updated)

	case sub == "" && r.Method == http.MethodDelete:
		if err := h.store.DeleteAlert(id); err != nil {
			jsonErr(w, http.StatusInternalServerError, "delete failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// destinations handles GET (list) and POST (create) on /api/v1/destinations.
func (h *Handler) destinations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tenant := r.URL.Query().Get("tenant")
		if tenant == "" {
			jsonErr(w, http.StatusBadRequest, "tenant is required")
			return
		}
		dests, err := h.store.ListDestinations(tenant)
		if err != nil {
			jsonErr(w, http.StatusInternalServerError, "list failed")
			return
		}
		if dests == nil {
			dests = []*model.Destination{}
		}
		jsonResp(w, http.StatusOK, dests)

	case http.MethodPost:
		var req destinationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		d, errMsg := destinationFromRequest(&req)
		if errMsg != "" {
			jsonErr(w, http.StatusBadRequest, errMsg)
			return
		}
		d.ID = uuid.NewString()
		if err := h.store.CreateDestination(d); err != nil {
			jsonErr(w, http.StatusInternalServerError, "create failed")
			return
		}
		jsonResp(w, http.StatusCreated, d)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// destinationByID handles PUT/DELETE /api/v1/destinations/{id}.
func (h *Handler) destinationByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/destinations/")
	if id == "" {
		jsonErr(w, http.StatusNotFound, "destination not found")
		return
	}

	existing, err := h.store.GetDestination(id)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if existing == nil {
		jsonErr(w, http.StatusNotFound, "destination not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, existing)

	case http.MethodPut:
		var req destinationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.TenantID = existing.TenantID
		d, errMsg := destinationFromRequest(&req)
		if errMsg != "" {
			jsonErr(w, http.StatusBadRequest, errMsg)
			return
		}
		d.ID = existing.ID
		if err := h.store.UpdateDestination(d); err != nil {
			jsonErr(w, http.StatusInternalServerError, "update failed")
			return
		}
		jsonResp(w, http.StatusOK, d)

	case http.MethodDelete:
		if err := h.store.DeleteDestination(id); err != nil {
			jsonErr(w, http.StatusInternalServerError, "delete failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// history returns GET /api/v1/history?tenant=&alert=&limit=, the
// notification audit log, newest first.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	tenant := q.Get("tenant")
	if tenant == "" {
		jsonErr(w, http.StatusBadRequest, "tenant is required")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	records, err := h.store.ListAudit(tenant, q.Get("alert"), limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "list failed")
		return
	}
	if records == nil {
		records = []*model.AuditRecord{}
	}
	jsonResp(w, http.StatusOK, records)
}

// metricNames returns GET /api/v1/metrics?tenant=, the distinct metric
// names the tenant has reported.
func (h *Handler) metricNames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		jsonErr(w, http.StatusBadRequest, "tenant is required")
		return
	}
	names, err := h.store.ListMetrics(tenant)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, "list failed")
		return
	}
	if names == nil {
		names = []string{}
	}
	jsonResp(w, http.StatusOK, names)
}

// --- validation -------------------------------------------------------------

// alertFromRequest validates an alert payload and maps it to the model.
// Malformed configurations are rejected here and never reach the engine.
func alertFromRequest(req *alertRequest) (*model.AlertConfig, string) {
	if req.TenantID == "" || req.Metric == "" {
		return nil, "tenant_id and metric are required"
	}
	if !model.Operators[req.Condition] {
		return nil, "condition must be one of >, <, >=, <=, ==, !="
	}
	if _, err := strconv.ParseFloat(req.Threshold, 64); err != nil {
		return nil, "threshold must be numeric"
	}
	if req.EnterThreshold < 1 || req.ExitThreshold < 1 {
		return nil, "enter_threshold and exit_threshold must be >= 1"
	}
	if req.RepeatInterval < 60 {
		return nil, "repeat_interval_seconds must be >= 60"
	}
	if req.MissingAsBreach && req.ExpectedInterval <= 0 {
		return nil, "expected_interval_seconds is required with treat_missing_as_breach"
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return &model.AlertConfig{
		TenantID:         req.TenantID,
		Metric:           req.Metric,
		Condition:        req.Condition,
		Threshold:        req.Threshold,
		EnterThreshold:   req.EnterThreshold,
		ExitThreshold:    req.ExitThreshold,
		RepeatInterval:   req.RepeatInterval,
		MissingAsBreach:  req.MissingAsBreach,
		ExpectedInterval: req.ExpectedInterval,
		Enabled:          enabled,
	}, ""
}

// destinationFromRequest validates a destination payload.
func destinationFromRequest(req *destinationRequest) (*model.Destination, string) {
	if req.TenantID == "" || req.Name == "" || req.URL == "" {
		return nil, "tenant_id, name, and url are required"
	}
	format := req.Format
	if format == "" {
		format = "generic"
	}
	switch format {
	case "generic", "slack", "discord":
	default:
		return nil, "format must be one of generic, slack, discord"
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return &model.Destination{
		TenantID: req.TenantID,
		Name:     req.Name,
		URL:      req.URL,
		Format:   format,
		Enabled:  enabled,
	}, ""
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
