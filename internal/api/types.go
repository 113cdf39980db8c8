package api

import "github.com/pulsewatch/pulsewatch/internal/model"

// ingestRequest is the payload for POST /api/v1/samples.
type ingestRequest struct {
	TenantID  string `json:"tenant_id"`
	Metric    string `json:"metric"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix seconds; 0 = server time
}

// alertRequest is the payload for creating or updating an alert.
type alertRequest struct {
	TenantID         string `json:"tenant_id"`
	Metric           string `json:"metric"`
	Condition        string `json:"condition"`
	Threshold        string `json:"threshold"`
	EnterThreshold   int    `json:"enter_threshold"`
	ExitThreshold    int    `json:"exit_threshold"`
	RepeatInterval   int64  `json:"repeat_interval_seconds"`
	MissingAsBreach  bool   `json:"treat_missing_as_breach"`
	ExpectedInterval int64  `json:"expected_interval_seconds"`
	Enabled          *bool  `json:"enabled"` // nil = true on create
}

// destinationRequest is the payload for creating or updating a destination.
type destinationRequest struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Format   string `json:"format"`
	Enabled  *bool  `json:"enabled"` // nil = true on create
}

// stateResponse is the payload for GET /api/v1/alerts/{id}/state: the
// derived display projection plus the raw counters behind it.
type stateResponse struct {
	AlertID               string `json:"alert_id"`
	DisplayState          string `json:"display_state"`
	Active                bool   `json:"active"`
	ConsecutiveBreaches   int    `json:"consecutive_breaches"`
	ConsecutiveRecoveries int    `json:"consecutive_recoveries"`
	LastNotifiedAt        int64  `json:"last_notified_at,omitempty"`
	LastSampleAt          int64  `json:"last_sample_at,omitempty"`
}

func toStateResponse(a *model.AlertConfig) stateResponse {
	return stateResponse{
		AlertID:               a.ID,
		DisplayState:          a.DisplayState(),
		Active:                a.State.Active,
		ConsecutiveBreaches:   a.State.ConsecutiveBreaches,
		ConsecutiveRecoveries: a.State.ConsecutiveRecoveries,
		LastNotifiedAt:        a.State.LastNotifiedAt,
		LastSampleAt:          a.State.LastSampleAt,
	}
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
