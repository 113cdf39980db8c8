package model

// Comparison operators accepted in an AlertConfig condition.
var Operators = map[string]bool{
	">":  true,
	"<":  true,
	">=": true,
	"<=": true,
	"==": true,
	"!=": true,
}

// TransitionKind identifies the notification type produced by a state
// machine transition.
type TransitionKind string

const (
	// KindEntered fires once when an alert activates.
	KindEntered TransitionKind = "entered"

	// KindActive fires while an alert stays active, at most once per
	// repeat interval.
	KindActive TransitionKind = "active"

	// KindRecovered fires once when an alert deactivates.
	KindRecovered TransitionKind = "recovered"
)

// Display states derived from runtime counters. Non-authoritative: a pure
// projection for the UI and the state endpoint.
const (
	DisplayNormal     = "normal"
	DisplayBreaching  = "breaching"
	DisplayAlerting   = "alerting"
	DisplayRecovering = "recovering"
)

// MissingValue is the sentinel shown in place of a numeric value when a
// breach was synthesized by the missing-data sweep.
const MissingValue = "no data"

// ReasonMissingData tags notification requests produced by the sweep.
const ReasonMissingData = "missing_data"

// Sample is one scalar observation for a tenant's metric. Value stays a
// string end to end: parsing happens at condition evaluation time and a
// non-numeric value evaluates as not breaching.
type Sample struct {
	TenantID  string `json:"tenant_id"`
	Metric    string `json:"metric"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

// RuntimeState is the mutable per-alert state owned by the state machine.
// Persisted atomically with every evaluation decision.
type RuntimeState struct {
	ConsecutiveBreaches   int   `json:"consecutive_breaches"`
	ConsecutiveRecoveries int   `json:"consecutive_recoveries"`
	Active                bool  `json:"active"`
	LastNotifiedAt        int64 `json:"last_notified_at"` // unix seconds, 0 = never
	LastSampleAt          int64 `json:"last_sample_at"`   // unix seconds, 0 = never
}

// AlertConfig is one alert rule a tenant created for a metric.
//
// Threshold is kept as a string: creation-time validation rejects
// non-numeric input, but evaluation still parses defensively and treats an
// unparseable threshold as not breaching rather than failing the sample.
type AlertConfig struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Metric   string `json:"metric"`

	Condition string `json:"condition"` // one of Operators
	Threshold string `json:"threshold"`

	EnterThreshold int   `json:"enter_threshold"`          // consecutive breaches to activate, >= 1
	ExitThreshold  int   `json:"exit_threshold"`           // consecutive non-breaches to deactivate, >= 1
	RepeatInterval int64 `json:"repeat_interval_seconds"`  // min spacing of repeat notifications, >= 60

	MissingAsBreach  bool  `json:"treat_missing_as_breach"`
	ExpectedInterval int64 `json:"expected_interval_seconds,omitempty"`

	Enabled bool `json:"enabled"`

	State RuntimeState `json:"state"`
}

// DisplayState projects the runtime counters onto the four UI states.
func (a *AlertConfig) DisplayState() string {
	st := a.State
	switch {
	case st.Active && st.ConsecutiveRecoveries > 0 && st.ConsecutiveRecoveries < a.ExitThreshold:
		return DisplayRecovering
	case st.Active:
		return DisplayAlerting
	case st.ConsecutiveBreaches > 0 && st.ConsecutiveBreaches < a.EnterThreshold:
		return DisplayBreaching
	default:
		return DisplayNormal
	}
}

// Destination is a named webhook delivery target owned by a tenant.
// Format is one of: generic | slack | discord. Unknown formats fall back
// to generic at delivery time.
type Destination struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Format   string `json:"format"`
	Enabled  bool   `json:"enabled"`
}

// AuditRecord is one append-only log entry for a delivery attempt.
// Written exactly once per attempt, success or not; never mutated.
type AuditRecord struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	AlertID       string         `json:"alert_id"`
	DestinationID string         `json:"destination_id"`
	Kind          TransitionKind `json:"kind"`
	Success       bool           `json:"success"`
	Detail        string         `json:"detail"` // HTTP status or error text
	Timestamp     int64          `json:"timestamp"`
}

// AlertRef is the subset of AlertConfig carried inside a notification
// payload.
type AlertRef struct {
	ID             string `json:"id"`
	Metric         string `json:"metric"`
	Condition      string `json:"condition"`
	Threshold      string `json:"threshold"`
	EnterThreshold int    `json:"enter_threshold,omitempty"`
	ExitThreshold  int    `json:"exit_threshold,omitempty"`
	RepeatInterval int64  `json:"repeat_interval_seconds,omitempty"`
}

// NotificationRequest is the payload handed to the dispatcher after a
// committed transition. One request fans out to every enabled destination
// of the tenant.
type NotificationRequest struct {
	TenantID              string         `json:"tenant_id"`
	Alert                 AlertRef       `json:"alert"`
	Value                 string         `json:"value"`
	Timestamp             int64          `json:"timestamp"`
	Kind                  TransitionKind `json:"kind"`
	ConsecutiveBreaches   int            `json:"consecutive_breaches,omitempty"`
	ConsecutiveRecoveries int            `json:"consecutive_recoveries,omitempty"`
	Reason                string         `json:"reason,omitempty"`
}

// Ref builds the AlertRef for a notification payload.
func (a *AlertConfig) Ref() AlertRef {
	return AlertRef{
		ID:             a.ID,
		Metric:         a.Metric,
		Condition:      a.Condition,
		Threshold:      a.Threshold,
		EnterThreshold: a.EnterThreshold,
		ExitThreshold:  a.ExitThreshold,
		RepeatInterval: a.RepeatInterval,
	}
}
