package store

import (
	"database/sql"

	"github.com/pulsewatch/pulsewatch/internal/model"
)

const alertColumns = `id, tenant_id, metric, condition, threshold,
	enter_threshold, exit_threshold, repeat_interval,
	missing_as_breach, expected_interval, enabled,
	consecutive_breaches, consecutive_recoveries, active,
	last_notified_at, last_sample_at`

func scanAlert(row interface{ Scan(...any) error }) (*model.AlertConfig, error) {
	var a model.AlertConfig
	err := row.Scan(
		&a.ID, &a.TenantID, &a.Metric, &a.Condition, &a.Threshold,
		&a.EnterThreshold, &a.ExitThreshold, &a.RepeatInterval,
		&a.MissingAsBreach, &a.ExpectedInterval, &a.Enabled,
		&a.State.ConsecutiveBreaches, &a.State.ConsecutiveRecoveries, &a.State.Active,
		&a.State.LastNotifiedAt, &a.State.LastSampleAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAlert inserts a new alert configuration with zeroed runtime state.
func (s *Store) CreateAlert(a *model.AlertConfig) error {
	_, err := s.db.Exec(`INSERT INTO alerts
		(id, tenant_id, metric, condition, threshold,
		 enter_threshold, exit_threshold, repeat_interval,
		 missing_as_breach, expected_interval, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.Metric, a.Condition, a.Threshold,
		a.EnterThreshold, a.ExitThreshold, a.RepeatInterval,
		a.MissingAsBreach, a.ExpectedInterval, a.Enabled)
	return err
}

// UpdateAlert replaces the rule fields of an alert. Runtime counters are
// untouched; only PersistRuntimeState writes those.
func (s *Store) UpdateAlert(a *model.AlertConfig) error {
	_, err := s.db.Exec(`UPDATE alerts SET
		condition = ?, threshold = ?,
		enter_threshold = ?, exit_threshold = ?, repeat_interval = ?,
		missing_as_breach = ?, expected_interval = ?, enabled = ?
		WHERE id = ?`,
		a.Condition, a.Threshold,
		a.EnterThreshold, a.ExitThreshold, a.RepeatInterval,
		a.MissingAsBreach, a.ExpectedInterval, a.Enabled, a.ID)
	return err
}

// DeleteAlert removes an alert. Safe to call while an evaluation for the
// same alert is in flight: the evaluation's state persist becomes a no-op.
func (s *Store) DeleteAlert(id string) error {
	_, err := s.db.Exec("DELETE FROM alerts WHERE id = ?", id)
	return err
}

// GetAlert returns one alert by id, or (nil, nil) when absent.
func (s *Store) GetAlert(id string) (*model.AlertConfig, error) {
	row := s.db.QueryRow("SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListAlerts returns all alerts owned by a tenant.
func (s *Store) ListAlerts(tenantID string) ([]*model.AlertConfig, error) {
	rows, err := s.db.Query("SELECT "+alertColumns+" FROM alerts WHERE tenant_id = ? ORDER BY metric, id", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListEnabledAlerts returns the enabled alerts matching (tenant, metric),
// the set the engine evaluates for every incoming sample.
func (s *Store) ListEnabledAlerts(tenantID, metric string) ([]*model.AlertConfig, error) {
	rows, err := s.db.Query("SELECT "+alertColumns+" FROM alerts WHERE tenant_id = ? AND metric = ? AND enabled = 1", tenantID, metric)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// ListGapCandidates returns enabled alerts that opted into missing-data
// detection and have received at least one real sample. Alerts with no
// data ever are never considered missing.
func (s *Store) ListGapCandidates() ([]*model.AlertConfig, error) {
	rows, err := s.db.Query("SELECT " + alertColumns + ` FROM alerts
		WHERE enabled = 1 AND missing_as_breach = 1 AND expected_interval > 0 AND last_sample_at > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// PersistRuntimeState writes the runtime counters for an alert. Returns
// false when the alert no longer exists (deleted concurrently), in which
// case the caller must suppress the observation's side effects.
func (s *Store) PersistRuntimeState(alertID string, st model.RuntimeState) (bool, error) {
	res, err := s.db.Exec(`UPDATE alerts SET
		consecutive_breaches = ?, consecutive_recoveries = ?, active = ?,
		last_notified_at = ?, last_sample_at = ?
		WHERE id = ?`,
		st.ConsecutiveBreaches, st.ConsecutiveRecoveries, st.Active,
		st.LastNotifiedAt, st.LastSampleAt, alertID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func collectAlerts(rows *sql.Rows) ([]*model.AlertConfig, error) {
	var out []*model.AlertConfig
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
