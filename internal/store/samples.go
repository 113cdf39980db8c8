package store

import "github.com/pulsewatch/pulsewatch/internal/model"

// InsertSample stores one raw sample. Ingestion writes the sample before
// the engine evaluates it, so a crash mid-evaluation never loses data.
func (s *Store) InsertSample(sm *model.Sample) error {
	_, err := s.db.Exec(`INSERT INTO samples (tenant_id, metric, value, timestamp) VALUES (?, ?, ?, ?)`,
		sm.TenantID, sm.Metric, sm.Value, sm.Timestamp)
	return err
}

// QuerySamples returns samples for (tenant, metric) in [from, to],
// oldest first.
func (s *Store) QuerySamples(tenantID, metric string, from, to int64) ([]*model.Sample, error) {
	rows, err := s.db.Query(`SELECT tenant_id, metric, value, timestamp FROM samples
		WHERE tenant_id = ? AND metric = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`, tenantID, metric, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Sample
	for rows.Next() {
		var sm model.Sample
		if err := rows.Scan(&sm.TenantID, &sm.Metric, &sm.Value, &sm.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &sm)
	}
	return out, rows.Err()
}

// ListMetrics returns the distinct metric names a tenant has reported.
func (s *Store) ListMetrics(tenantID string) ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT metric FROM samples WHERE tenant_id = ? ORDER BY metric", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PurgeSamplesBefore deletes samples older than cutoff (unix seconds) and
// returns the number removed.
func (s *Store) PurgeSamplesBefore(cutoff int64) (int64, error) {
	res, err := s.db.Exec("DELETE FROM samples WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
