package store

import "github.com/pulsewatch/pulsewatch/internal/model"

// AppendAudit writes one delivery attempt to the audit log. Records are
// append-only; nothing in the engine ever updates or deletes them.
func (s *Store) AppendAudit(r *model.AuditRecord) error {
	_, err := s.db.Exec(`INSERT INTO audit_log
		(id, tenant_id, alert_id, destination_id, kind, success, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, r.AlertID, r.DestinationID, r.Kind, r.Success, r.Detail, r.Timestamp)
	return err
}

// ListAudit returns a tenant's audit entries newest first, optionally
// filtered by alert id. limit <= 0 defaults to 100.
func (s *Store) ListAudit(tenantID, alertID string, limit int) ([]*model.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, tenant_id, alert_id, destination_id, kind, success, detail, timestamp
		FROM audit_log WHERE tenant_id = ?`
	args := []any{tenantID}
	if alertID != "" {
		query += " AND alert_id = ?"
		args = append(args, alertID)
	}
	query += " ORDER BY timestamp DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AuditRecord
	for rows.Next() {
		var r model.AuditRecord
		if err := rows.Scan(&r.ID, &r.TenantID, &r.AlertID, &r.DestinationID,
			&r.Kind, &r.Success, &r.Detail, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// PurgeAuditBefore deletes audit entries older than cutoff (unix seconds)
// and returns the number removed. Retention is an operator policy, applied
// from the maintenance loop; the engine itself never deletes.
func (s *Store) PurgeAuditBefore(cutoff int64) (int64, error) {
	res, err := s.db.Exec("DELETE FROM audit_log WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
