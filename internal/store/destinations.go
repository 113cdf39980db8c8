package store

import (
	"database/sql"

	"github.com/pulsewatch/pulsewatch/internal/model"
)

// CreateDestination inserts a new delivery target.
func (s *Store) CreateDestination(d *model.Destination) error {
	_, err := s.db.Exec(`INSERT INTO destinations (id, tenant_id, name, url, format, enabled)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.TenantID, d.Name, d.URL, d.Format, d.Enabled)
	return err
}

// UpdateDestination replaces a destination's mutable fields.
func (s *Store) UpdateDestination(d *model.Destination) error {
	_, err := s.db.Exec(`UPDATE destinations SET name = ?, url = ?, format = ?, enabled = ? WHERE id = ?`,
		d.Name, d.URL, d.Format, d.Enabled, d.ID)
	return err
}

// DeleteDestination removes a delivery target.
func (s *Store) DeleteDestination(id string) error {
	_, err := s.db.Exec("DELETE FROM destinations WHERE id = ?", id)
	return err
}

// GetDestination returns one destination by id, or (nil, nil) when absent.
func (s *Store) GetDestination(id string) (*model.Destination, error) {
	row := s.db.QueryRow("SELECT id, tenant_id, name, url, format, enabled FROM destinations WHERE id = ?", id)
	d, err := scanDestination(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// ListDestinations returns all destinations owned by a tenant.
func (s *Store) ListDestinations(tenantID string) ([]*model.Destination, error) {
	return s.listDestinations("SELECT id, tenant_id, name, url, format, enabled FROM destinations WHERE tenant_id = ? ORDER BY name", tenantID)
}

// ListEnabledDestinations returns the enabled destinations for a tenant,
// the fan-out set for one notification request.
func (s *Store) ListEnabledDestinations(tenantID string) ([]*model.Destination, error) {
	return s.listDestinations("SELECT id, tenant_id, name, url, format, enabled FROM destinations WHERE tenant_id = ? AND enabled = 1", tenantID)
}

func (s *Store) listDestinations(query, tenantID string) ([]*model.Destination, error) {
	rows, err := s.db.Query(query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Destination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDestination(row interface{ Scan(...any) error }) (*model.Destination, error) {
	var d model.Destination
	if err := row.Scan(&d.ID, &d.TenantID, &d.Name, &d.URL, &d.Format, &d.Enabled); err != nil {
		return nil, err
	}
	return &d, nil
}
