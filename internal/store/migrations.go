package store

import "database/sql"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		condition TEXT NOT NULL,
		threshold TEXT NOT NULL,
		enter_threshold INTEGER NOT NULL DEFAULT 1,
		exit_threshold INTEGER NOT NULL DEFAULT 1,
		repeat_interval INTEGER NOT NULL DEFAULT 300,
		missing_as_breach INTEGER NOT NULL DEFAULT 0,
		expected_interval INTEGER NOT NULL DEFAULT 0,
		enabled INTEGER NOT NULL DEFAULT 1,
		consecutive_breaches INTEGER NOT NULL DEFAULT 0,
		consecutive_recoveries INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 0,
		last_notified_at INTEGER NOT NULL DEFAULT 0,
		last_sample_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_tenant_metric ON alerts(tenant_id, metric);`,

	`CREATE TABLE IF NOT EXISTS destinations (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		format TEXT NOT NULL DEFAULT 'generic',
		enabled INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_destinations_tenant ON destinations(tenant_id);`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		alert_id TEXT NOT NULL,
		destination_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		success INTEGER NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_tenant_ts ON audit_log(tenant_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_alert_ts ON audit_log(alert_id, timestamp);`,

	`CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		value TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_samples_tenant_metric_ts ON samples(tenant_id, metric, timestamp);`,
}

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var current int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
