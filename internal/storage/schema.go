// ABOUTME: SQLite schema definition and initialization.
// ABOUTME: Defines per-field records, user lock settings, import sessions, and the decision log.
package storage

// initSchema creates or updates the database schema.
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS health_fields (
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		field_name TEXT NOT NULL,
		value TEXT NOT NULL,
		source TEXT,
		recorded_at TEXT,
		device_id TEXT,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, date, field_name)
	);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		data_lock_enabled INTEGER NOT NULL DEFAULT 0,
		data_lock_date TEXT,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS import_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		source TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		imported INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS decision_log (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		field_name TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		source TEXT NOT NULL,
		recorded_at TEXT,
		detail TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fields_user_field ON health_fields(user_id, field_name, recorded_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_started ON import_sessions(user_id, started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_decisions_user_created ON decision_log(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_decisions_session ON decision_log(session_id);
	`

	_, err := d.db.Exec(schema)
	return err
}
