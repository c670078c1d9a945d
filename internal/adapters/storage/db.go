package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migration is one numbered schema step. Migrations are append-only: never
// edit a shipped migration, add a new one.
type migration struct {
	version int
	apply   func(*sql.DB) error
}

// migrations is the ordered schema history.
var migrations = []migration{
	{1, migrateBaseline},
}

// LatestSchemaVersion returns the highest known migration version.
// PRE: none
// POST: returns the version a fully migrated database reports
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion reports the database's current schema version.
// PRE: db is a valid database connection
// POST: returns 0 for an untracked database, the recorded version otherwise
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var version int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// MigrateDB brings the database schema up to the latest version.
// PRE: db is a valid database connection
// POST: schema_version reports LatestSchemaVersion; WAL and foreign keys on
func MigrateDB(db *sql.DB, dbPath string) error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	// Enable foreign key enforcement
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current := 0
	row := db.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&current); err != nil {
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (0)"); err != nil {
			return fmt.Errorf("failed to seed schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := m.apply(db); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := db.Exec("UPDATE schema_version SET version = ?", m.version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		slog.Info("schema_migrated", "version", m.version, "db", dbPath)
	}

	return nil
}

// migrateBaseline creates the initial ledger schema.
// The attendance_session and exam_session tables mirror the shape of the two
// source collections: dates are DD/MM/YYYY strings and the per-student maps
// live in a single JSON column so each commit writes the whole map as one
// unit. UNIQUE(class_id, subject, date) enforces one record per session key.
func migrateBaseline(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at TEXT NOT NULL,
		failed_logins INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT
	);

	CREATE TABLE IF NOT EXISTS class (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS subject_assignment (
		id TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL,
		class_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		UNIQUE (teacher_id, class_id, subject),
		FOREIGN KEY (teacher_id) REFERENCES account(id),
		FOREIGN KEY (class_id) REFERENCES class(id)
	);

	CREATE TABLE IF NOT EXISTS student (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		class_id TEXT NOT NULL,
		avatar_url TEXT,
		FOREIGN KEY (class_id) REFERENCES class(id)
	);

	CREATE TABLE IF NOT EXISTS attendance_session (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		date TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		records TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (class_id, subject, date),
		FOREIGN KEY (class_id) REFERENCES class(id)
	);

	CREATE TABLE IF NOT EXISTS exam_session (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		date TEXT NOT NULL,
		exam_title TEXT NOT NULL,
		max_score INTEGER NOT NULL,
		teacher_id TEXT NOT NULL,
		results TEXT NOT NULL,
		student_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (class_id, subject, date),
		FOREIGN KEY (class_id) REFERENCES class(id)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create baseline schema: %w", err)
	}
	return nil
}
