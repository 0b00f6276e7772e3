package store

func (s *SQLiteStore) migrate() error {
	return s.migrateV1()
}

func (s *SQLiteStore) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		phase TEXT NOT NULL DEFAULT 'planning',
		health_score REAL NOT NULL DEFAULT 1.0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_phase ON sessions(phase);
	`
	_, err := s.db.Exec(schema)
	return err
}
