package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per program run.
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			speed_limit INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// One row per controlled frame. objects is a CBOR array of detections.
		`CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			speed INTEGER NOT NULL,
			speed_limit INTEGER NOT NULL,
			objects BLOB,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_frames_session_id ON frames(session_id, seq)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
