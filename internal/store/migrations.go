package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per recording
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			frame_rate INTEGER NOT NULL,
			roles TEXT NOT NULL DEFAULT '[]',
			frames INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Pose samples table - raw backend samples per frame and role
		`CREATE TABLE IF NOT EXISTS pose_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame INTEGER NOT NULL,
			role TEXT NOT NULL,
			device_index INTEGER NOT NULL DEFAULT -1,
			data TEXT NOT NULL
		)`,

		// Skeleton frames table - unconverted bones, summaries and status per frame and role
		`CREATE TABLE IF NOT EXISTS skeleton_frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame INTEGER NOT NULL,
			role TEXT NOT NULL,
			data TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_pose_samples_session ON pose_samples(session_id, frame)`,
		`CREATE INDEX IF NOT EXISTS idx_skeleton_frames_session ON skeleton_frames(session_id, frame)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
