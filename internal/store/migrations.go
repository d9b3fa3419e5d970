package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Strokes table - trained single-finger stroke templates
		`CREATE TABLE IF NOT EXISTS strokes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			tolerance REAL NOT NULL DEFAULT 0.15,
			samples INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Stroke paths table - the averaged template path
		`CREATE TABLE IF NOT EXISTS stroke_paths (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stroke_id TEXT NOT NULL REFERENCES strokes(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			timestamp_ms INTEGER NOT NULL
		)`,

		// Stroke samples table - raw recorded samples for training
		`CREATE TABLE IF NOT EXISTS stroke_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stroke_id TEXT NOT NULL REFERENCES strokes(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Actions table - plugin actions bound to a gesture key
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			gesture TEXT NOT NULL UNIQUE,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Gesture events table - journal of recognized gestures
		`CREATE TABLE IF NOT EXISTS gesture_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			gesture TEXT NOT NULL,
			kind TEXT NOT NULL,
			confidence REAL NOT NULL,
			duration_ms REAL NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_stroke_paths_stroke_id ON stroke_paths(stroke_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stroke_samples_stroke_id ON stroke_samples(stroke_id)`,
		`CREATE INDEX IF NOT EXISTS idx_gesture_events_session_id ON gesture_events(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
