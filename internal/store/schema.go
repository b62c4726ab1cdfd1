// internal/store/schema.go
package store

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS test_runs (
		id BIGSERIAL PRIMARY KEY,
		test_case_id TEXT NOT NULL,
		test_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ,
		duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_steps INTEGER NOT NULL DEFAULT 0,
		passed_steps INTEGER NOT NULL DEFAULT 0,
		failed_steps INTEGER NOT NULL DEFAULT 0,
		screenshots_path TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS test_steps (
		id BIGSERIAL PRIMARY KEY,
		test_run_id BIGINT NOT NULL REFERENCES test_runs(id) ON DELETE CASCADE,
		step_number INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		action_type TEXT NOT NULL,
		action_params TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error_message TEXT,
		screenshot_path TEXT NOT NULL DEFAULT '',
		execution_time_ms BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS screenshots (
		id BIGSERIAL PRIMARY KEY,
		test_run_id BIGINT NOT NULL REFERENCES test_runs(id) ON DELETE CASCADE,
		test_step_id BIGINT REFERENCES test_steps(id) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		file_size_bytes BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_test_steps_run ON test_steps (test_run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_screenshots_run ON screenshots (test_run_id)`,
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	s.log.Debug("Database schema ensured.")
	return nil
}
