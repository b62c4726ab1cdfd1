// internal/store/store.go

// Package store persists runs, steps, and screenshot metadata to PostgreSQL.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

// DBPool abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL implementation of schemas.RunStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.RunStore = (*Store)(nil)

// New creates a store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// CreateRun inserts a run row and returns its generated ID.
func (s *Store) CreateRun(ctx context.Context, run schemas.RunRecord) (int64, error) {
	const query = `
		INSERT INTO test_runs (test_case_id, test_name, status, start_time, total_steps, screenshots_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		run.TestCaseID, run.TestName, string(run.Status),
		run.StartTime.UTC(), run.TotalSteps, run.ScreenshotsPath,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert test run: %w", err)
	}

	s.log.Debug("Test run created.", zap.Int64("run_id", id), zap.String("case_id", run.TestCaseID))
	return id, nil
}

// UpdateRun applies a partial update; nil fields are left untouched.
func (s *Store) UpdateRun(ctx context.Context, runID int64, update schemas.RunUpdate) error {
	sets := make([]string, 0, 8)
	args := make([]interface{}, 0, 9)

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.TestName != nil {
		add("test_name", *update.TestName)
	}
	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.EndTime != nil {
		add("end_time", update.EndTime.UTC())
	}
	if update.DurationSeconds != nil {
		add("duration_seconds", *update.DurationSeconds)
	}
	if update.TotalSteps != nil {
		add("total_steps", *update.TotalSteps)
	}
	if update.PassedSteps != nil {
		add("passed_steps", *update.PassedSteps)
	}
	if update.FailedSteps != nil {
		add("failed_steps", *update.FailedSteps)
	}
	if update.ScreenshotsPath != nil {
		add("screenshots_path", *update.ScreenshotsPath)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, runID)
	query := fmt.Sprintf("UPDATE test_runs SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update test run %d: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("test run %d not found", runID)
	}
	return nil
}

// CreateStep inserts a step row and returns its generated ID.
func (s *Store) CreateStep(ctx context.Context, step schemas.StepRecord) (int64, error) {
	const query = `
		INSERT INTO test_steps (test_run_id, step_number, description, action_type, action_params, status, error_message, screenshot_path, execution_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		step.RunID, step.StepNumber, step.Description,
		string(step.ActionType), step.ActionParams, string(step.Status),
		nullableString(step.ErrorMessage), step.ScreenshotPath, step.ExecutionTimeMs,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert test step: %w", err)
	}
	return id, nil
}

// CreateScreenshot records screenshot metadata for a step.
func (s *Store) CreateScreenshot(ctx context.Context, shot schemas.ScreenshotRecord) error {
	const query = `
		INSERT INTO screenshots (test_run_id, test_step_id, file_path, file_name, file_size_bytes)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		shot.RunID, shot.StepID, shot.FilePath, shot.FileName, shot.FileSizeBytes)
	if err != nil {
		return fmt.Errorf("failed to insert screenshot: %w", err)
	}
	return nil
}

// SummarizeRun aggregates the step outcomes of one run.
func (s *Store) SummarizeRun(ctx context.Context, runID int64) (*schemas.RunSummary, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'PASSED'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COALESCE(SUM(execution_time_ms), 0)
		FROM test_steps
		WHERE test_run_id = $1`

	var summary schemas.RunSummary
	var totalMs int64
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&summary.TotalSteps, &summary.PassedSteps, &summary.FailedSteps, &totalMs)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize run %d: %w", runID, err)
	}
	summary.Duration = time.Duration(totalMs) * time.Millisecond
	return &summary, nil
}

// nullableString maps the empty string to SQL NULL.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
