// api/schemas/runs.go
package schemas

import "time"

// RunStatus is the lifecycle state of a test run.
type RunStatus string

const (
	RunRunning RunStatus = "RUNNING"
	RunPassed  RunStatus = "PASSED"
	RunFailed  RunStatus = "FAILED"
)

// StepStatus is the terminal state of one executed step.
type StepStatus string

const (
	StepPassed StepStatus = "PASSED"
	StepFailed StepStatus = "FAILED"
)

// TestStep is one manual test step as sourced from the test-case system.
// Content and Expected may carry HTML markup.
type TestStep struct {
	Content  string `json:"content"`
	Expected string `json:"expected,omitempty"`
}

// TestCase is the fetched test case: a title plus its ordered steps.
type TestCase struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Steps []TestStep `json:"steps"`
}

// RunRecord mirrors one row of the test_runs table.
type RunRecord struct {
	ID              int64
	TestCaseID      string
	TestName        string
	Status          RunStatus
	StartTime       time.Time
	EndTime         *time.Time
	DurationSeconds float64
	TotalSteps      int
	PassedSteps     int
	FailedSteps     int
	ScreenshotsPath string
}

// RunUpdate carries the fields of a partial run update. Nil fields are left
// untouched by the store.
type RunUpdate struct {
	TestName        *string
	Status          *RunStatus
	EndTime         *time.Time
	DurationSeconds *float64
	TotalSteps      *int
	PassedSteps     *int
	FailedSteps     *int
	ScreenshotsPath *string
}

// StepRecord mirrors one row of the test_steps table.
type StepRecord struct {
	RunID           int64
	StepNumber      int
	Description     string
	ActionType      ActionKind
	ActionParams    string // JSON-encoded params, for traceability only.
	Status          StepStatus
	ErrorMessage    string
	ScreenshotPath  string
	ExecutionTimeMs int64
}

// ScreenshotRecord mirrors one row of the screenshots table.
type ScreenshotRecord struct {
	RunID         int64
	StepID        int64
	FilePath      string
	FileName      string
	FileSizeBytes int64
}

// RunSummary aggregates the outcome of a finished run.
type RunSummary struct {
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Duration    time.Duration
}

// ProgressStage labels the phase a progress event belongs to.
type ProgressStage string

const (
	StageFetching     ProgressStage = "fetching"
	StageInterpreting ProgressStage = "interpreting"
	StageExecuting    ProgressStage = "executing"
	StageComplete     ProgressStage = "complete"
	StageError        ProgressStage = "error"
)

// ProgressEvent is one best-effort progress broadcast.
type ProgressEvent struct {
	RunID     int64         `json:"run_id"`
	CaseID    string        `json:"case_id"`
	Stage     ProgressStage `json:"stage"`
	Percent   int           `json:"percent"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}
