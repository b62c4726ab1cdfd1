// internal/executor/executor.go

// Package executor orchestrates one test run end to end: fetch the case,
// interpret its steps, drive the browser, judge each expected result, and
// persist everything. A failed step never short-circuits the run; a human
// tester finishes the script and reports every failure they saw.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
	"github.com/xkilldash9x/testflow-cli/internal/interpreter"
	"github.com/xkilldash9x/testflow-cli/internal/validation"
)

// SessionProvider hands out exclusive browser sessions keyed by run.
type SessionProvider interface {
	Acquire(ctx context.Context, runKey string) (schemas.BrowserSession, error)
}

// Result is the outcome of one complete run.
type Result struct {
	RunID           int64
	Status          schemas.RunStatus
	TestName        string
	TotalSteps      int
	PassedSteps     int
	FailedSteps     int
	Duration        time.Duration
	ScreenshotsPath string
}

// Executor wires the pipeline stages together.
type Executor struct {
	source   schemas.TestCaseSource
	store    schemas.RunStore // nil disables persistence
	interp   *interpreter.Interpreter
	oracle   *validation.Oracle
	browsers SessionProvider
	progress schemas.ProgressSink
	logger   *zap.Logger
}

// New builds an executor. A nil store runs the pipeline without persistence;
// a nil progress sink drops all progress events.
func New(
	source schemas.TestCaseSource,
	store schemas.RunStore,
	interp *interpreter.Interpreter,
	oracle *validation.Oracle,
	browsers SessionProvider,
	progress schemas.ProgressSink,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		source:   source,
		store:    store,
		interp:   interp,
		oracle:   oracle,
		browsers: browsers,
		progress: progress,
		logger:   logger.Named("executor"),
	}
}

// Run executes one test case and returns the run outcome. The returned error
// is non-nil only for pipeline-level failures (fetch, browser startup,
// cancellation); step failures are reported through the Result.
func (e *Executor) Run(ctx context.Context, caseID string) (*Result, error) {
	startTime := time.Now()
	logger := e.logger.With(zap.String("case_id", caseID))

	runID := e.createRun(ctx, caseID, startTime)
	logger = logger.With(zap.Int64("run_id", runID))

	// Stage 1: fetch.
	e.notify(runID, caseID, schemas.StageFetching, 20, fmt.Sprintf("Fetching test case %s...", caseID))

	tc, err := e.source.FetchTestCase(ctx, caseID)
	if err != nil {
		return nil, e.failRun(runID, caseID, startTime, fmt.Errorf("failed to fetch test case: %w", err))
	}

	steps := tc.Steps
	if len(steps) == 0 {
		logger.Warn("Test case has no steps, inserting placeholder step.")
		steps = []schemas.TestStep{{Content: "Default step - no steps found in test case"}}
	}

	e.updateRun(ctx, runID, schemas.RunUpdate{
		TestName:   &tc.Title,
		TotalSteps: intPtr(len(steps)),
	})

	// Stage 2: interpretation.
	e.notify(runID, caseID, schemas.StageInterpreting, 40, fmt.Sprintf("Analyzing %d test steps...", len(steps)))

	actions := e.interp.InterpretSteps(ctx, steps)

	e.notify(runID, caseID, schemas.StageInterpreting, 50, fmt.Sprintf("Interpretation complete: %d actions generated", len(actions)))

	// Stage 3: execution. One exclusive browser session for the whole run.
	session, err := e.browsers.Acquire(ctx, fmt.Sprintf("case-%s-run-%d", caseID, runID))
	if err != nil {
		return nil, e.failRun(runID, caseID, startTime, fmt.Errorf("failed to start browser session: %w", err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if closeErr := session.Close(closeCtx); closeErr != nil {
			logger.Warn("Failed to close browser session.", zap.Error(closeErr))
		}
	}()

	screenshotsPath := session.ScreenshotDir()
	e.updateRun(ctx, runID, schemas.RunUpdate{ScreenshotsPath: &screenshotsPath})

	e.notify(runID, caseID, schemas.StageExecuting, 60, fmt.Sprintf("Executing %d actions...", len(actions)))

	passedSteps := 0
	failedSteps := 0

	for idx, action := range actions {
		if ctx.Err() != nil {
			return nil, e.failRun(runID, caseID, startTime, fmt.Errorf("run canceled: %w", ctx.Err()))
		}

		percent := 60 + (idx+1)*30/len(actions)
		e.notify(runID, caseID, schemas.StageExecuting, percent,
			fmt.Sprintf("Executing step %d/%d: %s", idx+1, len(actions), action.Kind()))

		status := e.executeStep(ctx, session, runID, idx+1, action)
		if status == schemas.StepPassed {
			passedSteps++
		} else {
			failedSteps++
		}
	}

	// Surface page errors the monitor collected during the run.
	for _, entry := range session.ConsoleLogs() {
		if entry.Type == "error" {
			logger.Warn("Page error captured during run.", zap.String("text", entry.Text))
		}
	}

	// Stage 4: complete.
	duration := time.Since(startTime)
	finalStatus := schemas.RunPassed
	if failedSteps > 0 {
		finalStatus = schemas.RunFailed
	}

	logger.Info("Test execution complete.",
		zap.String("status", string(finalStatus)),
		zap.Duration("duration", duration),
		zap.Int("passed", passedSteps),
		zap.Int("failed", failedSteps))

	e.notify(runID, caseID, schemas.StageComplete, 100,
		fmt.Sprintf("Test complete! %d passed, %d failed", passedSteps, failedSteps))

	endTime := time.Now()
	e.updateRun(ctx, runID, schemas.RunUpdate{
		Status:          &finalStatus,
		EndTime:         &endTime,
		DurationSeconds: float64Ptr(duration.Seconds()),
		TotalSteps:      intPtr(len(actions)),
		PassedSteps:     intPtr(passedSteps),
		FailedSteps:     intPtr(failedSteps),
	})

	return &Result{
		RunID:           runID,
		Status:          finalStatus,
		TestName:        tc.Title,
		TotalSteps:      len(actions),
		PassedSteps:     passedSteps,
		FailedSteps:     failedSteps,
		Duration:        duration,
		ScreenshotsPath: screenshotsPath,
	}, nil
}

// executeStep runs one action, validates its expected result when one
// exists, and records the step. The validation verdict wins over execution
// success: the end state is what a tester signs off on.
func (e *Executor) executeStep(ctx context.Context, session schemas.BrowserSession, runID int64, stepNumber int, action schemas.InterpretedAction) schemas.StepStatus {
	execResult := session.Execute(ctx, action.Params)

	hasValidation := strings.TrimSpace(action.Expected) != ""
	var validationResult schemas.ValidationResult

	if hasValidation {
		pageContent := e.collectPageContent(ctx, session)
		validationResult = e.oracle.Validate(ctx, action.Expected, pageContent, validation.Context{
			ActionPerformed: action.Kind(),
			StepDescription: action.Description,
		})
	}

	var status schemas.StepStatus
	var errorMessage string
	switch {
	case hasValidation && validationResult.Passed:
		status = schemas.StepPassed
	case hasValidation:
		status = schemas.StepFailed
		errorMessage = validationResult.Message
	case execResult.Success:
		status = schemas.StepPassed
	default:
		status = schemas.StepFailed
		errorMessage = execResult.Error
	}

	e.recordStep(ctx, runID, stepNumber, action, execResult, status, errorMessage)
	return status
}

// collectPageContent extracts and formats the page state for the oracle.
func (e *Executor) collectPageContent(ctx context.Context, session schemas.BrowserSession) string {
	snap, err := session.Snapshot(ctx)
	if err != nil {
		e.logger.Debug("Page snapshot failed, validating against raw text.", zap.Error(err))
		text, readErr := session.ReadText(ctx, "")
		if readErr != nil {
			e.logger.Warn("Could not read page text for validation.", zap.Error(readErr))
			return ""
		}
		return text
	}
	return validation.FormatSnapshot(snap)
}

// -- persistence helpers; all failures are logged, never escalated --

func (e *Executor) createRun(ctx context.Context, caseID string, startTime time.Time) int64 {
	if e.store == nil {
		return 0
	}
	id, err := e.store.CreateRun(ctx, schemas.RunRecord{
		TestCaseID: caseID,
		Status:     schemas.RunRunning,
		StartTime:  startTime,
	})
	if err != nil {
		e.logger.Error("Failed to create run record.", zap.Error(err))
		return 0
	}
	return id
}

func (e *Executor) updateRun(ctx context.Context, runID int64, update schemas.RunUpdate) {
	if e.store == nil || runID == 0 {
		return
	}
	if err := e.store.UpdateRun(ctx, runID, update); err != nil {
		e.logger.Error("Failed to update run record.", zap.Int64("run_id", runID), zap.Error(err))
	}
}

func (e *Executor) recordStep(ctx context.Context, runID int64, stepNumber int, action schemas.InterpretedAction, execResult schemas.ActionResult, status schemas.StepStatus, errorMessage string) {
	if e.store == nil || runID == 0 {
		return
	}

	paramsJSON, err := json.Marshal(action.Params)
	if err != nil {
		paramsJSON = []byte("{}")
	}

	stepID, err := e.store.CreateStep(ctx, schemas.StepRecord{
		RunID:           runID,
		StepNumber:      stepNumber,
		Description:     action.Description,
		ActionType:      action.Kind(),
		ActionParams:    string(paramsJSON),
		Status:          status,
		ErrorMessage:    errorMessage,
		ScreenshotPath:  execResult.Screenshot,
		ExecutionTimeMs: execResult.Duration.Milliseconds(),
	})
	if err != nil {
		e.logger.Error("Failed to record step.", zap.Int64("run_id", runID), zap.Int("step", stepNumber), zap.Error(err))
		return
	}

	if execResult.Screenshot == "" {
		return
	}

	var size int64
	if info, statErr := os.Stat(execResult.Screenshot); statErr == nil {
		size = info.Size()
	}
	shotErr := e.store.CreateScreenshot(ctx, schemas.ScreenshotRecord{
		RunID:         runID,
		StepID:        stepID,
		FilePath:      execResult.Screenshot,
		FileName:      filepath.Base(execResult.Screenshot),
		FileSizeBytes: size,
	})
	if shotErr != nil {
		e.logger.Error("Failed to record screenshot.", zap.Int64("run_id", runID), zap.Error(shotErr))
	}
}

// failRun marks the run failed, broadcasts the error stage, and returns the
// original error for the caller.
func (e *Executor) failRun(runID int64, caseID string, startTime time.Time, err error) error {
	e.logger.Error("Test execution error.", zap.String("case_id", caseID), zap.Error(err))

	e.notify(runID, caseID, schemas.StageError, 0, fmt.Sprintf("Error: %v", err))

	// The run context may be the reason for the failure; persistence gets
	// its own deadline.
	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	endTime := time.Now()
	failed := schemas.RunFailed
	e.updateRun(persistCtx, runID, schemas.RunUpdate{
		Status:          &failed,
		EndTime:         &endTime,
		DurationSeconds: float64Ptr(time.Since(startTime).Seconds()),
	})

	return err
}

func (e *Executor) notify(runID int64, caseID string, stage schemas.ProgressStage, percent int, message string) {
	if e.progress == nil {
		return
	}
	e.progress.Notify(schemas.ProgressEvent{
		RunID:     runID,
		CaseID:    caseID,
		Stage:     stage,
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }
