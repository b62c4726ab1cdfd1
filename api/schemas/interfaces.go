// api/schemas/interfaces.go
package schemas

import "context"

// TestCaseSource fetches a test case from the external test-case management
// system. Implementations must tolerate the historical field-name aliases
// the source has used for its steps list.
type TestCaseSource interface {
	FetchTestCase(ctx context.Context, caseID string) (*TestCase, error)
}

// RunStore is the persistence sink for runs, steps, and screenshot metadata.
// Every call except CreateRun is fire-and-forget from the executor's point
// of view: failures are logged, never escalated to run failures.
type RunStore interface {
	CreateRun(ctx context.Context, run RunRecord) (int64, error)
	UpdateRun(ctx context.Context, runID int64, update RunUpdate) error
	CreateStep(ctx context.Context, step StepRecord) (int64, error)
	CreateScreenshot(ctx context.Context, shot ScreenshotRecord) error
	SummarizeRun(ctx context.Context, runID int64) (*RunSummary, error)
}

// ProgressSink receives best-effort progress broadcasts. Delivery failure
// must never abort a run.
type ProgressSink interface {
	Notify(event ProgressEvent)
}

// BrowserSession is the stateful automation surface over one page. One
// session is exclusively owned by one run; see browser.Manager.
type BrowserSession interface {
	ID() string
	// Execute runs one primitive action and always returns a result, turning
	// internal failures into {Success: false, Error: ...}.
	Execute(ctx context.Context, params ActionParams) ActionResult
	// ReadText returns the text content of the first element matching the
	// selector ("body" when empty).
	ReadText(ctx context.Context, selector string) (string, error)
	// Snapshot extracts the structured page state, falling back to a
	// text-only snapshot when structured extraction fails.
	Snapshot(ctx context.Context) (*PageSnapshot, error)
	// ConsoleLogs returns a copy of the append-only console/error buffer.
	ConsoleLogs() []ConsoleLog
	// ScreenshotDir returns the run-scoped directory screenshots land in.
	ScreenshotDir() string
	// Close releases page, context, and browser. Idempotent.
	Close(ctx context.Context) error
}

// GenerationOptions controls an LLM completion.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
}

// GenerationRequest is one complete prompt for the LLM provider.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient abstracts the language-model provider. A client constructed
// without credentials reports Enabled() == false and the callers switch to
// their rule-based strategies; that is configuration, not an error.
type LLMClient interface {
	Enabled() bool
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}
