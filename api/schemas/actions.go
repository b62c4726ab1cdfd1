// api/schemas/actions.go
package schemas

import (
	"fmt"
	"time"
)

// ActionKind enumerates every browser operation the executor can dispatch.
// Unknown kinds are rejected when an action is constructed, not at dispatch.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionClick    ActionKind = "click"
	ActionFill     ActionKind = "fill"
	ActionType     ActionKind = "type"
	ActionSelect   ActionKind = "select"
	ActionWait     ActionKind = "wait"
	ActionPressKey ActionKind = "press_key"
	ActionHover    ActionKind = "hover"
)

// ActionParams is the closed set of per-kind parameter variants. Each variant
// knows its own required fields, so a malformed action is caught when it is
// built rather than when the browser tries to run it.
type ActionParams interface {
	Kind() ActionKind
	// Validate reports the first missing required parameter.
	Validate() error
}

// NavigateParams loads a URL.
type NavigateParams struct {
	URL string `json:"url"`
}

func (NavigateParams) Kind() ActionKind { return ActionNavigate }

func (p NavigateParams) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("url is required for navigate action")
	}
	return nil
}

// ClickParams clicks an element located either by CSS selector or by its
// visible text. Exactly one of the two locators must be present.
type ClickParams struct {
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Exact    bool   `json:"exact,omitempty"`
}

func (ClickParams) Kind() ActionKind { return ActionClick }

func (p ClickParams) Validate() error {
	if p.Selector == "" && p.Text == "" {
		return fmt.Errorf("either selector or text is required for click action")
	}
	return nil
}

// FillParams sets an input's value in one shot.
type FillParams struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

func (FillParams) Kind() ActionKind { return ActionFill }

func (p FillParams) Validate() error {
	if p.Selector == "" {
		return fmt.Errorf("selector is required for fill action")
	}
	return nil
}

// TypeParams types text keystroke by keystroke with an optional delay.
type TypeParams struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
	DelayMs  int    `json:"delay,omitempty"`
}

func (TypeParams) Kind() ActionKind { return ActionType }

func (p TypeParams) Validate() error {
	if p.Selector == "" {
		return fmt.Errorf("selector is required for type action")
	}
	return nil
}

// SelectParams chooses a dropdown option by value or visible label.
type SelectParams struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

func (SelectParams) Kind() ActionKind { return ActionSelect }

func (p SelectParams) Validate() error {
	if p.Selector == "" || p.Value == "" {
		return fmt.Errorf("selector and value are required for select action")
	}
	return nil
}

// WaitParams waits for an element to appear, or simply sleeps when no
// selector is given. The zero TimeoutMs falls back to the session default.
type WaitParams struct {
	TimeoutMs int    `json:"timeout,omitempty"`
	Selector  string `json:"selector,omitempty"`
}

func (WaitParams) Kind() ActionKind { return ActionWait }

// Validate always succeeds: a bare wait is the universal placeholder action.
func (p WaitParams) Validate() error { return nil }

// PressKeyParams sends a single keyboard key (Enter, Tab, Escape, ...).
type PressKeyParams struct {
	Key string `json:"key"`
}

func (PressKeyParams) Kind() ActionKind { return ActionPressKey }

func (p PressKeyParams) Validate() error {
	if p.Key == "" {
		return fmt.Errorf("key is required for press_key action")
	}
	return nil
}

// HoverParams moves the pointer over an element.
type HoverParams struct {
	Selector string `json:"selector"`
}

func (HoverParams) Kind() ActionKind { return ActionHover }

func (p HoverParams) Validate() error {
	if p.Selector == "" {
		return fmt.Errorf("selector is required for hover action")
	}
	return nil
}

// Compile-time check that every variant satisfies ActionParams.
var (
	_ ActionParams = NavigateParams{}
	_ ActionParams = ClickParams{}
	_ ActionParams = FillParams{}
	_ ActionParams = TypeParams{}
	_ ActionParams = SelectParams{}
	_ ActionParams = WaitParams{}
	_ ActionParams = PressKeyParams{}
	_ ActionParams = HoverParams{}
)

// InterpretedAction is one resolved browser operation, produced one-to-one
// from a test step. Immutable after creation.
type InterpretedAction struct {
	Params       ActionParams
	Description  string  // Truncated to 100 chars at construction.
	Expected     string  // Expected-result text, empty when the step has none.
	Confidence   float64 // [0,1], advisory only.
	Reasoning    string
	OriginalStep string
}

// Kind returns the action kind of the underlying params.
func (a InterpretedAction) Kind() ActionKind { return a.Params.Kind() }

// ActionResult is the outcome of one primitive browser action.
type ActionResult struct {
	Success    bool          `json:"success"`
	Action     ActionKind    `json:"action"`
	Screenshot string        `json:"screenshot,omitempty"`
	Error      string        `json:"error,omitempty"`
	CurrentURL string        `json:"current_url,omitempty"`
	Title      string        `json:"title,omitempty"`
	Text       string        `json:"text,omitempty"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

// ValidationResult is the oracle's verdict for one expected result.
type ValidationResult struct {
	Passed         bool    `json:"passed"`
	Confidence     float64 `json:"confidence"`
	Message        string  `json:"message"`
	Reasoning      string  `json:"reasoning"`
	ExtractedValue string  `json:"extracted_value,omitempty"`
}
