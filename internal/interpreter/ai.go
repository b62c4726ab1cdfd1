// internal/interpreter/ai.go
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
	"github.com/xkilldash9x/testflow-cli/internal/llmutil"
)

const interpretSystemPrompt = `You are an expert test automation engineer. Convert natural language test steps into browser automation actions.

Return ONLY a valid JSON object with this structure:
{
  "action": "navigate|click|fill|type|select|wait|press_key|hover",
  "params": {
    // Action-specific parameters
  },
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation"
}

Available actions:
- navigate: {"url": "https://..."} - Go to a URL (support relative paths)
- click: {"text": "Button Text"} or {"selector": "#id"} - Click element
- fill: {"selector": "#input", "value": "text"} - Fill input field
- type: {"selector": "#input", "text": "text", "delay": 100} - Type slowly
- select: {"selector": "#dropdown", "value": "option"} - Select dropdown
- wait: {"timeout": 1000} or {"selector": "#element"} - Wait for time/element
- press_key: {"key": "Enter|Tab|Escape|..."} - Press keyboard key
- hover: {"selector": "#element"} - Hover over element

Rules:
1. For navigation, construct full URL if relative path given and base_url available
2. For clicks, prefer text matching over selectors when possible
3. For waits, be intelligent about timing (page loads: 2-5s, animations: 500-1000ms)
4. Return confidence < 0.5 if step is ambiguous
5. Include reasoning for your interpretation`

// wireParams is the union of every per-action parameter the model may emit.
type wireParams struct {
	URL      string `json:"url"`
	Selector string `json:"selector"`
	Text     string `json:"text"`
	Value    string `json:"value"`
	Key      string `json:"key"`
	Timeout  int    `json:"timeout"`
	Delay    int    `json:"delay"`
	Exact    bool   `json:"exact"`
}

// wireAction is the model's JSON answer for one step.
type wireAction struct {
	Action     string     `json:"action"`
	Params     wireParams `json:"params"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
}

// previousAction is the compact step summary fed back as context.
type previousAction struct {
	Step        int    `json:"step"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// stepContext accumulates cross-step state during one interpretation pass.
type stepContext struct {
	baseURL  string
	previous []previousAction
}

// AIInterpreter turns steps into actions through the LLM, one step at a
// time, carrying the base URL and a short window of previous actions as
// context.
type AIInterpreter struct {
	llm    schemas.LLMClient
	logger *zap.Logger
}

// NewAIInterpreter creates the AI-backed interpreter.
func NewAIInterpreter(llm schemas.LLMClient, logger *zap.Logger) *AIInterpreter {
	return &AIInterpreter{
		llm:    llm,
		logger: logger.Named("ai"),
	}
}

// InterpretSteps maps every step to exactly one action. A step the model
// cannot interpret degrades to a wait with zero confidence; the sequence
// never loses its one-to-one shape.
func (a *AIInterpreter) InterpretSteps(ctx context.Context, steps []schemas.TestStep) []schemas.InterpretedAction {
	actions := make([]schemas.InterpretedAction, 0, len(steps))
	sc := &stepContext{}

	for idx, step := range steps {
		action, err := a.interpretStep(ctx, step, sc)
		if err != nil {
			a.logger.Warn("AI interpretation failed for step, using wait action.",
				zap.Int("step", idx+1), zap.Error(err))
			cleanText, _ := StripHTML(step.Content)
			action = schemas.InterpretedAction{
				Params:       schemas.WaitParams{TimeoutMs: 1000},
				Description:  truncate(cleanText, 100),
				Expected:     step.Expected,
				Confidence:   0.0,
				Reasoning:    "AI interpretation failed, fallback action",
				OriginalStep: step.Content,
			}
			actions = append(actions, action)
			continue
		}

		// The first absolute navigation pins the base URL for later steps.
		if nav, ok := action.Params.(schemas.NavigateParams); ok && sc.baseURL == "" && strings.HasPrefix(nav.URL, "http") {
			if m := baseURLRegex.FindStringSubmatch(nav.URL); m != nil {
				sc.baseURL = m[1]
				a.logger.Info("Base URL set.", zap.String("base_url", sc.baseURL))
			}
		}

		sc.previous = append(sc.previous, previousAction{
			Step:        idx + 1,
			Action:      string(action.Kind()),
			Description: truncate(step.Content, 50),
		})

		actions = append(actions, action)
	}

	return actions
}

func (a *AIInterpreter) interpretStep(ctx context.Context, step schemas.TestStep, sc *stepContext) (schemas.InterpretedAction, error) {
	prev := sc.previous
	if len(prev) > 3 {
		prev = prev[len(prev)-3:]
	}
	prevJSON, err := json.MarshalIndent(prev, "", "  ")
	if err != nil {
		prevJSON = []byte("[]")
	}

	userPrompt := fmt.Sprintf(`Test Step: %s
Expected Result: %s
Base URL: %s
Previous Actions: %s

Convert this test step to a browser automation action.`, step.Content, step.Expected, sc.baseURL, prevJSON)

	raw, err := a.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: interpretSystemPrompt,
		UserPrompt:   userPrompt,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
			MaxTokens:       300,
		},
	})
	if err != nil {
		return schemas.InterpretedAction{}, fmt.Errorf("generation failed: %w", err)
	}

	wire, err := llmutil.ParseJSONResponse[wireAction](raw)
	if err != nil {
		return schemas.InterpretedAction{}, err
	}

	params, err := buildParams(wire.Action, wire.Params, sc.baseURL)
	if err != nil {
		return schemas.InterpretedAction{}, err
	}

	a.logger.Info("AI interpreted step.",
		zap.String("action", wire.Action),
		zap.Float64("confidence", wire.Confidence))
	a.logger.Debug("AI reasoning.", zap.String("reasoning", wire.Reasoning))

	return schemas.InterpretedAction{
		Params:       params,
		Description:  truncate(step.Content, 100),
		Expected:     step.Expected,
		Confidence:   wire.Confidence,
		Reasoning:    wire.Reasoning,
		OriginalStep: step.Content,
	}, nil
}

// buildParams converts the model's loose parameter bag into the typed variant
// for the named action, resolving relative navigation URLs against the base.
func buildParams(action string, p wireParams, baseURL string) (schemas.ActionParams, error) {
	var params schemas.ActionParams

	switch schemas.ActionKind(action) {
	case schemas.ActionNavigate:
		url := p.URL
		if url != "" && !strings.HasPrefix(url, "http") && baseURL != "" {
			url = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(url, "/")
		}
		params = schemas.NavigateParams{URL: url}
	case schemas.ActionClick:
		params = schemas.ClickParams{Selector: p.Selector, Text: p.Text, Exact: p.Exact}
	case schemas.ActionFill:
		params = schemas.FillParams{Selector: p.Selector, Value: p.Value}
	case schemas.ActionType:
		params = schemas.TypeParams{Selector: p.Selector, Text: p.Text, DelayMs: p.Delay}
	case schemas.ActionSelect:
		params = schemas.SelectParams{Selector: p.Selector, Value: p.Value}
	case schemas.ActionWait:
		params = schemas.WaitParams{TimeoutMs: p.Timeout, Selector: p.Selector}
	case schemas.ActionPressKey:
		params = schemas.PressKeyParams{Key: p.Key}
	case schemas.ActionHover:
		params = schemas.HoverParams{Selector: p.Selector}
	default:
		return nil, fmt.Errorf("model returned unknown action %q", action)
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("model returned invalid %s params: %w", action, err)
	}
	return params, nil
}
