// internal/interpreter/ai_test.go
package interpreter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

// fakeLLM replays canned responses and records the requests it saw.
type fakeLLM struct {
	enabled   bool
	responses []string
	errs      []error
	requests  []schemas.GenerationRequest
}

func (f *fakeLLM) Enabled() bool { return f.enabled }

func (f *fakeLLM) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", errors.New("no canned response")
}

func (f *fakeLLM) Close() error { return nil }

var _ schemas.LLMClient = (*fakeLLM)(nil)

func TestAIInterpreterConvertsWireActions(t *testing.T) {
	llm := &fakeLLM{
		enabled: true,
		responses: []string{
			`{"action": "navigate", "params": {"url": "https://app.example.com/login"}, "confidence": 0.95, "reasoning": "explicit URL"}`,
			`{"action": "fill", "params": {"selector": "#username", "value": "admin"}, "confidence": 0.9, "reasoning": "username field"}`,
		},
	}
	ai := NewAIInterpreter(llm, zap.NewNop())

	steps := []schemas.TestStep{
		{Content: "Navigate to https://app.example.com/login"},
		{Content: "Enter admin into the username field", Expected: "Username shows admin"},
	}

	actions := ai.InterpretSteps(context.Background(), steps)
	require.Len(t, actions, 2)

	nav, ok := actions[0].Params.(schemas.NavigateParams)
	require.True(t, ok)
	assert.Equal(t, "https://app.example.com/login", nav.URL)
	assert.InDelta(t, 0.95, actions[0].Confidence, 1e-9)

	fill, ok := actions[1].Params.(schemas.FillParams)
	require.True(t, ok)
	assert.Equal(t, "#username", fill.Selector)
	assert.Equal(t, "admin", fill.Value)
	assert.Equal(t, "Username shows admin", actions[1].Expected)
}

func TestAIInterpreterFailedStepBecomesWait(t *testing.T) {
	llm := &fakeLLM{
		enabled: true,
		responses: []string{
			"this is not JSON at all",
		},
	}
	ai := NewAIInterpreter(llm, zap.NewNop())

	actions := ai.InterpretSteps(context.Background(), []schemas.TestStep{
		{Content: "Do something", Expected: "Something happens"},
	})
	require.Len(t, actions, 1)

	wait, ok := actions[0].Params.(schemas.WaitParams)
	require.True(t, ok)
	assert.Equal(t, 1000, wait.TimeoutMs)
	assert.Zero(t, actions[0].Confidence)
	assert.Equal(t, "Something happens", actions[0].Expected)
	assert.Equal(t, "AI interpretation failed, fallback action", actions[0].Reasoning)
}

func TestAIInterpreterUnknownActionBecomesWait(t *testing.T) {
	llm := &fakeLLM{
		enabled:   true,
		responses: []string{`{"action": "teleport", "params": {}, "confidence": 0.8}`},
	}
	ai := NewAIInterpreter(llm, zap.NewNop())

	actions := ai.InterpretSteps(context.Background(), []schemas.TestStep{{Content: "Teleport"}})
	require.Len(t, actions, 1)
	_, ok := actions[0].Params.(schemas.WaitParams)
	assert.True(t, ok)
}

func TestAIInterpreterResolvesRelativeURLs(t *testing.T) {
	llm := &fakeLLM{
		enabled: true,
		responses: []string{
			`{"action": "navigate", "params": {"url": "https://app.example.com/login"}, "confidence": 0.9}`,
			`{"action": "navigate", "params": {"url": "/settings"}, "confidence": 0.8}`,
		},
	}
	ai := NewAIInterpreter(llm, zap.NewNop())

	actions := ai.InterpretSteps(context.Background(), []schemas.TestStep{
		{Content: "Open the app"},
		{Content: "Go to settings"},
	})
	require.Len(t, actions, 2)

	nav, ok := actions[1].Params.(schemas.NavigateParams)
	require.True(t, ok)
	assert.Equal(t, "https://app.example.com/settings", nav.URL)
}

func TestAIInterpreterCarriesContextBetweenSteps(t *testing.T) {
	llm := &fakeLLM{
		enabled: true,
		responses: []string{
			`{"action": "navigate", "params": {"url": "https://app.example.com/a"}, "confidence": 0.9}`,
			`{"action": "wait", "params": {"timeout": 500}, "confidence": 0.7}`,
		},
	}
	ai := NewAIInterpreter(llm, zap.NewNop())

	ai.InterpretSteps(context.Background(), []schemas.TestStep{
		{Content: "Open the app"},
		{Content: "Wait for it to load"},
	})
	require.Len(t, llm.requests, 2)

	// The second prompt carries the pinned base URL and the first action.
	assert.Contains(t, llm.requests[1].UserPrompt, "Base URL: https://app.example.com")
	assert.Contains(t, llm.requests[1].UserPrompt, `"action": "navigate"`)
}

func TestInterpreterFacade(t *testing.T) {
	t.Run("disabled llm uses rules", func(t *testing.T) {
		interp := New(&fakeLLM{enabled: false}, zap.NewNop())

		actions := interp.InterpretSteps(context.Background(), []schemas.TestStep{
			{Content: "Navigate to https://app.example.com"},
		})
		require.Len(t, actions, 1)
		nav, ok := actions[0].Params.(schemas.NavigateParams)
		require.True(t, ok)
		assert.Equal(t, "https://app.example.com", nav.URL)
	})

	t.Run("enabled llm uses AI path", func(t *testing.T) {
		llm := &fakeLLM{
			enabled:   true,
			responses: []string{`{"action": "click", "params": {"text": "Login"}, "confidence": 0.9}`},
		}
		interp := New(llm, zap.NewNop())

		actions := interp.InterpretSteps(context.Background(), []schemas.TestStep{{Content: "Click Login"}})
		require.Len(t, actions, 1)
		click, ok := actions[0].Params.(schemas.ClickParams)
		require.True(t, ok)
		assert.Equal(t, "Login", click.Text)
	})

	t.Run("no steps yields a single placeholder action", func(t *testing.T) {
		interp := New(&fakeLLM{enabled: false}, zap.NewNop())

		actions := interp.InterpretSteps(context.Background(), nil)
		require.Len(t, actions, 1)
		_, ok := actions[0].Params.(schemas.WaitParams)
		assert.True(t, ok)
	})
}
