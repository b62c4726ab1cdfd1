// internal/interpreter/rules_test.go
package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

func TestRuleInterpreterOneActionPerStep(t *testing.T) {
	rules := NewRuleInterpreter(zap.NewNop())

	steps := []schemas.TestStep{
		{Content: "Navigate to https://app.example.com/login"},
		{Content: "Some completely unrecognizable instruction"},
		{Content: `Click the "Login" button`},
		{Content: "Verify something on the page", Expected: "Dashboard is shown"},
	}

	actions := rules.Interpret(steps)
	require.Len(t, actions, len(steps))

	for i, action := range actions {
		assert.Equal(t, steps[i].Content, action.OriginalStep)
		assert.Equal(t, steps[i].Expected, action.Expected)
		assert.NoError(t, action.Params.Validate())
	}
}

func TestRuleInterpreterNavigation(t *testing.T) {
	rules := NewRuleInterpreter(zap.NewNop())

	t.Run("absolute URL in text", func(t *testing.T) {
		actions := rules.Interpret([]schemas.TestStep{
			{Content: "Open https://app.example.com/login in the browser"},
		})
		require.Len(t, actions, 1)
		nav, ok := actions[0].Params.(schemas.NavigateParams)
		require.True(t, ok)
		assert.Equal(t, "https://app.example.com/login", nav.URL)
	})

	t.Run("URL from HTML link wins", func(t *testing.T) {
		actions := rules.Interpret([]schemas.TestStep{
			{Content: `Navigate to <a href="https://linked.example.com/start">the app</a> at https://other.example.com`},
		})
		nav, ok := actions[0].Params.(schemas.NavigateParams)
		require.True(t, ok)
		assert.Equal(t, "https://linked.example.com/start", nav.URL)
	})

	t.Run("relative path joined with base URL from earlier step", func(t *testing.T) {
		actions := rules.Interpret([]schemas.TestStep{
			{Content: "Navigate to https://app.example.com/login"},
			{Content: "Go to /calibration"},
		})
		require.Len(t, actions, 2)
		nav, ok := actions[1].Params.(schemas.NavigateParams)
		require.True(t, ok)
		assert.Equal(t, "https://app.example.com/calibration", nav.URL)
	})

	t.Run("relative path without base URL stays relative", func(t *testing.T) {
		actions := rules.Interpret([]schemas.TestStep{
			{Content: "Go to /abp"},
		})
		nav, ok := actions[0].Params.(schemas.NavigateParams)
		require.True(t, ok)
		assert.Equal(t, "/abp", nav.URL)
	})

	t.Run("base URL is pinned by the first navigation only", func(t *testing.T) {
		actions := rules.Interpret([]schemas.TestStep{
			{Content: "Navigate to https://first.example.com/a"},
			{Content: "Navigate to https://second.example.com/b"},
			{Content: "Open /relative"},
		})
		nav, ok := actions[2].Params.(schemas.NavigateParams)
		require.True(t, ok)
		assert.Equal(t, "https://first.example.com/relative", nav.URL)
	})

	t.Run("navigation step without URL degrades to wait", func(t *testing.T) {
		actions := rules.Interpret([]schemas.TestStep{
			{Content: "Navigate to the settings page"},
		})
		wait, ok := actions[0].Params.(schemas.WaitParams)
		require.True(t, ok)
		assert.Equal(t, 1000, wait.TimeoutMs)
	})
}

func TestRuleInterpreterClick(t *testing.T) {
	rules := NewRuleInterpreter(zap.NewNop())

	t.Run("quoted target becomes click by text", func(t *testing.T) {
		actions := rules.Interpret([]schemas.TestStep{
			{Content: `Click the "Save Changes" button`},
		})
		click, ok := actions[0].Params.(schemas.ClickParams)
		require.True(t, ok)
		assert.Equal(t, "Save Changes", click.Text)
	})

	t.Run("backticked target", func(t *testing.T) {
		actions := rules.Interpret([]schemas.TestStep{
			{Content: "Select `longitudinal welding` from the dropdown"},
		})
		click, ok := actions[0].Params.(schemas.ClickParams)
		require.True(t, ok)
		assert.Equal(t, "longitudinal welding", click.Text)
	})

	t.Run("click without quoted target degrades to wait", func(t *testing.T) {
		actions := rules.Interpret([]schemas.TestStep{
			{Content: "Click somewhere on the page"},
		})
		_, ok := actions[0].Params.(schemas.WaitParams)
		assert.True(t, ok)
	})
}

func TestRuleInterpreterGenericStepIsWait(t *testing.T) {
	rules := NewRuleInterpreter(zap.NewNop())

	actions := rules.Interpret([]schemas.TestStep{
		{Content: "Observe the welding parameters"},
	})
	wait, ok := actions[0].Params.(schemas.WaitParams)
	require.True(t, ok)
	assert.Equal(t, 1000, wait.TimeoutMs)
}

func TestRuleInterpreterDescriptionTruncated(t *testing.T) {
	rules := NewRuleInterpreter(zap.NewNop())

	long := make([]byte, 0, 300)
	for i := 0; i < 300; i++ {
		long = append(long, 'x')
	}
	actions := rules.Interpret([]schemas.TestStep{{Content: string(long)}})
	assert.LessOrEqual(t, len(actions[0].Description), 100)
}

func TestStripHTML(t *testing.T) {
	t.Run("plain text passes through", func(t *testing.T) {
		text, links := StripHTML("Navigate to the login page")
		assert.Equal(t, "Navigate to the login page", text)
		assert.Empty(t, links)
	})

	t.Run("markup is stripped and links collected", func(t *testing.T) {
		text, links := StripHTML(`<p>Open <a href="https://example.com/app">the app</a> now</p>`)
		assert.Equal(t, "Open the app now", text)
		assert.Equal(t, []string{"https://example.com/app"}, links)
	})

	t.Run("whitespace is normalized", func(t *testing.T) {
		text, _ := StripHTML("<div>  multiple \n  spaces  </div>")
		assert.Equal(t, "multiple spaces", text)
	})

	t.Run("entities are decoded", func(t *testing.T) {
		text, _ := StripHTML("Tom &amp; Jerry")
		assert.Equal(t, "Tom & Jerry", text)
	})
}
