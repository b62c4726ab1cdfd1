// internal/llmutil/parser_test.go
package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wirePayload struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

func TestParseJSONResponse(t *testing.T) {
	t.Run("plain JSON object", func(t *testing.T) {
		out, err := ParseJSONResponse[wirePayload](`{"action": "click", "confidence": 0.9}`)
		require.NoError(t, err)
		assert.Equal(t, "click", out.Action)
		assert.InDelta(t, 0.9, out.Confidence, 1e-9)
	})

	t.Run("markdown-wrapped object", func(t *testing.T) {
		out, err := ParseJSONResponse[wirePayload]("```json\n{\"action\": \"fill\", \"confidence\": 0.8}\n```")
		require.NoError(t, err)
		assert.Equal(t, "fill", out.Action)
	})

	t.Run("markdown-wrapped without language tag", func(t *testing.T) {
		out, err := ParseJSONResponse[wirePayload]("```\n{\"action\": \"wait\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "wait", out.Action)
	})

	t.Run("markdown-wrapped array", func(t *testing.T) {
		out, err := ParseJSONResponse[[]wirePayload]("```json\n[{\"action\": \"a\"}, {\"action\": \"b\"}]\n```")
		require.NoError(t, err)
		require.Len(t, *out, 2)
		assert.Equal(t, "b", (*out)[1].Action)
	})

	t.Run("conversational filler around object", func(t *testing.T) {
		out, err := ParseJSONResponse[wirePayload](
			`Sure! Here is the action you asked for: {"action": "navigate", "confidence": 0.95} Let me know if you need more.`)
		require.NoError(t, err)
		assert.Equal(t, "navigate", out.Action)
	})

	t.Run("surrounding whitespace", func(t *testing.T) {
		out, err := ParseJSONResponse[wirePayload]("\n\n  {\"action\": \"hover\"}  \n")
		require.NoError(t, err)
		assert.Equal(t, "hover", out.Action)
	})

	t.Run("invalid payload errors", func(t *testing.T) {
		_, err := ParseJSONResponse[wirePayload]("the page looks fine to me")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal LLM JSON response")
	})

	t.Run("truncated JSON errors", func(t *testing.T) {
		_, err := ParseJSONResponse[wirePayload](`{"action": "click", "confi`)
		assert.Error(t, err)
	})
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 10))
	assert.Equal(t, "ab...", truncateString("abcdef", 2))
	assert.Equal(t, "", truncateString("abc", 0))
}
