// internal/executor/progress_test.go
package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

type panickingSink struct{}

func (panickingSink) Notify(schemas.ProgressEvent) { panic("sink exploded") }

func TestProgressHubFanOut(t *testing.T) {
	hub := NewProgressHub(zap.NewNop())
	first := &recordingSink{}
	second := &recordingSink{}
	hub.Register(first)
	hub.Register(second)

	event := schemas.ProgressEvent{CaseID: "1", Stage: schemas.StageExecuting, Percent: 70, Message: "step 2/4"}
	hub.Notify(event)

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, event.Message, first.events[0].Message)
	assert.Equal(t, event.Percent, second.events[0].Percent)
}

func TestProgressHubSkipsPanickingSink(t *testing.T) {
	hub := NewProgressHub(zap.NewNop())
	healthy := &recordingSink{}
	hub.Register(panickingSink{})
	hub.Register(healthy)

	assert.NotPanics(t, func() {
		hub.Notify(schemas.ProgressEvent{Message: "still delivered"})
	})
	require.Len(t, healthy.events, 1)
	assert.Equal(t, "still delivered", healthy.events[0].Message)
}

func TestProgressHubEmpty(t *testing.T) {
	hub := NewProgressHub(zap.NewNop())
	assert.NotPanics(t, func() {
		hub.Notify(schemas.ProgressEvent{Message: "nobody listening"})
	})
}
