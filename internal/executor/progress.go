// internal/executor/progress.go
package executor

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

// ProgressHub fans progress events out to every registered sink. Delivery is
// best effort: a panicking sink is skipped and the rest still get the event.
type ProgressHub struct {
	mu     sync.RWMutex
	sinks  []schemas.ProgressSink
	logger *zap.Logger
}

var _ schemas.ProgressSink = (*ProgressHub)(nil)

// NewProgressHub creates an empty hub.
func NewProgressHub(logger *zap.Logger) *ProgressHub {
	return &ProgressHub{logger: logger.Named("progress")}
}

// Register adds a sink. Safe to call while events are flowing.
func (h *ProgressHub) Register(sink schemas.ProgressSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

// Notify delivers the event to every sink.
func (h *ProgressHub) Notify(event schemas.ProgressEvent) {
	h.mu.RLock()
	sinks := make([]schemas.ProgressSink, len(h.sinks))
	copy(sinks, h.sinks)
	h.mu.RUnlock()

	for _, sink := range sinks {
		h.deliver(sink, event)
	}
}

func (h *ProgressHub) deliver(sink schemas.ProgressSink, event schemas.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn("Progress sink panicked, skipping.", zap.Any("panic", r))
		}
	}()
	sink.Notify(event)
}

// LogSink writes progress events to the logger. The default observer when no
// external surface is attached.
type LogSink struct {
	logger *zap.Logger
}

var _ schemas.ProgressSink = (*LogSink)(nil)

// NewLogSink creates the logging sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("progress")}
}

// Notify logs the event.
func (s *LogSink) Notify(event schemas.ProgressEvent) {
	s.logger.Info(event.Message,
		zap.String("case_id", event.CaseID),
		zap.String("stage", string(event.Stage)),
		zap.Int("percent", event.Percent))
}
