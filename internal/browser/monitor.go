// internal/browser/monitor.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

// PageMonitor listens to CDP events on one tab. It tracks in flight network
// requests so waits can be dynamic, and collects console messages and page
// errors into an append-only buffer for validation and reporting.
type PageMonitor struct {
	logger *zap.Logger

	// The context for the browser tab this monitor is attached to.
	sessionCtx context.Context
	// A separate context for the listener goroutine so it can be stopped cleanly.
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	inflightRequests map[network.RequestID]bool
	consoleLogs      []schemas.ConsoleLog
	lock             sync.RWMutex

	isStarted bool
}

// NewPageMonitor creates a monitor for a specific session.
func NewPageMonitor(sessionCtx context.Context, logger *zap.Logger) *PageMonitor {
	return &PageMonitor{
		sessionCtx:       sessionCtx,
		logger:           logger.Named("monitor"),
		inflightRequests: make(map[network.RequestID]bool),
		consoleLogs:      make([]schemas.ConsoleLog, 0),
	}
}

// Start kicks off the event listening process.
func (m *PageMonitor) Start() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.isStarted {
		return nil
	}

	// Derived from the session, so if the session dies, the listener dies.
	m.listenerCtx, m.cancelListener = context.WithCancel(m.sessionCtx)

	go m.listen()

	// Tell Chrome what we're interested in.
	err := chromedp.Run(m.sessionCtx,
		network.Enable(),
		runtime.Enable(),
		log.Enable(),
	)
	if err != nil {
		m.cancelListener()
		return err
	}

	m.isStarted = true
	m.logger.Debug("Page monitor started and listening for events.")
	return nil
}

// Stop halts event collection. The collected console buffer stays readable.
func (m *PageMonitor) Stop() {
	m.lock.Lock()
	defer m.lock.Unlock()

	if !m.isStarted {
		return
	}
	if m.cancelListener != nil {
		m.cancelListener()
		m.cancelListener = nil
	}
	m.isStarted = false
}

// listen is the main event loop that receives and dispatches CDP events.
func (m *PageMonitor) listen() {
	chromedp.ListenTarget(m.listenerCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			m.handleRequestWillBeSent(e)
		case *network.EventLoadingFinished:
			m.handleRequestDone(e.RequestID)
		case *network.EventLoadingFailed:
			m.handleRequestDone(e.RequestID)

		case *runtime.EventConsoleAPICalled:
			m.handleConsoleAPICalled(e)
		case *log.EventEntryAdded:
			m.handleLogEntryAdded(e)
		case *runtime.EventExceptionThrown:
			m.handleExceptionThrown(e)
		}
	})
}

// WaitNetworkIdle polls until there have been no in flight network requests
// for the specified quiet period.
func (m *PageMonitor) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	// Check more frequently than the quiet period.
	ticker := time.NewTicker(quietPeriod / 2)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("WaitNetworkIdle aborted due to context cancellation.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			m.lock.RLock()
			inflightCount := len(m.inflightRequests)
			m.lock.RUnlock()

			if inflightCount > 0 {
				lastActivity = time.Now()
				m.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", inflightCount))
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}

// ConsoleLogs returns a copy of the collected console/error buffer.
func (m *PageMonitor) ConsoleLogs() []schemas.ConsoleLog {
	m.lock.RLock()
	defer m.lock.RUnlock()
	logs := make([]schemas.ConsoleLog, len(m.consoleLogs))
	copy(logs, m.consoleLogs)
	return logs
}

// -- Event Handlers --

func (m *PageMonitor) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	m.lock.Lock()
	defer m.lock.Unlock()

	// A redirect reuses the request ID; it stays in flight until the final
	// leg finishes, so marking it again is harmless.
	m.inflightRequests[e.RequestID] = true
}

func (m *PageMonitor) handleRequestDone(id network.RequestID) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.inflightRequests, id)
}

func (m *PageMonitor) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	var textBuilder strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			textBuilder.WriteString(" ")
		}
		// Get a clean string representation of the console argument.
		var val interface{}
		if arg.Value != nil && json.Unmarshal(arg.Value, &val) == nil {
			textBuilder.WriteString(fmt.Sprintf("%v", val))
		} else if arg.Description != "" {
			textBuilder.WriteString(arg.Description)
		} else {
			textBuilder.WriteString(fmt.Sprintf("[%s]", arg.Type))
		}
	}

	m.append(schemas.ConsoleLog{
		Timestamp: e.Timestamp.Time().Format(time.RFC3339Nano),
		Type:      "console",
		Level:     string(e.Type),
		Text:      textBuilder.String(),
	})
}

func (m *PageMonitor) handleLogEntryAdded(e *log.EventEntryAdded) {
	if e.Entry == nil {
		return
	}
	m.append(schemas.ConsoleLog{
		Timestamp: e.Entry.Timestamp.Time().Format(time.RFC3339Nano),
		Type:      "console",
		Level:     string(e.Entry.Level),
		Text:      e.Entry.Text,
	})
}

func (m *PageMonitor) handleExceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	// The description usually has the most useful info, including the stack trace.
	text := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		text = e.ExceptionDetails.Exception.Description
	}

	m.append(schemas.ConsoleLog{
		Timestamp: e.Timestamp.Time().Format(time.RFC3339Nano),
		Type:      "error",
		Text:      text,
	})
}

func (m *PageMonitor) append(entry schemas.ConsoleLog) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.consoleLogs = append(m.consoleLogs, entry)
}
