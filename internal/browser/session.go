// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
	"github.com/xkilldash9x/testflow-cli/internal/config"
)

// Session represents one active browser tab and implements
// schemas.BrowserSession. A session is exclusively owned by one test run; the
// Manager enforces that.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	monitor       *PageMonitor
	screenshotDir string

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.BrowserSession = (*Session)(nil)

// NewSession wraps an already allocated chromedp tab context.
func NewSession(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg config.BrowserConfig,
	logger *zap.Logger,
	onClose func(),
) *Session {
	sessionID := uuid.New().String()
	return &Session{
		id:      sessionID,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(zap.String("session_id", sessionID)),
		cfg:     cfg,
		onClose: onClose,
	}
}

// Initialize connects the CDP target, sizes the viewport, starts the event
// monitor, and prepares the run-scoped screenshot directory.
func (s *Session) Initialize(ctx context.Context) error {
	// Ensure the target (tab) is created and CDP is connected.
	if err := s.runActions(ctx); err != nil {
		return fmt.Errorf("failed to initialize browser context/target connection: %w", err)
	}

	if s.cfg.ViewportWidth > 0 && s.cfg.ViewportHeight > 0 {
		if err := s.runActions(ctx, chromedp.EmulateViewport(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight))); err != nil {
			return fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	s.monitor = NewPageMonitor(s.ctx, s.logger)
	if err := s.monitor.Start(); err != nil {
		return fmt.Errorf("failed to start page monitor: %w", err)
	}

	dir := filepath.Join(s.cfg.ResultsDir, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot directory %s: %w", dir, err)
	}
	s.screenshotDir = dir

	s.logger.Debug("Browser session initialized.", zap.String("screenshot_dir", dir))
	return nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// ScreenshotDir returns the run-scoped directory screenshots land in.
func (s *Session) ScreenshotDir() string {
	return s.screenshotDir
}

// ConsoleLogs returns a copy of the append-only console/error buffer.
func (s *Session) ConsoleLogs() []schemas.ConsoleLog {
	if s.monitor == nil {
		return nil
	}
	return s.monitor.ConsoleLogs()
}

// ReadText returns the text content of the first element matching the
// selector, or the whole body when the selector is empty.
func (s *Session) ReadText(ctx context.Context, selector string) (string, error) {
	if selector == "" {
		selector = "body"
	}

	readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var text string
	if err := s.runActions(readCtx, chromedp.Text(selector, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read text for selector %q: %w", selector, err)
	}
	return text, nil
}

// Close terminates the browser session gracefully. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	if s.monitor != nil {
		s.monitor.Stop()
	}

	if s.cancel != nil {
		s.cancel()
	}

	if s.onClose != nil {
		s.onClose()
	}

	return nil
}

// stabilize waits for the DOM to be ready and the network to go quiet.
// Failures here are soft: a busy page is logged, never escalated.
func (s *Session) stabilize(ctx context.Context, quietPeriod time.Duration) error {
	stabCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.runActions(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	if s.monitor != nil {
		if err := s.monitor.WaitNetworkIdle(stabCtx, quietPeriod); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Debug("Network idle wait failed during stabilization.", zap.Error(err))
		}
	}
	return nil
}

// runActions executes chromedp.Actions, ensuring they respect both the
// session lifetime (s.ctx) and the incoming request context (ctx).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}
