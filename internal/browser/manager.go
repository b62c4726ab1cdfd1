// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
	"github.com/xkilldash9x/testflow-cli/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the shared browser process and hands out sessions. Each test
// run gets exactly one exclusive session, keyed by its run identifier, so two
// runs can never interleave actions on the same tab.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session // keyed by run key
	mu       sync.RWMutex
	wg       sync.WaitGroup

	initOnce sync.Once
	initErr  error
}

// NewManager creates the manager. The browser process itself launches lazily
// on the first Acquire.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// initialize builds the exec allocator that owns the browser process.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser.",
			zap.String("engine", m.cfg.Engine),
			zap.Bool("headless", m.cfg.Headless))

		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			// Required on hardened systems where the sandbox cannot start.
			chromedp.NoSandbox,
			// Recommended for stability in containers/headless envs.
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.DisableGPU,
			chromedp.WindowSize(m.cfg.ViewportWidth, m.cfg.ViewportHeight),
		)
		if !m.cfg.Headless {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		if m.cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
		}

		// Detach the allocator from the caller's deadline: the browser
		// process outlives any single acquire call.
		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	})
	return m.initErr
}

// Acquire creates the exclusive session for the given run key. A second
// Acquire with the same key while the first session is alive is a bug in the
// caller and is rejected.
func (m *Manager) Acquire(ctx context.Context, runKey string) (schemas.BrowserSession, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.sessions[runKey]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("a browser session for run %q is already active", runKey)
	}
	m.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	m.wg.Add(1)
	var session *Session
	session = NewSession(tabCtx, tabCancel, m.cfg, m.logger, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, runKey)
		m.wg.Done()
		m.logger.Debug("Session released.", zap.String("run_key", runKey), zap.String("session_id", session.ID()))
	})

	if err := session.Initialize(ctx); err != nil {
		// Close releases the tab and decrements the wait group via onClose.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = session.Close(cleanupCtx)
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	m.mu.Lock()
	m.sessions[runKey] = session
	m.mu.Unlock()

	m.logger.Info("New browser session created.",
		zap.String("run_key", runKey),
		zap.String("session_id", session.ID()))
	return session, nil
}

// Shutdown closes all active sessions and stops the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	if m.allocCtx == nil {
		m.logger.Debug("Manager never launched a browser, nothing to shut down.")
		return nil
	}

	m.mu.RLock()
	toClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		toClose = append(toClose, s)
	}
	m.mu.RUnlock()

	for _, s := range toClose {
		go func(s *Session) {
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("Error during session close in shutdown.",
					zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close. Proceeding with forceful shutdown.", zap.Error(ctx.Err()))
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Grace period expired waiting for sessions to close.")
	}

	m.allocCancel()
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
