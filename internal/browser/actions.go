// internal/browser/actions.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

// Execute runs one primitive action against the page. It never returns an
// error: every failure is folded into the ActionResult so the run can keep
// going, matching how a human tester notes a failed step and continues.
func (s *Session) Execute(ctx context.Context, params schemas.ActionParams) schemas.ActionResult {
	start := time.Now()
	result := schemas.ActionResult{
		Action:    params.Kind(),
		Timestamp: start,
	}

	err := params.Validate()
	if err == nil {
		err = s.dispatch(ctx, params)
	}

	if err != nil {
		result.Success = false
		result.Error = err.Error()

		label := "error_" + string(params.Kind())
		if errors.Is(err, context.DeadlineExceeded) {
			label = "timeout_error_" + string(params.Kind())
		}
		s.logger.Warn("Action failed.",
			zap.String("action", string(params.Kind())),
			zap.Error(err))

		if shot, shotErr := s.captureScreenshot(ctx, label); shotErr == nil {
			result.Screenshot = shot
		} else {
			s.logger.Debug("Could not capture failure screenshot.", zap.Error(shotErr))
		}
	} else {
		result.Success = true

		// Navigation handles its own settling inside the fallback tiers.
		if params.Kind() != schemas.ActionNavigate {
			s.settleAfterAction(ctx)
		}

		if shot, shotErr := s.captureScreenshot(ctx, string(params.Kind())); shotErr == nil {
			result.Screenshot = shot
		} else {
			s.logger.Debug("Could not capture screenshot.", zap.Error(shotErr))
		}
	}

	s.annotatePageState(ctx, &result)
	result.Duration = time.Since(start)
	return result
}

func (s *Session) dispatch(ctx context.Context, params schemas.ActionParams) error {
	switch p := params.(type) {
	case schemas.NavigateParams:
		return s.doNavigate(ctx, p)
	case schemas.ClickParams:
		return s.doClick(ctx, p)
	case schemas.FillParams:
		return s.doFill(ctx, p)
	case schemas.TypeParams:
		return s.doType(ctx, p)
	case schemas.SelectParams:
		return s.doSelect(ctx, p)
	case schemas.WaitParams:
		return s.doWait(ctx, p)
	case schemas.PressKeyParams:
		return s.doPressKey(ctx, p)
	case schemas.HoverParams:
		return s.doHover(ctx, p)
	default:
		return fmt.Errorf("unsupported action params type %T", params)
	}
}

// doNavigate loads a URL with a three tier wait strategy. Tier one waits for
// full network idle; when the page never goes quiet it falls back to DOM
// readiness, and finally to a fixed settle delay. A slow page is not a failed
// navigation.
func (s *Session) doNavigate(ctx context.Context, p schemas.NavigateParams) error {
	s.logger.Debug("Navigating to URL.", zap.String("url", p.URL))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	// Tier 1: navigate and wait for full network idle.
	tier1Ctx, cancel1 := context.WithTimeout(opCtx, s.cfg.NavigationTimeout)
	err := chromedp.Run(tier1Ctx, chromedp.Navigate(p.URL))
	if err == nil {
		err = s.waitNetworkQuiet(tier1Ctx)
	}
	cancel1()
	if err == nil {
		return nil
	}
	if opCtx.Err() != nil {
		return opCtx.Err()
	}
	s.logger.Debug("Network idle wait timed out, falling back to DOM ready.",
		zap.String("url", p.URL), zap.Error(err))

	// Tier 2: settle for DOM readiness.
	tier2Ctx, cancel2 := context.WithTimeout(opCtx, s.cfg.DOMContentTimeout)
	err = chromedp.Run(tier2Ctx, chromedp.WaitReady("body", chromedp.ByQuery))
	cancel2()
	if err == nil {
		return nil
	}
	if opCtx.Err() != nil {
		return opCtx.Err()
	}
	s.logger.Warn("DOM ready wait timed out, using fixed settle delay.",
		zap.String("url", p.URL), zap.Error(err))

	// Tier 3: fixed delay. The page got whatever time it got.
	select {
	case <-time.After(s.cfg.SettleDelay):
		return nil
	case <-opCtx.Done():
		return opCtx.Err()
	}
}

func (s *Session) waitNetworkQuiet(ctx context.Context) error {
	if err := chromedp.Run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return err
	}
	if s.monitor == nil {
		return nil
	}
	return s.monitor.WaitNetworkIdle(ctx, 500*time.Millisecond)
}

func (s *Session) doClick(ctx context.Context, p schemas.ClickParams) error {
	clickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if p.Selector != "" {
		s.logger.Debug("Clicking element.", zap.String("selector", p.Selector))
		return s.runActions(clickCtx, chromedp.Tasks{
			chromedp.WaitVisible(p.Selector, chromedp.ByQuery),
			chromedp.ScrollIntoView(p.Selector, chromedp.ByQuery),
			chromedp.Click(p.Selector, chromedp.ByQuery),
		})
	}

	xpath := textXPath(p.Text, p.Exact)
	s.logger.Debug("Clicking element by text.", zap.String("text", p.Text), zap.Bool("exact", p.Exact))
	return s.runActions(clickCtx, chromedp.Tasks{
		chromedp.WaitVisible(xpath, chromedp.BySearch),
		chromedp.ScrollIntoView(xpath, chromedp.BySearch),
		chromedp.Click(xpath, chromedp.BySearch),
	})
}

func (s *Session) doFill(ctx context.Context, p schemas.FillParams) error {
	s.logger.Debug("Filling input.", zap.String("selector", p.Selector), zap.Int("value_length", len(p.Value)))

	fillCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// SetValue assigns the property directly; frameworks listening for user
	// input still need the synthetic events.
	notify := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el) {
			el.dispatchEvent(new Event('input', {bubbles: true}));
			el.dispatchEvent(new Event('change', {bubbles: true}));
		}
	})()`, p.Selector)

	return s.runActions(fillCtx, chromedp.Tasks{
		chromedp.WaitVisible(p.Selector, chromedp.ByQuery),
		chromedp.SetValue(p.Selector, p.Value, chromedp.ByQuery),
		chromedp.Evaluate(notify, nil),
	})
}

func (s *Session) doType(ctx context.Context, p schemas.TypeParams) error {
	s.logger.Debug("Typing into element.", zap.String("selector", p.Selector), zap.Int("text_length", len(p.Text)))

	// Scale the timeout with the text length so slow deliberate typing does
	// not get cut off.
	timeout := 15*time.Second + time.Duration(len(p.Text)*p.DelayMs)*time.Millisecond
	if timeout > 3*time.Minute {
		timeout = 3 * time.Minute
	}
	typeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.WaitVisible(p.Selector, chromedp.ByQuery),
		chromedp.Focus(p.Selector, chromedp.ByQuery),
	}

	if p.DelayMs <= 0 {
		tasks = append(tasks, chromedp.SendKeys(p.Selector, p.Text, chromedp.ByQuery))
		return s.runActions(typeCtx, tasks)
	}

	delay := time.Duration(p.DelayMs) * time.Millisecond
	for _, r := range p.Text {
		tasks = append(tasks, chromedp.KeyEvent(string(r)), chromedp.Sleep(delay))
	}
	return s.runActions(typeCtx, tasks)
}

func (s *Session) doSelect(ctx context.Context, p schemas.SelectParams) error {
	s.logger.Debug("Selecting dropdown option.", zap.String("selector", p.Selector), zap.String("value", p.Value))

	selectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// Match by option value first, then by visible label.
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el || el.tagName !== 'SELECT') return false;
		const options = Array.from(el.options);
		const target = %q;
		const opt = options.find(o => o.value === target) ||
			options.find(o => o.text.trim() === target);
		if (!opt) return false;
		el.value = opt.value;
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, p.Selector, p.Value)

	var matched bool
	err := s.runActions(selectCtx, chromedp.Tasks{
		chromedp.WaitVisible(p.Selector, chromedp.ByQuery),
		chromedp.Evaluate(script, &matched),
	})
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("no option matching %q in select %q", p.Value, p.Selector)
	}
	return nil
}

func (s *Session) doWait(ctx context.Context, p schemas.WaitParams) error {
	if p.Selector != "" {
		timeout := 5 * time.Second
		if p.TimeoutMs > 0 {
			timeout = time.Duration(p.TimeoutMs) * time.Millisecond
		}
		s.logger.Debug("Waiting for element.", zap.String("selector", p.Selector), zap.Duration("timeout", timeout))

		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return s.runActions(waitCtx, chromedp.WaitVisible(p.Selector, chromedp.ByQuery))
	}

	duration := time.Second
	if p.TimeoutMs > 0 {
		duration = time.Duration(p.TimeoutMs) * time.Millisecond
	}
	s.logger.Debug("Waiting.", zap.Duration("duration", duration))
	return s.runActions(ctx, chromedp.Sleep(duration))
}

func (s *Session) doPressKey(ctx context.Context, p schemas.PressKeyParams) error {
	s.logger.Debug("Pressing key.", zap.String("key", p.Key))

	keyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.runActions(keyCtx, chromedp.KeyEvent(keyChord(p.Key)))
}

func (s *Session) doHover(ctx context.Context, p schemas.HoverParams) error {
	s.logger.Debug("Hovering over element.", zap.String("selector", p.Selector))

	hoverCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	center := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return [r.left + r.width / 2, r.top + r.height / 2];
	})()`, p.Selector)

	return s.runActions(hoverCtx, chromedp.Tasks{
		chromedp.WaitVisible(p.Selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(p.Selector, chromedp.ByQuery),
		chromedp.ActionFunc(func(c context.Context) error {
			var pos []float64
			if err := chromedp.Evaluate(center, &pos).Do(c); err != nil {
				return err
			}
			if len(pos) != 2 {
				return fmt.Errorf("element %q not found for hover", p.Selector)
			}
			return input.DispatchMouseEvent(input.MouseMoved, pos[0], pos[1]).Do(c)
		}),
	})
}

// settleAfterAction gives the page a chance to react before the screenshot.
// A quiet network within the configured window is best; otherwise a short
// fixed pause has to do.
func (s *Session) settleAfterAction(ctx context.Context) {
	settleCtx, cancel := context.WithTimeout(ctx, s.cfg.PostActionWait)
	err := s.stabilize(settleCtx, 500*time.Millisecond)
	cancel()
	if err == nil {
		return
	}
	s.logger.Debug("Post-action stabilization aborted.", zap.Error(err))

	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
	}
}

// annotatePageState fills in the current URL and title, best effort.
func (s *Session) annotatePageState(ctx context.Context, result *schemas.ActionResult) {
	stateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var url, title string
	if err := s.runActions(stateCtx, chromedp.Location(&url), chromedp.Title(&title)); err != nil {
		s.logger.Debug("Could not read page URL/title.", zap.Error(err))
		return
	}
	result.CurrentURL = url
	result.Title = title
}

// textXPath builds an XPath locator for an element by its visible text.
func textXPath(text string, exact bool) string {
	lit := xpathLiteral(text)
	if exact {
		return fmt.Sprintf(`//*[normalize-space(text())=%s]`, lit)
	}
	return fmt.Sprintf(`//*[contains(normalize-space(text()), %s)]`, lit)
}

// xpathLiteral quotes a string for use inside an XPath expression. XPath 1.0
// has no escaping, so strings containing both quote kinds need concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if part != "" {
			quoted = append(quoted, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// keyChord maps a human readable key name to the CDP key string.
func keyChord(name string) string {
	switch strings.ToLower(name) {
	case "enter", "return":
		return kb.Enter
	case "tab":
		return kb.Tab
	case "escape", "esc":
		return kb.Escape
	case "backspace":
		return kb.Backspace
	case "delete", "del":
		return kb.Delete
	case "arrowup", "up":
		return kb.ArrowUp
	case "arrowdown", "down":
		return kb.ArrowDown
	case "arrowleft", "left":
		return kb.ArrowLeft
	case "arrowright", "right":
		return kb.ArrowRight
	case "home":
		return kb.Home
	case "end":
		return kb.End
	case "pageup":
		return kb.PageUp
	case "pagedown":
		return kb.PageDown
	case "space":
		return " "
	default:
		return name
	}
}
