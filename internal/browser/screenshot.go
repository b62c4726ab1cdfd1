// internal/browser/screenshot.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// captureScreenshot writes a viewport screenshot named after the wall time
// and a slug of the label, and returns the file path.
func (s *Session) captureScreenshot(ctx context.Context, label string) (string, error) {
	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := s.runActions(shotCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}

	name := fmt.Sprintf("%s_%s.png", time.Now().Format("150405"), slugify(label))
	path := filepath.Join(s.screenshotDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}
	return path, nil
}

// slugify reduces a label to a filesystem-safe lowercase token.
func slugify(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
