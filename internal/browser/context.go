// internal/browser/context.go
package browser

import "context"

// CombineContext creates a new context that is canceled when either parentCtx
// or secondaryCtx is canceled. Chromedp operations need this because parentCtx
// carries the CDP connection info (the session context) while secondaryCtx
// carries the operational deadline.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
			// Already canceled (likely from the parent), so exit.
		}
	}()

	return combinedCtx, cancel
}
