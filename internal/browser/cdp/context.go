// internal/browser/cdp/context.go
package cdp

import (
	"context"
)

// CombineContext returns a context derived from session, so it keeps the CDP
// target values chromedp stores there, that is also cancelled when op ends.
// op's deadline is carried over.
func CombineContext(session, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(session)
	if deadline, ok := op.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combined, cancelDeadline = context.WithDeadline(combined, deadline)
		parent := cancel
		cancel = func() { cancelDeadline(); parent() }
	}
	stop := context.AfterFunc(op, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
