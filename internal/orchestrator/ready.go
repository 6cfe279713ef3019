package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
)

// ErrNotReady is returned when a page never reached a ready state.
var ErrNotReady = errors.New("page did not become ready")

// clockTimer adapts a clockwork clock to backoff's Timer.
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time { return t.timer.Chan() }

// waitReady blocks until page reports an interactive document with a
// populated body. Errors from the readiness probe itself, which happen while
// a navigation tears down the old document, are retried with exponential
// backoff; a page that answers but never becomes ready is not retried.
func (o *Orchestrator) waitReady(ctx context.Context, page browser.Page) (schemas.PageState, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.ReadyPollMin
	b.MaxInterval = o.cfg.ReadyPollMax
	b.MaxElapsedTime = 0
	b.Clock = o.clock
	b.Reset()

	var state schemas.PageState
	attempt := 0
	operation := func() error {
		attempt++
		st, err := o.pollReady(ctx, page)
		state = st
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil, errors.Is(err, ErrNotReady),
			errors.Is(err, browser.ErrPageClosed), errors.Is(err, browser.ErrScriptInjection):
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		o.logger.Debug("Readiness probe failed, retrying.",
			zap.String("page_id", page.ID()), zap.Int("attempt", attempt),
			zap.Duration("next", next), zap.Error(err))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(o.cfg.ReadyRetries, 0))), ctx)
	err := backoff.RetryNotifyWithTimer(operation, policy, notify, &clockTimer{clock: o.clock})
	switch {
	case err == nil:
		o.deps.Metrics.ObserveReadiness("ready")
	case errors.Is(err, ErrNotReady):
		o.deps.Metrics.ObserveReadiness("timeout")
	default:
		o.deps.Metrics.ObserveReadiness("error")
	}
	if err != nil {
		return state, fmt.Errorf("page %s: %w", page.ID(), err)
	}
	return state, nil
}

// pollReady probes at a fixed interval until the page is ready or the
// readiness timeout passes.
func (o *Orchestrator) pollReady(ctx context.Context, page browser.Page) (schemas.PageState, error) {
	deadline := o.clock.Now().Add(o.cfg.ReadyTimeout)
	for {
		state, err := page.State(ctx)
		if err != nil {
			return state, err
		}
		if state.Ready() {
			return state, nil
		}
		if !o.clock.Now().Before(deadline) {
			return state, fmt.Errorf("%w within %s (readyState %q, %d body children)",
				ErrNotReady, o.cfg.ReadyTimeout, state.ReadyState, state.BodyChildren)
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-o.clock.After(o.cfg.ReadyPollMin):
		}
	}
}
