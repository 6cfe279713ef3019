// internal/browser/cdp/page.go
package cdp

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chromedp/cdproto/input"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
	"github.com/xkilldash9x/pagewright/internal/config"
)

//go:embed js/pagewright.js
var pageScript string

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// textLimit caps the text reported per element.
const textLimit = 100

// Page is one Chrome tab. Its context carries the chromedp target; every
// operation runs on a context combined from it and the caller's.
type Page struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	closed  atomic.Bool
	onClose func(string)
}

var _ browser.Page = (*Page)(nil)

// ID implements browser.Page.
func (p *Page) ID() string { return p.id }

// opContext combines the tab context with ctx and applies the script timeout.
func (p *Page) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := CombineContext(p.ctx, ctx)
	if p.cfg.ScriptTimeout <= 0 {
		return combined, cancel
	}
	timed, cancelTimeout := context.WithTimeout(combined, p.cfg.ScriptTimeout)
	return timed, func() {
		cancelTimeout()
		cancel()
	}
}

// call builds an expression that installs the page script if needed and then
// calls one of its entry points.
func call(fn string, args ...interface{}) (string, error) {
	encoded := make([]string, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("failed to encode %s argument: %w", fn, err)
		}
		encoded = append(encoded, string(b))
	}
	return fmt.Sprintf("%s\n;window.__pagewright.%s(%s)", pageScript, fn, strings.Join(encoded, ", ")), nil
}

// evaluate runs expr, which must produce a JSON string, and decodes it into
// out. Errors are returned unclassified.
func (p *Page) evaluate(ctx context.Context, expr string, out interface{}) error {
	if p.closed.Load() {
		return browser.ErrPageClosed
	}
	runCtx, cancel := p.opContext(ctx)
	defer cancel()

	var raw string
	err := chromedp.Run(runCtx, chromedp.Evaluate(expr, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithReturnByValue(true)
	}))
	if err != nil {
		return err
	}
	if err := json.UnmarshalFromString(raw, out); err != nil {
		return fmt.Errorf("%w: malformed page reply: %v", browser.ErrScriptInjection, err)
	}
	return nil
}

// classify maps an evaluation error onto the backend's error vocabulary.
func (p *Page) classify(ctx context.Context, err error) error {
	var exc *runtime.ExceptionDetails
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, browser.ErrPageClosed), errors.Is(err, browser.ErrScriptInjection):
		return err
	case p.ctx.Err() != nil:
		return fmt.Errorf("%w: %s", browser.ErrPageClosed, p.id)
	case errors.As(err, &exc):
		return fmt.Errorf("%w: %s", browser.ErrScriptInjection, exc.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: script timed out after %s", browser.ErrScriptInjection, p.cfg.ScriptTimeout)
	}
	return fmt.Errorf("%w: %v", browser.ErrScriptInjection, err)
}

// Snapshot implements browser.Page.
func (p *Page) Snapshot(ctx context.Context) (*schemas.DocumentSnapshot, error) {
	expr, err := call("snapshot", p.cfg.MaxElements, textLimit)
	if err != nil {
		return nil, err
	}
	var snap schemas.DocumentSnapshot
	if err := p.evaluate(ctx, expr, &snap); err != nil {
		return nil, p.classify(ctx, err)
	}
	return &snap, nil
}

// State implements browser.Page. A probe that fails while a navigation swaps
// documents is reported as a plain error so readiness waits retry it.
func (p *Page) State(ctx context.Context) (schemas.PageState, error) {
	expr, err := call("state")
	if err != nil {
		return schemas.PageState{}, err
	}
	var st schemas.PageState
	err = p.evaluate(ctx, expr, &st)
	switch {
	case err == nil:
		return st, nil
	case ctx.Err() != nil:
		return st, ctx.Err()
	case p.closed.Load() || p.ctx.Err() != nil:
		return st, fmt.Errorf("%w: %s", browser.ErrPageClosed, p.id)
	}
	return st, fmt.Errorf("readiness probe failed: %w", err)
}

// Perform implements browser.Page.
func (p *Page) Perform(ctx context.Context, op schemas.Primitive) (schemas.PrimitiveResult, error) {
	switch op.Op {
	case schemas.OpKeySequence:
		return p.keySequence(ctx, op)
	case schemas.OpHistory:
		return p.history(ctx, op.Delta)
	}
	return p.script(ctx, op)
}

func (p *Page) script(ctx context.Context, op schemas.Primitive) (schemas.PrimitiveResult, error) {
	expr, err := call("perform", op)
	if err != nil {
		return schemas.PrimitiveResult{}, err
	}
	var res schemas.PrimitiveResult
	if err := p.evaluate(ctx, expr, &res); err != nil {
		return schemas.PrimitiveResult{}, p.classify(ctx, err)
	}
	return res, nil
}

// keySequence focuses the target, when there is one, and sends real key
// events through the input domain so default actions such as form submission
// on Enter happen.
func (p *Page) keySequence(ctx context.Context, op schemas.Primitive) (schemas.PrimitiveResult, error) {
	res := schemas.PrimitiveResult{Found: true, Visible: true}
	if op.Path != "" {
		focused, err := p.script(ctx, schemas.Primitive{Op: schemas.OpFocus, Path: op.Path})
		if err != nil || !focused.Found {
			return focused, err
		}
		res = focused
	}

	var actions []chromedp.Action
	for _, k := range op.Keys {
		params, err := keyEvents(k)
		if err != nil {
			return schemas.PrimitiveResult{}, err
		}
		for _, ev := range params {
			actions = append(actions, ev)
		}
	}
	runCtx, cancel := p.opContext(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return schemas.PrimitiveResult{}, p.classify(ctx, err)
	}
	res.Delivered = true

	var url string
	if err := chromedp.Run(runCtx, chromedp.Location(&url)); err == nil {
		res.URL = url
	}
	return res, nil
}

// namedKeys maps DOM key values onto the runes chromedp's keyboard table uses.
var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"return":     kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"space":      " ",
}

// keyEvents encodes one structured key press as CDP key events.
func keyEvents(k schemas.KeyEventData) ([]*input.DispatchKeyEventParams, error) {
	text := k.Key
	if named, ok := namedKeys[strings.ToLower(k.Key)]; ok {
		text = named
	}
	runes := []rune(text)
	if len(runes) != 1 {
		return nil, fmt.Errorf("%w: unknown key %q", browser.ErrScriptInjection, k.Key)
	}

	var mods input.Modifier
	if k.Modifiers&schemas.ModAlt != 0 {
		mods |= input.ModifierAlt
	}
	if k.Modifiers&schemas.ModCtrl != 0 {
		mods |= input.ModifierCtrl
	}
	if k.Modifiers&schemas.ModMeta != 0 {
		mods |= input.ModifierMeta
	}
	if k.Modifiers&schemas.ModShift != 0 {
		mods |= input.ModifierShift
	}

	events := kb.Encode(runes[0])
	for _, ev := range events {
		ev.Modifiers |= mods
	}
	return events, nil
}

// history moves through the tab's session history.
func (p *Page) history(ctx context.Context, delta int) (schemas.PrimitiveResult, error) {
	if p.closed.Load() {
		return schemas.PrimitiveResult{}, browser.ErrPageClosed
	}
	runCtx, cancel := p.opContext(ctx)
	defer cancel()

	var (
		current int64
		entries []*cdppage.NavigationEntry
	)
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		current, entries, err = cdppage.GetNavigationHistory().Do(ctx)
		return err
	}))
	if err != nil {
		return schemas.PrimitiveResult{}, p.classify(ctx, err)
	}

	next := int(current) + delta
	if delta == 0 || next < 0 || next >= len(entries) {
		res := schemas.PrimitiveResult{Found: true}
		if int(current) < len(entries) {
			res.URL = entries[current].URL
		}
		return res, nil
	}
	navCtx, cancelNav := CombineContext(p.ctx, ctx)
	defer cancelNav()
	if p.cfg.NavigationTimeout > 0 {
		var cancelTimeout context.CancelFunc
		navCtx, cancelTimeout = context.WithTimeout(navCtx, p.cfg.NavigationTimeout)
		defer cancelTimeout()
	}
	if err := chromedp.Run(navCtx, cdppage.NavigateToHistoryEntry(entries[next].ID)); err != nil {
		return schemas.PrimitiveResult{}, fmt.Errorf("history navigation failed: %w", err)
	}
	return schemas.PrimitiveResult{Found: true, Delivered: true, URL: entries[next].URL}, nil
}

// Navigate implements browser.Page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.navigate(ctx, "navigation to "+url, chromedp.Navigate(url))
}

// Reload implements browser.Page.
func (p *Page) Reload(ctx context.Context) error {
	return p.navigate(ctx, "reload", chromedp.Reload())
}

func (p *Page) navigate(ctx context.Context, what string, action chromedp.Action) error {
	if p.closed.Load() {
		return browser.ErrPageClosed
	}
	navCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	if p.cfg.NavigationTimeout > 0 {
		var cancelTimeout context.CancelFunc
		navCtx, cancelTimeout = context.WithTimeout(navCtx, p.cfg.NavigationTimeout)
		defer cancelTimeout()
	}
	if err := chromedp.Run(navCtx, action); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w", what, err)
	}
	p.logger.Debug("Navigation complete.", zap.String("page_id", p.id), zap.String("what", what))
	return nil
}

// Close implements browser.Page. It closes the tab.
func (p *Page) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if p.onClose != nil {
		p.onClose(p.id)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close tab %s: %w", p.id, err)
	}
	return nil
}
