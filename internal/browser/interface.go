// internal/browser/interface.go
package browser

import (
	"context"
	"errors"

	"github.com/xkilldash9x/pagewright/api/schemas"
)

// ErrScriptInjection marks a failure of the execution surface itself: the
// page refused or lost an injected script. Callers cannot recover from it by
// trying another element, so it is propagated rather than folded into an
// outcome.
var ErrScriptInjection = errors.New("script injection failed")

// ErrInvalidSelector is returned when a path or selector supplied by the
// caller does not compile. The page itself is fine.
var ErrInvalidSelector = errors.New("invalid selector")

// ErrPageNotFound is returned when a page context id is unknown.
var ErrPageNotFound = errors.New("page context not found")

// ErrPageClosed is returned for operations on a closed page.
var ErrPageClosed = errors.New("page context closed")

// Page is the script injection surface for a single page context. Every
// method runs to completion before returning; implementations are not
// required to be safe for concurrent use and callers serialise access per
// page.
type Page interface {
	// ID is the stable page context identifier.
	ID() string
	// Snapshot reads every element's raw facts in one consistent pass.
	Snapshot(ctx context.Context) (*schemas.DocumentSnapshot, error)
	// State is the cheap readiness probe.
	State(ctx context.Context) (schemas.PageState, error)
	// Perform dispatches one bounded primitive.
	Perform(ctx context.Context, p schemas.Primitive) (schemas.PrimitiveResult, error)
	// Navigate loads url in this page context.
	Navigate(ctx context.Context, url string) error
	// Reload reloads the current document.
	Reload(ctx context.Context) error
	// Close releases the page context.
	Close() error
}

// Tabs is the tab/window surface: it opens, looks up and lists page contexts.
type Tabs interface {
	Open(ctx context.Context, url string) (Page, error)
	Get(id string) (Page, error)
	List() []Page
	Close(id string) error
}
