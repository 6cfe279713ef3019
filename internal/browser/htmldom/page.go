// internal/browser/htmldom/page.go
package htmldom

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
)

// interrogated lists the attributes copied into every element's facts.
var interrogated = []string{
	"type", "name", "placeholder", "aria-label", "title", "role", "href", "alt",
	"data-testid", "data-qa", "data-cy", "value", "rel", "contenteditable", "autocomplete", "for",
}

var landmarkTags = map[string]string{
	"nav": "nav", "header": "header", "footer": "footer", "form": "form",
	"dialog": "dialog", "main": "main", "aside": "aside",
}

var landmarkRoles = map[string]string{
	"navigation": "nav", "banner": "header", "contentinfo": "footer",
	"dialog": "dialog", "main": "main", "search": "search", "form": "form",
}

const notFoundDocument = `<html><head><title>Not Found</title></head><body><h1>Not Found</h1></body></html>`

// Event is one synthetic DOM event recorded by the page.
type Event struct {
	Type string
	Path string
	Data string
}

// Page is an in-memory page context backed by a parsed HTML tree. It applies
// the default activation behaviour of links, submit buttons, checkboxes and
// form fields so that interaction sequences have observable effects.
type Page struct {
	id     string
	loader Loader
	logger *zap.Logger

	mu       sync.Mutex
	root     *html.Node
	url      string
	history  []string
	histIdx  int
	viewport schemas.Viewport
	scrollX  float64
	scrollY  float64
	focused  *html.Node
	events   []Event
	closed   bool
	onClose  func(string)
}

func newPage(id string, loader Loader, viewport schemas.Viewport, logger *zap.Logger) *Page {
	return &Page{
		id:       id,
		loader:   loader,
		viewport: viewport,
		logger:   logger.With(zap.String("page_id", id)),
		histIdx:  -1,
	}
}

// ID implements browser.Page.
func (p *Page) ID() string { return p.id }

// Navigate implements browser.Page.
func (p *Page) Navigate(ctx context.Context, target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return browser.ErrPageClosed
	}
	if err := p.load(ctx, target); err != nil {
		return err
	}
	p.history = append(p.history[:p.histIdx+1], p.url)
	p.histIdx = len(p.history) - 1
	return nil
}

// Reload implements browser.Page.
func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return browser.ErrPageClosed
	}
	return p.load(ctx, p.url)
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cb := p.onClose
	p.mu.Unlock()
	if cb != nil {
		cb(p.id)
	}
	return nil
}

// Events returns a copy of the recorded event log.
func (p *Page) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// URL returns the current document URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// SetHTML replaces the current document in place, keeping the URL. Used to
// simulate client-side re-renders.
func (p *Page) SetHTML(markup string) error {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.root = doc
	p.focused = nil
	return nil
}

// load must be called with p.mu held.
func (p *Page) load(ctx context.Context, target string) error {
	resolved := target
	if p.url != "" && target != "" && !strings.Contains(target, "://") && target != "about:blank" {
		if base, err := url.Parse(p.url); err == nil {
			if ref, err := url.Parse(target); err == nil {
				resolved = base.ResolveReference(ref).String()
			}
		}
	}

	var markup string
	if resolved == "" || resolved == "about:blank" {
		resolved = "about:blank"
		markup = "<html><head></head><body></body></html>"
	} else {
		rc, err := p.loader.Load(ctx, resolved)
		if err != nil {
			p.logger.Warn("Document load failed, serving not-found page.", zap.String("url", resolved), zap.Error(err))
			markup = notFoundDocument
		} else {
			b, readErr := io.ReadAll(rc)
			rc.Close()
			if readErr != nil {
				return fmt.Errorf("failed to read document %s: %w", resolved, readErr)
			}
			markup = string(b)
		}
	}

	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse document %s: %w", resolved, err)
	}
	p.root = doc
	p.url = resolved
	p.scrollX, p.scrollY = 0, 0
	p.focused = nil
	p.logger.Debug("Document loaded.", zap.String("url", resolved))
	return nil
}

func (p *Page) body() *html.Node {
	if p.root == nil {
		return nil
	}
	return htmlquery.FindOne(p.root, "//body")
}

func (p *Page) title() string {
	if p.root == nil {
		return ""
	}
	if t := htmlquery.FindOne(p.root, "//title"); t != nil {
		return strings.TrimSpace(htmlquery.InnerText(t))
	}
	return ""
}

// State implements browser.Page.
func (p *Page) State(ctx context.Context) (schemas.PageState, error) {
	if err := ctx.Err(); err != nil {
		return schemas.PageState{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return schemas.PageState{}, browser.ErrPageClosed
	}
	st := schemas.PageState{URL: p.url, Title: p.title(), ReadyState: "complete"}
	if b := p.body(); b != nil {
		for c := b.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				st.BodyChildren++
			}
		}
	}
	if p.focused != nil {
		st.FocusedPath = StructuralPath(p.focused)
	}
	return st, nil
}

// Snapshot implements browser.Page.
func (p *Page) Snapshot(ctx context.Context) (*schemas.DocumentSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, browser.ErrPageClosed
	}

	snap := &schemas.DocumentSnapshot{
		URL:        p.url,
		Title:      p.title(),
		ReadyState: "complete",
		Viewport:   p.viewport,
	}
	if p.root == nil {
		return snap, nil
	}

	body := p.body()
	rects := p.layout()
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			snap.TotalElements++
			if body != nil && n != body && isDescendant(n, body) && !nonRendered[strings.ToLower(n.Data)] {
				snap.Elements = append(snap.Elements, p.facts(n, len(snap.Elements), rects[n]))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(p.root)
	return snap, nil
}

func isDescendant(n, ancestor *html.Node) bool {
	for c := n.Parent; c != nil; c = c.Parent {
		if c == ancestor {
			return true
		}
	}
	return false
}

// facts must be called with p.mu held.
func (p *Page) facts(n *html.Node, index int, rect schemas.Rect) schemas.ElementFacts {
	tag := strings.ToLower(n.Data)
	f := schemas.ElementFacts{
		Path:  StructuralPath(n),
		Index: index,
		Tag:   tag,
		ID:    htmlquery.SelectAttr(n, "id"),
		Style: computedStyle(n),
	}
	if cls := strings.Fields(htmlquery.SelectAttr(n, "class")); len(cls) > 0 {
		f.Classes = cls
	}
	for _, name := range interrogated {
		if v := htmlquery.SelectAttr(n, name); v != "" || (name == "contenteditable" && hasAttr(n, name)) {
			if f.Attributes == nil {
				f.Attributes = make(map[string]string)
			}
			f.Attributes[name] = v
		}
	}
	if tag != "input" && tag != "textarea" && tag != "select" {
		f.Text = truncate(innerText(n), 100)
	}
	ce, ceSet := attrValue(n, "contenteditable")
	f.ContentEditable = ceSet && (ce == "" || strings.EqualFold(ce, "true") || strings.EqualFold(ce, "plaintext-only"))
	f.Disabled = hasAttr(n, "disabled") || strings.EqualFold(htmlquery.SelectAttr(n, "aria-disabled"), "true")
	for _, a := range n.Attr {
		if a.Key == "onclick" || a.Key == "onmousedown" || a.Key == "onmouseup" {
			f.HasClickHandler = true
			break
		}
	}
	f.Context, f.Landmark = ancestry(n)
	f.Rect = rect
	return f
}

// layout assigns every rendered body descendant a stacked box, offset by the
// current scroll position. Must be called with p.mu held.
func (p *Page) layout() map[*html.Node]schemas.Rect {
	rects := make(map[*html.Node]schemas.Rect)
	body := p.body()
	if body == nil {
		return rects
	}
	row := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if computedStyle(c).Display != "none" {
				w, h := sizeOf(c)
				rects[c] = schemas.Rect{
					X:      pageMargin - p.scrollX,
					Y:      pageMargin + float64(row)*rowHeight - p.scrollY,
					Width:  w,
					Height: h,
				}
				row++
			}
			walk(c)
		}
	}
	walk(body)
	return rects
}

// documentHeight is the height of the stacked layout. Must be called with p.mu held.
func (p *Page) documentHeight() float64 {
	rows := 0
	for range p.layout() {
		rows++
	}
	return 2*pageMargin + float64(rows)*rowHeight
}

func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// ancestry returns the text and identifying attributes of the nearest form,
// dialog or section ancestor, and the nearest landmark name.
func ancestry(n *html.Node) (string, string) {
	var contextText, landmark string
	for a := n.Parent; a != nil && a.Type == html.ElementNode; a = a.Parent {
		tag := strings.ToLower(a.Data)
		role := strings.ToLower(htmlquery.SelectAttr(a, "role"))
		if contextText == "" && (tag == "form" || tag == "dialog" || tag == "section" || tag == "fieldset" || role == "dialog" || role == "form") {
			parts := []string{
				htmlquery.SelectAttr(a, "id"),
				htmlquery.SelectAttr(a, "class"),
				htmlquery.SelectAttr(a, "action"),
				htmlquery.SelectAttr(a, "aria-label"),
				innerText(a),
			}
			contextText = truncate(strings.TrimSpace(strings.Join(strings.Fields(strings.Join(parts, " ")), " ")), 200)
		}
		if landmark == "" {
			if l, ok := landmarkTags[tag]; ok {
				landmark = l
			} else if l, ok := landmarkRoles[role]; ok {
				landmark = l
			}
		}
		if contextText != "" && landmark != "" {
			break
		}
	}
	return contextText, landmark
}
