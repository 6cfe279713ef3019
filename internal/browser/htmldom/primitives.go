package htmldom

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
)

// Perform implements browser.Page.
func (p *Page) Perform(ctx context.Context, op schemas.Primitive) (schemas.PrimitiveResult, error) {
	if err := ctx.Err(); err != nil {
		return schemas.PrimitiveResult{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return schemas.PrimitiveResult{}, browser.ErrPageClosed
	}
	if p.root == nil {
		return schemas.PrimitiveResult{}, fmt.Errorf("%w: no document loaded", browser.ErrScriptInjection)
	}

	// Page level operations first.
	switch op.Op {
	case schemas.OpScrollBy:
		p.scrollTo(p.scrollX+op.DX, p.scrollY+op.DY)
		p.record("scroll", "", "")
		return schemas.PrimitiveResult{Found: true, Delivered: true, URL: p.url}, nil
	case schemas.OpScrollToEdge:
		if op.Edge == "bottom" {
			p.scrollTo(p.scrollX, p.documentHeight())
		} else {
			p.scrollTo(0, 0)
		}
		p.record("scroll", "", op.Edge)
		return schemas.PrimitiveResult{Found: true, Delivered: true, URL: p.url}, nil
	case schemas.OpQuery:
		return p.query(op.Selector), nil
	case schemas.OpFindText:
		found := false
		if b := p.body(); b != nil {
			found = strings.Contains(strings.ToLower(innerText(b)), strings.ToLower(op.Value))
		}
		return schemas.PrimitiveResult{Found: found, Visible: found, URL: p.url}, nil
	case schemas.OpHistory:
		return p.historyGo(ctx, op.Delta)
	case schemas.OpKeySequence:
		if op.Path == "" {
			return p.keys(ctx, p.focused, op.Keys)
		}
	}

	n, err := p.find(op.Path)
	if err != nil {
		return schemas.PrimitiveResult{}, err
	}
	if n == nil {
		return schemas.PrimitiveResult{Found: false, URL: p.url}, nil
	}
	path := StructuralPath(n)

	switch op.Op {
	case schemas.OpProbe:
		return p.result(n, true), nil

	case schemas.OpScrollIntoView:
		r := p.layout()[n]
		docY := r.Y + p.scrollY
		p.scrollTo(p.scrollX, docY+r.Height/2-p.viewport.Height/2)
		p.record("scrollIntoView", path, "")
		return p.result(n, true), nil

	case schemas.OpMouseEvents:
		visible := computedStyle(n).Display != "none"
		for _, ev := range op.Events {
			p.record(ev, path, "")
			switch ev {
			case "mousedown":
				if focusable(n) {
					p.focused = n
				}
			case "click":
				if visible {
					if err := p.activate(ctx, n); err != nil {
						return schemas.PrimitiveResult{}, err
					}
				}
			}
		}
		return p.result(n, visible), nil

	case schemas.OpInvokeClick:
		p.record("click", path, "direct")
		if err := p.activate(ctx, n); err != nil {
			return schemas.PrimitiveResult{}, err
		}
		return p.result(n, true), nil

	case schemas.OpFocus:
		if focusable(n) {
			p.focused = n
			p.record("focus", path, "")
		}
		return p.result(n, focusable(n)), nil

	case schemas.OpKeySequence:
		return p.keys(ctx, n, op.Keys)

	case schemas.OpSetValue:
		setValue(n, op.Value)
		p.record("input", path, op.Value)
		p.record("change", path, "")
		return p.result(n, true), nil

	case schemas.OpSetTextContent:
		replaceText(n, op.Value)
		p.record("input", path, op.Value)
		p.record("change", path, "")
		return p.result(n, true), nil

	case schemas.OpSelectOption:
		ok := selectOption(n, op.Value)
		if ok {
			p.record("change", path, op.Value)
		}
		return p.result(n, ok), nil

	case schemas.OpTouchEvents:
		for _, ev := range op.Events {
			p.record(ev, path, "")
		}
		if op.To == nil && contains(op.Events, "touchend") && computedStyle(n).Display != "none" {
			p.record("click", path, "touch")
			if err := p.activate(ctx, n); err != nil {
				return schemas.PrimitiveResult{}, err
			}
		}
		return p.result(n, true), nil

	case schemas.OpDragTo:
		dst, err := p.find(op.Destination)
		if err != nil {
			return schemas.PrimitiveResult{}, err
		}
		if dst == nil {
			return schemas.PrimitiveResult{Found: false, URL: p.url}, nil
		}
		dstPath := StructuralPath(dst)
		p.record("dragstart", path, "")
		p.record("drag", path, "")
		p.record("dragenter", dstPath, "")
		p.record("dragover", dstPath, "")
		p.record("drop", dstPath, path)
		p.record("dragend", path, "")
		return p.result(n, true), nil

	case schemas.OpGetText:
		res := p.result(n, true)
		if isFormField(n) {
			res.Value = currentValue(n)
		} else {
			res.Value = innerText(n)
		}
		return res, nil

	case schemas.OpGetAttribute:
		res := p.result(n, true)
		v, ok := attrValue(n, op.Name)
		res.Value = v
		res.Delivered = ok
		return res, nil

	case schemas.OpSetAttribute:
		setAttr(n, op.Name, op.Value)
		p.record("attribute", path, op.Name)
		return p.result(n, true), nil
	}

	return schemas.PrimitiveResult{}, fmt.Errorf("%w: unknown primitive %q", browser.ErrScriptInjection, op.Op)
}

// find resolves a structural path.
func (p *Page) find(path string) (*html.Node, error) {
	if path == "" {
		return nil, nil
	}
	n, err := htmlquery.Query(p.root, path)
	if err != nil {
		return nil, fmt.Errorf("%w: path %q: %v", browser.ErrInvalidSelector, path, err)
	}
	return n, nil
}

func (p *Page) query(selector string) schemas.PrimitiveResult {
	doc := goquery.NewDocumentFromNode(p.root)
	sel := doc.Find(selector)
	res := schemas.PrimitiveResult{URL: p.url}
	if sel.Length() == 0 {
		return res
	}
	n := sel.Get(0)
	res = p.result(n, true)
	return res
}

func (p *Page) result(n *html.Node, delivered bool) schemas.PrimitiveResult {
	rect := p.layout()[n]
	res := schemas.PrimitiveResult{
		Found:     true,
		Delivered: delivered,
		Visible:   !rect.Empty(),
		Rect:      rect,
		URL:       p.url,
	}
	if isFormField(n) {
		res.Value = currentValue(n)
	}
	if p.focused != nil {
		res.FocusedPath = StructuralPath(p.focused)
	}
	return res
}

func (p *Page) record(typ, path, data string) {
	p.events = append(p.events, Event{Type: typ, Path: path, Data: data})
}

func (p *Page) scrollTo(x, y float64) {
	maxY := math.Max(0, p.documentHeight()-p.viewport.Height)
	p.scrollX = math.Max(0, x)
	p.scrollY = math.Min(math.Max(0, y), maxY)
}

// activate applies the default action of a click. Must be called with p.mu held.
func (p *Page) activate(ctx context.Context, n *html.Node) error {
	if hasAttr(n, "disabled") {
		return nil
	}
	tag := strings.ToLower(n.Data)
	typ := strings.ToLower(htmlquery.SelectAttr(n, "type"))

	// data-toggle="<id>" flips the hidden attribute of the referenced element,
	// standing in for the script-driven disclosure widgets real pages use.
	if target := htmlquery.SelectAttr(n, "data-toggle"); target != "" {
		if t := htmlquery.FindOne(p.root, fmt.Sprintf("//*[@id='%s']", strings.TrimPrefix(target, "#"))); t != nil {
			if hasAttr(t, "hidden") {
				removeAttr(t, "hidden")
			} else {
				setAttr(t, "hidden", "")
			}
		}
	}

	switch {
	case tag == "a":
		href := htmlquery.SelectAttr(n, "href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return nil
		}
		return p.follow(ctx, href)
	case tag == "input" && (typ == "checkbox" || typ == "radio"):
		if hasAttr(n, "checked") && typ == "checkbox" {
			removeAttr(n, "checked")
		} else {
			setAttr(n, "checked", "")
		}
		p.record("change", StructuralPath(n), "")
	case (tag == "button" && (typ == "" || typ == "submit")) || (tag == "input" && (typ == "submit" || typ == "image")):
		return p.submit(ctx, n)
	case tag == "summary":
		if d := n.Parent; d != nil && strings.EqualFold(d.Data, "details") {
			if hasAttr(d, "open") {
				removeAttr(d, "open")
			} else {
				setAttr(d, "open", "")
			}
		}
	}
	return nil
}

func (p *Page) submit(ctx context.Context, from *html.Node) error {
	var form *html.Node
	for a := from.Parent; a != nil; a = a.Parent {
		if a.Type == html.ElementNode && strings.EqualFold(a.Data, "form") {
			form = a
			break
		}
	}
	if form == nil {
		return nil
	}
	p.record("submit", StructuralPath(form), "")
	if action := htmlquery.SelectAttr(form, "action"); action != "" {
		return p.follow(ctx, action)
	}
	return nil
}

// follow navigates as a result of page activity, pushing history.
func (p *Page) follow(ctx context.Context, href string) error {
	if err := p.load(ctx, href); err != nil {
		return err
	}
	p.history = append(p.history[:p.histIdx+1], p.url)
	p.histIdx = len(p.history) - 1
	p.logger.Debug("Followed link.", zap.String("url", p.url))
	return nil
}

func (p *Page) historyGo(ctx context.Context, delta int) (schemas.PrimitiveResult, error) {
	next := p.histIdx + delta
	if delta == 0 || next < 0 || next >= len(p.history) {
		return schemas.PrimitiveResult{Found: true, Delivered: false, URL: p.url}, nil
	}
	if err := p.load(ctx, p.history[next]); err != nil {
		return schemas.PrimitiveResult{}, err
	}
	p.histIdx = next
	return schemas.PrimitiveResult{Found: true, Delivered: true, URL: p.url}, nil
}

func (p *Page) keys(ctx context.Context, n *html.Node, keys []schemas.KeyEventData) (schemas.PrimitiveResult, error) {
	if n == nil {
		n = p.body()
	}
	if n == nil {
		return schemas.PrimitiveResult{Found: false, URL: p.url}, nil
	}
	path := StructuralPath(n)
	for _, k := range keys {
		p.record("keydown", path, k.Key)
		p.record("keypress", path, k.Key)
		p.record("keyup", path, k.Key)
		switch {
		case k.Key == "Enter":
			tag := strings.ToLower(n.Data)
			role := strings.ToLower(htmlquery.SelectAttr(n, "role"))
			if tag == "button" || tag == "a" || role == "button" || role == "link" {
				if err := p.activate(ctx, n); err != nil {
					return schemas.PrimitiveResult{}, err
				}
			} else if tag == "input" {
				if err := p.submit(ctx, n); err != nil {
					return schemas.PrimitiveResult{}, err
				}
			}
		case k.Key == "Backspace" && isFormField(n):
			v := []rune(currentValue(n))
			if len(v) > 0 {
				setValue(n, string(v[:len(v)-1]))
			}
		case len([]rune(k.Key)) == 1 && isFormField(n):
			setValue(n, currentValue(n)+k.Key)
		}
	}
	return p.result(n, true), nil
}

func focusable(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "input", "textarea", "select", "button", "summary":
		return !hasAttr(n, "disabled")
	case "a":
		return hasAttr(n, "href")
	}
	if _, ok := attrValue(n, "contenteditable"); ok {
		return true
	}
	return hasAttr(n, "tabindex")
}

func isFormField(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "input", "textarea", "select":
		return true
	}
	return false
}

func currentValue(n *html.Node) string {
	switch strings.ToLower(n.Data) {
	case "textarea":
		return htmlquery.InnerText(n)
	case "select":
		var first, selected string
		for _, opt := range htmlquery.Find(n, ".//option") {
			v := optionValue(opt)
			if first == "" {
				first = v
			}
			if hasAttr(opt, "selected") {
				selected = v
			}
		}
		if selected != "" {
			return selected
		}
		return first
	}
	return htmlquery.SelectAttr(n, "value")
}

func optionValue(opt *html.Node) string {
	if v, ok := attrValue(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(htmlquery.InnerText(opt))
}

func setValue(n *html.Node, v string) {
	switch strings.ToLower(n.Data) {
	case "textarea":
		replaceText(n, v)
	case "select":
		selectOption(n, v)
	case "input":
		setAttr(n, "value", v)
	default:
		replaceText(n, v)
	}
}

func selectOption(n *html.Node, want string) bool {
	var match *html.Node
	opts := htmlquery.Find(n, ".//option")
	for _, opt := range opts {
		if strings.EqualFold(optionValue(opt), want) || strings.EqualFold(strings.TrimSpace(htmlquery.InnerText(opt)), want) {
			match = opt
			break
		}
	}
	if match == nil {
		return false
	}
	for _, opt := range opts {
		removeAttr(opt, "selected")
	}
	setAttr(match, "selected", "")
	return true
}

func replaceText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
