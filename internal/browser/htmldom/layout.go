package htmldom

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pagewright/api/schemas"
)

// The offline backend has no rendering engine. Geometry is a deterministic
// estimate: elements are stacked vertically in document order, each with a
// per-tag default size unless an inline width/height overrides it. Only
// inline styles are honoured.

const (
	pageMargin = 8.0
	rowHeight  = 24.0
)

var nonRendered = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"noscript": true, "meta": true, "link": true, "title": true, "base": true,
}

var defaultSize = map[string][2]float64{
	"button":   {96, 32},
	"input":    {200, 30},
	"select":   {200, 30},
	"textarea": {300, 72},
	"a":        {80, 20},
	"img":      {48, 48},
	"label":    {120, 20},
	"span":     {60, 20},
	"summary":  {120, 20},
	"option":   {0, 0},
	"br":       {0, 0},
}

var inlineTags = map[string]bool{
	"a": true, "span": true, "button": true, "input": true, "select": true,
	"label": true, "img": true, "em": true, "strong": true, "b": true, "i": true,
	"code": true, "small": true, "abbr": true, "textarea": true,
}

// parseStyle splits an inline style attribute into lower-cased declarations.
func parseStyle(n *html.Node) map[string]string {
	raw := htmlquery.SelectAttr(n, "style")
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important")))
		if k != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

func pixels(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

// computedStyle resolves display, visibility, opacity and cursor, inheriting
// the hiding properties from ancestors the way a browser would.
func computedStyle(n *html.Node) schemas.ComputedStyle {
	tag := strings.ToLower(n.Data)
	cs := schemas.ComputedStyle{Display: "block", Visibility: "visible", Opacity: "1", Cursor: "auto"}
	if inlineTags[tag] {
		cs.Display = "inline-block"
	}
	if tag == "a" && hasAttr(n, "href") {
		cs.Cursor = "pointer"
	}
	if own := parseStyle(n); own != nil {
		if v, ok := own["display"]; ok {
			cs.Display = v
		}
		if v, ok := own["visibility"]; ok {
			cs.Visibility = v
		}
		if v, ok := own["opacity"]; ok {
			cs.Opacity = v
		}
		if v, ok := own["cursor"]; ok {
			cs.Cursor = v
		}
	}
	if hasAttr(n, "hidden") || nonRendered[tag] || (tag == "input" && strings.EqualFold(htmlquery.SelectAttr(n, "type"), "hidden")) {
		cs.Display = "none"
	}

	for p := n.Parent; p != nil && p.Type == html.ElementNode; p = p.Parent {
		ptag := strings.ToLower(p.Data)
		ps := parseStyle(p)
		if hasAttr(p, "hidden") || nonRendered[ptag] || ps["display"] == "none" {
			cs.Display = "none"
		}
		if (ps["visibility"] == "hidden" || ps["visibility"] == "collapse") && cs.Visibility == "visible" {
			cs.Visibility = "hidden"
		}
		if ps["opacity"] == "0" {
			cs.Opacity = "0"
		}
		if ptag == "details" && !hasAttr(p, "open") && tag != "summary" && !isSummaryOf(n, p) {
			cs.Display = "none"
		}
	}
	return cs
}

func isSummaryOf(n, details *html.Node) bool {
	for c := n; c != nil && c != details; c = c.Parent {
		if strings.EqualFold(c.Data, "summary") && c.Parent == details {
			return true
		}
	}
	return false
}

// sizeOf returns the estimated box size for n.
func sizeOf(n *html.Node) (float64, float64) {
	tag := strings.ToLower(n.Data)
	w, h := 1264.0, rowHeight
	if d, ok := defaultSize[tag]; ok {
		w, h = d[0], d[1]
	}
	if tag == "img" {
		if v, ok := pixels(htmlquery.SelectAttr(n, "width")); ok {
			w = v
		}
		if v, ok := pixels(htmlquery.SelectAttr(n, "height")); ok {
			h = v
		}
	}
	if st := parseStyle(n); st != nil {
		if v, ok := pixels(st["width"]); ok {
			w = v
		}
		if v, ok := pixels(st["height"]); ok {
			h = v
		}
	}
	return w, h
}

// innerText returns the collapsed, trimmed visible text of n.
func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if nonRendered[strings.ToLower(c.Data)] {
				return
			}
			if hasAttr(c, "hidden") || parseStyle(c)["display"] == "none" {
				return
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
