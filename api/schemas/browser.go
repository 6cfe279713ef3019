package schemas

import (
	"time"
)

// -- Document Snapshot Schemas --

// Rect is an element's bounding box in CSS pixels, relative to the viewport.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the midpoint of the box.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Empty reports whether the box has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Viewport describes the visible area of the page.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Intersects reports whether any part of r falls inside the viewport.
func (v Viewport) Intersects(r Rect) bool {
	if r.Empty() || v.Width <= 0 || v.Height <= 0 {
		return false
	}
	return r.X < v.Width && r.X+r.Width > 0 && r.Y < v.Height && r.Y+r.Height > 0
}

// ComputedStyle holds the handful of computed CSS properties the analyzer needs.
type ComputedStyle struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
	Opacity    string `json:"opacity"`
	Cursor     string `json:"cursor"`
}

// ElementFacts is the raw, unscored description of one element as reported by
// a page backend. All derived flags and scores are computed from it in Go.
type ElementFacts struct {
	Path            string            `json:"path"`
	Index           int               `json:"index"`
	Tag             string            `json:"tag"`
	ID              string            `json:"id,omitempty"`
	Classes         []string          `json:"classes,omitempty"`
	Text            string            `json:"text,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	Style           ComputedStyle     `json:"style"`
	Rect            Rect              `json:"rect"`
	HasClickHandler bool              `json:"hasClickHandler,omitempty"`
	ContentEditable bool              `json:"contentEditable,omitempty"`
	Disabled        bool              `json:"disabled,omitempty"`
	Context         string            `json:"context,omitempty"`
	Landmark        string            `json:"landmark,omitempty"`
}

// DocumentSnapshot is one consistent read of the page. Elements are in
// document order.
type DocumentSnapshot struct {
	URL           string         `json:"url"`
	Title         string         `json:"title"`
	ReadyState    string         `json:"readyState"`
	Viewport      Viewport       `json:"viewport"`
	TotalElements int            `json:"totalElements"`
	Elements      []ElementFacts `json:"elements"`
}

// PageState is the cheap readiness probe used between steps.
type PageState struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	ReadyState   string `json:"readyState"`
	BodyChildren int    `json:"bodyChildren"`
	FocusedPath  string `json:"focusedPath,omitempty"`
}

// Ready reports whether the document has settled enough for script injection.
func (s PageState) Ready() bool {
	return (s.ReadyState == "interactive" || s.ReadyState == "complete") && s.BodyChildren > 0
}

// -- Page Analysis Schemas --

// ElementAnalysis describes one element at scan time. It is built once per
// scan and never mutated afterwards.
type ElementAnalysis struct {
	Path            string            `json:"path"`
	Index           int               `json:"index"`
	Tag             string            `json:"tag"`
	ID              string            `json:"id,omitempty"`
	Classes         []string          `json:"classes,omitempty"`
	Text            string            `json:"text,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	IsVisible       bool              `json:"isVisible"`
	IsClickable     bool              `json:"isClickable"`
	IsInput         bool              `json:"isInput"`
	IsEditable      bool              `json:"isEditable,omitempty"`
	Disabled        bool              `json:"disabled,omitempty"`
	Rect            Rect              `json:"rect"`
	InViewport      bool              `json:"inViewport"`
	Context         string            `json:"context,omitempty"`
	Landmark        string            `json:"landmark,omitempty"`
	AutomationScore int               `json:"automationScore"`
}

// Attr returns the named attribute or "".
func (e *ElementAnalysis) Attr(name string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}

// Fillable reports whether text can be entered into the element.
func (e *ElementAnalysis) Fillable() bool {
	switch e.Tag {
	case "input", "textarea", "select":
		return true
	}
	return e.IsEditable
}

// Info is the compact summary attached to outcomes.
func (e *ElementAnalysis) Info() *ElementInfo {
	if e == nil {
		return nil
	}
	return &ElementInfo{Path: e.Path, Tag: e.Tag, ID: e.ID, Text: e.Text, Type: e.Attr("type")}
}

// ElementInfo identifies the element an action touched.
type ElementInfo struct {
	Path string `json:"path"`
	Tag  string `json:"tag"`
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
	Type string `json:"type,omitempty"`
}

// Category names the buckets a page analysis sorts elements into.
type Category string

const (
	CategoryButtons    Category = "buttons"
	CategoryInputs     Category = "inputs"
	CategoryLinks      Category = "links"
	CategoryForms      Category = "forms"
	CategoryNavigation Category = "navigation"
	CategoryContent    Category = "content"
)

// AllCategories lists the buckets in reporting order.
var AllCategories = []Category{
	CategoryButtons, CategoryInputs, CategoryLinks, CategoryForms, CategoryNavigation, CategoryContent,
}

// PageAnalysis is the result of one scan. Exactly one is live per page
// context; a rescan replaces it wholesale.
type PageAnalysis struct {
	URL                 string                      `json:"url"`
	Title               string                      `json:"title"`
	Timestamp           time.Time                   `json:"timestamp"`
	TotalElements       int                         `json:"totalElements"`
	InteractiveElements []*ElementAnalysis          `json:"interactiveElements"`
	ByPath              map[string]*ElementAnalysis `json:"-"`
	TopScored           []*ElementAnalysis          `json:"topScoredElements"`
	Categories          map[Category][]string       `json:"categories"`
	// Superset holds every element of the interactive tag superset,
	// including those dropped from InteractiveElements for scoring below the
	// cutoff. Used by the direct text and attribute scans.
	Superset []*ElementAnalysis `json:"-"`
	Viewport Viewport           `json:"viewport"`
}

// Lookup finds an element by structural path in the interactive set, then in
// the superset.
func (p *PageAnalysis) Lookup(path string) *ElementAnalysis {
	if p == nil {
		return nil
	}
	if el, ok := p.ByPath[path]; ok {
		return el
	}
	for _, el := range p.Superset {
		if el.Path == path {
			return el
		}
	}
	return nil
}

// InCategory returns the interactive elements in the given buckets, in
// document order and without duplicates.
func (p *PageAnalysis) InCategory(cats ...Category) []*ElementAnalysis {
	want := make(map[string]struct{})
	for _, c := range cats {
		for _, path := range p.Categories[c] {
			want[path] = struct{}{}
		}
	}
	out := make([]*ElementAnalysis, 0, len(want))
	for _, el := range p.InteractiveElements {
		if _, ok := want[el.Path]; ok {
			out = append(out, el)
		}
	}
	return out
}

// Candidate pairs an element with its resolution-time score.
type Candidate struct {
	Element  *ElementAnalysis `json:"element"`
	Score    float64          `json:"score"`
	Strategy string           `json:"strategy"`
	Reasons  []string         `json:"reasons,omitempty"`
}
