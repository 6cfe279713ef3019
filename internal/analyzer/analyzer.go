// File: internal/analyzer/analyzer.go
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/observability"
)

const (
	defaultTopN      = 50
	defaultMinScore  = 5
	defaultTextLimit = 100
	defaultStaleness = 30 * time.Second
)

// clickableTags are interactive regardless of styling or handlers.
var clickableTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true, "textarea": true,
}

// supersetTags is the fixed element set scanned by the direct text and
// attribute strategies, whatever their automation score.
var supersetTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true, "textarea": true,
	"label": true, "span": true, "div": true, "li": true, "summary": true, "option": true,
}

// buttonInputTypes are input types that behave as buttons.
var buttonInputTypes = map[string]bool{
	"submit": true, "button": true, "reset": true, "image": true,
}

var navigationRoles = map[string]bool{
	"navigation": true, "menuitem": true, "tab": true, "menu": true, "menubar": true,
}

// Analyzer scores the elements of a document snapshot.
type Analyzer struct {
	cfg     config.AnalyzerConfig
	weights Weights
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWeights replaces the scoring table.
func WithWeights(w Weights) Option {
	return func(a *Analyzer) { a.weights = w }
}

// WithClock sets the clock used for analysis timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(a *Analyzer) { a.clock = c }
}

// WithMetrics records scan counts and durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// New creates an Analyzer. Zero values in cfg fall back to the stock limits.
func New(cfg config.AnalyzerConfig, logger *zap.Logger, opts ...Option) *Analyzer {
	if cfg.TopN <= 0 {
		cfg.TopN = defaultTopN
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = defaultMinScore
	}
	if cfg.TextLimit <= 0 {
		cfg.TextLimit = defaultTextLimit
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = defaultStaleness
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{
		cfg:     cfg,
		weights: DefaultWeights,
		clock:   clockwork.NewRealClock(),
		logger:  logger.Named("analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Clock returns the analyzer's clock.
func (a *Analyzer) Clock() clockwork.Clock { return a.clock }

// StalenessWindow is the configured maximum age of a cached analysis.
func (a *Analyzer) StalenessWindow() time.Duration { return a.cfg.StalenessWindow }

// Analyze snapshots the page and scores it.
func (a *Analyzer) Analyze(ctx context.Context, page browser.Page) (*schemas.PageAnalysis, error) {
	start := a.clock.Now()
	snap, err := page.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page %s: %w", page.ID(), err)
	}
	analysis := a.Build(snap, a.clock.Now())
	elapsed := a.clock.Since(start)
	a.metrics.ObserveScan(false, elapsed)

	a.logger.Debug("Page analyzed.",
		zap.String("page_id", page.ID()),
		zap.String("url", analysis.URL),
		zap.Int("total_elements", analysis.TotalElements),
		zap.Int("interactive", len(analysis.InteractiveElements)),
		zap.Duration("duration", elapsed),
	)
	return analysis, nil
}

// Build scores a snapshot. It depends only on its arguments, so equal
// snapshots always yield equal analyses.
func (a *Analyzer) Build(snap *schemas.DocumentSnapshot, at time.Time) *schemas.PageAnalysis {
	pa := &schemas.PageAnalysis{
		URL:           snap.URL,
		Title:         snap.Title,
		Timestamp:     at,
		TotalElements: snap.TotalElements,
		ByPath:        make(map[string]*schemas.ElementAnalysis),
		Categories:    make(map[schemas.Category][]string, len(schemas.AllCategories)),
		Viewport:      snap.Viewport,
	}
	if pa.TotalElements < len(snap.Elements) {
		pa.TotalElements = len(snap.Elements)
	}

	for i := range snap.Elements {
		el := a.describe(&snap.Elements[i], snap.Viewport)
		if !el.IsVisible {
			continue
		}
		if inSuperset(el) {
			pa.Superset = append(pa.Superset, el)
		}
		if el.AutomationScore < a.cfg.MinScore {
			continue
		}
		pa.InteractiveElements = append(pa.InteractiveElements, el)
		pa.ByPath[el.Path] = el
		for _, c := range Categorize(el) {
			pa.Categories[c] = append(pa.Categories[c], el.Path)
		}
	}

	top := make([]*schemas.ElementAnalysis, len(pa.InteractiveElements))
	copy(top, pa.InteractiveElements)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].AutomationScore > top[j].AutomationScore
	})
	if len(top) > a.cfg.TopN {
		top = top[:a.cfg.TopN]
	}
	pa.TopScored = top
	return pa
}

// describe derives the flags and score of one element.
func (a *Analyzer) describe(f *schemas.ElementFacts, vp schemas.Viewport) *schemas.ElementAnalysis {
	el := &schemas.ElementAnalysis{
		Path:       f.Path,
		Index:      f.Index,
		Tag:        strings.ToLower(f.Tag),
		ID:         f.ID,
		Classes:    f.Classes,
		Text:       truncate(strings.TrimSpace(f.Text), a.cfg.TextLimit),
		Attributes: f.Attributes,
		IsEditable: f.ContentEditable,
		Disabled:   f.Disabled,
		Rect:       f.Rect,
		Context:    f.Context,
		Landmark:   f.Landmark,
	}
	// Button-like inputs carry their label in the value attribute.
	if el.Text == "" && el.Tag == "input" && buttonInputTypes[strings.ToLower(el.Attr("type"))] {
		el.Text = truncate(el.Attr("value"), a.cfg.TextLimit)
	}

	el.IsVisible = isVisible(f)
	el.IsClickable = clickableTags[el.Tag] ||
		strings.EqualFold(el.Attr("role"), "button") ||
		f.HasClickHandler ||
		f.Style.Cursor == "pointer"
	el.IsInput = el.Tag == "input" || el.Tag == "textarea" || el.Tag == "select" || f.ContentEditable
	el.InViewport = vp.Intersects(f.Rect)
	el.AutomationScore = a.Score(el)
	return el
}

// Score sums the weight table over the element's properties.
func (a *Analyzer) Score(el *schemas.ElementAnalysis) int {
	w := a.weights
	score := 0
	if el.IsVisible {
		score += w.Visible
	}
	if el.IsClickable {
		score += w.Clickable
	}
	if el.IsInput {
		score += w.Input
	}
	if el.Text != "" {
		score += w.Text
		if len([]rune(el.Text)) > longTextLength {
			score += w.LongText
		}
	}
	if el.ID != "" {
		score += w.ID
	}
	if el.Attr("aria-label") != "" {
		score += w.AriaLabel
	}
	if el.Attr("role") != "" {
		score += w.Role
	}
	if el.Attr("title") != "" {
		score += w.Title
	}
	if el.Attr("name") != "" {
		score += w.Name
	}
	if el.Attr("placeholder") != "" {
		score += w.Placeholder
	}
	if el.Rect.Width >= smallBoxWidth && el.Rect.Height >= smallBoxHeight {
		score += w.SmallBox
	}
	if el.Rect.Width >= largeBoxWidth && el.Rect.Height >= largeBoxHeight {
		score += w.LargeBox
	}
	return score
}

func isVisible(f *schemas.ElementFacts) bool {
	if f.Rect.Empty() {
		return false
	}
	if f.Style.Display == "none" || f.Style.Visibility == "hidden" {
		return false
	}
	if op := strings.TrimSpace(f.Style.Opacity); op != "" {
		if v, err := strconv.ParseFloat(op, 64); err == nil && v <= 0 {
			return false
		}
	}
	return true
}

func inSuperset(el *schemas.ElementAnalysis) bool {
	return supersetTags[el.Tag] || el.Attr("role") != "" || el.IsClickable
}

// Categorize returns the buckets an element belongs to. Elements that fit no
// other bucket are content.
func Categorize(el *schemas.ElementAnalysis) []schemas.Category {
	var cats []schemas.Category
	role := strings.ToLower(el.Attr("role"))
	typ := strings.ToLower(el.Attr("type"))

	switch {
	case el.Tag == "button", role == "button",
		el.Tag == "input" && buttonInputTypes[typ]:
		cats = append(cats, schemas.CategoryButtons)
	case el.IsInput:
		cats = append(cats, schemas.CategoryInputs)
	case el.Tag == "a" && el.Attr("href") != "", role == "link":
		cats = append(cats, schemas.CategoryLinks)
	case el.Tag == "form", role == "form":
		cats = append(cats, schemas.CategoryForms)
	}
	if navigationRoles[role] || (el.Landmark == "nav" && el.IsClickable) {
		cats = append(cats, schemas.CategoryNavigation)
	}
	if len(cats) == 0 {
		cats = append(cats, schemas.CategoryContent)
	}
	return cats
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
