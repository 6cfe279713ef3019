// File: internal/analyzer/analyzer_test.go
package analyzer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser/htmldom"
	"github.com/xkilldash9x/pagewright/internal/config"
)

const profilePage = `<html><head><title>Edit profile</title></head><body>
<nav><a href="/home" id="home-link">Home</a><a href="/back" aria-label="Go back">Back</a></nav>
<form id="profile" action="/save">
  <label for="bio">About you</label>
  <textarea class="about-me" name="bio"></textarea>
  <input type="password" name="password" placeholder="Password">
  <button type="submit">Save profile</button>
</form>
<div style="display:none"><button id="ghost">Hidden</button></div>
<p>Plain paragraph text.</p>
</body></html>`

func newTestAnalyzer(t *testing.T, opts ...Option) *Analyzer {
	t.Helper()
	return New(config.NewDefaultConfig().Analyzer(), zaptest.NewLogger(t), opts...)
}

func openFixture(t *testing.T, markup string) *htmldom.Page {
	t.Helper()
	b := htmldom.NewBrowser(htmldom.MapLoader{"https://fixture.test/": markup}, schemas.Viewport{}, zaptest.NewLogger(t))
	page, err := b.OpenPage(context.Background(), "https://fixture.test/")
	require.NoError(t, err)
	return page
}

func findByTag(pa *schemas.PageAnalysis, tag string) *schemas.ElementAnalysis {
	for _, el := range pa.InteractiveElements {
		if el.Tag == tag {
			return el
		}
	}
	return nil
}

func TestAnalyzeFixture(t *testing.T) {
	a := newTestAnalyzer(t)
	page := openFixture(t, profilePage)

	pa, err := a.Analyze(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, "Edit profile", pa.Title)
	assert.Equal(t, "https://fixture.test/", pa.URL)
	assert.Greater(t, pa.TotalElements, len(pa.InteractiveElements), "dropped elements still count toward the total")

	for _, el := range pa.InteractiveElements {
		assert.NotEqual(t, "ghost", el.ID, "hidden elements must not be interactive")
		assert.True(t, el.IsVisible)
		assert.GreaterOrEqual(t, el.AutomationScore, defaultMinScore)
		assert.Same(t, el, pa.ByPath[el.Path])
	}

	textarea := findByTag(pa, "textarea")
	require.NotNil(t, textarea)
	assert.True(t, textarea.IsInput)
	assert.True(t, textarea.IsClickable)
	assert.Contains(t, pa.Categories[schemas.CategoryInputs], textarea.Path)

	button := findByTag(pa, "button")
	require.NotNil(t, button)
	assert.Equal(t, "Save profile", button.Text)
	assert.Contains(t, pa.Categories[schemas.CategoryButtons], button.Path)
	assert.Equal(t, "form", button.Landmark)
	assert.Contains(t, button.Context, "profile")

	home := pa.ByPath["/html[1]/body[1]/nav[1]/a[1]"]
	require.NotNil(t, home)
	assert.Contains(t, pa.Categories[schemas.CategoryLinks], home.Path)
	assert.Contains(t, pa.Categories[schemas.CategoryNavigation], home.Path)
}

func TestScoreWeights(t *testing.T) {
	a := newTestAnalyzer(t)

	tests := []struct {
		name string
		el   schemas.ElementAnalysis
		want int
	}{
		{
			name: "bare visible element",
			el:   schemas.ElementAnalysis{IsVisible: true},
			want: 10,
		},
		{
			name: "visible button with short text and large box",
			el: schemas.ElementAnalysis{
				IsVisible: true, IsClickable: true, Text: "Submit",
				Rect: schemas.Rect{Width: 96, Height: 32},
			},
			want: 10 + 15 + 5 + 5 + 5,
		},
		{
			name: "long text earns the second text bonus",
			el:   schemas.ElementAnalysis{Text: "Create a new account"},
			want: 10,
		},
		{
			name: "fully attributed input",
			el: schemas.ElementAnalysis{
				IsVisible: true, IsClickable: true, IsInput: true, ID: "q",
				Attributes: map[string]string{
					"aria-label": "Search", "role": "searchbox", "title": "Search",
					"name": "q", "placeholder": "Search...",
				},
				Rect: schemas.Rect{Width: 9, Height: 30},
			},
			want: 10 + 15 + 15 + 10 + 8 + 5 + 3 + 7 + 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := tt.el
			assert.Equal(t, tt.want, a.Score(&el))
		})
	}
}

func TestScoreCustomWeights(t *testing.T) {
	w := DefaultWeights
	w.Visible = 1
	a := newTestAnalyzer(t, WithWeights(w))
	assert.Equal(t, 1, a.Score(&schemas.ElementAnalysis{IsVisible: true}))
}

func TestBuildVisibilityRules(t *testing.T) {
	a := newTestAnalyzer(t)
	box := schemas.Rect{X: 10, Y: 10, Width: 100, Height: 30}
	snap := &schemas.DocumentSnapshot{
		Viewport:      schemas.Viewport{Width: 800, Height: 600},
		TotalElements: 10,
		Elements: []schemas.ElementFacts{
			{Path: "/a", Index: 0, Tag: "button", Text: "ok", Rect: box},
			{Path: "/b", Index: 1, Tag: "button", Text: "zero box"},
			{Path: "/c", Index: 2, Tag: "button", Text: "none", Rect: box, Style: schemas.ComputedStyle{Display: "none"}},
			{Path: "/d", Index: 3, Tag: "button", Text: "hidden", Rect: box, Style: schemas.ComputedStyle{Visibility: "hidden"}},
			{Path: "/e", Index: 4, Tag: "button", Text: "transparent", Rect: box, Style: schemas.ComputedStyle{Opacity: "0"}},
			{Path: "/f", Index: 5, Tag: "div", Text: "clickable div", Rect: box, Style: schemas.ComputedStyle{Cursor: "pointer"}},
			{Path: "/g", Index: 6, Tag: "div", Rect: schemas.Rect{Width: 5, Height: 5}},
		},
	}

	pa := a.Build(snap, time.Unix(0, 0))
	var paths []string
	for _, el := range pa.InteractiveElements {
		paths = append(paths, el.Path)
	}
	assert.Equal(t, []string{"/a", "/f", "/g"}, paths)
	assert.True(t, pa.ByPath["/f"].IsClickable, "pointer cursor makes an element clickable")
	assert.Equal(t, 10, pa.TotalElements)
}

func TestBuildMinScoreAndSuperset(t *testing.T) {
	cfg := config.NewDefaultConfig().Analyzer()
	cfg.MinScore = 30
	a := New(cfg, zaptest.NewLogger(t))
	snap := &schemas.DocumentSnapshot{
		Viewport: schemas.Viewport{Width: 800, Height: 600},
		Elements: []schemas.ElementFacts{
			{Path: "/span", Tag: "span", Text: "Read more", Rect: schemas.Rect{Width: 60, Height: 20}},
			{Path: "/button", Tag: "button", Text: "Go", Rect: schemas.Rect{Width: 60, Height: 20}},
		},
	}
	pa := a.Build(snap, time.Unix(0, 0))
	require.Len(t, pa.InteractiveElements, 1)
	assert.Equal(t, "/button", pa.InteractiveElements[0].Path)
	require.Len(t, pa.Superset, 2, "low scoring superset elements stay available to the text scans")
	assert.Same(t, pa.Superset[1], pa.InteractiveElements[0])
	assert.NotNil(t, pa.Lookup("/span"))
}

func TestTopScoredOrderingAndCap(t *testing.T) {
	cfg := config.NewDefaultConfig().Analyzer()
	cfg.TopN = 3
	a := New(cfg, zaptest.NewLogger(t))

	snap := &schemas.DocumentSnapshot{Viewport: schemas.Viewport{Width: 800, Height: 600}}
	for i := 0; i < 6; i++ {
		f := schemas.ElementFacts{Path: fmt.Sprintf("/el%d", i), Index: i, Tag: "div", Rect: schemas.Rect{Width: 20, Height: 20}}
		if i%2 == 1 {
			f.Tag = "button"
		}
		snap.Elements = append(snap.Elements, f)
	}

	pa := a.Build(snap, time.Unix(0, 0))
	require.Len(t, pa.TopScored, 3)
	assert.Equal(t, "/el1", pa.TopScored[0].Path)
	assert.Equal(t, "/el3", pa.TopScored[1].Path)
	assert.Equal(t, "/el5", pa.TopScored[2].Path)
	assert.Len(t, pa.InteractiveElements, 6)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		el   schemas.ElementAnalysis
		want []schemas.Category
	}{
		{"button", schemas.ElementAnalysis{Tag: "button"}, []schemas.Category{schemas.CategoryButtons}},
		{"submit input", schemas.ElementAnalysis{Tag: "input", IsInput: true, Attributes: map[string]string{"type": "submit"}}, []schemas.Category{schemas.CategoryButtons}},
		{"text input", schemas.ElementAnalysis{Tag: "input", IsInput: true}, []schemas.Category{schemas.CategoryInputs}},
		{"editable div", schemas.ElementAnalysis{Tag: "div", IsInput: true, IsEditable: true}, []schemas.Category{schemas.CategoryInputs}},
		{"link", schemas.ElementAnalysis{Tag: "a", Attributes: map[string]string{"href": "/x"}}, []schemas.Category{schemas.CategoryLinks}},
		{"anchor without href", schemas.ElementAnalysis{Tag: "a"}, []schemas.Category{schemas.CategoryContent}},
		{"form", schemas.ElementAnalysis{Tag: "form"}, []schemas.Category{schemas.CategoryForms}},
		{"menu item", schemas.ElementAnalysis{Tag: "li", Attributes: map[string]string{"role": "menuitem"}}, []schemas.Category{schemas.CategoryNavigation}},
		{"nav link", schemas.ElementAnalysis{Tag: "a", IsClickable: true, Landmark: "nav", Attributes: map[string]string{"href": "/"}}, []schemas.Category{schemas.CategoryLinks, schemas.CategoryNavigation}},
		{"paragraph", schemas.ElementAnalysis{Tag: "p"}, []schemas.Category{schemas.CategoryContent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := tt.el
			assert.Equal(t, tt.want, Categorize(&el))
		})
	}
}

// Two scans of an unchanged document yield the same elements in the same
// order with the same scores.
func TestBuildIsDeterministic(t *testing.T) {
	tags := []string{"a", "button", "input", "div", "span", "textarea", "select", "p", "li"}
	a := New(config.NewDefaultConfig().Analyzer(), nil)

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		snap := &schemas.DocumentSnapshot{Viewport: schemas.Viewport{Width: 1280, Height: 720}, TotalElements: n}
		for i := 0; i < n; i++ {
			f := schemas.ElementFacts{
				Path:  fmt.Sprintf("/html[1]/body[1]/*[%d]", i+1),
				Index: i,
				Tag:   rapid.SampledFrom(tags).Draw(t, "tag"),
				Text:  rapid.StringMatching(`[a-z ]{0,20}`).Draw(t, "text"),
				Rect: schemas.Rect{
					Y:      float64(i * 24),
					Width:  float64(rapid.IntRange(0, 300).Draw(t, "w")),
					Height: float64(rapid.IntRange(0, 60).Draw(t, "h")),
				},
				HasClickHandler: rapid.Bool().Draw(t, "handler"),
			}
			if rapid.Bool().Draw(t, "hasID") {
				f.ID = fmt.Sprintf("id%d", i)
			}
			snap.Elements = append(snap.Elements, f)
		}

		at := time.Unix(1700000000, 0)
		first := a.Build(snap, at)
		second := a.Build(snap, at)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("scans differ (-first +second):\n%s", diff)
		}
		for i := 1; i < len(first.TopScored); i++ {
			prev, cur := first.TopScored[i-1], first.TopScored[i]
			if prev.AutomationScore < cur.AutomationScore {
				t.Fatalf("top scored not sorted at %d", i)
			}
			if prev.AutomationScore == cur.AutomationScore && prev.Index > cur.Index {
				t.Fatalf("ties must keep document order at %d", i)
			}
		}
	})
}

func TestAnalyzeUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	a := newTestAnalyzer(t, WithClock(clock))
	pa, err := a.Analyze(context.Background(), openFixture(t, profilePage))
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), pa.Timestamp)
}
