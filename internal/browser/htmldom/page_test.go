package htmldom

import (
	"context"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/browser"
)

const base = "https://app.test/"

var app = MapLoader{
	base: `<html><head><title>App</title><script>boot()</script></head><body>
<nav><a href="/about">About us</a></nav>
<form id="login" action="/welcome">
  <input name="user" placeholder="Username">
  <input type="checkbox" name="remember">
  <select name="lang"><option value="en">English</option><option value="de">Deutsch</option></select>
  <button type="submit">Sign in</button>
</form>
<button data-toggle="#extra">More</button>
<div id="extra" hidden><a href="/hidden">Secret</a></div>
<details><summary>Details</summary><p>Inside</p></details>
<div style="display:none"><button>Ghost</button></div>
<div id="bin" onclick="drop()">Bin</div>
</body></html>`,
	"https://app.test/about":   `<html><head><title>About</title></head><body><p>We make things.</p></body></html>`,
	"https://app.test/welcome": `<html><head><title>Welcome</title></head><body><h1>Hello</h1></body></html>`,
}

const (
	navLink  = "/html[1]/body[1]/nav[1]/a[1]"
	userPath = "/html[1]/body[1]/form[1]/input[1]"
	boxPath  = "/html[1]/body[1]/form[1]/input[2]"
	langPath = "/html[1]/body[1]/form[1]/select[1]"
	signIn   = "/html[1]/body[1]/form[1]/button[1]"
	morePath = "/html[1]/body[1]/button[1]"
	binPath  = "/html[1]/body[1]/div[3]"
)

func openApp(t *testing.T) *Page {
	t.Helper()
	b := NewBrowser(app, schemas.Viewport{Width: 800, Height: 200}, zaptest.NewLogger(t))
	p, err := b.OpenPage(context.Background(), base)
	require.NoError(t, err)
	return p
}

func perform(t *testing.T, p *Page, op schemas.Primitive) schemas.PrimitiveResult {
	t.Helper()
	res, err := p.Perform(context.Background(), op)
	require.NoError(t, err)
	return res
}

func factsByPath(snap *schemas.DocumentSnapshot) map[string]schemas.ElementFacts {
	out := make(map[string]schemas.ElementFacts, len(snap.Elements))
	for _, f := range snap.Elements {
		out[f.Path] = f
	}
	return out
}

func TestStructuralPath(t *testing.T) {
	doc, err := htmlquery.Parse(strings.NewReader(`<html><body><div></div><div><p>a</p><span></span><p id="x">b</p></div></body></html>`))
	require.NoError(t, err)

	n := htmlquery.FindOne(doc, "//p[@id='x']")
	require.NotNil(t, n)
	assert.Equal(t, "/html[1]/body[1]/div[2]/p[2]", StructuralPath(n))
	assert.Equal(t, "", StructuralPath(nil))
	assert.Equal(t, "/", StructuralPath(doc))

	assert.Same(t, n, htmlquery.FindOne(doc, StructuralPath(n)), "the path addresses the node it was built from")
}

func TestSnapshot(t *testing.T) {
	p := openApp(t)
	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "App", snap.Title)
	assert.Equal(t, "complete", snap.ReadyState)
	assert.Greater(t, snap.TotalElements, len(snap.Elements), "head elements are counted but not reported")

	facts := factsByPath(snap)
	for i, f := range snap.Elements {
		assert.Equal(t, i, f.Index)
		assert.NotEqual(t, "script", f.Tag)
	}

	user := facts[userPath]
	assert.Equal(t, "Username", user.Attributes["placeholder"])
	assert.Equal(t, "form", user.Landmark)
	assert.Contains(t, user.Context, "login")
	assert.Empty(t, user.Text, "form fields carry no text")
	assert.False(t, user.Rect.Empty())

	link := facts[navLink]
	assert.Equal(t, "About us", link.Text)
	assert.Equal(t, "nav", link.Landmark)
	assert.Equal(t, "pointer", link.Style.Cursor)

	ghost := facts["/html[1]/body[1]/div[2]/button[1]"]
	assert.Equal(t, "none", ghost.Style.Display)
	assert.True(t, ghost.Rect.Empty())

	secret := facts["/html[1]/body[1]/div[1]/a[1]"]
	assert.Equal(t, "none", secret.Style.Display, "hidden attribute hides descendants")

	assert.True(t, facts[binPath].HasClickHandler)

	inside := facts["/html[1]/body[1]/details[1]/p[1]"]
	assert.Equal(t, "none", inside.Style.Display, "closed details hide their content")
	summary := facts["/html[1]/body[1]/details[1]/summary[1]"]
	assert.NotEqual(t, "none", summary.Style.Display)
}

func TestPerformLinkAndHistory(t *testing.T) {
	p := openApp(t)

	res := perform(t, p, schemas.Primitive{Op: schemas.OpMouseEvents, Path: navLink, Events: []string{"mousedown", "mouseup", "click"}})
	assert.True(t, res.Found)
	assert.Equal(t, "https://app.test/about", p.URL())

	res = perform(t, p, schemas.Primitive{Op: schemas.OpHistory, Delta: -1})
	assert.True(t, res.Delivered)
	assert.Equal(t, base, res.URL)

	res = perform(t, p, schemas.Primitive{Op: schemas.OpHistory, Delta: -1})
	assert.False(t, res.Delivered, "no entry before the first page")

	res = perform(t, p, schemas.Primitive{Op: schemas.OpHistory, Delta: 1})
	assert.True(t, res.Delivered)
	assert.Equal(t, "https://app.test/about", p.URL())
}

func TestPerformFormInteraction(t *testing.T) {
	p := openApp(t)

	res := perform(t, p, schemas.Primitive{Op: schemas.OpSetValue, Path: userPath, Value: "ada"})
	assert.Equal(t, "ada", res.Value)

	res = perform(t, p, schemas.Primitive{Op: schemas.OpKeySequence, Path: userPath, Keys: []schemas.KeyEventData{{Key: "!"}, {Key: "Backspace"}, {Key: "s"}}})
	assert.Equal(t, "adas", res.Value)

	res = perform(t, p, schemas.Primitive{Op: schemas.OpInvokeClick, Path: boxPath})
	assert.True(t, res.Delivered)
	val := perform(t, p, schemas.Primitive{Op: schemas.OpGetAttribute, Path: boxPath, Name: "checked"})
	assert.True(t, val.Delivered, "checkbox is checked after a click")

	res = perform(t, p, schemas.Primitive{Op: schemas.OpSelectOption, Path: langPath, Value: "Deutsch"})
	assert.True(t, res.Delivered)
	assert.Equal(t, "de", res.Value)
	res = perform(t, p, schemas.Primitive{Op: schemas.OpSelectOption, Path: langPath, Value: "Klingon"})
	assert.False(t, res.Delivered)

	perform(t, p, schemas.Primitive{Op: schemas.OpKeySequence, Path: userPath, Keys: []schemas.KeyEventData{{Key: "Enter"}}})
	assert.Equal(t, "https://app.test/welcome", p.URL(), "enter in a field submits its form")

	var types []string
	for _, ev := range p.Events() {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, "submit")
	assert.Contains(t, types, "change")
}

func TestPerformToggles(t *testing.T) {
	p := openApp(t)

	perform(t, p, schemas.Primitive{Op: schemas.OpMouseEvents, Path: morePath, Events: []string{"click"}})
	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "none", factsByPath(snap)["/html[1]/body[1]/div[1]/a[1]"].Style.Display, "data-toggle reveals its target")

	perform(t, p, schemas.Primitive{Op: schemas.OpInvokeClick, Path: "/html[1]/body[1]/details[1]/summary[1]"})
	snap, err = p.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "none", factsByPath(snap)["/html[1]/body[1]/details[1]/p[1]"].Style.Display)
}

func TestPerformHiddenClickHasNoEffect(t *testing.T) {
	p := openApp(t)
	res := perform(t, p, schemas.Primitive{Op: schemas.OpMouseEvents, Path: "/html[1]/body[1]/div[2]/button[1]", Events: []string{"click"}})
	assert.True(t, res.Found)
	assert.False(t, res.Delivered)
	assert.False(t, res.Visible)
}

func TestPerformQueries(t *testing.T) {
	p := openApp(t)

	res := perform(t, p, schemas.Primitive{Op: schemas.OpQuery, Selector: "form#login button"})
	assert.True(t, res.Found)

	res = perform(t, p, schemas.Primitive{Op: schemas.OpQuery, Selector: ".missing"})
	assert.False(t, res.Found)

	res = perform(t, p, schemas.Primitive{Op: schemas.OpFindText, Value: "about US"})
	assert.True(t, res.Found)
	res = perform(t, p, schemas.Primitive{Op: schemas.OpFindText, Value: "Secret"})
	assert.False(t, res.Found, "hidden text is not visible text")

	res = perform(t, p, schemas.Primitive{Op: schemas.OpGetText, Path: navLink})
	assert.Equal(t, "About us", res.Value)

	res = perform(t, p, schemas.Primitive{Op: schemas.OpProbe, Path: "/html[1]/body[1]/table[4]"})
	assert.False(t, res.Found)

	_, err := p.Perform(context.Background(), schemas.Primitive{Op: schemas.OpProbe, Path: "/html[1]/body[1]/div["})
	assert.ErrorIs(t, err, browser.ErrInvalidSelector)
	assert.NotErrorIs(t, err, browser.ErrScriptInjection, "a bad path does not mean the page is broken")

	res = perform(t, p, schemas.Primitive{Op: schemas.OpQuery, Selector: "form[[name"})
	assert.False(t, res.Found, "malformed CSS matches nothing")

	_, err = p.Perform(context.Background(), schemas.Primitive{Op: "levitate", Path: navLink})
	assert.ErrorIs(t, err, browser.ErrScriptInjection)
}

func TestPerformScrollAndDrag(t *testing.T) {
	p := openApp(t)

	res := perform(t, p, schemas.Primitive{Op: schemas.OpScrollBy, DY: -500})
	assert.True(t, res.Delivered)
	res = perform(t, p, schemas.Primitive{Op: schemas.OpProbe, Path: navLink})
	assert.Equal(t, pageMargin+rowHeight, res.Rect.Y, "scrolling is clamped at the top")

	perform(t, p, schemas.Primitive{Op: schemas.OpScrollToEdge, Edge: "bottom"})
	res = perform(t, p, schemas.Primitive{Op: schemas.OpProbe, Path: navLink})
	assert.Less(t, res.Rect.Y, 0.0)

	perform(t, p, schemas.Primitive{Op: schemas.OpDragTo, Path: navLink, Destination: binPath})
	var drop *Event
	for _, ev := range p.Events() {
		if ev.Type == "drop" {
			ev := ev
			drop = &ev
		}
	}
	require.NotNil(t, drop)
	assert.Equal(t, binPath, drop.Path)
	assert.Equal(t, navLink, drop.Data)
}

func TestSetHTMLAndCancelledContext(t *testing.T) {
	p := openApp(t)
	require.NoError(t, p.SetHTML(`<html><head><title>Rerendered</title></head><body><p>new</p></body></html>`))

	st, err := p.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Rerendered", st.Title)
	assert.Equal(t, base, st.URL)
	assert.Equal(t, 1, st.BodyChildren)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.State(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.Perform(ctx, schemas.Primitive{Op: schemas.OpScrollBy})
	assert.ErrorIs(t, err, context.Canceled)
}
