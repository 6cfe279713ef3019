package resolver

import (
	"strings"

	"github.com/xkilldash9x/pagewright/api/schemas"
)

// authContextTerms mark an ancestor form or dialog as a sign-in surface.
var authContextTerms = []string{"sign in", "signin", "log in", "login", "password", "sign on"}

var profileWords = []string{"profile", "avatar", "account", "user", "myaccount"}

var navigationWords = []string{"back", "forward", "previous", "prev", "next", "history"}

// hintText joins the attributes that identify an element's purpose.
func hintText(el *schemas.ElementAnalysis, names ...string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		switch n {
		case "id":
			parts = append(parts, el.ID)
		case "class":
			parts = append(parts, strings.Join(el.Classes, " "))
		case "text":
			parts = append(parts, el.Text)
		default:
			parts = append(parts, el.Attr(n))
		}
	}
	return normalize(strings.Join(parts, " "))
}

// hasWord matches whole words of normalized text, so "auth" does not fire
// on "author".
func hasWord(text string, words []string) bool {
	return containsKeyword(" "+text+" ", words)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// looksLikeAuth reports credential fields: email or password inputs, or an
// authentication keyword in the element's identifying attributes.
func (p policy) looksLikeAuth(el *schemas.ElementAnalysis) bool {
	switch strings.ToLower(el.Attr("type")) {
	case "password", "email":
		return true
	}
	hints := hintText(el, "id", "class", "placeholder", "aria-label", "name", "autocomplete")
	return hasWord(hints, p.authKeywords)
}

func (p policy) looksLikeSearch(el *schemas.ElementAnalysis) bool {
	if strings.EqualFold(el.Attr("type"), "search") {
		return true
	}
	switch strings.ToLower(el.Attr("role")) {
	case "search", "searchbox":
		return true
	}
	if el.Landmark == "search" {
		return true
	}
	hints := hintText(el, "id", "class", "placeholder", "aria-label", "name")
	return hasWord(hints, p.searchKeywords)
}

// inAuthContext reports whether the nearest form or dialog reads like a
// sign-in surface. Context carries raw ids such as loginForm, so terms
// match as substrings.
func inAuthContext(el *schemas.ElementAnalysis) bool {
	return el.Context != "" && containsAny(normalize(el.Context), authContextTerms)
}

func looksLikeProfile(el *schemas.ElementAnalysis) bool {
	return hasWord(hintText(el, "id", "class", "aria-label", "title", "text", "href", "alt"), profileWords)
}

func looksLikeHistoryNavigation(el *schemas.ElementAnalysis) bool {
	switch strings.ToLower(el.Attr("rel")) {
	case "prev", "next":
		return true
	}
	if strings.HasPrefix(strings.ToLower(el.Attr("href")), "javascript:history") {
		return true
	}
	return hasWord(hintText(el, "id", "class", "aria-label", "title", "text"), navigationWords)
}
