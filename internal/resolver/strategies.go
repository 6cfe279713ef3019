package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/pagewright/api/schemas"
)

// byPath looks a structural path up in the analysis.
func (r *Resolver) byPath(analysis *schemas.PageAnalysis, path string, m mode) *schemas.Candidate {
	el := analysis.Lookup(path)
	if el == nil || !permitted(el, m) {
		return nil
	}
	return &schemas.Candidate{
		Element:  el,
		Score:    float64(el.AutomationScore),
		Strategy: StrategyStructuralPath,
		Reasons:  []string{"structural path"},
	}
}

// pool returns the cached elements an action may target.
func pool(analysis *schemas.PageAnalysis, m mode) []*schemas.ElementAnalysis {
	switch m {
	case modeClick:
		return analysis.InCategory(schemas.CategoryButtons, schemas.CategoryLinks, schemas.CategoryNavigation)
	case modeFill:
		var out []*schemas.ElementAnalysis
		for _, el := range analysis.InCategory(schemas.CategoryInputs) {
			if el.Fillable() {
				out = append(out, el)
			}
		}
		return out
	}
	return analysis.InteractiveElements
}

// byAnalysis scores the action's pool and returns the candidates that match
// the description at all, best first, ties in document order. Elements with
// no text or attribute match are never candidates, whatever their bonuses.
func (r *Resolver) byAnalysis(analysis *schemas.PageAnalysis, q query, m mode) (string, []schemas.Candidate, int) {
	words := make([]string, 0, len(q.terms))
	for _, t := range q.terms {
		words = append(words, t.word)
	}
	attempt := fmt.Sprintf("analysis[terms=%s]", strings.Join(words, ","))

	elements := pool(analysis, m)
	ranked := make([]schemas.Candidate, 0, len(elements))
	for _, el := range elements {
		score, matched, reasons := r.score(el, q, m)
		if !matched {
			continue
		}
		ranked = append(ranked, schemas.Candidate{
			Element:  el,
			Score:    score,
			Strategy: StrategyCachedAnalysis,
			Reasons:  reasons,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Element.Index < ranked[j].Element.Index
	})
	return attempt, ranked, len(elements)
}

// score is the cached-analysis match score of one element.
func (r *Resolver) score(el *schemas.ElementAnalysis, q query, m mode) (float64, bool, []string) {
	w := r.weights
	var total float64
	var reasons []string
	matched := false
	add := func(reason string, v float64) {
		if v == 0 {
			return
		}
		total += v
		reasons = append(reasons, fmt.Sprintf("%s %+g", reason, v))
	}

	text := normalize(el.Text)
	switch {
	case text != "" && text == q.phrase:
		add("exact text", w.ExactText)
	case text != "" && (strings.Contains(text, q.phrase) || strings.Contains(q.phrase, text)):
		add("partial text", w.PartialText)
	}

	exact, partial := false, false
	for _, name := range exactAttributes {
		v := normalize(attrValue(el, name))
		if v == "" {
			continue
		}
		if v == q.phrase {
			exact = true
			break
		}
		if strings.Contains(v, q.phrase) {
			partial = true
		}
	}
	if exact {
		add("exact attribute", w.ExactAttribute)
	} else if partial {
		add("partial attribute", w.PartialAttribute)
	}

	for _, t := range q.terms {
		if text != "" && containsWord(text, t.word) {
			add("text has "+t.word, w.TokenText*t.factor)
		}
		for _, aw := range w.Attributes {
			if v := normalize(attrValue(el, aw.Name)); v != "" && strings.Contains(v, t.word) {
				add(aw.Name+" has "+t.word, aw.Weight*t.factor)
			}
		}
	}

	matched = total > 0

	add("tag "+el.Tag, w.TagBonus[el.Tag])
	if el.Tag != "button" && strings.EqualFold(el.Attr("role"), "button") {
		add("role button", w.RoleButton)
	}
	if el.IsVisible {
		add("visible", w.Visible)
	}
	if !el.Disabled {
		add("enabled", w.Enabled)
	}
	if el.InViewport {
		add("in viewport", w.InViewport)
	}

	if !q.wantsSearch && r.policy.looksLikeSearch(el) {
		add("looks like search", -w.SearchPenalty)
	}
	if !q.wantsAuth {
		if r.policy.looksLikeAuth(el) {
			add("looks like authentication", -w.AuthPenalty)
		}
		if inAuthContext(el) {
			add("inside sign-in context", -w.AuthContextPenalty)
		}
	}
	if m == modeClick && q.history {
		if looksLikeProfile(el) {
			add("profile control", -w.ProfilePenalty)
		}
		if looksLikeHistoryNavigation(el) {
			add("history navigation", w.NavigationBonus)
		}
	}
	return total, matched, reasons
}

// byText scans the superset for an exact, then a substring, text match. In
// fill mode a matching label yields its associated control.
func (r *Resolver) byText(analysis *schemas.PageAnalysis, q query, m mode) (string, *schemas.Candidate) {
	attempt := fmt.Sprintf("text=%q", q.phrase)
	if len(q.phrase) < 2 {
		return attempt, nil
	}

	var best *schemas.ElementAnalysis
	var bestText string
	bestExact := false
	for _, el := range analysis.Superset {
		text := normalize(el.Text)
		if text == "" {
			continue
		}
		exact := text == q.phrase
		if !exact && !strings.Contains(text, q.phrase) {
			continue
		}
		target := el
		if m == modeFill && el.Tag == "label" {
			if target = labelledControl(analysis, el); target == nil {
				continue
			}
		}
		if !permitted(target, m) || r.excluded(target, q, m) {
			continue
		}
		// Prefer exact matches, then the tightest text: the element itself
		// rather than a container around it.
		if best == nil || (exact && !bestExact) || (exact == bestExact && len(text) < len(bestText)) {
			best, bestText, bestExact = target, text, exact
		}
	}
	if best == nil {
		return attempt, nil
	}
	kind := "substring text"
	if bestExact {
		kind = "exact text"
	}
	return attempt, &schemas.Candidate{Element: best, Score: float64(best.AutomationScore), Strategy: StrategyDirectText, Reasons: []string{kind}}
}

// byAttributes is the last resort: substring matches against semantic test
// and accessibility attributes, then partial class or id matches.
func (r *Resolver) byAttributes(analysis *schemas.PageAnalysis, q query, m mode) ([]string, *schemas.Candidate) {
	attempts := []string{
		fmt.Sprintf("[%s*=%q]", strings.Join(semanticAttributes, "|"), q.phrase),
		fmt.Sprintf("[class|id*=%q]", q.phrase),
	}

	pass := func(names []string, fn func(el *schemas.ElementAnalysis, name string) string) *schemas.Candidate {
		var best *schemas.ElementAnalysis
		var bestHits float64
		var bestReasons []string
		for _, el := range analysis.Superset {
			if !permitted(el, m) || r.excluded(el, q, m) {
				continue
			}
			var hits float64
			var reasons []string
			for _, name := range names {
				v := normalize(fn(el, name))
				if v == "" {
					continue
				}
				if strings.Contains(v, q.phrase) {
					hits += 2
					reasons = append(reasons, name+" contains "+q.phrase)
					continue
				}
				for _, t := range q.terms {
					if strings.Contains(v, t.word) {
						hits += t.factor
						reasons = append(reasons, name+" contains "+t.word)
					}
				}
			}
			if hits > bestHits {
				best, bestHits, bestReasons = el, hits, reasons
			}
		}
		if best == nil {
			return nil
		}
		return &schemas.Candidate{Element: best, Score: bestHits, Strategy: StrategySemanticAttribute, Reasons: bestReasons}
	}

	if c := pass(semanticAttributes, attrValue); c != nil {
		return attempts[:1], c
	}
	return attempts, pass([]string{"class", "id"}, attrValue)
}

// excluded drops auth-looking elements unless the description asks for one,
// and profile controls when a click asks for history navigation.
func (r *Resolver) excluded(el *schemas.ElementAnalysis, q query, m mode) bool {
	if m == modeClick && q.history && looksLikeProfile(el) {
		return true
	}
	return !q.wantsAuth && (r.policy.looksLikeAuth(el) || inAuthContext(el))
}

// labelledControl finds the control a label points at through its for
// attribute.
func labelledControl(analysis *schemas.PageAnalysis, label *schemas.ElementAnalysis) *schemas.ElementAnalysis {
	id := label.Attr("for")
	if id == "" {
		return nil
	}
	for _, el := range analysis.Superset {
		if el.ID == id {
			return el
		}
	}
	return nil
}

func attrValue(el *schemas.ElementAnalysis, name string) string {
	switch name {
	case "id":
		return el.ID
	case "class":
		return strings.Join(el.Classes, " ")
	}
	return el.Attr(name)
}

func containsWord(text, word string) bool {
	return strings.Contains(" "+text+" ", " "+word+" ")
}
