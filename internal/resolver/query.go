package resolver

import (
	"strings"
	"unicode"

	"github.com/xkilldash9x/pagewright/internal/config"
)

// policy is the normalized form of config.ResolverConfig.
type policy struct {
	minScore          float64
	sensitiveMinScore float64
	sensitive         map[string]bool
	synonyms          map[string][]string
	stopWords         map[string]bool
	authKeywords      []string
	searchKeywords    []string
}

func newPolicy(cfg config.ResolverConfig) policy {
	p := policy{
		minScore:          cfg.MinScore,
		sensitiveMinScore: cfg.SensitiveMinScore,
		sensitive:         make(map[string]bool),
		synonyms:          make(map[string][]string),
		stopWords:         make(map[string]bool),
	}
	if p.minScore <= 0 {
		p.minScore = 18
	}
	if p.sensitiveMinScore < p.minScore {
		p.sensitiveMinScore = p.minScore
	}
	for _, t := range cfg.SensitiveTerms {
		p.sensitive[strings.ToLower(t)] = true
	}
	synonyms := cfg.Synonyms
	if synonyms == nil {
		synonyms = config.DefaultSynonyms
	}
	for k, v := range synonyms {
		p.synonyms[strings.ToLower(k)] = v
	}
	for _, w := range cfg.StopWords {
		p.stopWords[strings.ToLower(w)] = true
	}
	for _, k := range cfg.AuthKeywords {
		p.authKeywords = append(p.authKeywords, normalize(k))
	}
	for _, k := range cfg.SearchKeywords {
		p.searchKeywords = append(p.searchKeywords, normalize(k))
	}
	return p
}

// term is one word to look for, with the weight factor it carries.
type term struct {
	word    string
	factor  float64
	synonym bool
}

// query is a tokenized target description.
type query struct {
	raw         string
	phrase      string
	tokens      []string
	terms       []term
	wantsAuth   bool
	wantsSearch bool
	sensitive   bool
	history     bool
}

var historyWords = map[string]bool{
	"back": true, "forward": true, "previous": true, "prev": true, "next": true, "return": true,
}

// parseQuery lower-cases the description, strips punctuation, drops stop
// words and expands synonyms.
func (p policy) parseQuery(description string, synonymFactor float64) query {
	q := query{raw: description, phrase: normalize(description)}

	words := strings.Fields(q.phrase)
	seen := make(map[string]bool)
	for _, w := range words {
		if p.stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		q.tokens = append(q.tokens, w)
	}
	// A description made only of stop words ("the button") still has to
	// match something.
	if len(q.tokens) == 0 {
		for _, w := range words {
			if !seen[w] {
				seen[w] = true
				q.tokens = append(q.tokens, w)
			}
		}
	}
	if len(q.tokens) > 0 {
		q.phrase = strings.Join(q.tokens, " ")
	}

	for _, tok := range q.tokens {
		q.terms = append(q.terms, term{word: tok, factor: 1})
		if p.sensitive[tok] {
			q.sensitive = true
		}
		if historyWords[tok] {
			q.history = true
		}
	}
	for _, tok := range q.tokens {
		for _, syn := range p.synonyms[tok] {
			syn = strings.ToLower(syn)
			if seen[syn] {
				continue
			}
			seen[syn] = true
			q.terms = append(q.terms, term{word: syn, factor: synonymFactor, synonym: true})
		}
	}

	padded := " " + strings.Join(words, " ") + " "
	q.wantsAuth = containsKeyword(padded, p.authKeywords)
	q.wantsSearch = containsKeyword(padded, p.searchKeywords)
	return q
}

// threshold is the minimum score a cached-analysis candidate needs.
func (p policy) threshold(q query) float64 {
	if q.sensitive {
		return p.sensitiveMinScore
	}
	return p.minScore
}

// containsKeyword reports whether any keyword occurs as whole words in the
// space-padded text.
func containsKeyword(padded string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(padded, " "+k+" ") {
			return true
		}
	}
	return false
}

// normalize lower-cases s and turns every run of non-alphanumerics into a
// single space.
func normalize(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
