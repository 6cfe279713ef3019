// File: internal/resolver/resolver.go
package resolver

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagewright/api/schemas"
	"github.com/xkilldash9x/pagewright/internal/analyzer"
	"github.com/xkilldash9x/pagewright/internal/config"
	"github.com/xkilldash9x/pagewright/internal/observability"
)

// Strategy names, in chain order.
const (
	StrategyStructuralPath    = "structural-path"
	StrategyCachedAnalysis    = "cached-analysis"
	StrategyDirectText        = "direct-text"
	StrategySemanticAttribute = "semantic-attribute"
)

// mode restricts which elements an action may target.
type mode int

const (
	modeAny mode = iota
	modeClick
	modeFill
)

func modeFor(action schemas.ActionKind) mode {
	switch action {
	case schemas.ActionClick, schemas.ActionDoubleClick, schemas.ActionRightClick, schemas.ActionTouchTap:
		return modeClick
	}
	if action.Fills() {
		return modeFill
	}
	return modeAny
}

// Resolution is the outcome of one resolve call.
type Resolution struct {
	// Candidate is the winner, or nil when every strategy came up empty.
	Candidate *schemas.Candidate `json:"candidate,omitempty"`
	Strategy  string             `json:"strategy,omitempty"`
	// Attempted lists what each strategy looked for, in order.
	Attempted []string `json:"attempted"`
	// Considered is the size of the cached-analysis candidate pool.
	Considered int `json:"considered"`
	// Ranked holds the cached-analysis scores, best first, for diagnostics.
	Ranked []schemas.Candidate `json:"ranked,omitempty"`
}

// Found reports whether an element was chosen.
func (r Resolution) Found() bool { return r.Candidate != nil }

// Resolver turns a target description into one element.
type Resolver struct {
	policy  policy
	weights MatchWeights
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMatchWeights replaces the cached-analysis scoring table.
func WithMatchWeights(w MatchWeights) Option {
	return func(r *Resolver) { r.weights = w }
}

// WithMetrics counts resolutions by winning strategy.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New creates a Resolver from the resolution policy.
func New(cfg config.ResolverConfig, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		policy:  newPolicy(cfg),
		weights: DefaultMatchWeights,
		logger:  logger.Named("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves description against the page's cached analysis, scanning
// the page first if the cache is empty or stale.
func (r *Resolver) Resolve(ctx context.Context, cache *analyzer.Cache, description string, action schemas.ActionKind) (Resolution, error) {
	analysis, err := cache.Get(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to analyze page for resolution: %w", err)
	}
	res := r.ResolveIn(analysis, description, action)
	r.metrics.ObserveResolution(res.Strategy)

	if res.Found() {
		r.logger.Debug("Target resolved.",
			zap.String("page_id", cache.Page().ID()),
			zap.String("description", description),
			zap.String("action", string(action)),
			zap.String("strategy", res.Strategy),
			zap.String("path", res.Candidate.Element.Path),
			zap.Float64("score", res.Candidate.Score),
		)
	} else {
		r.logger.Info("Target not found.",
			zap.String("page_id", cache.Page().ID()),
			zap.String("description", description),
			zap.String("action", string(action)),
			zap.Strings("attempted", res.Attempted),
		)
	}
	return res, nil
}

// ResolveIn runs the strategy chain over a fixed analysis. The first
// strategy to produce a candidate wins and later strategies never run.
func (r *Resolver) ResolveIn(analysis *schemas.PageAnalysis, description string, action schemas.ActionKind) Resolution {
	var res Resolution
	description = strings.TrimSpace(description)
	if description == "" || analysis == nil {
		return res
	}
	m := modeFor(action)

	if path, ok := structuralPath(description); ok {
		res.Attempted = append(res.Attempted, "xpath:"+path)
		if c := r.byPath(analysis, path, m); c != nil {
			res.Candidate, res.Strategy = c, StrategyStructuralPath
		}
		// A path names exactly one node; the text strategies have nothing
		// sensible to match it against.
		return res
	}

	q := r.policy.parseQuery(description, r.weights.SynonymFactor)
	if len(q.tokens) == 0 {
		return res
	}

	attempt, ranked, considered := r.byAnalysis(analysis, q, m)
	res.Attempted = append(res.Attempted, attempt)
	res.Ranked, res.Considered = ranked, considered
	if len(ranked) > 0 && ranked[0].Score >= r.policy.threshold(q) {
		winner := ranked[0]
		res.Candidate, res.Strategy = &winner, StrategyCachedAnalysis
		return res
	}

	attempt, c := r.byText(analysis, q, m)
	res.Attempted = append(res.Attempted, attempt)
	if c != nil {
		res.Candidate, res.Strategy = c, StrategyDirectText
		return res
	}

	attempts, c := r.byAttributes(analysis, q, m)
	res.Attempted = append(res.Attempted, attempts...)
	if c != nil {
		res.Candidate, res.Strategy = c, StrategySemanticAttribute
	}
	return res
}

// structuralPath recognizes descriptions that are already element paths.
func structuralPath(description string) (string, bool) {
	if rest, ok := strings.CutPrefix(description, "xpath:"); ok {
		rest = strings.TrimSpace(rest)
		return rest, rest != ""
	}
	if strings.HasPrefix(description, "/") {
		return description, true
	}
	return "", false
}

// permitted applies the action's hard exclusions.
func permitted(el *schemas.ElementAnalysis, m mode) bool {
	if m == modeFill {
		return el.Fillable()
	}
	return true
}
