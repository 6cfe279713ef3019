package resolver

// AttributeWeight is the credit for one description token found in one
// attribute.
type AttributeWeight struct {
	Name   string
	Weight float64
}

// MatchWeights is the scoring table of the cached-analysis strategy.
// Penalties are stored as positive magnitudes and subtracted.
type MatchWeights struct {
	ExactText        float64
	ExactAttribute   float64
	PartialText      float64
	PartialAttribute float64
	TokenText        float64

	// Attributes are checked in order for per-token hits. "class" matches
	// against the joined class list.
	Attributes []AttributeWeight
	// SynonymFactor scales every credit earned by a synonym rather than a
	// token the user actually wrote.
	SynonymFactor float64

	TagBonus   map[string]float64
	RoleButton float64
	Visible    float64
	Enabled    float64
	InViewport float64

	SearchPenalty      float64
	AuthPenalty        float64
	AuthContextPenalty float64

	// Applied to click targets when the description names history
	// navigation ("back", "forward").
	ProfilePenalty  float64
	NavigationBonus float64
}

// DefaultMatchWeights is the stock table.
var DefaultMatchWeights = MatchWeights{
	ExactText:        25,
	ExactAttribute:   20,
	PartialText:      12,
	PartialAttribute: 10,
	TokenText:        4,

	Attributes: []AttributeWeight{
		{Name: "aria-label", Weight: 6},
		{Name: "data-testid", Weight: 5},
		{Name: "data-qa", Weight: 5},
		{Name: "placeholder", Weight: 5},
		{Name: "title", Weight: 4},
		{Name: "name", Weight: 4},
		{Name: "class", Weight: 1.5},
	},
	SynonymFactor: 0.5,

	TagBonus: map[string]float64{
		"button":   8,
		"a":        5,
		"input":    6,
		"textarea": 6,
		"select":   4,
	},
	RoleButton: 6,
	Visible:    5,
	Enabled:    3,
	InViewport: 4,

	SearchPenalty:      40,
	AuthPenalty:        80,
	AuthContextPenalty: 60,

	ProfilePenalty:  40,
	NavigationBonus: 25,
}

// exactAttributes are compared whole against the description phrase.
var exactAttributes = []string{
	"aria-label", "title", "data-testid", "data-qa", "placeholder", "name", "id", "alt", "value",
}

// semanticAttributes are scanned by the last-resort strategy.
var semanticAttributes = []string{
	"data-testid", "data-cy", "data-qa", "aria-label", "title", "alt",
}
