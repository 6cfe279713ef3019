package analyzer

// Weights is the automation score table. Each field is the amount added when
// the element has the corresponding property.
type Weights struct {
	Visible     int
	Clickable   int
	Input       int
	Text        int
	LongText    int
	ID          int
	AriaLabel   int
	Role        int
	Title       int
	Name        int
	Placeholder int
	SmallBox    int
	LargeBox    int
}

// DefaultWeights is the stock scoring table.
var DefaultWeights = Weights{
	Visible:     10,
	Clickable:   15,
	Input:       15,
	Text:        5,
	LongText:    5,
	ID:          10,
	AriaLabel:   8,
	Role:        5,
	Title:       3,
	Name:        7,
	Placeholder: 5,
	SmallBox:    5,
	LargeBox:    5,
}

// Size bonus thresholds, in CSS pixels.
const (
	smallBoxWidth  = 10
	smallBoxHeight = 10
	largeBoxWidth  = 50
	largeBoxHeight = 20
	longTextLength = 10
)
