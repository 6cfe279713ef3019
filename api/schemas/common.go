package schemas

// -- Interaction Primitive Schemas --

// KeyModifier is a bitmask of held modifier keys. Values follow the CDP
// Input.dispatchKeyEvent modifiers bitfield.
type KeyModifier int

const (
	ModNone  KeyModifier = 0
	ModAlt   KeyModifier = 1
	ModCtrl  KeyModifier = 2
	ModMeta  KeyModifier = 4
	ModShift KeyModifier = 8
)

// KeyEventData is a structured key press.
type KeyEventData struct {
	// Key is the DOM key value ("Enter", "Tab", "a").
	Key       string      `json:"key"`
	Modifiers KeyModifier `json:"modifiers,omitempty"`
}

// PrimitiveOp is the closed set of operations a page backend executes.
type PrimitiveOp string

const (
	OpScrollIntoView PrimitiveOp = "scrollIntoView"
	OpMouseEvents    PrimitiveOp = "mouseEvents"
	OpInvokeClick    PrimitiveOp = "invokeClick"
	OpFocus          PrimitiveOp = "focus"
	OpKeySequence    PrimitiveOp = "keySequence"
	OpSetValue       PrimitiveOp = "setValue"
	OpSetTextContent PrimitiveOp = "setTextContent"
	OpSelectOption   PrimitiveOp = "selectOption"
	OpScrollBy       PrimitiveOp = "scrollBy"
	OpScrollToEdge   PrimitiveOp = "scrollToEdge"
	OpTouchEvents    PrimitiveOp = "touchEvents"
	OpDragTo         PrimitiveOp = "dragTo"
	OpGetText        PrimitiveOp = "getText"
	OpGetAttribute   PrimitiveOp = "getAttribute"
	OpSetAttribute   PrimitiveOp = "setAttribute"
	OpProbe          PrimitiveOp = "probe"
	OpQuery          PrimitiveOp = "query"
	OpFindText       PrimitiveOp = "findText"
	OpHistory        PrimitiveOp = "history"
)

// Point is a viewport coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Primitive is one bounded operation dispatched into the page. Path addresses
// the element by structural path; Selector is a CSS selector used by queries.
type Primitive struct {
	Op          PrimitiveOp    `json:"op"`
	Path        string         `json:"path,omitempty"`
	Selector    string         `json:"selector,omitempty"`
	Events      []string       `json:"events,omitempty"`
	Button      int            `json:"button,omitempty"`
	At          *Point         `json:"at,omitempty"`
	To          *Point         `json:"to,omitempty"`
	Keys        []KeyEventData `json:"keys,omitempty"`
	Value       string         `json:"value,omitempty"`
	Name        string         `json:"name,omitempty"`
	DX          float64        `json:"dx,omitempty"`
	DY          float64        `json:"dy,omitempty"`
	Edge        string         `json:"edge,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Delta       int            `json:"delta,omitempty"`
}

// PrimitiveResult reports what a primitive did. Found is false when the
// addressed element no longer exists; that is not an error.
type PrimitiveResult struct {
	Found       bool   `json:"found"`
	Delivered   bool   `json:"delivered"`
	Visible     bool   `json:"visible"`
	Value       string `json:"value,omitempty"`
	Rect        Rect   `json:"rect"`
	FocusedPath string `json:"focusedPath,omitempty"`
	URL         string `json:"url,omitempty"`
}
