package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pagewright/api/schemas"
)

// TestStructJSONTags verifies the json tags of structs that cross process
// boundaries: page scripts, journals and tool results.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "Primitive",
			structRef: schemas.Primitive{},
			expectedTags: map[string]string{
				"Op":          "op",
				"Path":        "path,omitempty",
				"Selector":    "selector,omitempty",
				"Events":      "events,omitempty",
				"Button":      "button,omitempty",
				"At":          "at,omitempty",
				"To":          "to,omitempty",
				"Keys":        "keys,omitempty",
				"Value":       "value,omitempty",
				"Name":        "name,omitempty",
				"DX":          "dx,omitempty",
				"DY":          "dy,omitempty",
				"Edge":        "edge,omitempty",
				"Destination": "destination,omitempty",
				"Delta":       "delta,omitempty",
			},
		},
		{
			name:      "PrimitiveResult",
			structRef: schemas.PrimitiveResult{},
			expectedTags: map[string]string{
				"Found":       "found",
				"Delivered":   "delivered",
				"Visible":     "visible",
				"Value":       "value,omitempty",
				"Rect":        "rect",
				"FocusedPath": "focusedPath,omitempty",
				"URL":         "url,omitempty",
			},
		},
		{
			name:      "PageState",
			structRef: schemas.PageState{},
			expectedTags: map[string]string{
				"URL":          "url",
				"Title":        "title",
				"ReadyState":   "readyState",
				"BodyChildren": "bodyChildren",
				"FocusedPath":  "focusedPath,omitempty",
			},
		},
		{
			name:      "StepRecord",
			structRef: schemas.StepRecord{},
			expectedTags: map[string]string{
				"StepID":     "stepId",
				"Action":     "action",
				"Main":       "main",
				"Success":    "success",
				"Message":    "message,omitempty",
				"Error":      "error,omitempty",
				"Duration":   "duration",
				"PageID":     "pageId,omitempty",
				"Selectors":  "selectors,omitempty",
				"ResolvedBy": "resolvedBy,omitempty",
			},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			structType := reflect.TypeOf(tt.structRef)
			actualTags := make(map[string]string)
			for i := 0; i < structType.NumField(); i++ {
				field := structType.Field(i)
				if jsonTag := field.Tag.Get("json"); jsonTag != "" {
					actualTags[field.Name] = jsonTag
				}
			}
			assert.Equal(t, tt.expectedTags, actualTags, "JSON tags for struct %s do not match expectations", tt.name)
		})
	}
}
