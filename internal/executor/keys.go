package executor

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/pagewright/api/schemas"
)

var modifierNames = map[string]schemas.KeyModifier{
	"alt":     schemas.ModAlt,
	"option":  schemas.ModAlt,
	"ctrl":    schemas.ModCtrl,
	"control": schemas.ModCtrl,
	"meta":    schemas.ModMeta,
	"cmd":     schemas.ModMeta,
	"command": schemas.ModMeta,
	"shift":   schemas.ModShift,
}

// keyNames maps spoken key names onto DOM key values.
var keyNames = map[string]string{
	"enter":      "Enter",
	"return":     "Enter",
	"tab":        "Tab",
	"escape":     "Escape",
	"esc":        "Escape",
	"backspace":  "Backspace",
	"delete":     "Delete",
	"del":        "Delete",
	"space":      " ",
	"spacebar":   " ",
	"up":         "ArrowUp",
	"down":       "ArrowDown",
	"left":       "ArrowLeft",
	"right":      "ArrowRight",
	"arrowup":    "ArrowUp",
	"arrowdown":  "ArrowDown",
	"arrowleft":  "ArrowLeft",
	"arrowright": "ArrowRight",
	"home":       "Home",
	"end":        "End",
	"pageup":     "PageUp",
	"pagedown":   "PageDown",
}

// ParseKey turns "ctrl+shift+k" or "Enter" into a structured key press.
func ParseKey(spec string) (schemas.KeyEventData, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return schemas.KeyEventData{}, fmt.Errorf("empty key")
	}
	if spec == "+" {
		return schemas.KeyEventData{Key: "+"}, nil
	}

	parts := strings.Split(spec, "+")
	var mods schemas.KeyModifier
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifierNames[strings.ToLower(strings.TrimSpace(p))]
		if !ok {
			return schemas.KeyEventData{}, fmt.Errorf("unknown modifier %q in %q", p, spec)
		}
		mods |= m
	}

	key := strings.TrimSpace(parts[len(parts)-1])
	if named, ok := keyNames[strings.ToLower(key)]; ok {
		key = named
	} else if len([]rune(key)) == 1 {
		if mods&schemas.ModShift == 0 {
			key = strings.ToLower(key)
		}
	} else if isFunctionKey(key) {
		key = "F" + key[1:]
	} else {
		return schemas.KeyEventData{}, fmt.Errorf("unknown key %q", key)
	}
	return schemas.KeyEventData{Key: key, Modifiers: mods}, nil
}

func isFunctionKey(key string) bool {
	if len(key) < 2 || len(key) > 3 || (key[0] != 'F' && key[0] != 'f') {
		return false
	}
	for _, c := range key[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
