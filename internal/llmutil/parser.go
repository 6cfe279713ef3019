// Package llmutil extracts structured data from model replies.
package llmutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoJSON is returned when a reply holds nothing that looks like JSON.
var ErrNoJSON = errors.New("reply contains no JSON value")

var (
	// \x60 is a backtick; raw strings cannot hold one.
	fencedRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")
)

// ExtractJSON returns the JSON object or array embedded in a model reply.
// Replies are often wrapped in a markdown fence or surrounded by prose.
func ExtractJSON(reply string) (string, error) {
	reply = strings.TrimSpace(reply)
	if m := fencedRegex.FindStringSubmatch(reply); len(m) > 1 {
		reply = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(reply, "{") || strings.HasPrefix(reply, "[") {
		return reply, nil
	}

	// Take whichever bracket pair opens first.
	start, end := -1, -1
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		fb := strings.Index(reply, pair[0])
		lb := strings.LastIndex(reply, pair[1])
		if fb == -1 || lb <= fb {
			continue
		}
		if start == -1 || fb < start {
			start, end = fb, lb+1
		}
	}
	if start == -1 {
		return "", fmt.Errorf("%w: %s", ErrNoJSON, Truncate(reply, 200))
	}
	return reply[start:end], nil
}

// ParseJSONResponse decodes a model reply into T.
func ParseJSONResponse[T any](reply string) (*T, error) {
	raw, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.UnmarshalFromString(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON: %w (extracted: %s)", err, Truncate(raw, 500))
	}
	return &out, nil
}

// Truncate shortens s to at most n runes for logging.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
