// internal/browser/htmldom/xpath.go
package htmldom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// StructuralPath returns the positional XPath of node: tag names plus the
// 1-based index among same-tag siblings at every level. Unlike an id-anchored
// path it stays unique even when a page reuses ids.
func StructuralPath(node *html.Node) string {
	if node == nil {
		return ""
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return "/"
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return "/" + strings.Join(path, "/")
}
