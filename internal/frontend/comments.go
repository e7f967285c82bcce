package frontend

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// docComment collects the documentation comment attached to a declaration:
// the contiguous run of comment siblings immediately above it, newest line
// last. Template and declaration wrappers are climbed first since the
// comment sits above the outermost node.
func (ex *extractor) docComment(node *sitter.Node) string {
	start := node
	for {
		parent := start.Parent()
		if parent == nil {
			break
		}
		switch parent.Kind() {
		case "template_declaration":
			// The comment sits above the template keyword, never above the
			// templated entity itself.
			start = parent
			continue
		case "declaration", "field_declaration":
			if parent.StartByte() == start.StartByte() {
				start = parent
				continue
			}
		}
		break
	}

	var comments []*sitter.Node
	expectRow := int(start.StartPosition().Row) - 1
	for prev := start.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if prev.Kind() != "comment" {
			break
		}
		endRow := int(prev.EndPosition().Row)
		if endRow < expectRow {
			break // blank line separates the comment from the declaration
		}
		comments = append(comments, prev)
		expectRow = int(prev.StartPosition().Row) - 1
	}
	if len(comments) == 0 {
		return ""
	}

	// Reverse into source order.
	var lines []string
	for i := len(comments) - 1; i >= 0; i-- {
		lines = append(lines, cleanComment(nodeText(comments[i], ex.content))...)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// cleanComment strips comment syntax, leaving the documentation text.
func cleanComment(raw string) []string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "/*") {
		raw = strings.TrimPrefix(raw, "/**")
		raw = strings.TrimPrefix(raw, "/*!")
		raw = strings.TrimPrefix(raw, "/*")
		raw = strings.TrimSuffix(raw, "*/")
		var out []string
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			line = strings.TrimPrefix(line, "*")
			out = append(out, strings.TrimPrefix(line, " "))
		}
		return trimBlankEdges(out)
	}

	line := strings.TrimPrefix(raw, "///")
	line = strings.TrimPrefix(line, "//!")
	line = strings.TrimPrefix(line, "//")
	return []string{strings.TrimPrefix(line, " ")}
}

func trimBlankEdges(lines []string) []string {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
