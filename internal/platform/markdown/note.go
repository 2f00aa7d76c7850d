// Package markdown edits Markdown notes that carry YAML frontmatter and
// generated sections fenced by marker comments.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const separator = "---\n"

// Note is a Markdown document split into frontmatter and body.
type Note struct {
	Meta map[string]any
	Body string
}

// ParseNote splits content. Content without frontmatter becomes the body of a
// note with empty metadata. CRLF line endings are normalised.
func ParseNote(content string) (Note, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	rest, ok := strings.CutPrefix(content, separator)
	if !ok {
		return Note{Meta: map[string]any{}, Body: content}, nil
	}
	raw, body, ok := strings.Cut(rest, "\n"+separator)
	if !ok {
		return Note{}, fmt.Errorf("invalid frontmatter: missing closing separator")
	}
	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(raw), &meta); err != nil {
		return Note{}, fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return Note{Meta: meta, Body: body}, nil
}

// Render writes the frontmatter (keys sorted) above the body.
func (n Note) Render() (string, error) {
	meta := n.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(separator)
	buf.Write(raw)
	buf.WriteString(separator)
	if !strings.HasPrefix(n.Body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString(n.Body)
	return buf.String(), nil
}

// Block returns the text between startMarker and the first endMarker after it.
func (n Note) Block(startMarker, endMarker string) (string, bool) {
	_, after, ok := strings.Cut(n.Body, startMarker)
	if !ok {
		return "", false
	}
	inner, _, ok := strings.Cut(after, endMarker)
	if !ok {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(inner, "\n"), "\n"), true
}

// SetBlock replaces the fenced block with generated, or appends a new block
// when the markers are missing. Text outside the markers is kept.
func (n *Note) SetBlock(startMarker, endMarker, generated string) {
	block := startMarker + "\n" + generated + "\n" + endMarker

	if before, after, ok := strings.Cut(n.Body, startMarker); ok {
		if _, tail, ok := strings.Cut(after, endMarker); ok {
			n.Body = before + block + tail
			return
		}
	}

	switch {
	case strings.TrimSpace(n.Body) == "":
		n.Body = block + "\n"
	case strings.HasSuffix(n.Body, "\n"):
		n.Body += "\n" + block + "\n"
	default:
		n.Body += "\n\n" + block + "\n"
	}
}
