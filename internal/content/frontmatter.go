package content

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates a document opened a YAML frontmatter
// block without closing it.
var ErrMissingClosingDelimiter = errors.New("frontmatter opening delimiter found but closing delimiter is missing")

var fmDelimiter = []byte("---\n")

// splitFrontmatter separates `---` delimited YAML frontmatter from the
// markdown body. If the document does not start with a delimiter, had is
// false and body is the full input. CRLF input is normalized to LF.
func splitFrontmatter(content []byte) (frontmatter, body []byte, had bool, err error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))

	if !bytes.HasPrefix(content, fmDelimiter) {
		return nil, content, false, nil
	}

	rest := content[len(fmDelimiter):]
	if bytes.HasPrefix(rest, fmDelimiter) {
		return []byte{}, rest[len(fmDelimiter):], true, nil
	}

	closeSeq := []byte("\n---\n")
	idx := bytes.Index(rest, closeSeq)
	if idx < 0 {
		return nil, nil, false, ErrMissingClosingDelimiter
	}
	return rest[:idx+1], rest[idx+len(closeSeq):], true, nil
}

// parseFields parses raw frontmatter YAML into a field map. Empty input is
// an empty map, never nil.
func parseFields(frontmatter []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(frontmatter) == 0 {
		return fields, nil
	}
	if err := yaml.Unmarshal(frontmatter, &fields); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	return fields, nil
}

// joinFrontmatter reassembles a document from a field map and body. Fields
// are serialized as YAML between `---` delimiters.
func joinFrontmatter(fields map[string]any, body []byte) ([]byte, error) {
	serialized, err := yaml.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("serialize frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(fmDelimiter)
	buf.Write(serialized)
	buf.Write(fmDelimiter)
	buf.Write(body)
	return buf.Bytes(), nil
}
