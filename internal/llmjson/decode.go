// Package llmjson decodes structured replies from language models, which
// often wrap JSON in prose, code fences or leaked role prefixes.
package llmjson

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON value can be located in the content.
var ErrNoJSON = errors.New("no JSON value in model output")

// Decode unmarshals the first JSON object or array found in content into v.
// Patterns handled:
//   - Pure JSON: `[{"title":"..."}]`
//   - Code-fenced: ```json\n{...}\n```
//   - Prefixed text: `assistant\n{...}`
//   - Mixed text: `Sure.\n[...]\nHope that helps.`
//
// Invalid escape sequences such as \% are repaired before a second attempt.
func Decode(content string, v any) error {
	content = StripRolePrefix(strings.TrimSpace(content))
	content = stripFences(content)

	// Fast path: the whole content is JSON.
	if err := unmarshal(content, v); err == nil {
		return nil
	}

	start, end := findJSONBounds(content)
	if start < 0 || end <= start {
		return ErrNoJSON
	}
	return unmarshal(content[start:end], v)
}

func unmarshal(raw string, v any) error {
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	if fixed := sanitizeJSONEscapes(raw); fixed != raw {
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) >= 3 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}
	return content
}

// findJSONBounds locates the first top-level JSON object ({}) or array ([]) in s.
// Returns the start index and end+1 index, or (-1, -1) if not found.
func findJSONBounds(s string) (int, int) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return -1, -1
	}

	openChar := s[start]
	closeChar := byte('}')
	if openChar == '[' {
		closeChar = ']'
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}
	return -1, -1
}

// StripRolePrefix removes role-name prefixes that some models leak into their
// content, e.g. "assistant\nHello" → "Hello".
func StripRolePrefix(content string) string {
	prefixes := []string{
		"assistant\n",
		"Assistant\n",
		"assistant:\n",
		"Assistant:\n",
		"assistant: ",
		"Assistant: ",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(content, p) {
			return strings.TrimSpace(content[len(p):])
		}
	}
	return content
}

// sanitizeJSONEscapes drops the backslash from escape sequences JSON does not
// allow (valid: \" \\ \/ \b \f \n \r \t \uXXXX).
func sanitizeJSONEscapes(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '"' && (i == 0 || s[i-1] != '\\') {
			inString = !inString
			buf.WriteByte(ch)
			continue
		}
		if inString && ch == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				buf.WriteByte(ch)
				buf.WriteByte(s[i+1])
				i++
			}
			continue
		}
		buf.WriteByte(ch)
	}
	return buf.String()
}
