// Package extract recovers JSON values embedded in free-form model output.
//
// Model responses are conversational: JSON may be wrapped in a markdown fence,
// preceded by prose, or sprinkled with comments and trailing commas. JSON
// never fails; anything it cannot recover becomes an empty object.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var fence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

const previewLen = 100

// Extractor parses model output. The zero value is usable and silent.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor that logs unrecoverable input at warn level.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger.Named("extract")}
}

// JSON returns the parsed value embedded in text, either a map[string]any or
// a []any, or an empty map when nothing parseable is found.
func (e *Extractor) JSON(text string) any {
	if strings.TrimSpace(text) == "" {
		return map[string]any{}
	}

	candidate, ok := Candidate(text)
	if !ok {
		e.warn("no json in response", text)
		return map[string]any{}
	}

	var v any
	if err := json.Unmarshal([]byte(Repair(candidate)), &v); err != nil {
		e.warn("unparseable json in response", candidate, zap.Error(err))
		return map[string]any{}
	}
	switch v.(type) {
	case map[string]any, []any:
		return v
	default:
		// A fenced scalar is not a payload any caller can decode.
		return map[string]any{}
	}
}

// JSON runs a silent Extractor over text.
func JSON(text string) any {
	var e Extractor
	return e.JSON(text)
}

// Candidate locates the JSON text inside a response. A fenced code block wins;
// otherwise the span runs from the first opening bracket to the last closing
// one.
func Candidate(text string) (string, bool) {
	if m := fence.FindStringSubmatch(text); m != nil {
		return m[1], true
	}

	start := firstIndex(text, '{', '[')
	if start < 0 {
		return "", false
	}
	end := max(strings.LastIndexByte(text, '}'), strings.LastIndexByte(text, ']'))
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// Repair strips comments and trailing commas that sit outside string
// literals.
func Repair(s string) string {
	return dropTrailingCommas(stripComments(s))
}

func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		if ch == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				nl := strings.IndexByte(s[i:], '\n')
				if nl < 0 {
					return b.String()
				}
				i += nl - 1
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					return b.String()
				}
				i += end + 3
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func (e *Extractor) warn(msg, text string, fields ...zap.Field) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(msg, append(fields, zap.String("preview", preview(text)))...)
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen]
}

func firstIndex(s string, chars ...byte) int {
	idx := -1
	for _, c := range chars {
		if i := strings.IndexByte(s, c); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	return idx
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
