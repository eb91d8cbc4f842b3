// Package placeholder renders template bodies containing {{key}} tokens.
//
// A body is tokenized once into literal and placeholder segments and then
// substituted in a single pass, so a key is never matched as a fragment of a
// longer key and substituted values are never scanned again.
package placeholder

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Segment is a run of literal text or a single placeholder token.
type Segment struct {
	Literal     string // raw text; for placeholders this is the full "{{key}}" token
	Key         string // normalized key, set only for placeholders
	Placeholder bool
}

// Parse splits body into literal and placeholder segments.
// A placeholder is "{{" followed by a non-empty key without braces or line
// breaks and then "}}". Anything that does not match is kept as literal text.
func Parse(body string) []Segment {
	var segments []Segment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segments = append(segments, Segment{Literal: lit.String()})
			lit.Reset()
		}
	}

	rest := body
	for len(rest) > 0 {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			lit.WriteString(rest)
			break
		}
		lit.WriteString(rest[:start])
		rest = rest[start:]

		key, n, ok := scanToken(rest)
		if !ok {
			// Emit one brace and keep scanning so "{{{a}}" still finds "{{a}}".
			lit.WriteByte(rest[0])
			rest = rest[1:]
			continue
		}
		flush()
		segments = append(segments, Segment{
			Literal:     rest[:n],
			Key:         NormalizeKey(key),
			Placeholder: true,
		})
		rest = rest[n:]
	}
	flush()
	return segments
}

// scanToken reads a token at the start of s, which begins with "{{".
// It returns the raw key and the token length.
func scanToken(s string) (string, int, bool) {
	inner := s[len(openDelim):]
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '{', '\n', '\r':
			return "", 0, false
		case '}':
			if i == 0 || !strings.HasPrefix(inner[i:], closeDelim) {
				return "", 0, false
			}
			return inner[:i], len(openDelim) + i + len(closeDelim), true
		}
	}
	return "", 0, false
}

// Keys returns the distinct placeholder keys of body in order of first use.
func Keys(body string) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, seg := range Parse(body) {
		if !seg.Placeholder {
			continue
		}
		if _, ok := seen[seg.Key]; ok {
			continue
		}
		seen[seg.Key] = struct{}{}
		keys = append(keys, seg.Key)
	}
	return keys
}

// NormalizeKey brings a key into Unicode NFC so that composed and decomposed
// spellings of the same key compare equal.
func NormalizeKey(key string) string {
	return norm.NFC.String(key)
}
