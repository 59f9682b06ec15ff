package event

import "strings"

// patternKind is the closed set of supported pattern shapes.
// Patterns are classified once at subscribe time so dispatch never
// re-parses the pattern string.
type patternKind int

const (
	patternExact patternKind = iota
	patternPrefix
	patternSuffix
	patternAll
)

// Pattern is a compiled subscription pattern.
//
// Supported shapes:
//   - "*"        matches every event type
//   - "price:*"  matches types starting with "price:"
//   - "*:update" matches types ending with ":update"
//   - anything else is an exact match
type Pattern struct {
	raw  string
	kind patternKind
	text string // prefix/suffix text, or exact type
}

// CompilePattern classifies a pattern string.
func CompilePattern(raw string) Pattern {
	switch {
	case raw == "*":
		return Pattern{raw: raw, kind: patternAll}
	case strings.HasSuffix(raw, ":*"):
		return Pattern{raw: raw, kind: patternPrefix, text: strings.TrimSuffix(raw, "*")}
	case strings.HasPrefix(raw, "*:"):
		return Pattern{raw: raw, kind: patternSuffix, text: strings.TrimPrefix(raw, "*")}
	default:
		return Pattern{raw: raw, kind: patternExact, text: raw}
	}
}

// Match reports whether the pattern matches an event type.
func (p Pattern) Match(eventType string) bool {
	switch p.kind {
	case patternAll:
		return true
	case patternPrefix:
		return strings.HasPrefix(eventType, p.text)
	case patternSuffix:
		return strings.HasSuffix(eventType, p.text)
	default:
		return eventType == p.text
	}
}

// String returns the original pattern string.
func (p Pattern) String() string {
	return p.raw
}
