// Package exclusion filters paths against ordered substring patterns.
package exclusion

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultTreePatterns is the exclusion set applied by the ASCII tree surface
// when the caller supplies none.
var DefaultTreePatterns = []string{"node_modules", "package.json", "package-lock.json"}

// DefaultRecordPatterns is the exclusion set applied by the structured record
// surface when the caller supplies none.
var DefaultRecordPatterns = []string{"node_modules", "package-lock.json", ".git"}

// Set holds ordered substring patterns. A path is excluded when any pattern
// occurs anywhere in its slash-joined representation, not per segment.
type Set struct {
	patterns []string
}

// NewSet builds a Set from the provided patterns, dropping blank entries and
// duplicates while preserving first-occurrence order.
func NewSet(patterns ...string) *Set {
	seenPatterns := mapset.NewThreadUnsafeSet[string]()
	ordered := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		if seenPatterns.Add(trimmedPattern) {
			ordered = append(ordered, trimmedPattern)
		}
	}
	return &Set{patterns: ordered}
}

// Patterns returns the patterns in evaluation order.
func (set *Set) Patterns() []string {
	if set == nil {
		return nil
	}
	return append([]string(nil), set.patterns...)
}

// IsEmpty reports whether the set holds no patterns.
func (set *Set) IsEmpty() bool {
	return set == nil || len(set.patterns) == 0
}

// Matches reports whether any pattern is a substring of the provided path.
// The path is normalized to forward slashes before evaluation.
func (set *Set) Matches(path string) bool {
	if set == nil {
		return false
	}
	normalizedPath := strings.ReplaceAll(path, "\\", "/")
	for _, pattern := range set.patterns {
		if strings.Contains(normalizedPath, pattern) {
			return true
		}
	}
	return false
}

// Merge returns a new Set holding the receiver's patterns followed by the
// additional patterns, deduplicated.
func (set *Set) Merge(additional ...string) *Set {
	combined := set.Patterns()
	combined = append(combined, additional...)
	return NewSet(combined...)
}
