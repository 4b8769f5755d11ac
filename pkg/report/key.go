package report

import (
	"regexp"
	"strings"
)

var (
	// parentheticalPattern matches a parenthesized group and its contents,
	// e.g. the "(Hb)" in "Haemoglobin (Hb)".
	parentheticalPattern = regexp.MustCompile(`\([^)]*\)`)

	// nonAlnumRunPattern matches runs of characters outside [a-z0-9] in an
	// already-lowercased name.
	nonAlnumRunPattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeKey derives the stable grouping identifier for a test name.
// Parenthetical abbreviations are dropped, the remainder is lowercased,
// and every run of non-alphanumeric characters collapses to a single
// underscore: "Haemoglobin (Hb)" and "HAEMOGLOBIN" both become
// "haemoglobin". The result is the join key used to line up the same test
// across reports, so stability matters more than readability.
//
// NormalizeKey is a pure function and a fixed point: applying it to its
// own output returns the same string.
func NormalizeKey(name string) string {
	key := parentheticalPattern.ReplaceAllString(name, "")
	key = strings.ToLower(key)
	key = nonAlnumRunPattern.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}
