package textextract

import (
	"regexp"
	"strings"
)

var (
	crlfPattern       = regexp.MustCompile(`\r\n?`)
	tabPattern        = regexp.MustCompile(`\t+`)
	multiSpacePattern = regexp.MustCompile(` {2,}`)
	multiBlankPattern = regexp.MustCompile(`\n{3,}`)

	// separatorLinePattern matches ruled lines ("-----", "=====", "____")
	// that PDF extraction turns table borders into.
	separatorLinePattern = regexp.MustCompile(`(?m)^[ \t]*[_\-=*.]{3,}[ \t]*$`)
)

// ligatureReplacer undoes the typographic ligatures PDF text extraction
// leaves behind ("Conﬁrmed" for "Confirmed").
var ligatureReplacer = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
)

// CleanText normalizes extracted document text before parsing: line
// endings become \n, tabs become spaces, space runs and blank-line runs
// collapse, ruled separator lines drop, and PDF ligatures are expanded.
// Conservative on purpose: line breaks are preserved, and digits are
// never touched, since numbers are the payload of a lab report. The
// parser does not depend on this cleanup for correctness; it only
// reduces noise.
func CleanText(s string) string {
	if s == "" {
		return s
	}

	s = strings.TrimPrefix(s, "\uFEFF")
	s = ligatureReplacer.Replace(s)
	s = crlfPattern.ReplaceAllString(s, "\n")
	s = tabPattern.ReplaceAllString(s, " ")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	s = separatorLinePattern.ReplaceAllString(s, "")
	s = multiBlankPattern.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
