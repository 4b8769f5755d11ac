package report

import "unicode"

// Panel-header heuristic thresholds. Section titles on printed lab reports
// are short, digit-free and mostly uppercase ("LIPID PROFILE", "COMPLETE
// BLOOD COUNT"); these bounds bias the classifier toward that shape. Kept
// as named constants so the thresholds can be tuned and tested apart from
// the driver loop.
const (
	headerMinLength    = 4
	headerMaxLength    = 45
	headerUppercaseCap = 8
)

// IsPanelHeader reports whether a trimmed line looks like a section header
// rather than a data row. A line qualifies when it is within the length
// bounds, contains no digit, and its uppercase-letter count reaches
// min(headerUppercaseCap, half the line length).
//
// This is a heuristic, not a guarantee: a missed header simply leaves the
// previous panel context in effect, which the driver tolerates.
func IsPanelHeader(line string) bool {
	runes := []rune(line)
	if len(runes) < headerMinLength || len(runes) > headerMaxLength {
		return false
	}

	uppercaseCount := 0
	for _, r := range runes {
		if unicode.IsDigit(r) {
			return false
		}
		if unicode.IsUpper(r) {
			uppercaseCount++
		}
	}

	required := len(runes) / 2
	if required > headerUppercaseCap {
		required = headerUppercaseCap
	}
	return uppercaseCount >= required
}
