package report

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// numericTokenPattern locates the leftmost integer or decimal in a line.
	numericTokenPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

	// bareNumberPattern matches a token that is nothing but a number.
	bareNumberPattern = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// parseMeasurementLine attempts to read one whitespace-normalized,
// non-header line as a measurement. The leftmost numeric token splits the
// line: text before it is the test name, the token itself is the value,
// and the remaining tokens are divided into a unit segment and a
// reference segment.
//
// A token opens the reference segment when it contains a hyphen, starts
// with '<' or '>', or is a bare number sitting in last position (a
// trailing lone number is read as the upper end of an unlabeled range,
// not as a unit). Everything from the first such token onward belongs to
// the reference segment; tokens before it form the unit.
//
// The bool result is false when the line is not a measurement: no numeric
// token, an empty name, or a value token that does not parse. None of
// these are errors; the driver just moves on.
func (p *Parser) parseMeasurementLine(line string) (Measurement, bool) {
	valueStart := numericTokenPattern.FindStringIndex(line)
	if valueStart == nil {
		return Measurement{}, false
	}

	name := strings.TrimSpace(line[:valueStart[0]])
	if name == "" {
		return Measurement{}, false
	}

	tokens := strings.Fields(line[valueStart[0]:])
	value, err := strconv.ParseFloat(tokens[0], 64)
	if err != nil {
		return Measurement{}, false
	}

	tail := tokens[1:]
	refStart := -1
	for i, token := range tail {
		if isReferenceToken(token, i == len(tail)-1) {
			refStart = i
			break
		}
	}

	var unitTokens, refTokens []string
	if refStart < 0 {
		unitTokens = tail
	} else {
		unitTokens = tail[:refStart]
		refTokens = tail[refStart:]
	}

	refLow, refHigh, refText := ParseReferenceRange(strings.Join(refTokens, " "))
	flag := DeriveFlag(value, refLow, refHigh, refText, p.FlagInequalities)

	return Measurement{
		Key:     NormalizeKey(name),
		Name:    name,
		Value:   value,
		Unit:    strings.Join(unitTokens, " "),
		RefLow:  refLow,
		RefHigh: refHigh,
		RefText: refText,
		Flag:    flag,
		RawLine: line,
	}, true
}

// isReferenceToken decides whether a token opens the reference segment.
func isReferenceToken(token string, isLast bool) bool {
	if strings.Contains(token, "-") {
		return true
	}
	if strings.HasPrefix(token, "<") || strings.HasPrefix(token, ">") {
		return true
	}
	return isLast && bareNumberPattern.MatchString(token)
}
