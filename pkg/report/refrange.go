package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// inequalityPattern matches a reference segment that is a single
	// inequality expression such as "<5.0" or ">= 150".
	inequalityPattern = regexp.MustCompile(`^([<>]=?)\s*(\d+(?:\.\d+)?)$`)

	// numericRangePattern matches a "low - high" reference segment with
	// optional spaces around the hyphen.
	numericRangePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)$`)
)

// ParseReferenceRange classifies the trailing reference segment of a
// measurement line. The policy, in order:
//
//  1. Empty segment: nothing is set.
//  2. A lone inequality ("<5.0", ">=150"): kept verbatim as refText.
//     Inequalities are deliberately not converted to half-open numeric
//     bounds; see Parser.FlagInequalities for the opt-in alternative.
//  3. A numeric range ("14-18", "8.5 - 10.5"): refLow/refHigh are parsed.
//  4. Anything else: kept verbatim as refText.
//
// At most one of {refLow&refHigh, refText} is ever populated.
func ParseReferenceRange(segment string) (refLow, refHigh *float64, refText string) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return nil, nil, ""
	}

	if inequalityPattern.MatchString(segment) {
		return nil, nil, segment
	}

	if match := numericRangePattern.FindStringSubmatch(segment); match != nil {
		low, errLow := strconv.ParseFloat(match[1], 64)
		high, errHigh := strconv.ParseFloat(match[2], 64)
		if errLow == nil && errHigh == nil {
			return &low, &high, ""
		}
	}

	return nil, nil, segment
}

// ComputeFlag compares a value against parsed reference bounds. Comparison
// is strict: a value exactly equal to a bound never flags. A missing value
// (NaN) or missing bound yields no flag, and an inequality-only reference
// segment carries no bounds, so it never flags either.
func ComputeFlag(value float64, refLow, refHigh *float64) Flag {
	if math.IsNaN(value) {
		return FlagNone
	}
	if refLow != nil && value < *refLow {
		return FlagLow
	}
	if refHigh != nil && value > *refHigh {
		return FlagHigh
	}
	return FlagNone
}

// DeriveFlag applies the full reference policy to a value: numeric bounds
// through ComputeFlag, then, only when flagInequalities is set, an
// inequality refText. This is the single derivation point shared by the
// parser and the review layer, so corrected records obey the same rules
// as freshly parsed ones.
func DeriveFlag(value float64, refLow, refHigh *float64, refText string, flagInequalities bool) Flag {
	flag := ComputeFlag(value, refLow, refHigh)
	if flag == FlagNone && refText != "" && flagInequalities {
		flag = flagFromInequality(value, refText)
	}
	return flag
}

// flagFromInequality applies an inequality reference segment to a value.
// Only used when Parser.FlagInequalities is enabled: "<X" (and "<=X") flag
// high when the value exceeds X, ">X" (and ">=X") flag low when the value
// is under X. Equality never flags, matching ComputeFlag.
func flagFromInequality(value float64, refText string) Flag {
	match := inequalityPattern.FindStringSubmatch(refText)
	if match == nil || math.IsNaN(value) {
		return FlagNone
	}
	bound, err := strconv.ParseFloat(match[2], 64)
	if err != nil {
		return FlagNone
	}
	switch match[1][0] {
	case '<':
		if value > bound {
			return FlagHigh
		}
	case '>':
		if value < bound {
			return FlagLow
		}
	}
	return FlagNone
}
