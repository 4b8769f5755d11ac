package report

import "regexp"

// collectionPatterns are tried in order against the whole text; the first
// match wins. Each pattern anchors on a label phrase, captures a
// D[D]/M[M]/Y[Y[YY]] date as group 1 and, when present, an H[H]:MM time
// with optional am/pm marker as group 2. More specific label phrases come
// first; "Received On" and "Reported On" are fallbacks for reports that
// never state a collection time.
var collectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)collected\s+(?:on|at)\s*:?\s*(\d{1,2}/\d{1,2}/\d{2,4})(?:\s*,?\s*(\d{1,2}:\d{2}\s*(?:[AaPp][Mm])?))?`),
	regexp.MustCompile(`(?i)collection\s+date(?:\s*(?:&|and)\s*time)?\s*:?\s*(\d{1,2}/\d{1,2}/\d{2,4})(?:\s*,?\s*(\d{1,2}:\d{2}\s*(?:[AaPp][Mm])?))?`),
	regexp.MustCompile(`(?i)received\s+on\s*:?\s*(\d{1,2}/\d{1,2}/\d{2,4})(?:\s*,?\s*(\d{1,2}:\d{2}\s*(?:[AaPp][Mm])?))?`),
	regexp.MustCompile(`(?i)reported\s+on\s*:?\s*(\d{1,2}/\d{1,2}/\d{2,4})(?:\s*,?\s*(\d{1,2}:\d{2}\s*(?:[AaPp][Mm])?))?`),
}

// ExtractCollectionTime scans raw report text for the specimen collection
// timestamp. It returns the matched date and time substrings untouched;
// no calendar validation happens here, pkg/dates owns turning the pair
// into an absolute instant. TimePart defaults to "00:00" when the matched
// pattern carried no time of day.
//
// The second result is false when no pattern matches, which is a normal
// outcome (the caller typically falls back to the current instant).
func ExtractCollectionTime(rawText string) (CollectionTime, bool) {
	for _, pattern := range collectionPatterns {
		match := pattern.FindStringSubmatch(rawText)
		if match == nil {
			continue
		}
		collected := CollectionTime{DatePart: match[1], TimePart: DefaultTimePart}
		if len(match) > 2 && match[2] != "" {
			collected.TimePart = match[2]
		}
		return collected, true
	}
	return CollectionTime{}, false
}
