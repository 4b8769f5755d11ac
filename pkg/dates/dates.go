// Package dates turns the raw date and time fragments located in report
// text into absolute instants. Extraction (finding the fragments) lives
// in pkg/report; this package owns the calendar rules.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coolbeans/labtrail/pkg/report"
)

// yearPivot splits two-digit years: values below it land in the 2000s,
// values at or above it in the 1900s.
const yearPivot = 70

// NormalizeCollectionTime converts an extracted collection stamp into a
// time.Time in the given location (nil means time.Local). The date part
// is read day-first as D[D]/M[M]/Y[Y[YY]]; the time part as H[H]:MM with
// an optional am/pm marker, without which the hour is taken as 24-hour.
//
// Calendar validity is enforced by round-tripping through time.Date: an
// impossible date such as 30/02 or a 13th month normalizes to a different
// instant and is rejected rather than silently shifted.
func NormalizeCollectionTime(ct report.CollectionTime, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	day, month, year, err := parseCalendarDate(ct.DatePart)
	if err != nil {
		return time.Time{}, err
	}

	hour, minute, err := parseClock(ct.TimePart)
	if err != nil {
		return time.Time{}, err
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute {
		return time.Time{}, fmt.Errorf("invalid calendar date %q %q", ct.DatePart, ct.TimePart)
	}
	return t, nil
}

// parseCalendarDate splits a D/M/Y date string into its components,
// widening two-digit years around yearPivot.
func parseCalendarDate(datePart string) (day, month, year int, err error) {
	parts := strings.Split(datePart, "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("parse date %q: want day/month/year", datePart)
	}

	day, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse date %q: bad day: %w", datePart, err)
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse date %q: bad month: %w", datePart, err)
	}
	year, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse date %q: bad year: %w", datePart, err)
	}

	if year < 100 {
		if year < yearPivot {
			year += 2000
		} else {
			year += 1900
		}
	}
	return day, month, year, nil
}

// parseClock reads an H[H]:MM time with optional trailing am/pm marker.
// With a marker the hour is converted from the 12-hour clock; without one
// it is taken as already 24-hour.
func parseClock(timePart string) (hour, minute int, err error) {
	clock := strings.TrimSpace(strings.ToLower(timePart))

	meridiem := ""
	for _, marker := range []string{"am", "pm"} {
		if strings.HasSuffix(clock, marker) {
			meridiem = marker
			clock = strings.TrimSpace(strings.TrimSuffix(clock, marker))
			break
		}
	}

	hourPart, minutePart, found := strings.Cut(clock, ":")
	if !found {
		return 0, 0, fmt.Errorf("parse time %q: want hour:minute", timePart)
	}
	hour, err = strconv.Atoi(hourPart)
	if err != nil {
		return 0, 0, fmt.Errorf("parse time %q: bad hour: %w", timePart, err)
	}
	minute, err = strconv.Atoi(minutePart)
	if err != nil {
		return 0, 0, fmt.Errorf("parse time %q: bad minute: %w", timePart, err)
	}

	switch meridiem {
	case "pm":
		if hour > 12 {
			return 0, 0, fmt.Errorf("parse time %q: hour %d with pm marker", timePart, hour)
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour > 12 {
			return 0, 0, fmt.Errorf("parse time %q: hour %d with am marker", timePart, hour)
		}
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute, nil
}
