package report

import (
	"regexp"
	"strings"
	"testing"
)

var (
	keyShapePattern  = regexp.MustCompile(`^[a-z0-9_]*$`)
	dateShapePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}$`)
)

// FuzzParse tests the report parser with arbitrary input.
// Run with: go test -fuzz=FuzzParse -fuzztime=30s ./pkg/report/...
func FuzzParse(f *testing.F) {
	seeds := []string{
		// Representative measurement lines
		"Haemoglobin (Hb) 12.3 gm/dL 14-18",
		"C-Reactive Protein (CRP) 28.42 mg/L <5.0",
		"WBC Count 8400 cells/cu mm 4000-11000",
		"Platelet Count 2.1 lakh/cumm 1.5-4.1",
		"TSH 2.5 mIU/L 0.4-4.2",
		"ESR 7",
		"ESR 7 mm/hr",
		"HDL Cholesterol 32 mg/dL >40",
		"Glucose Fasting 96 mg/dL 110",

		// Headers and noise
		"LIPID PROFILE",
		"COMPLETE BLOOD COUNT (CBC)",
		"Page 1 of 3",
		"Page 2",
		"End of Report",
		"CITY DIAGNOSTIC CENTRE",
		"Dr. A. Verifier, MD Pathology",

		// Whole-report shapes
		sampleReportText,
		"LIPID PROFILE\r\nTotal Cholesterol 240 mg/dL 130-200\r\n",

		// Edge cases
		"",
		" ",
		"\n\n\n",
		"12.5",
		"12.5 mg/dL",
		"((( 5",
		"Vitamin B12 230 pg/mL 200-900",
		"HbA1c (Glycated Hb) 5.2 %",
		"Serum Calcium 9.2 mg/dL 8.5 - 10.5",
		"Name 1e308 unit 0-1",
		"X 999999999999999999999999999",
		strings.Repeat("Haemoglobin 12 g 1-2\n", 500),
		strings.Repeat("A", 1000),

		// Unicode and special characters
		"Sérum Créatinine 0.9 mg/dL 0.6-1.2",
		"Hæmoglobin 12.3 gm/dL 14-18",
		"Test Name 5 unit 1-10",
	}

	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, data string) {
		parser := NewParser()

		// The parser should not panic and never returns a nil slice
		measurements := parser.Parse(data)
		if measurements == nil {
			t.Fatal("Parse returned nil slice")
		}

		for _, m := range measurements {
			if m.Name == "" {
				t.Error("Measurement has empty name")
			}
			if m.RawLine == "" {
				t.Error("Measurement has empty raw line")
			}
			if m.Panel == "" {
				t.Error("Measurement has empty panel")
			}

			// Key is derived from Name and stays inside its charset
			if !keyShapePattern.MatchString(m.Key) {
				t.Errorf("Key %q contains characters outside [a-z0-9_]", m.Key)
			}
			if strings.HasPrefix(m.Key, "_") || strings.HasSuffix(m.Key, "_") {
				t.Errorf("Key %q has a leading or trailing underscore", m.Key)
			}
			if want := NormalizeKey(m.Name); m.Key != want {
				t.Errorf("Key %q does not match NormalizeKey(%q) = %q", m.Key, m.Name, want)
			}

			// Bounds come as a pair, and never together with verbatim text
			if (m.RefLow == nil) != (m.RefHigh == nil) {
				t.Errorf("Measurement %q has a single reference bound", m.Name)
			}
			if m.HasRange() && m.RefText != "" {
				t.Errorf("Measurement %q has both bounds and ref text %q", m.Name, m.RefText)
			}

			// A flag requires bounds and must agree with the comparison
			switch m.Flag {
			case FlagNone:
			case FlagLow:
				if !m.HasRange() {
					t.Errorf("Measurement %q flagged low without bounds", m.Name)
				} else if m.Value >= *m.RefLow {
					t.Errorf("Measurement %q flagged low with value %v >= %v", m.Name, m.Value, *m.RefLow)
				}
			case FlagHigh:
				if !m.HasRange() {
					t.Errorf("Measurement %q flagged high without bounds", m.Name)
				} else if m.Value <= *m.RefHigh {
					t.Errorf("Measurement %q flagged high with value %v <= %v", m.Name, m.Value, *m.RefHigh)
				}
			default:
				t.Errorf("Measurement %q has unknown flag %q", m.Name, m.Flag)
			}
		}
	})
}

// FuzzExtractCollectionTime tests the collection-time scanner with
// arbitrary input.
// Run with: go test -fuzz=FuzzExtractCollectionTime -fuzztime=30s ./pkg/report/...
func FuzzExtractCollectionTime(f *testing.F) {
	seeds := []string{
		"Collected On : 16/01/2026 1:40PM",
		"Collected At 16/1/26, 09:05 am",
		"Collection Date & Time : 05/03/2024 14:30",
		"Collection Date: 05/03/24",
		"Received On 12/11/2025 08:15AM",
		"Reported On : 20/01/2026",
		"Collected on:16/01/2026",
		"",
		"Collected On : pending",
		"collected",
		"99/99/9999",
		"Collected On : 99/99/99 99:99",
		strings.Repeat("Collected On : 16/01/2026\n", 200),
	}

	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, data string) {
		collected, ok := ExtractCollectionTime(data)

		if !ok {
			if collected.DatePart != "" || collected.TimePart != "" {
				t.Errorf("No match but parts set: %+v", collected)
			}
			return
		}

		// A match always carries a date in D/M/Y shape and a non-empty
		// time, defaulted when the text had none
		if !dateShapePattern.MatchString(collected.DatePart) {
			t.Errorf("DatePart %q is not D/M/Y shaped", collected.DatePart)
		}
		if collected.TimePart == "" {
			t.Error("TimePart is empty on a match")
		}
	})
}
