// Package review corrects parsed measurement records without mutating
// them. The parser's output is kept as-written; corrections are expressed
// as an ordered patch list addressing rows of the original parse, and
// applying a draft materializes a fresh record slice. Derived fields
// (key, flag) are recomputed with the same functions the parser uses, so
// a corrected record obeys the same rules as a freshly parsed one.
package review

import (
	"fmt"
	"strconv"

	"github.com/coolbeans/labtrail/pkg/report"
)

// Patch is a single correction. Row addresses the 0-based position in the
// ORIGINAL parse; row numbers never shift, regardless of how many patches
// precede this one or whether earlier rows are dropped.
type Patch struct {
	Row   int    `yaml:"row" json:"row"`
	Field string `yaml:"field,omitempty" json:"field,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
	Drop  bool   `yaml:"drop,omitempty" json:"drop,omitempty"`
}

// Draft pairs an immutable original parse with its pending corrections.
type Draft struct {
	// FlagInequalities mirrors the parser option of the same name so flag
	// re-derivation matches how the records were first produced.
	FlagInequalities bool

	original []report.Measurement
	patches  []Patch
}

// NewDraft starts a draft over a copy of the given records. The caller's
// slice is never modified.
func NewDraft(records []report.Measurement) *Draft {
	original := make([]report.Measurement, len(records))
	copy(original, records)
	return &Draft{original: original}
}

// Add appends patches to the draft in order.
func (d *Draft) Add(patches ...Patch) {
	d.patches = append(d.patches, patches...)
}

// Set is shorthand for adding a single field edit.
func (d *Draft) Set(row int, field, value string) {
	d.Add(Patch{Row: row, Field: field, Value: value})
}

// DropRow is shorthand for adding a row removal.
func (d *Draft) DropRow(row int) {
	d.Add(Patch{Row: row, Drop: true})
}

// Patches returns the pending corrections in application order.
func (d *Draft) Patches() []Patch {
	out := make([]Patch, len(d.patches))
	copy(out, d.patches)
	return out
}

// Apply materializes the corrected records as a new slice, leaving the
// original parse untouched. Patches are applied in order against original
// row positions; dropped rows are removed at the end so that later
// patches can still address them. Apply fails on an out-of-range row, an
// unknown field, an unparseable numeric value, or a final state where
// only one of the two reference bounds is set.
func (d *Draft) Apply() ([]report.Measurement, error) {
	records := make([]report.Measurement, len(d.original))
	copy(records, d.original)

	dropped := make(map[int]bool)
	for i, patch := range d.patches {
		if patch.Row < 0 || patch.Row >= len(records) {
			return nil, fmt.Errorf("patch %d: row %d out of range (have %d rows)", i, patch.Row, len(records))
		}
		if patch.Drop {
			dropped[patch.Row] = true
			continue
		}
		if err := applyField(&records[patch.Row], patch.Field, patch.Value, d.FlagInequalities); err != nil {
			return nil, fmt.Errorf("patch %d (row %d): %w", i, patch.Row, err)
		}
	}

	result := make([]report.Measurement, 0, len(records))
	for row, record := range records {
		if dropped[row] {
			continue
		}
		if (record.RefLow == nil) != (record.RefHigh == nil) {
			return nil, fmt.Errorf("row %d: ref_low and ref_high must be set together", row)
		}
		result = append(result, record)
	}
	return result, nil
}

// applyField edits one field of a record and recomputes whatever the edit
// invalidates: name edits re-derive the key, and any edit touching value
// or reference material re-derives the flag.
func applyField(m *report.Measurement, field, value string, flagInequalities bool) error {
	switch field {
	case "name":
		if value == "" {
			return fmt.Errorf("name cannot be empty")
		}
		m.Name = value
		m.Key = report.NormalizeKey(value)
		return nil

	case "unit":
		m.Unit = value
		return nil

	case "panel":
		if value == "" {
			return fmt.Errorf("panel cannot be empty")
		}
		m.Panel = value
		return nil

	case "value":
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("bad value %q: %w", value, err)
		}
		m.Value = parsed

	case "ref_low":
		if value == "" {
			m.RefLow = nil
		} else {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("bad ref_low %q: %w", value, err)
			}
			m.RefLow = &parsed
			m.RefText = ""
		}

	case "ref_high":
		if value == "" {
			m.RefHigh = nil
		} else {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("bad ref_high %q: %w", value, err)
			}
			m.RefHigh = &parsed
			m.RefText = ""
		}

	case "ref_text":
		m.RefText = value
		if value != "" {
			m.RefLow = nil
			m.RefHigh = nil
		}

	default:
		return fmt.Errorf("unknown field %q (want name, value, unit, panel, ref_low, ref_high or ref_text)", field)
	}

	m.Flag = report.DeriveFlag(m.Value, m.RefLow, m.RefHigh, m.RefText, flagInequalities)
	return nil
}
