// Package export serializes journal entries into a fixed-column
// delimited text format that spreadsheet tools import without sniffing:
// every field is quoted, embedded quotes are doubled, and the column
// order never changes.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/coolbeans/labtrail/pkg/journal"
)

// Columns is the fixed output order. Downstream imports key on position,
// so new columns may only be appended.
var Columns = []string{
	"timestamp",
	"panel",
	"key",
	"name",
	"value",
	"unit",
	"ref_low",
	"ref_high",
	"ref_text",
	"flag",
	"report_id",
	"source",
	"raw_line",
}

// Write serializes entries to w, header row first. Timestamps are RFC
// 3339 in UTC; absent reference bounds serialize as empty fields, never
// as zero.
func Write(w io.Writer, entries []journal.Entry) error {
	if err := writeRow(w, Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, e := range entries {
		row := []string{
			e.CollectedAt.UTC().Format(time.RFC3339),
			e.Panel,
			e.Key,
			e.Name,
			formatValue(e.Value),
			e.Unit,
			formatBound(e.RefLow),
			formatBound(e.RefHigh),
			e.RefText,
			string(e.Flag),
			e.ReportID,
			e.Source,
			e.RawLine,
		}
		if err := writeRow(w, row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	return nil
}

func writeRow(w io.Writer, fields []string) error {
	quoted := make([]string, len(fields))
	for i, field := range fields {
		quoted[i] = `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	_, err := io.WriteString(w, strings.Join(quoted, ",")+"\n")
	return err
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBound(v *float64) string {
	if v == nil {
		return ""
	}
	return formatValue(*v)
}
