// Package render presents journal entries on the terminal, either as a
// colorized table for human review or as JSON lines for piping.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/coolbeans/labtrail/pkg/journal"
	"github.com/coolbeans/labtrail/pkg/report"
)

// Renderer writes a batch of journal entries to an output stream.
type Renderer interface {
	Render(entries []journal.Entry) error
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleHigh  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red
	styleLow   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
	stylePanel = lipgloss.NewStyle().Bold(true)
	styleMeta  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true) // gray
)

// TextRenderer prints measurement rows grouped under bold panel headings,
// with out-of-range flags colored by direction.
type TextRenderer struct {
	w io.Writer

	// WithTimestamps prefixes each row with its collection date, for
	// series spanning multiple reports.
	WithTimestamps bool

	// WithRowNumbers prefixes each row with its 0-based position, the
	// row addressing used by corrections.
	WithRowNumbers bool
}

// NewTextRenderer returns a Renderer that writes a colorized table to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Render(entries []journal.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(r.w, styleMeta.Render("no measurements"))
		return err
	}

	nameWidth, valueWidth, unitWidth := columnWidths(entries)

	currentPanel := ""
	for i, e := range entries {
		if e.Panel != currentPanel {
			currentPanel = e.Panel
			if _, err := fmt.Fprintln(r.w, stylePanel.Render(currentPanel)); err != nil {
				return err
			}
		}

		prefix := "  "
		if r.WithRowNumbers {
			prefix += styleMeta.Render(fmt.Sprintf("%3d", i)) + "  "
		}
		if r.WithTimestamps {
			prefix += e.CollectedAt.Format("2006-01-02") + "  "
		}

		line := fmt.Sprintf("%s%-*s  %*s %-*s  %s",
			prefix,
			nameWidth, e.Name,
			valueWidth, formatValue(e.Value),
			unitWidth, e.Unit,
			refDisplay(e.Measurement),
		)
		if tag := flagTag(e.Flag); tag != "" {
			line += "  " + tag
		}
		if _, err := fmt.Fprintln(r.w, line); err != nil {
			return err
		}
	}
	return nil
}

// columnWidths sizes the name, value and unit columns to their widest
// cell.
func columnWidths(entries []journal.Entry) (nameWidth, valueWidth, unitWidth int) {
	for _, e := range entries {
		if w := utf8.RuneCountInString(e.Name); w > nameWidth {
			nameWidth = w
		}
		if w := len(formatValue(e.Value)); w > valueWidth {
			valueWidth = w
		}
		if w := utf8.RuneCountInString(e.Unit); w > unitWidth {
			unitWidth = w
		}
	}
	return nameWidth, valueWidth, unitWidth
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// refDisplay shows whichever reference form the record carries.
func refDisplay(m report.Measurement) string {
	switch {
	case m.HasRange():
		return formatValue(*m.RefLow) + "-" + formatValue(*m.RefHigh)
	case m.RefText != "":
		return m.RefText
	default:
		return ""
	}
}

func flagTag(flag report.Flag) string {
	switch flag {
	case report.FlagHigh:
		return styleHigh.Render("H")
	case report.FlagLow:
		return styleLow.Render("L")
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each entry as a single JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON lines to w.
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Render(entries []journal.Entry) error {
	for _, e := range entries {
		if err := r.enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Renderer = (*TextRenderer)(nil)
	_ Renderer = (*JSONRenderer)(nil)
)
