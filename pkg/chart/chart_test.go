package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coolbeans/labtrail/pkg/journal"
)

const januaryReport = `Collected On : 16/01/2026 1:40PM
COMPLETE BLOOD COUNT (CBC)
Haemoglobin (Hb) 12.3 gm/dL 14-18
Total WBC Count 8400 cells/cu mm 4000-11000
`

const marchReport = `Collected On : 10/03/2026 09:15AM
COMPLETE BLOOD COUNT (CBC)
Haemoglobin (Hb) 13.1 gm/dL 14-18
`

const crpReport = `Collected On : 20/03/2026 10:00AM
INFLAMMATION MARKERS
C-Reactive Protein (CRP) 28.42 mg/L <5.0
`

// newSeededJournal builds a journal with a few reports spanning two keys.
func newSeededJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Init(filepath.Join(t.TempDir(), "journal"), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	for _, text := range []string{januaryReport, marchReport, crpReport} {
		if _, err := j.AddReport([]byte(text), journal.AddOptions{Location: time.UTC}); err != nil {
			t.Fatalf("AddReport failed: %v", err)
		}
	}
	return j
}

func TestRenderKey(t *testing.T) {
	j := newSeededJournal(t)

	var buf bytes.Buffer
	if err := RenderKey(&buf, j, "haemoglobin"); err != nil {
		t.Fatalf("RenderKey failed: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		"Haemoglobin (Hb)", // chart title from the display name
		"gm/dL",            // y-axis label from the unit
		"Jan 16, 2026",
		"Mar 10, 2026",
		"12.3",
		"13.1",
		"Ref Low",
		"Ref High",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("chart HTML missing %q", want)
		}
	}
}

func TestRenderKeyNormalizesName(t *testing.T) {
	j := newSeededJournal(t)

	var buf bytes.Buffer
	if err := RenderKey(&buf, j, "Haemoglobin (Hb)"); err != nil {
		t.Fatalf("RenderKey with display name failed: %v", err)
	}
	if !strings.Contains(buf.String(), "12.3") {
		t.Error("chart rendered from display name is missing data")
	}
}

func TestRenderKeyWithoutRange(t *testing.T) {
	j := newSeededJournal(t)

	// CRP only quotes "<5.0"; the chart still renders, just without the
	// reference mark lines.
	var buf bytes.Buffer
	if err := RenderKey(&buf, j, "c_reactive_protein"); err != nil {
		t.Fatalf("RenderKey failed: %v", err)
	}
	html := buf.String()
	if !strings.Contains(html, "28.42") {
		t.Error("chart HTML missing data point")
	}
	if strings.Contains(html, "Ref Low") || strings.Contains(html, "Ref High") {
		t.Error("chart without numeric bounds should not draw reference lines")
	}
}

func TestRenderKeyUnknown(t *testing.T) {
	j := newSeededJournal(t)

	if err := RenderKey(&bytes.Buffer{}, j, "glucose_fasting"); err == nil {
		t.Error("expected error for key with no measurements")
	}
	if err := RenderKey(&bytes.Buffer{}, j, "!!!"); err == nil {
		t.Error("expected error for key that normalizes to nothing")
	}
}

func TestRenderAll(t *testing.T) {
	j := newSeededJournal(t)
	dir := filepath.Join(t.TempDir(), "charts")

	written, err := RenderAll(j, dir)
	if err != nil {
		t.Fatalf("RenderAll failed: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("Expected 3 chart files, got %d", len(written))
	}

	for _, name := range []string{"haemoglobin.html", "total_wbc_count.html", "c_reactive_protein.html"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("failed to read %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestLatestRangeWins(t *testing.T) {
	j := newSeededJournal(t)

	// A newer report with a tighter range should supply the mark lines.
	tighter := `Collected On : 01/04/2026 09:00AM
COMPLETE BLOOD COUNT (CBC)
Haemoglobin (Hb) 13.8 gm/dL 13-17
`
	if _, err := j.AddReport([]byte(tighter), journal.AddOptions{Location: time.UTC}); err != nil {
		t.Fatalf("AddReport failed: %v", err)
	}

	series, err := j.Series("haemoglobin")
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	low, high := latestRange(series)
	if low == nil || high == nil {
		t.Fatal("expected bounds from the most recent report")
	}
	if *low != 13 || *high != 17 {
		t.Errorf("latestRange = (%v, %v), want (13, 17)", *low, *high)
	}
}
