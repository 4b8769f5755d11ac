package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coolbeans/labtrail/pkg/journal"
)

const cbcReport = `Collected On : 16/01/2026 1:40PM
COMPLETE BLOOD COUNT (CBC)
Haemoglobin (Hb) 12.3 gm/dL 14-18
Total WBC Count 8400 cells/cu mm 4000-11000
`

const lipidReport = `Collected On : 10/03/2026 09:15AM
LIPID PROFILE
Total Cholesterol 228 mg/dL 125-200
`

func newTestWatcher(t *testing.T, config Config) (*Watcher, *journal.Journal) {
	t.Helper()
	j, err := journal.Init(filepath.Join(t.TempDir(), "journal"), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if config.Inbox == "" {
		config.Inbox = t.TempDir()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	w, err := New(j, config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return w, j
}

func writeInbox(t *testing.T, w *Watcher, name, content string) string {
	t.Helper()
	path := filepath.Join(w.config.Inbox, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestNewValidation(t *testing.T) {
	j, err := journal.Init(filepath.Join(t.TempDir(), "journal"), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if _, err := New(j, Config{}); err == nil {
		t.Error("expected error for unconfigured inbox")
	}
	if _, err := New(j, Config{Inbox: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("expected error for nonexistent inbox")
	}

	file := filepath.Join(t.TempDir(), "inbox.txt")
	os.WriteFile(file, []byte("x"), 0644)
	if _, err := New(j, Config{Inbox: file}); err == nil {
		t.Error("expected error for inbox that is a file")
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"report.txt", true},
		{"report.pdf", true},
		{"REPORT.TXT", true},
		{"scan.PDF", true},
		{"notes.md", false},
		{"report.txt.bak", false},
		{".hidden.txt", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eligible(tt.name); got != tt.want {
				t.Errorf("eligible(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestScan(t *testing.T) {
	w, j := newTestWatcher(t, Config{})

	writeInbox(t, w, "cbc.txt", cbcReport)
	writeInbox(t, w, "lipid.txt", lipidReport)
	writeInbox(t, w, "notes.md", "not a report")
	writeInbox(t, w, ".partial.txt", cbcReport)

	events, err := w.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(events), events)
	}

	// Name order: cbc.txt before lipid.txt.
	if events[0].Kind != EventIngested || events[1].Kind != EventIngested {
		t.Errorf("Expected both ingested, got %s and %s", events[0].Kind, events[1].Kind)
	}
	if events[0].Measurements != 2 {
		t.Errorf("cbc.txt measurements = %d, want 2", events[0].Measurements)
	}
	if events[1].Flagged != 1 {
		t.Errorf("lipid.txt flagged = %d, want 1", events[1].Flagged)
	}

	if got := len(j.ListReports()); got != 2 {
		t.Errorf("journal has %d reports, want 2", got)
	}
	entry := j.GetReport(events[0].ReportID)
	if entry == nil {
		t.Fatal("ingested report missing from journal")
	}
	if entry.Source != "cbc.txt" {
		t.Errorf("Source = %q, want %q", entry.Source, "cbc.txt")
	}
}

func TestScanDuplicates(t *testing.T) {
	w, j := newTestWatcher(t, Config{})
	writeInbox(t, w, "cbc.txt", cbcReport)

	if _, err := w.Scan(); err != nil {
		t.Fatalf("first Scan failed: %v", err)
	}

	// Same content under a different name is recognized, not re-stored.
	writeInbox(t, w, "cbc-copy.txt", cbcReport)
	events, err := w.Scan()
	if err != nil {
		t.Fatalf("second Scan failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Kind != EventDuplicate {
			t.Errorf("%s: kind = %s, want %s", ev.Path, ev.Kind, EventDuplicate)
		}
	}
	if got := len(j.ListReports()); got != 1 {
		t.Errorf("journal has %d reports, want 1", got)
	}
}

func TestScanFailures(t *testing.T) {
	w, _ := newTestWatcher(t, Config{})
	writeInbox(t, w, "broken.pdf", "not really a pdf")
	writeInbox(t, w, "blank.txt", "   \n\t\n")

	events, err := w.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Kind != EventFailed {
			t.Errorf("%s: kind = %s, want %s", ev.Path, ev.Kind, EventFailed)
		}
		if ev.Error == "" {
			t.Errorf("%s: failed event has no error text", ev.Path)
		}
	}
}

func TestScanSourcePrefix(t *testing.T) {
	w, j := newTestWatcher(t, Config{Source: "inbox"})
	writeInbox(t, w, "cbc.txt", cbcReport)

	events, err := w.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	entry := j.GetReport(events[0].ReportID)
	if entry.Source != "inbox/cbc.txt" {
		t.Errorf("Source = %q, want %q", entry.Source, "inbox/cbc.txt")
	}
}

func TestWatcherLive(t *testing.T) {
	w, j := newTestWatcher(t, Config{Debounce: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	writeInbox(t, w, "cbc.txt", cbcReport)

	select {
	case ev := <-w.Events():
		if ev.Kind != EventIngested {
			t.Errorf("kind = %s, want %s (error: %s)", ev.Kind, EventIngested, ev.Error)
		}
		if ev.Measurements != 2 {
			t.Errorf("measurements = %d, want 2", ev.Measurements)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingest event")
	}

	if got := len(j.ListReports()); got != 1 {
		t.Errorf("journal has %d reports, want 1", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}

	// Channel closes once the watcher stops.
	if _, open := <-w.Events(); open {
		t.Error("events channel still open after Start returned")
	}
}
