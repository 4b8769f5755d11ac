// Package watch monitors an inbox directory and ingests lab report files
// as they arrive. Files are considered settled once no write has touched
// them for a debounce interval, which matters for PDFs that download in
// chunks.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/coolbeans/labtrail/pkg/journal"
	"github.com/coolbeans/labtrail/pkg/textextract"
)

// DefaultDebounce is how long a file must sit unchanged before ingestion
// when the config does not say otherwise.
const DefaultDebounce = 500 * time.Millisecond

// Config controls inbox monitoring.
type Config struct {
	// Inbox is the directory watched for new report files.
	Inbox string `yaml:"inbox" json:"inbox"`

	// Debounce is how long a file must sit unchanged before it is
	// ingested. Zero means DefaultDebounce.
	Debounce time.Duration `yaml:"debounce,omitempty" json:"debounce,omitempty"`

	// Source labels ingested reports; empty means the file name alone.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// Location resolves collection times extracted from report text.
	Location *time.Location `yaml:"-" json:"-"`
}

// EventKind classifies the outcome of processing one inbox file.
type EventKind string

const (
	// EventIngested indicates the file was parsed and stored.
	EventIngested EventKind = "ingested"

	// EventDuplicate indicates the file's content was already in the
	// journal, so nothing was stored.
	EventDuplicate EventKind = "duplicate"

	// EventFailed indicates extraction or storage failed.
	EventFailed EventKind = "failed"
)

// Event reports the outcome of one inbox file.
type Event struct {
	Kind         EventKind `json:"kind"`
	Path         string    `json:"path,omitempty"`
	ReportID     string    `json:"report_id,omitempty"`
	Measurements int       `json:"measurements,omitempty"`
	Flagged      int       `json:"flagged,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Watcher monitors an inbox directory using OS-level notifications and
// feeds settled files through extraction and ingestion.
type Watcher struct {
	journal *journal.Journal
	config  Config
	fsw     *fsnotify.Watcher
	events  chan Event
	settled chan string

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher over the configured inbox. The directory must
// already exist.
func New(j *journal.Journal, config Config) (*Watcher, error) {
	if config.Inbox == "" {
		return nil, fmt.Errorf("inbox directory not configured")
	}
	info, err := os.Stat(config.Inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to access inbox: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox %s is not a directory", config.Inbox)
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(config.Inbox); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", config.Inbox, err)
	}

	return &Watcher{
		journal: j,
		config:  config,
		fsw:     fsw,
		events:  make(chan Event, 64),
		settled: make(chan string, 64),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Events returns the channel of ingestion outcomes. It is closed when
// Start returns.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Scan sweeps the inbox once, ingesting every eligible file already
// present, and returns the outcomes in name order. Useful at startup for
// files that arrived while nothing was watching.
func (w *Watcher) Scan() ([]Event, error) {
	entries, err := os.ReadDir(w.config.Inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !eligible(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	results := make([]Event, 0, len(names))
	for _, name := range names {
		results = append(results, w.ingest(filepath.Join(w.config.Inbox, name)))
	}
	return results, nil
}

// Start blocks, processing inbox notifications until the context is
// cancelled. The events channel is closed when Start returns.
func (w *Watcher) Start(ctx context.Context) {
	defer close(w.events)
	defer w.cancelPending()
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case path := <-w.settled:
			w.emit(ctx, w.ingest(path))

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !eligible(ev.Name) {
				continue
			}
			switch {
			case ev.Op&fsnotify.Create != 0, ev.Op&fsnotify.Write != 0:
				w.schedule(ev.Name)
			case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
				w.cancel(ev.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.emit(ctx, Event{Kind: EventFailed, Error: err.Error()})
		}
	}
}

// schedule arms or rearms the settle timer for a path. Each write resets
// the countdown, so a file busy being written never fires early.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.config.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.settled <- path:
		default:
			// Settle queue full; the file will be picked up by the
			// next Scan.
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) emit(ctx context.Context, ev Event) {
	select {
	case w.events <- ev:
	case <-ctx.Done():
	}
}

// ingest runs one file through extraction, cleanup and journal storage.
func (w *Watcher) ingest(path string) Event {
	text, err := textextract.FromFile(path)
	if err != nil {
		return Event{Kind: EventFailed, Path: path, Error: err.Error()}
	}
	cleaned := textextract.CleanText(text)
	if strings.TrimSpace(cleaned) == "" {
		return Event{Kind: EventFailed, Path: path, Error: "no text extracted"}
	}

	sourceText := []byte(cleaned)
	if existing := w.journal.GetReport(journal.ReportID(sourceText)); existing != nil {
		return Event{
			Kind:         EventDuplicate,
			Path:         path,
			ReportID:     existing.ID,
			Measurements: existing.MeasurementCount,
			Flagged:      existing.FlaggedCount,
		}
	}

	entry, err := w.journal.AddReport(sourceText, journal.AddOptions{
		Source:   w.sourceLabel(path),
		Location: w.config.Location,
	})
	if err != nil {
		return Event{Kind: EventFailed, Path: path, Error: err.Error()}
	}
	return Event{
		Kind:         EventIngested,
		Path:         path,
		ReportID:     entry.ID,
		Measurements: entry.MeasurementCount,
		Flagged:      entry.FlaggedCount,
	}
}

func (w *Watcher) sourceLabel(path string) string {
	name := filepath.Base(path)
	if w.config.Source == "" {
		return name
	}
	return w.config.Source + "/" + name
}

// eligible reports whether a file name looks like a report the watcher
// should ingest.
func eligible(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := filepath.Ext(base)
	return strings.EqualFold(ext, ".pdf") || strings.EqualFold(ext, ".txt")
}
