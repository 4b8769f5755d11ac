// Package journal persists ingested lab reports and their measurement
// batches on disk. A journal directory holds a JSON manifest plus one
// storage directory per report containing the raw source text, the
// original parse, and (when reviewed) a corrections file. The original
// parse is never rewritten; corrections overlay it at read time.
package journal

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coolbeans/labtrail/pkg/dates"
	"github.com/coolbeans/labtrail/pkg/report"
	"github.com/coolbeans/labtrail/pkg/review"
)

const (
	manifestFileName = "journal.json"
	reportsDir       = "reports"
	sourceFileName   = "source.txt"
	recordsFileName  = "records.json"
	patchFileName    = "patch.yaml"
	manifestVersion  = "1.0.0"

	// reportIDLength is how much of the content hash becomes the ID.
	reportIDLength = 12
)

// Journal manages a persistent collection of ingested lab reports. All
// methods are safe for concurrent use.
type Journal struct {
	mu       sync.RWMutex
	path     string
	manifest *Manifest
	parser   *report.Parser
}

// Init creates a new journal at the given path. A nil parser means
// default parsing behavior.
func Init(journalPath string, parser *report.Parser) (*Journal, error) {
	if err := os.MkdirAll(filepath.Join(journalPath, reportsDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &Journal{
		path: journalPath,
		manifest: &Manifest{
			Version:   manifestVersion,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
			Reports:   []*ReportEntry{},
		},
		parser: parserOrDefault(parser),
	}

	if err := j.saveManifest(); err != nil {
		return nil, fmt.Errorf("failed to save manifest: %w", err)
	}
	return j, nil
}

// Open loads an existing journal from disk.
func Open(journalPath string, parser *report.Parser) (*Journal, error) {
	data, err := os.ReadFile(filepath.Join(journalPath, manifestFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read journal manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse journal manifest: %w", err)
	}

	return &Journal{
		path:     journalPath,
		manifest: &manifest,
		parser:   parserOrDefault(parser),
	}, nil
}

// OpenOrInit opens the journal at the given path, creating it first when
// the manifest does not exist yet.
func OpenOrInit(journalPath string, parser *report.Parser) (*Journal, error) {
	if _, err := os.Stat(filepath.Join(journalPath, manifestFileName)); os.IsNotExist(err) {
		return Init(journalPath, parser)
	}
	return Open(journalPath, parser)
}

func parserOrDefault(parser *report.Parser) *report.Parser {
	if parser == nil {
		return report.NewParser()
	}
	return parser
}

// ReportID derives the content-addressed identifier for report text.
// Identical text always maps to the same report.
func ReportID(sourceText []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(sourceText))[:reportIDLength]
}

// AddReport parses report text and stores it. The report ID is derived
// from the content hash, so re-ingesting identical text is idempotent and
// returns the existing entry unless opts.Force is set. Text in which no
// measurements are recognized is still stored, with StatusEmpty; the
// caller decides whether that is a problem.
func (j *Journal) AddReport(sourceText []byte, opts AddOptions) (*ReportEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(sourceText) == 0 {
		return nil, fmt.Errorf("report text is empty")
	}

	storageHash := fmt.Sprintf("%x", sha256.Sum256(sourceText))
	reportID := storageHash[:reportIDLength]

	if existing := j.findReportUnsafe(reportID); existing != nil && !opts.Force {
		return existing, nil
	}

	measurements := j.parser.Parse(string(sourceText))
	collectedAt, guessed := j.resolveCollectedAt(string(sourceText), opts)

	if err := j.writeReportFile(storageHash, sourceFileName, sourceText); err != nil {
		return nil, fmt.Errorf("failed to save source: %w", err)
	}
	recordsData, err := json.MarshalIndent(measurements, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	if err := j.writeReportFile(storageHash, recordsFileName, recordsData); err != nil {
		return nil, fmt.Errorf("failed to save records: %w", err)
	}

	// A force re-ingest invalidates any correction rows, which address
	// positions in the parse being replaced.
	if err := os.Remove(filepath.Join(j.reportDir(storageHash), patchFileName)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to clear stale corrections: %w", err)
	}

	status := StatusReady
	if len(measurements) == 0 {
		status = StatusEmpty
	}

	entry := &ReportEntry{
		ID:               reportID,
		Source:           opts.Source,
		Status:           status,
		CollectedAt:      collectedAt,
		CollectedGuessed: guessed,
		IngestedAt:       time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
		MeasurementCount: len(measurements),
		FlaggedCount:     countFlagged(measurements),
		StorageHash:      storageHash,
	}
	j.upsertEntryUnsafe(entry)

	if err := j.saveManifest(); err != nil {
		return nil, fmt.Errorf("failed to save manifest: %w", err)
	}
	return entry, nil
}

// resolveCollectedAt picks the collection instant for a report: an
// explicit override wins, then a stamp extracted from the text, then the
// current time (marked as guessed).
func (j *Journal) resolveCollectedAt(text string, opts AddOptions) (time.Time, bool) {
	if !opts.CollectedAt.IsZero() {
		return opts.CollectedAt.UTC(), false
	}
	if ct, ok := report.ExtractCollectionTime(text); ok {
		if collected, err := dates.NormalizeCollectionTime(ct, opts.Location); err == nil {
			return collected.UTC(), false
		}
	}
	return time.Now().UTC(), true
}

// RemoveReport deletes a report and its stored files.
func (j *Journal) RemoveReport(reportID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := j.findReportUnsafe(reportID)
	if entry == nil {
		return fmt.Errorf("report not found: %s", reportID)
	}

	if err := os.RemoveAll(j.reportDir(entry.StorageHash)); err != nil {
		return fmt.Errorf("failed to remove report files: %w", err)
	}

	filtered := make([]*ReportEntry, 0, len(j.manifest.Reports))
	for _, e := range j.manifest.Reports {
		if e.ID != reportID {
			filtered = append(filtered, e)
		}
	}
	j.manifest.Reports = filtered
	j.manifest.UpdatedAt = time.Now().UTC()

	if err := j.saveManifest(); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// GetReport returns the entry for a report, or nil when unknown.
func (j *Journal) GetReport(reportID string) *ReportEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.findReportUnsafe(reportID)
}

// ListReports returns all report entries ordered by collection time, then
// by ID for stability.
func (j *Journal) ListReports() []*ReportEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.listReportsUnsafe()
}

// SourceText returns the raw text a report was ingested from.
func (j *Journal) SourceText(reportID string) ([]byte, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entry := j.findReportUnsafe(reportID)
	if entry == nil {
		return nil, fmt.Errorf("report not found: %s", reportID)
	}
	return os.ReadFile(filepath.Join(j.reportDir(entry.StorageHash), sourceFileName))
}

// ParsedRecords returns the original, uncorrected parse of a report.
func (j *Journal) ParsedRecords(reportID string) ([]report.Measurement, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entry := j.findReportUnsafe(reportID)
	if entry == nil {
		return nil, fmt.Errorf("report not found: %s", reportID)
	}
	return j.parsedRecordsUnsafe(entry)
}

// Patches returns the pending corrections for a report; nil when the
// report has never been reviewed.
func (j *Journal) Patches(reportID string) ([]review.Patch, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entry := j.findReportUnsafe(reportID)
	if entry == nil {
		return nil, fmt.Errorf("report not found: %s", reportID)
	}
	return j.patchesUnsafe(entry)
}

// SavePatches validates corrections against the report's original parse
// and stores them. The original parse stays untouched; manifest counts
// are refreshed from the corrected view. An empty patch list clears the
// corrections file.
func (j *Journal) SavePatches(reportID string, patches []review.Patch) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entry := j.findReportUnsafe(reportID)
	if entry == nil {
		return fmt.Errorf("report not found: %s", reportID)
	}

	original, err := j.parsedRecordsUnsafe(entry)
	if err != nil {
		return err
	}

	corrected, err := applyPatches(original, patches, j.parser.FlagInequalities)
	if err != nil {
		return fmt.Errorf("invalid corrections for %s: %w", reportID, err)
	}

	patchPath := filepath.Join(j.reportDir(entry.StorageHash), patchFileName)
	if len(patches) == 0 {
		if err := os.Remove(patchPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear corrections: %w", err)
		}
		entry.Reviewed = false
	} else {
		data, err := review.EncodePatches(patches)
		if err != nil {
			return err
		}
		if err := os.WriteFile(patchPath, data, 0644); err != nil {
			return fmt.Errorf("failed to save corrections: %w", err)
		}
		entry.Reviewed = true
	}

	entry.MeasurementCount = len(corrected)
	entry.FlaggedCount = countFlagged(corrected)
	entry.Status = StatusReady
	if len(corrected) == 0 {
		entry.Status = StatusEmpty
	}
	entry.UpdatedAt = time.Now().UTC()
	j.manifest.UpdatedAt = time.Now().UTC()

	if err := j.saveManifest(); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// Records returns the effective measurement batch of a report: the
// original parse with any stored corrections applied, each row stamped
// with the report's identity and collection time.
func (j *Journal) Records(reportID string) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	entry := j.findReportUnsafe(reportID)
	if entry == nil {
		return nil, fmt.Errorf("report not found: %s", reportID)
	}
	return j.recordsUnsafe(entry)
}

// AllRecords returns the effective records of every report, ordered by
// collection time then by position within the report.
func (j *Journal) AllRecords() ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	all := make([]Entry, 0)
	for _, entry := range j.listReportsUnsafe() {
		records, err := j.recordsUnsafe(entry)
		if err != nil {
			return nil, fmt.Errorf("failed to load records for %s: %w", entry.ID, err)
		}
		all = append(all, records...)
	}
	return all, nil
}

// Series returns the time-ordered entries for one measurement key across
// all reports. The key is normalized first, so a display name works too.
func (j *Journal) Series(key string) ([]Entry, error) {
	normalized := report.NormalizeKey(key)
	if normalized == "" {
		return nil, fmt.Errorf("empty measurement key")
	}

	all, err := j.AllRecords()
	if err != nil {
		return nil, err
	}

	series := make([]Entry, 0)
	for _, e := range all {
		if e.Key == normalized {
			series = append(series, e)
		}
	}
	return series, nil
}

// Keys summarizes every measurement key present in the journal, sorted by
// key. Name and unit come from the most recent occurrence.
func (j *Journal) Keys() ([]KeyInfo, error) {
	all, err := j.AllRecords()
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*KeyInfo)
	for _, e := range all {
		info, ok := byKey[e.Key]
		if !ok {
			info = &KeyInfo{Key: e.Key}
			byKey[e.Key] = info
		}
		info.Count++
		info.Name = e.Name
		if e.Unit != "" {
			info.Unit = e.Unit
		}
	}

	keys := make([]KeyInfo, 0, len(byKey))
	for _, info := range byKey {
		keys = append(keys, *info)
	}
	sort.Slice(keys, func(i, k int) bool { return keys[i].Key < keys[k].Key })
	return keys, nil
}

// Stats aggregates manifest-level counts; it does not touch record files.
func (j *Journal) Stats() *Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stats := &Stats{ByStatus: make(map[string]int)}
	for _, entry := range j.manifest.Reports {
		stats.TotalReports++
		stats.TotalMeasurements += entry.MeasurementCount
		stats.FlaggedCount += entry.FlaggedCount
		stats.ByStatus[string(entry.Status)]++
		if entry.Reviewed {
			stats.ReviewedReports++
		}
	}
	return stats
}

// Path returns the journal's root directory.
func (j *Journal) Path() string {
	return j.path
}

// --- Internal helpers ---

func (j *Journal) findReportUnsafe(reportID string) *ReportEntry {
	for _, entry := range j.manifest.Reports {
		if entry.ID == reportID {
			return entry
		}
	}
	return nil
}

func (j *Journal) upsertEntryUnsafe(entry *ReportEntry) {
	for i, existing := range j.manifest.Reports {
		if existing.ID == entry.ID {
			j.manifest.Reports[i] = entry
			j.manifest.UpdatedAt = time.Now().UTC()
			return
		}
	}
	j.manifest.Reports = append(j.manifest.Reports, entry)
	j.manifest.UpdatedAt = time.Now().UTC()
}

func (j *Journal) listReportsUnsafe() []*ReportEntry {
	result := make([]*ReportEntry, len(j.manifest.Reports))
	copy(result, j.manifest.Reports)
	sort.Slice(result, func(i, k int) bool {
		if result[i].CollectedAt.Equal(result[k].CollectedAt) {
			return result[i].ID < result[k].ID
		}
		return result[i].CollectedAt.Before(result[k].CollectedAt)
	})
	return result
}

func (j *Journal) parsedRecordsUnsafe(entry *ReportEntry) ([]report.Measurement, error) {
	data, err := os.ReadFile(filepath.Join(j.reportDir(entry.StorageHash), recordsFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read records for %s: %w", entry.ID, err)
	}
	var records []report.Measurement
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse records for %s: %w", entry.ID, err)
	}
	return records, nil
}

func (j *Journal) patchesUnsafe(entry *ReportEntry) ([]review.Patch, error) {
	data, err := os.ReadFile(filepath.Join(j.reportDir(entry.StorageHash), patchFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corrections for %s: %w", entry.ID, err)
	}
	return review.ParsePatches(data)
}

func (j *Journal) recordsUnsafe(entry *ReportEntry) ([]Entry, error) {
	original, err := j.parsedRecordsUnsafe(entry)
	if err != nil {
		return nil, err
	}
	patches, err := j.patchesUnsafe(entry)
	if err != nil {
		return nil, err
	}

	effective := original
	if len(patches) > 0 {
		effective, err = applyPatches(original, patches, j.parser.FlagInequalities)
		if err != nil {
			return nil, fmt.Errorf("stored corrections for %s no longer apply: %w", entry.ID, err)
		}
	}

	entries := make([]Entry, len(effective))
	for i, m := range effective {
		entries[i] = Entry{
			Measurement: m,
			ReportID:    entry.ID,
			Source:      entry.Source,
			CollectedAt: entry.CollectedAt,
		}
	}
	return entries, nil
}

func applyPatches(original []report.Measurement, patches []review.Patch, flagInequalities bool) ([]report.Measurement, error) {
	draft := review.NewDraft(original)
	draft.FlagInequalities = flagInequalities
	draft.Add(patches...)
	return draft.Apply()
}

func countFlagged(measurements []report.Measurement) int {
	flagged := 0
	for _, m := range measurements {
		if m.Flag != report.FlagNone {
			flagged++
		}
	}
	return flagged
}

func (j *Journal) saveManifest() error {
	data, err := json.MarshalIndent(j.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(j.path, manifestFileName), data, 0644)
}

func (j *Journal) reportDir(storageHash string) string {
	return filepath.Join(j.path, reportsDir, storageHash)
}

func (j *Journal) writeReportFile(storageHash, fileName string, data []byte) error {
	dir := j.reportDir(storageHash)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fileName), data, 0644)
}
