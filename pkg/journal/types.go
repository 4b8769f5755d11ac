package journal

import (
	"time"

	"github.com/coolbeans/labtrail/pkg/report"
)

// ReportStatus represents the state of an ingested report.
type ReportStatus string

const (
	// StatusReady indicates the report yielded measurements and is
	// available for series, export and review.
	StatusReady ReportStatus = "ready"

	// StatusEmpty indicates ingestion stored the source but recognized no
	// measurements in it. The source text stays available for inspection.
	StatusEmpty ReportStatus = "empty"
)

// Manifest is the top-level index of all reports in the journal.
type Manifest struct {
	Version   string         `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Reports   []*ReportEntry `json:"reports"`
}

// ReportEntry describes one ingested report. The measurement batch itself
// lives under the report's storage directory; the entry carries only the
// bookkeeping needed for listing and ordering.
type ReportEntry struct {
	ID               string       `json:"id"`
	Source           string       `json:"source,omitempty"`
	Status           ReportStatus `json:"status"`
	CollectedAt      time.Time    `json:"collected_at"`
	CollectedGuessed bool         `json:"collected_guessed,omitempty"`
	IngestedAt       time.Time    `json:"ingested_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	MeasurementCount int          `json:"measurement_count"`
	FlaggedCount     int          `json:"flagged_count"`
	Reviewed         bool         `json:"reviewed,omitempty"`
	StorageHash      string       `json:"storage_hash"`
}

// Entry is a stored measurement joined with the stamps of the report it
// came from. The embedded Measurement is the effective (review-corrected)
// record.
type Entry struct {
	report.Measurement
	ReportID    string    `json:"report_id"`
	Source      string    `json:"source,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// AddOptions configures how a report is added to the journal.
type AddOptions struct {
	// Source labels where the report came from (file path, lab name).
	Source string

	// CollectedAt overrides the collection instant. When zero the journal
	// extracts it from the text, falling back to the ingestion time.
	CollectedAt time.Time

	// Location resolves extracted collection times; nil means time.Local.
	Location *time.Location

	// Force re-ingests a report whose content is already stored.
	Force bool
}

// KeyInfo summarizes one normalized measurement key across the journal.
type KeyInfo struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Unit  string `json:"unit,omitempty"`
	Count int    `json:"count"`
}

// Stats aggregates bookkeeping counts across all reports.
type Stats struct {
	TotalReports      int            `json:"total_reports"`
	TotalMeasurements int            `json:"total_measurements"`
	FlaggedCount      int            `json:"flagged_count"`
	ReviewedReports   int            `json:"reviewed_reports"`
	ByStatus          map[string]int `json:"by_status"`
}
