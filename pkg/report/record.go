package report

// Flag marks a measurement value that falls outside its reference range.
type Flag string

const (
	// FlagNone indicates the value is within range or no range is known.
	FlagNone Flag = ""

	// FlagLow indicates the value is below the low reference bound.
	FlagLow Flag = "L"

	// FlagHigh indicates the value is above the high reference bound.
	FlagHigh Flag = "H"
)

// DefaultPanel is assigned to measurements that appear before any
// recognizable section header in the report text.
const DefaultPanel = "General"

// Measurement is a single test result recovered from one line of report
// text. Records are immutable value objects: the parser never revisits a
// record after emitting it, and downstream layers that need corrections
// work on their own copies.
type Measurement struct {
	// Key is the normalized identifier used to group the same test across
	// reports (e.g. "haemoglobin"). Derived deterministically from Name.
	Key string `json:"key"`

	// Name is the trimmed test name exactly as printed on the line.
	Name string `json:"name"`

	// Value is the first numeric token following the name.
	Value float64 `json:"value"`

	// Unit holds the tokens between the value and the reference segment,
	// space-joined. Empty when the line carried no unit.
	Unit string `json:"unit,omitempty"`

	// RefLow and RefHigh are set together when the reference segment was a
	// numeric range. Nil otherwise.
	RefLow  *float64 `json:"ref_low,omitempty"`
	RefHigh *float64 `json:"ref_high,omitempty"`

	// RefText preserves an inequality or unparseable reference segment
	// verbatim. Empty whenever RefLow/RefHigh are populated.
	RefText string `json:"ref_text,omitempty"`

	// Flag is derived from Value against RefLow/RefHigh.
	Flag Flag `json:"flag,omitempty"`

	// Panel is the most recent preceding section header, or DefaultPanel.
	Panel string `json:"panel"`

	// RawLine is the whitespace-normalized source line, kept for audit.
	RawLine string `json:"raw_line"`
}

// HasRange reports whether the measurement carries numeric reference bounds.
func (m *Measurement) HasRange() bool {
	return m.RefLow != nil && m.RefHigh != nil
}

// DefaultTimePart is used when a collection-time pattern matched a date
// but supplied no time of day.
const DefaultTimePart = "00:00"

// CollectionTime holds the raw date and time substrings located in the
// report text. Normalization into an absolute instant happens outside the
// parsing core (see pkg/dates).
type CollectionTime struct {
	DatePart string `json:"date_part"`
	TimePart string `json:"time_part"`
}
