package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType says who produced an event.
type EventType string

const (
	// Auto events are generated by the robot (sensor thresholds, system notices).
	Auto EventType = "auto"
	// Manual events are operator annotations.
	Manual EventType = "manual"
)

// Fields is the ordered list of column names in the events table.
// Used for query building and field validation.
var Fields = []string{
	"id", "timestamp", "occurred_at", "description", "type", "severity",
}

// Event is a single entry of the robot's mission log.
// The list is owned by the robot backend; the console only reads it.
type Event struct {
	ID          ID        `json:"id" db:"id"`
	Timestamp   string    `json:"timestamp" db:"timestamp"`
	Description string    `json:"description" db:"description"`
	Type        EventType `json:"type" db:"type"`
	// Severity is whatever the backend attached. The console recomputes its
	// own tier from the description and ignores this value.
	Severity string `json:"severity,omitempty" db:"severity"`
}

// IsManual reports whether the event is an operator annotation.
func (e *Event) IsManual() bool {
	return e.Type == Manual
}

// Time parses the event timestamp in the given location.
// See ParseTimestamp for the accepted layouts.
func (e *Event) Time(loc *time.Location) (time.Time, bool) {
	return ParseTimestamp(e.Timestamp, loc)
}

// ID is an opaque event identifier. The robot writes numeric ids into
// spy_logs.json and string ids into events.json, so both decode here.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("event id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// timestampLayouts are tried in order. The robot server writes
// "2006-01-02 15:04:05" in its local zone; the dashboard writes RFC 3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

// minEpochDigits keeps short digit runs such as "2024" from being read as
// epoch milliseconds; they parse as reduced-precision dates instead.
const minEpochDigits = 10

// ParseTimestamp parses an ISO-8601 style timestamp. Values without a zone
// are interpreted in loc (time.Local when loc is nil). Bare epoch
// milliseconds are accepted too. The bool is false for unparseable input.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if len(s) >= minEpochDigits {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).In(loc), true
		}
	}
	return time.Time{}, false
}

// Mode is the dashboard mode. Movement controls are disabled in review mode.
type Mode string

const (
	Live   Mode = "live"
	Review Mode = "review"
)

// MovementData is the telemetry shown next to the movement controls.
type MovementData struct {
	Speed     int    `json:"speed"`
	Direction string `json:"direction"`
	Tilt      int    `json:"tilt"`
}

// Timeframe is a committed timeline selection annotated by the operator.
// Start and End are seconds within the review window.
type Timeframe struct {
	ID        string    `json:"id" db:"id"`
	Start     float64   `json:"start" db:"start_sec"`
	End       float64   `json:"end" db:"end_sec"`
	Note      string    `json:"note" db:"note"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
