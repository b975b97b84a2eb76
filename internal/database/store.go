package database

import (
	"errors"
	"time"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// ErrNotFound is returned when a timeframe or saved filter does not exist.
var ErrNotFound = errors.New("not found")

// HistogramBucket is a single histogram bucket with a timestamp label and event count.
type HistogramBucket struct {
	Timestamp string `json:"timestamp"`
	Count     int64  `json:"count"`
}

// SavedFilter is a named console filter (selector plus search text).
type SavedFilter struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
	Search   string `json:"search"`
}

// Store defines the interface for all archive operations.
// Callers depend on the interface, not on a concrete database type.
type Store interface {
	// Events
	UpsertEvents(events []*model.Event, onProgress func(int)) (int, error)
	QueryEvents(where string, args []interface{}, orderBy string, limit, offset int) ([]*model.Event, error)
	CountEvents(where string, args []interface{}) (int64, error)

	// Query execution for pre-built SQL (from query.Query Build).
	ExecuteQuery(sql string, args []interface{}) ([]*model.Event, error)
	ExecuteCountQuery(sql string, args []interface{}) (int64, error)

	// Metadata
	GetDistinctValues(field string) (map[string]int64, error)
	GetMinMaxDate() (string, string, error)
	Histogram(where string, args []interface{}) ([]HistogramBucket, error)

	// Timeframe annotations
	InsertTimeframe(tf *model.Timeframe) error
	ListTimeframes() ([]model.Timeframe, error)
	DeleteTimeframe(id string) error

	// Saved console filters
	GetSavedFilters() ([]SavedFilter, error)
	SaveFilter(f SavedFilter) error
	DeleteFilter(name string) error

	// Schema and maintenance
	RebuildIndexes(fields []string) error
	Migrate() error

	Dialect() Dialect
	SetLocation(loc *time.Location)

	// Lifecycle
	Close() error
	Path() string
}
