package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cdtdelta/spyconsole/internal/model"
	"github.com/cdtdelta/spyconsole/internal/query"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func createTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := CreateSQLite(tempDBPath(t), nil)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	db.SetLocation(time.UTC)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEvent(id, ts, desc string, typ model.EventType) *model.Event {
	return &model.Event{ID: model.ID(id), Timestamp: ts, Description: desc, Type: typ, Severity: "info"}
}

func sampleEvents() []*model.Event {
	return []*model.Event{
		sampleEvent("1", "2025-03-01 14:00:00", "Ultrasonic: SAFE distance > 100cm.", model.Auto),
		sampleEvent("2", "2025-03-01 14:05:00", "Hostile detected near gate", model.Auto),
		sampleEvent("3", "2025-03-01 14:10:00", "guard left post", model.Manual),
		sampleEvent("4", "garbage", "System: battery low", model.Auto),
	}
}

func TestCreateAndOpen(t *testing.T) {
	path := tempDBPath(t)

	db, err := CreateSQLite(path, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	db2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db2.Close()

	if db2.Path() != path {
		t.Errorf("expected path %s, got %s", path, db2.Path())
	}
}

func TestOpenStoreUnsupportedDriver(t *testing.T) {
	if _, err := OpenStore("oracle", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
	if _, err := CreateStore("oracle", "x", nil); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestCreateStoreSQLite(t *testing.T) {
	s, err := CreateStore("sqlite", tempDBPath(t), []string{"type"})
	if err != nil {
		t.Fatalf("CreateStore failed: %v", err)
	}
	defer s.Close()
	if _, ok := s.Dialect().(*SQLiteDialect); !ok {
		t.Errorf("expected SQLite dialect, got %T", s.Dialect())
	}
}

func TestUpsertAndQueryEvents(t *testing.T) {
	db := createTestDB(t)

	n, err := db.UpsertEvents(sampleEvents(), nil)
	if err != nil {
		t.Fatalf("UpsertEvents failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 written, got %d", n)
	}

	events, err := db.QueryEvents("", nil, "id", 0, 0)
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	got := events[2]
	if got.ID != "3" || got.Type != model.Manual || got.Description != "guard left post" {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.Timestamp != "2025-03-01 14:10:00" {
		t.Errorf("expected original timestamp to round-trip, got %s", got.Timestamp)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	db := createTestDB(t)

	if _, err := db.UpsertEvents(sampleEvents(), nil); err != nil {
		t.Fatal(err)
	}
	changed := sampleEvents()
	changed[0].Description = "Ultrasonic: CRITICAL distance < 30cm."
	if _, err := db.UpsertEvents(changed, nil); err != nil {
		t.Fatal(err)
	}

	count, err := db.CountEvents("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("expected 4 rows after re-mirroring, got %d", count)
	}

	events, _ := db.QueryEvents("id = ?", []interface{}{"1"}, "", 0, 0)
	if len(events) != 1 || !strings.Contains(events[0].Description, "CRITICAL") {
		t.Errorf("expected refreshed description, got %+v", events)
	}
}

func TestUpsertGeneratesMissingIDs(t *testing.T) {
	db := createTestDB(t)

	if _, err := db.UpsertEvents([]*model.Event{
		{Timestamp: "2025-03-01 14:00:00", Description: "a"},
		{Timestamp: "2025-03-01 14:00:00", Description: "b"},
		nil,
	}, nil); err != nil {
		t.Fatal(err)
	}

	events, err := db.QueryEvents("", nil, "", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID == "" || events[0].ID == events[1].ID {
		t.Errorf("expected distinct generated ids, got %q and %q", events[0].ID, events[1].ID)
	}
	if events[0].Type != model.Auto {
		t.Errorf("expected missing type to default to auto, got %q", events[0].Type)
	}
}

func TestUpsertProgress(t *testing.T) {
	db := createTestDB(t)

	events := make([]*model.Event, 2500)
	for i := range events {
		events[i] = sampleEvent(fmt.Sprint(i), "2025-03-01 14:00:00", "tick", model.Auto)
	}

	var calls []int
	if _, err := db.UpsertEvents(events, func(n int) { calls = append(calls, n) }); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 || calls[0] != 1000 || calls[1] != 2000 {
		t.Errorf("expected progress at 1000 and 2000, got %v", calls)
	}
}

func TestQueryWithBuiltQuery(t *testing.T) {
	db := createTestDB(t)
	db.UpsertEvents(sampleEvents(), nil)

	q := query.New(0)
	q.SetDialect(db.Dialect())
	q.AddPredicate(query.Simple("type", query.Equal, "auto"))
	q.AddPredicate(query.Simple("description", query.Like, "HOSTILE"))
	q.OrderBy("occurred_at", true)

	sqlStr, args := q.Build()
	events, err := db.ExecuteQuery(sqlStr, args)
	if err != nil {
		t.Fatalf("ExecuteQuery failed: %v", err)
	}
	if len(events) != 1 || events[0].ID != "2" {
		t.Errorf("expected event 2, got %+v", events)
	}

	countSQL, countArgs := q.BuildCount()
	count, err := db.ExecuteCountQuery(countSQL, countArgs)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestQueryDateRange(t *testing.T) {
	db := createTestDB(t)
	db.UpsertEvents(sampleEvents(), nil)

	from := FormatOccurredAt(time.Date(2025, 3, 1, 14, 4, 0, 0, time.UTC))
	to := FormatOccurredAt(time.Date(2025, 3, 1, 14, 11, 0, 0, time.UTC))
	where, args := query.DateRange(from, to).WhereClause()

	events, err := db.QueryEvents(where, args, "occurred_at DESC", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events in range, got %d", len(events))
	}
	if events[0].ID != "3" || events[1].ID != "2" {
		t.Errorf("expected newest first, got %s then %s", events[0].ID, events[1].ID)
	}
}

func TestQueryEventsInvalidOrder(t *testing.T) {
	db := createTestDB(t)
	if _, err := db.QueryEvents("", nil, "rowid; DROP TABLE events", 0, 0); err == nil {
		t.Error("expected error for invalid order by")
	}
}

func TestQueryPagination(t *testing.T) {
	db := createTestDB(t)
	db.UpsertEvents(sampleEvents(), nil)

	page1, _ := db.QueryEvents("", nil, "id", 2, 0)
	page2, _ := db.QueryEvents("", nil, "id", 2, 2)
	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("expected 2 per page, got %d and %d", len(page1), len(page2))
	}
	if page1[0].ID != "1" || page2[0].ID != "3" {
		t.Errorf("unexpected paging: %s, %s", page1[0].ID, page2[0].ID)
	}
}

func TestGetMinMaxDate(t *testing.T) {
	db := createTestDB(t)

	lo, hi, err := db.GetMinMaxDate()
	if err != nil {
		t.Fatal(err)
	}
	if lo != "" || hi != "" {
		t.Errorf("expected empty range for empty archive, got %q %q", lo, hi)
	}

	db.UpsertEvents(sampleEvents(), nil)
	lo, hi, err = db.GetMinMaxDate()
	if err != nil {
		t.Fatal(err)
	}
	if lo != "2025-03-01T14:00:00.000Z" {
		t.Errorf("expected min 2025-03-01T14:00:00.000Z, got %s", lo)
	}
	if hi != "2025-03-01T14:10:00.000Z" {
		t.Errorf("expected max 2025-03-01T14:10:00.000Z, got %s", hi)
	}
}

func TestGetDistinctValues(t *testing.T) {
	db := createTestDB(t)
	db.UpsertEvents(sampleEvents(), nil)

	vals, err := db.GetDistinctValues("type")
	if err != nil {
		t.Fatal(err)
	}
	if vals["auto"] != 3 || vals["manual"] != 1 {
		t.Errorf("unexpected distinct values: %v", vals)
	}

	if _, err := db.GetDistinctValues("DROP TABLE"); err == nil {
		t.Error("expected error for invalid field name")
	}
}

func TestHistogram(t *testing.T) {
	db := createTestDB(t)

	buckets, err := db.Histogram("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 0 {
		t.Errorf("expected no buckets for empty archive, got %v", buckets)
	}

	db.UpsertEvents(sampleEvents(), nil)
	buckets, err = db.Histogram("", nil)
	if err != nil {
		t.Fatal(err)
	}
	// All datable events fall within one hour, so buckets are per minute.
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %v", buckets)
	}
	if buckets[0].Timestamp != "2025-03-01 14:00:00" || buckets[0].Count != 1 {
		t.Errorf("unexpected first bucket: %+v", buckets[0])
	}

	where, args := query.Simple("type", query.Equal, "manual").WhereClause()
	buckets, err = db.Histogram(where, args)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 1 || buckets[0].Count != 1 {
		t.Errorf("expected one filtered bucket, got %v", buckets)
	}
}

func TestBucketFormat(t *testing.T) {
	tests := []struct {
		lo, hi string
		want   string
	}{
		{"2025-03-01T14:00:00.000Z", "2025-03-01T14:59:00.000Z", "%Y-%m-%d %H:%M:00"},
		{"2025-03-01T10:00:00.000Z", "2025-03-01T14:00:00.000Z", "%Y-%m-%d %H:00:00"},
		{"2025-03-01T10:00:00.000Z", "2025-07-01T14:00:00.000Z", "%Y-%m-%d"},
		{"2024-12-31T10:00:00.000Z", "2025-01-01T14:00:00.000Z", "%Y-%m"},
		{"short", "short", "%Y-%m-%d %H:00:00"},
	}
	for _, tt := range tests {
		if got := bucketFormat(tt.lo, tt.hi); got != tt.want {
			t.Errorf("bucketFormat(%s, %s) = %s, want %s", tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestTimeframes(t *testing.T) {
	db := createTestDB(t)

	tf := &model.Timeframe{Start: 120, End: 30, Note: "guard rotation"}
	if err := db.InsertTimeframe(tf); err != nil {
		t.Fatalf("InsertTimeframe failed: %v", err)
	}
	if tf.ID == "" {
		t.Error("expected generated id")
	}
	if tf.CreatedAt.IsZero() {
		t.Error("expected creation time to be set")
	}
	if tf.Start != 30 || tf.End != 120 {
		t.Errorf("expected bounds to be ordered, got %v-%v", tf.Start, tf.End)
	}

	db.InsertTimeframe(&model.Timeframe{Start: 5, End: 10})

	frames, err := db.ListTimeframes()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 timeframes, got %d", len(frames))
	}
	if frames[0].Start != 5 || frames[1].Note != "guard rotation" {
		t.Errorf("expected timeframes ordered by start, got %+v", frames)
	}
	if !frames[1].CreatedAt.Equal(tf.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", tf.CreatedAt, frames[1].CreatedAt)
	}

	if err := db.DeleteTimeframe(tf.ID); err != nil {
		t.Fatalf("DeleteTimeframe failed: %v", err)
	}
	if err := db.DeleteTimeframe(tf.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSavedFilters(t *testing.T) {
	db := createTestDB(t)

	if err := db.SaveFilter(SavedFilter{Name: "threats", Selector: "critical", Search: "gate"}); err != nil {
		t.Fatalf("SaveFilter failed: %v", err)
	}
	if err := db.SaveFilter(SavedFilter{Name: "threats", Selector: "warning"}); err != nil {
		t.Fatalf("SaveFilter replace failed: %v", err)
	}
	if err := db.SaveFilter(SavedFilter{Name: " "}); err == nil {
		t.Error("expected error for empty name")
	}

	filters, err := db.GetSavedFilters()
	if err != nil {
		t.Fatal(err)
	}
	if len(filters) != 1 || filters[0].Selector != "warning" || filters[0].Search != "" {
		t.Errorf("expected replaced filter, got %+v", filters)
	}

	if err := db.DeleteFilter("threats"); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteFilter("threats"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRebuildIndexes(t *testing.T) {
	db := createTestDB(t)

	if err := db.RebuildIndexes([]string{"description", "severity"}); err != nil {
		t.Fatalf("RebuildIndexes failed: %v", err)
	}

	var count int
	err := db.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name IN ('description_idx', 'severity_idx', 'type_idx')",
	).Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 rebuilt indexes, got %d", count)
	}

	if err := db.RebuildIndexes([]string{"bogus"}); err == nil {
		t.Error("expected error for invalid index field")
	}
}

func TestMigrateAddsSeverity(t *testing.T) {
	path := tempDBPath(t)
	db, err := CreateSQLite(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Simulate an archive written before severity was stored.
	if _, err := db.Conn().Exec("DROP TABLE events"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Conn().Exec("CREATE TABLE events (id TEXT PRIMARY KEY, timestamp TEXT, occurred_at TEXT, description TEXT, type TEXT)"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db2.Close()

	if _, err := db2.UpsertEvents(sampleEvents()[:1], nil); err != nil {
		t.Fatalf("expected upsert to work after migration, got %v", err)
	}
}

func TestPostgresDialect(t *testing.T) {
	d := &PostgresDialect{}

	if d.Placeholder(3) != "$3" {
		t.Errorf("expected $3, got %s", d.Placeholder(3))
	}
	if d.QuoteColumn("timestamp") != `"timestamp"` || d.QuoteColumn("description") != "description" {
		t.Error("unexpected column quoting")
	}
	if got := d.DateFormatSQL("occurred_at", "%Y-%m-%d"); got != "to_char(occurred_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')" {
		t.Errorf("unexpected date format sql: %s", got)
	}
	if got := d.DateBetweenSQL(1, 2); got != "(occurred_at BETWEEN $1::timestamptz AND $2::timestamptz)" {
		t.Errorf("unexpected date between sql: %s", got)
	}

	q := query.New(0)
	q.SetDialect(d)
	q.AddPredicate(query.Simple("type", query.Equal, "auto"))
	q.AddPredicate(query.Simple("severity", query.Equal, "info"))
	where, _ := q.Where()
	if where != `(("type" = $1) AND (severity = $2))` {
		t.Errorf("unexpected postgres where: %s", where)
	}
}

func TestStripNUL(t *testing.T) {
	if stripNUL("a\x00b") != "ab" {
		t.Error("expected NUL bytes to be removed")
	}
}
