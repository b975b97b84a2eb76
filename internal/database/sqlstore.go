package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cdtdelta/spyconsole/internal/model"
)

// DefaultIndexFields are the event columns indexed when creating a new archive.
var DefaultIndexFields = []string{"occurred_at", "type"}

// OccurredAtLayout is the fixed-width UTC layout of the occurred_at column.
// Date range arguments should be formatted with FormatOccurredAt.
const OccurredAtLayout = "2006-01-02T15:04:05.000Z"

// FormatOccurredAt formats t for comparison against occurred_at.
func FormatOccurredAt(t time.Time) string {
	return t.UTC().Format(OccurredAtLayout)
}

// sqlStore holds the database/sql plumbing shared by every backend.
// Backend-specific SQL comes from the dialect.
type sqlStore struct {
	path    string
	conn    *sql.DB
	dialect Dialect
	loc     *time.Location
}

func newSQLStore(path string, conn *sql.DB, d Dialect) *sqlStore {
	return &sqlStore{path: path, conn: conn, dialect: d, loc: time.Local}
}

// Close closes the database connection.
func (db *sqlStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the file path or connection string of the archive.
func (db *sqlStore) Path() string {
	return db.path
}

// Conn returns the underlying *sql.DB connection for advanced query usage.
func (db *sqlStore) Conn() *sql.DB {
	return db.conn
}

// Dialect returns the SQL dialect, usable as a query.QueryDialect.
func (db *sqlStore) Dialect() Dialect {
	return db.dialect
}

// SetLocation sets the zone used for robot timestamps that carry none.
func (db *sqlStore) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	db.loc = loc
}

func (db *sqlStore) ph(n int) string {
	return db.dialect.Placeholder(n)
}

// createSchema builds all tables and indexes for a new archive.
func (db *sqlStore) createSchema(indexFields []string) error {
	if indexFields == nil {
		indexFields = DefaultIndexFields
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.Exec(db.dialect.CreateEventsTableSQL()); err != nil {
		return fmt.Errorf("creating events table: %w", err)
	}
	if _, err = tx.Exec(db.dialect.CreateTimeframesTableSQL()); err != nil {
		return fmt.Errorf("creating timeframes table: %w", err)
	}
	if _, err = tx.Exec(db.dialect.CreateSavedFiltersTableSQL()); err != nil {
		return fmt.Errorf("creating saved_filters table: %w", err)
	}

	for _, field := range indexFields {
		if !isValidField(field) {
			return fmt.Errorf("invalid index field: %s", field)
		}
		if _, err = tx.Exec(db.dialect.CreateIndexSQL(field+"_idx", "events", field)); err != nil {
			return fmt.Errorf("creating index on %s: %w", field, err)
		}
	}

	return tx.Commit()
}

// migrate applies schema migrations for backward compatibility.
func (db *sqlStore) migrate() error {
	var count int
	err := db.conn.QueryRow(
		db.dialect.SchemaCheckColumnSQL("events", "severity"),
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking events schema: %w", err)
	}
	if count == 0 {
		if _, err := db.conn.Exec(db.dialect.AddSeverityColumnSQL()); err != nil {
			return fmt.Errorf("adding severity column: %w", err)
		}
	}
	return nil
}

// Migrate applies any pending schema migrations.
func (db *sqlStore) Migrate() error {
	return db.migrate()
}

// UpsertEvents writes a batch of events inside a single transaction.
// Rows with an existing id are refreshed, so mirroring the same list twice
// leaves the archive unchanged. Events without an id get a generated one.
// The onProgress callback is called every 1,000 events with the current count.
func (db *sqlStore) UpsertEvents(events []*model.Event, onProgress func(count int)) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(db.dialect.UpsertEventSQL())
	if err != nil {
		return 0, fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, e := range events {
		if e == nil {
			continue
		}
		id := string(e.ID)
		if id == "" {
			id = uuid.NewString()
		}
		typ := e.Type
		if typ == "" {
			typ = model.Auto
		}
		_, err := stmt.Exec(
			id, stripNUL(e.Timestamp), db.occurredAt(e), stripNUL(e.Description),
			string(typ), stripNUL(e.Severity),
		)
		if err != nil {
			return written, fmt.Errorf("upserting event %s: %w", id, err)
		}
		written++
		if onProgress != nil && written%1000 == 0 {
			onProgress(written)
		}
	}

	if err := tx.Commit(); err != nil {
		return written, fmt.Errorf("committing transaction: %w", err)
	}
	return written, nil
}

// occurredAt normalises the robot timestamp for indexing. Unparseable
// timestamps are stored as NULL and never match a date range.
func (db *sqlStore) occurredAt(e *model.Event) sql.NullString {
	t, ok := e.Time(db.loc)
	if !ok {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatOccurredAt(t), Valid: true}
}

func (db *sqlStore) selectColumns() string {
	cols := make([]string, len(model.Fields))
	for i, f := range model.Fields {
		cols[i] = db.dialect.QuoteColumn(f)
	}
	return strings.Join(cols, ", ")
}

// QueryEvents runs a filtered SELECT over the events table.
// whereClause is a fragment without the WHERE keyword; orderBy must be a
// column name, optionally followed by DESC.
func (db *sqlStore) QueryEvents(whereClause string, args []interface{}, orderBy string, limit, offset int) ([]*model.Event, error) {
	q := "SELECT " + db.selectColumns() + " FROM events"
	if whereClause != "" {
		q += " WHERE " + whereClause
	}
	if orderBy != "" {
		col, desc, _ := strings.Cut(orderBy, " ")
		if !isValidField(col) {
			return nil, fmt.Errorf("invalid order by field: %s", col)
		}
		q += " ORDER BY " + db.dialect.QuoteColumn(col)
		if strings.EqualFold(strings.TrimSpace(desc), "desc") {
			q += " DESC"
		}
	}
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
		if offset > 0 {
			q += fmt.Sprintf(" OFFSET %d", offset)
		}
	}

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// CountEvents returns the number of events, optionally filtered.
func (db *sqlStore) CountEvents(whereClause string, args []interface{}) (int64, error) {
	q := "SELECT COUNT(*) FROM events"
	if whereClause != "" {
		q += " WHERE " + whereClause
	}
	var count int64
	err := db.conn.QueryRow(q, args...).Scan(&count)
	return count, err
}

// ExecuteQuery runs a pre-built SELECT whose column list is model.Fields.
func (db *sqlStore) ExecuteQuery(sqlStr string, args []interface{}) ([]*model.Event, error) {
	rows, err := db.conn.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ExecuteCountQuery runs a pre-built COUNT query and returns the result.
func (db *sqlStore) ExecuteCountQuery(sqlStr string, args []interface{}) (int64, error) {
	var count int64
	if err := db.conn.QueryRow(sqlStr, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("executing count query: %w", err)
	}
	return count, nil
}

// GetMinMaxDate returns the earliest and latest occurred_at values.
// Both are empty when the archive has no datable events.
func (db *sqlStore) GetMinMaxDate() (minDate, maxDate string, err error) {
	var lo, hi sql.NullString
	err = db.conn.QueryRow(
		"SELECT MIN(occurred_at), MAX(occurred_at) FROM events WHERE occurred_at IS NOT NULL",
	).Scan(&lo, &hi)
	return lo.String, hi.String, err
}

// GetDistinctValues returns distinct values and their counts for a column.
func (db *sqlStore) GetDistinctValues(fieldName string) (map[string]int64, error) {
	if !isValidField(fieldName) {
		return nil, fmt.Errorf("invalid field name: %s", fieldName)
	}
	col := db.dialect.QuoteColumn(fieldName)
	rows, err := db.conn.Query(fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM events WHERE %s IS NOT NULL GROUP BY %s", col, col, col))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var value string
		var count int64
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		if value != "" {
			result[value] = count
		}
	}
	return result, rows.Err()
}

// Histogram returns event counts bucketed by time. whereClause is a fragment
// without the WHERE keyword. The bucket size is chosen from the span of the
// filtered events: minutes within one hour, hours within one day, days within
// one year, months beyond that.
func (db *sqlStore) Histogram(whereClause string, whereArgs []interface{}) ([]HistogramBucket, error) {
	filter := " WHERE occurred_at IS NOT NULL"
	if whereClause != "" {
		filter += " AND " + whereClause
	}

	var lo, hi sql.NullString
	if err := db.conn.QueryRow("SELECT MIN(occurred_at), MAX(occurred_at) FROM events"+filter, whereArgs...).Scan(&lo, &hi); err != nil {
		return nil, fmt.Errorf("getting date range: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return []HistogramBucket{}, nil
	}

	bucketExpr := db.dialect.DateFormatSQL("occurred_at", bucketFormat(lo.String, hi.String))
	histSQL := "SELECT " + bucketExpr + " AS bucket, COUNT(*) AS cnt FROM events" + filter +
		" GROUP BY bucket ORDER BY bucket"

	rows, err := db.conn.Query(histSQL, whereArgs...)
	if err != nil {
		return nil, fmt.Errorf("histogram query: %w", err)
	}
	defer rows.Close()

	buckets := []HistogramBucket{}
	for rows.Next() {
		var b HistogramBucket
		if err := rows.Scan(&b.Timestamp, &b.Count); err != nil {
			return nil, fmt.Errorf("scanning bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func bucketFormat(minDate, maxDate string) string {
	if len(minDate) < 13 || len(maxDate) < 13 {
		return "%Y-%m-%d %H:00:00"
	}
	switch {
	case minDate[:13] == maxDate[:13]:
		return "%Y-%m-%d %H:%M:00"
	case minDate[:10] == maxDate[:10]:
		return "%Y-%m-%d %H:00:00"
	case minDate[:4] == maxDate[:4]:
		return "%Y-%m-%d"
	default:
		return "%Y-%m"
	}
}

// InsertTimeframe stores a committed timeline selection. A missing id and
// creation time are filled in on tf.
func (db *sqlStore) InsertTimeframe(tf *model.Timeframe) error {
	if tf.ID == "" {
		tf.ID = uuid.NewString()
	}
	if tf.CreatedAt.IsZero() {
		tf.CreatedAt = time.Now().UTC()
	}
	if tf.Start > tf.End {
		tf.Start, tf.End = tf.End, tf.Start
	}
	_, err := db.conn.Exec(
		fmt.Sprintf("INSERT INTO timeframes (id, start_sec, end_sec, note, created_at) VALUES (%s, %s, %s, %s, %s)",
			db.ph(1), db.ph(2), db.ph(3), db.ph(4), db.ph(5)),
		tf.ID, tf.Start, tf.End, stripNUL(tf.Note), tf.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting timeframe: %w", err)
	}
	return nil
}

// ListTimeframes returns all timeframes ordered by start.
func (db *sqlStore) ListTimeframes() ([]model.Timeframe, error) {
	rows, err := db.conn.Query(
		"SELECT id, start_sec, end_sec, note, created_at FROM timeframes ORDER BY start_sec, created_at")
	if err != nil {
		return nil, fmt.Errorf("listing timeframes: %w", err)
	}
	defer rows.Close()

	frames := []model.Timeframe{}
	for rows.Next() {
		var tf model.Timeframe
		var created string
		if err := rows.Scan(&tf.ID, &tf.Start, &tf.End, &tf.Note, &created); err != nil {
			return nil, fmt.Errorf("scanning timeframe: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			tf.CreatedAt = t
		}
		frames = append(frames, tf)
	}
	return frames, rows.Err()
}

// DeleteTimeframe removes a timeframe by id.
func (db *sqlStore) DeleteTimeframe(id string) error {
	res, err := db.conn.Exec("DELETE FROM timeframes WHERE id = "+db.ph(1), id)
	if err != nil {
		return fmt.Errorf("deleting timeframe: %w", err)
	}
	return expectAffected(res, "timeframe "+id)
}

// GetSavedFilters returns all saved filters ordered by name.
func (db *sqlStore) GetSavedFilters() ([]SavedFilter, error) {
	rows, err := db.conn.Query("SELECT name, selector, search FROM saved_filters ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []SavedFilter
	for rows.Next() {
		var f SavedFilter
		if err := rows.Scan(&f.Name, &f.Selector, &f.Search); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// SaveFilter stores a named filter, replacing any filter with the same name.
func (db *sqlStore) SaveFilter(f SavedFilter) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("saved filter needs a name")
	}
	_, err := db.conn.Exec(db.dialect.UpsertSavedFilterSQL(), f.Name, f.Selector, f.Search)
	return err
}

// DeleteFilter removes a saved filter by name.
func (db *sqlStore) DeleteFilter(name string) error {
	res, err := db.conn.Exec("DELETE FROM saved_filters WHERE name = "+db.ph(1), name)
	if err != nil {
		return fmt.Errorf("deleting saved filter: %w", err)
	}
	return expectAffected(res, "saved filter "+name)
}

// RebuildIndexes drops all event indexes and creates new ones for the given fields.
func (db *sqlStore) RebuildIndexes(indexFields []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, f := range model.Fields {
		if _, err = tx.Exec(db.dialect.DropIndexSQL(f + "_idx")); err != nil {
			return fmt.Errorf("dropping index %s_idx: %w", f, err)
		}
	}
	for _, f := range indexFields {
		if !isValidField(f) {
			return fmt.Errorf("invalid index field: %s", f)
		}
		if _, err = tx.Exec(db.dialect.CreateIndexSQL(f+"_idx", "events", f)); err != nil {
			return fmt.Errorf("creating index %s_idx: %w", f, err)
		}
	}
	return tx.Commit()
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// scanEvents converts rows in model.Fields order into events.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e := &model.Event{}
		var id, typ string
		var occurred sql.NullString
		if err := rows.Scan(&id, &e.Timestamp, &occurred, &e.Description, &typ, &e.Severity); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.ID = model.ID(id)
		e.Type = model.EventType(typ)
		events = append(events, e)
	}
	return events, rows.Err()
}

// stripNUL removes NUL bytes, which PostgreSQL rejects in text columns.
func stripNUL(s string) string {
	if strings.ContainsRune(s, '\x00') {
		return strings.ReplaceAll(s, "\x00", "")
	}
	return s
}

// isValidField checks that a field name is one of the known event columns.
// This prevents SQL injection when field names are interpolated into queries.
func isValidField(name string) bool {
	for _, f := range model.Fields {
		if f == name {
			return true
		}
	}
	return false
}
