package database

import "fmt"

// SQLiteDialect implements the Dialect interface for SQLite databases.
// It also satisfies query.QueryDialect through structural typing.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string              { return "sqlite" }
func (d *SQLiteDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *SQLiteDialect) Placeholder(index int) string    { return "?" }
func (d *SQLiteDialect) QuoteColumn(name string) string  { return name }

// occurred_at is stored as fixed-width UTC text, so string comparison orders it.
func (d *SQLiteDialect) DateBetweenSQL(paramIdx1, paramIdx2 int) string {
	return "(occurred_at BETWEEN ? AND ?)"
}

func (d *SQLiteDialect) DateFormatSQL(column, format string) string {
	return fmt.Sprintf("strftime('%s', %s)", format, column)
}

func (d *SQLiteDialect) SchemaCheckColumnSQL(table, column string) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name='%s'", table, column)
}

func (d *SQLiteDialect) CreateEventsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL DEFAULT '',
		occurred_at TEXT,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'auto',
		severity TEXT NOT NULL DEFAULT ''
	)`
}

func (d *SQLiteDialect) CreateTimeframesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS timeframes (
		id TEXT PRIMARY KEY,
		start_sec REAL NOT NULL,
		end_sec REAL NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`
}

func (d *SQLiteDialect) CreateSavedFiltersTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS saved_filters (
		name TEXT PRIMARY KEY,
		selector TEXT NOT NULL,
		search TEXT NOT NULL DEFAULT ''
	)`
}

func (d *SQLiteDialect) AddSeverityColumnSQL() string {
	return "ALTER TABLE events ADD COLUMN severity TEXT NOT NULL DEFAULT ''"
}

func (d *SQLiteDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}

func (d *SQLiteDialect) DropIndexSQL(indexName string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", indexName)
}

func (d *SQLiteDialect) UpsertEventSQL() string {
	return `INSERT INTO events (id, timestamp, occurred_at, description, type, severity)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			occurred_at = excluded.occurred_at,
			description = excluded.description,
			type = excluded.type,
			severity = excluded.severity`
}

func (d *SQLiteDialect) UpsertSavedFilterSQL() string {
	return `INSERT INTO saved_filters (name, selector, search) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET selector = excluded.selector, search = excluded.search`
}
