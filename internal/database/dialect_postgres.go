package database

import "fmt"

// pgQuoteCol wraps a column name in double quotes if PostgreSQL would read it
// as a keyword. Other names are returned as-is so they fold to lowercase
// consistently with the unquoted DDL.
func pgQuoteCol(name string) string {
	switch name {
	case "timestamp", "type":
		return `"` + name + `"`
	default:
		return name
	}
}

// strftimeToPostgres maps the strftime bucket formats used by Histogram to
// their to_char equivalents.
var strftimeToPostgres = map[string]string{
	"%Y-%m-%d %H:%M:00": "YYYY-MM-DD HH24:MI:00",
	"%Y-%m-%d %H:00:00": "YYYY-MM-DD HH24:00:00",
	"%Y-%m-%d":          "YYYY-MM-DD",
	"%Y-%m":             "YYYY-MM",
}

// PostgresDialect implements the Dialect interface for PostgreSQL databases.
// It also satisfies query.QueryDialect through structural typing.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string              { return "pgx" }
func (d *PostgresDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *PostgresDialect) Placeholder(index int) string    { return fmt.Sprintf("$%d", index) }
func (d *PostgresDialect) QuoteColumn(name string) string  { return pgQuoteCol(name) }

func (d *PostgresDialect) DateBetweenSQL(paramIdx1, paramIdx2 int) string {
	return fmt.Sprintf("(occurred_at BETWEEN %s::timestamptz AND %s::timestamptz)",
		d.Placeholder(paramIdx1), d.Placeholder(paramIdx2))
}

func (d *PostgresDialect) DateFormatSQL(column, format string) string {
	pgFmt, ok := strftimeToPostgres[format]
	if !ok {
		pgFmt = format
	}
	return fmt.Sprintf("to_char(%s AT TIME ZONE 'UTC', '%s')", column, pgFmt)
}

func (d *PostgresDialect) SchemaCheckColumnSQL(table, column string) string {
	return fmt.Sprintf(
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_name='%s' AND column_name='%s'",
		table, column)
}

func (d *PostgresDialect) CreateEventsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		"timestamp" TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ,
		description TEXT NOT NULL DEFAULT '',
		"type" TEXT NOT NULL DEFAULT 'auto',
		severity TEXT NOT NULL DEFAULT ''
	)`
}

func (d *PostgresDialect) CreateTimeframesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS timeframes (
		id TEXT PRIMARY KEY,
		start_sec DOUBLE PRECISION NOT NULL,
		end_sec DOUBLE PRECISION NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`
}

func (d *PostgresDialect) CreateSavedFiltersTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS saved_filters (
		name TEXT PRIMARY KEY,
		selector TEXT NOT NULL,
		search TEXT NOT NULL DEFAULT ''
	)`
}

func (d *PostgresDialect) AddSeverityColumnSQL() string {
	return "ALTER TABLE events ADD COLUMN IF NOT EXISTS severity TEXT NOT NULL DEFAULT ''"
}

func (d *PostgresDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, pgQuoteCol(column))
}

func (d *PostgresDialect) DropIndexSQL(indexName string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", indexName)
}

func (d *PostgresDialect) UpsertEventSQL() string {
	return `INSERT INTO events (id, "timestamp", occurred_at, description, "type", severity)
		VALUES ($1, $2, $3::timestamptz, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			"timestamp" = EXCLUDED."timestamp",
			occurred_at = EXCLUDED.occurred_at,
			description = EXCLUDED.description,
			"type" = EXCLUDED."type",
			severity = EXCLUDED.severity`
}

func (d *PostgresDialect) UpsertSavedFilterSQL() string {
	return `INSERT INTO saved_filters (name, selector, search) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET selector = EXCLUDED.selector, search = EXCLUDED.search`
}
