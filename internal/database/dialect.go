package database

// Dialect abstracts all database-specific SQL generation.
// Each database backend (SQLite, PostgreSQL) implements this interface.
// Placeholder, QuoteColumn and DateBetweenSQL match query.QueryDialect through
// structural typing, so a Dialect can be handed straight to a query.Query.
type Dialect interface {
	// DriverName returns the database/sql driver name.
	DriverName() string

	// DSN returns the data source name for opening a connection.
	DSN(pathOrConnStr string) string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// QuoteColumn returns the column name quoted appropriately for the dialect.
	QuoteColumn(name string) string

	// DateBetweenSQL returns the occurred_at range filter fragment.
	DateBetweenSQL(paramIdx1, paramIdx2 int) string

	// DateFormatSQL returns a SQL expression that truncates a timestamp column
	// to the given strftime-style bucket format.
	DateFormatSQL(column, format string) string

	// SchemaCheckColumnSQL returns a query counting how many times a column
	// appears in a table's schema. Used for migration checks.
	SchemaCheckColumnSQL(table, column string) string

	CreateEventsTableSQL() string
	CreateTimeframesTableSQL() string
	CreateSavedFiltersTableSQL() string

	// AddSeverityColumnSQL upgrades archives written before severity was kept.
	AddSeverityColumnSQL() string

	CreateIndexSQL(indexName, tableName, column string) string
	DropIndexSQL(indexName string) string

	// UpsertEventSQL inserts an event or refreshes the row with the same id.
	// Parameters follow model.Fields order.
	UpsertEventSQL() string

	// UpsertSavedFilterSQL inserts or replaces a saved filter by name.
	UpsertSavedFilterSQL() string
}
