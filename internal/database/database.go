package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded archive used by the desktop shell and by
// single-instance servers. It implements the Store interface.
type SQLiteStore struct {
	*sqlStore
}

// OpenSQLite opens an existing SQLite archive and applies pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	d := &SQLiteDialect{}

	conn, err := sql.Open(d.DriverName(), d.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Verify the connection works
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db := &SQLiteStore{newSQLStore(path, conn, d)}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// CreateSQLite creates (or reuses) a SQLite archive with the full schema.
// indexFields specifies which columns to index. Pass nil to use DefaultIndexFields.
func CreateSQLite(path string, indexFields []string) (*SQLiteStore, error) {
	d := &SQLiteDialect{}

	conn, err := sql.Open(d.DriverName(), d.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the poller and API handlers.
	conn.SetMaxOpenConns(1)

	db := &SQLiteStore{newSQLStore(path, conn, d)}
	if err := db.createSchema(indexFields); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}
