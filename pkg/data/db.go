package data

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DataFileName string = "data.db"

	driverName    = "sqlite"
	schemaVersion = 1
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// Init creates the dashboard schema in the database at dbFilePath. It is
// safe to call on an existing database.
func Init(dbFilePath string) error {
	if dbFilePath == "" {
		return errors.New("dbFilePath not specified")
	}

	db, err := GetDB(dbFilePath)
	if err != nil {
		return fmt.Errorf("error opening database: %s: %w", dbFilePath, err)
	}
	defer db.Close()

	b, err := f.ReadFile("sql/ddl.sql")
	if err != nil {
		return fmt.Errorf("failed to read the schema creation file: %w", err)
	}
	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("failed to create database schema in: %s: %w", dbFilePath, err)
	}

	var version int
	if err := db.Get(&version, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version < schemaVersion {
		if _, err := db.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
			schemaVersion, time.Now().UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		slog.Debug("db schema created", "path", dbFilePath, "version", schemaVersion)
	}

	return nil
}

// GetDB opens the sqlite database at path.
func GetDB(path string) (*sqlx.DB, error) {
	conn, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %s: %w", path, err)
	}
	return conn, nil
}
