package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// OpenSQLite opens a file backed SQLite database through the pure Go driver.
// The pool is pinned to one connection, so transactions serialize in process
// and never hit SQLITE_BUSY.
func OpenSQLite(path string) (*Database, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	dsn := "file:" + path + "?" + params.Encode()

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open gorm sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite sql db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Database{DB: db, Dialect: DialectSQLite}, nil
}

// Open picks the driver by name: "postgres" uses dsn, "sqlite" uses path.
func Open(driver string, dsn string, path string) (*Database, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverPostgres:
		return Connect(dsn)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
