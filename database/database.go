package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JayKadi/ecommerce-project/config"
	"github.com/go-sql-driver/mysql"

	// Pure-Go SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	switch cfg.DBDriver {
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case DriverMySQL, "":
		return OpenMySQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.DBDriver)
	}
}

func OpenMySQL(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = cfg.DBHost + ":" + cfg.DBPort
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	mc.Loc = time.UTC

	db, err := sql.Open(DriverMySQL, mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("database: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping mysql: %w", err)
	}
	if err := Migrate(ctx, db, DriverMySQL); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (or creates) a SQLite file with WAL and a busy timeout.
// A single connection serialises writers, which is what SQLite wants.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db, DriverSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema for the given driver. Idempotent.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts := mysqlSchema
	if driver == DriverSQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: apply schema: %w", err)
		}
	}
	return nil
}
