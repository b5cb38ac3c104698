package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"bookledger/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, cfg.DatabaseDriver); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Connect opens and pings the configured database without migrating it.
func Connect(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	dsn := cfg.DatabaseURL
	if cfg.DatabaseDriver == "sqlite3" {
		// busy_timeout avoids spurious SQLITE_BUSY under concurrent writers,
		// foreign_keys is off by default in sqlite.
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dsn)
	}

	db, err := sqlx.Open(cfg.DatabaseDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.DatabaseDriver == "sqlite3" {
		// sqlite allows a single writer; a single pooled connection also keeps
		// in-memory databases alive for the lifetime of the pool.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate applies the embedded goose migrations for the given driver.
func Migrate(db *sqlx.DB, driver string) error {
	return Goose(db, driver, "up")
}

// Goose runs a goose command (up, down, status, version) against the
// embedded migrations for the given driver.
func Goose(db *sqlx.DB, driver, command string) error {
	sub, err := fs.Sub(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("locate migrations for %s: %w", driver, err)
	}

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	switch command {
	case "up":
		err = goose.Up(db.DB, ".")
	case "down":
		err = goose.Down(db.DB, ".")
	case "status":
		err = goose.Status(db.DB, ".")
	case "version":
		var version int64
		if version, err = goose.GetDBVersion(db.DB); err == nil {
			fmt.Printf("migration version: %d\n", version)
		}
	default:
		return fmt.Errorf("unknown migration command %q (want up, down, status, or version)", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// InsertReturningID executes an insert and reports the generated surrogate key.
// The query is written with ? placeholders and without a RETURNING clause;
// the right form is chosen per driver, since lib/pq does not support
// LastInsertId and sqlite predates RETURNING in older deployments.
func InsertReturningID(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int64, error) {
	if ext.DriverName() == "postgres" {
		var id int64
		row := ext.QueryRowxContext(ctx, ext.Rebind(query+" RETURNING id"), args...)
		if err := row.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
