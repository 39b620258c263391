package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/models"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Debug           bool
}

// DefaultOptions is used by the server binary.
var DefaultOptions = Options{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
}

// Connect opens the process-wide PostgreSQL pool and migrates the schema.
func Connect(dsn string, opts Options, log *slog.Logger) (*gorm.DB, error) {
	const op = "database.Connect"

	if err := ensureDatabase(dsn); err != nil {
		return nil, fmt.Errorf("%s: ensure database: %w", op, err)
	}

	level := gormlogger.Warn
	if opts.Debug {
		level = gormlogger.Info
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	if err := Configure(conn, opts); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", op, err)
	}

	log.Info("database connected", slog.Int("max_open_conns", opts.MaxOpenConns))
	return conn, nil
}

// Configure applies pool limits to the underlying *sql.DB.
func Configure(conn *gorm.DB, opts Options) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return nil
}

// Migrate creates or updates every table.
func Migrate(conn *gorm.DB) error {
	for _, model := range models.All() {
		if err := conn.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the pool. Safe to call with nil.
func Close(conn *gorm.DB, log *slog.Logger) {
	if conn == nil {
		return
	}
	sqlDB, err := conn.DB()
	if err != nil {
		log.Error("failed to get sql.DB for shutdown", logger.Err(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Error("failed to close database", logger.Err(err))
		return
	}
	log.Info("database closed")
}

// ensureDatabase creates the target database when the server allows it.
func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" || dbName == "postgres" {
		return nil
	}

	parsed.Path = "/postgres"

	sqlDB, err := sql.Open("postgres", parsed.String())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
