package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dbehnke/dis-nexus/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Registers the pure Go "sqlite" driver
	_ "modernc.org/sqlite"
)

const (
	defaultPath        = "dis-nexus.db"
	defaultBusyTimeout = 5 * time.Second
	slowQueryThreshold = 200 * time.Millisecond
)

// DB is the SQLite event store
type DB struct {
	db     *gorm.DB
	path   string
	logger *logger.Logger
}

// Config holds database configuration
type Config struct {
	Path        string        // SQLite file, created with its directory if missing
	BusyTimeout time.Duration // Zero means five seconds
}

// dsn builds a modernc DSN carrying the connection pragmas. busy_timeout and
// foreign_keys are per connection in SQLite, so they go in the DSN where every
// pooled connection picks them up.
func dsn(cfg Config) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()),
		"foreign_keys(1)",
	}
	var b strings.Builder
	b.WriteString(cfg.Path)
	for i, p := range pragmas {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString("_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// NewDB opens (or creates) the event store and migrates its schema
func NewDB(cfg Config, log *logger.Logger) (*DB, error) {
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaultBusyTimeout
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn(cfg)}, &gorm.Config{
		Logger: gormlogger.New(&gormLogAdapter{log: log}, gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	// Records cascade-delete with their event
	if err := db.AutoMigrate(&IntercomEvent{}, &ParameterRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate intercom event schema: %w", err)
	}

	d := &DB{db: db, path: cfg.Path, logger: log}
	mode, err := d.Pragma("journal_mode")
	if err != nil {
		return nil, err
	}
	log.Info("Event store ready",
		logger.String("path", cfg.Path),
		logger.String("journal_mode", mode),
		logger.Duration("busy_timeout", cfg.BusyTimeout))
	return d, nil
}

// Pragma reads the current value of a SQLite pragma
func (d *DB) Pragma(name string) (string, error) {
	var value string
	if err := d.db.Raw("PRAGMA " + name).Scan(&value).Error; err != nil {
		return "", fmt.Errorf("failed to read pragma %s: %w", name, err)
	}
	return value, nil
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the underlying GORM database instance
func (d *DB) GetDB() *gorm.DB {
	return d.db
}

// gormLogAdapter routes GORM's slow query and error lines to the service log
type gormLogAdapter struct {
	log *logger.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.String("source", "gorm"))
}
