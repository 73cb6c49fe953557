// Package database opens the API's gorm connection and keeps its schema
// current.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"spendsnap/internal/config"
	"spendsnap/internal/logger"
	"spendsnap/internal/models"
)

// DefaultMigrationsDir is where the SQL migrations live relative to the
// working directory.
const DefaultMigrationsDir = "migrations"

// Models lists every table the API owns, in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.Expense{},
		&models.AuditLog{},
	}
}

// Manager handles database operations
type Manager struct {
	db     *gorm.DB
	driver string
	url    string
}

// NewManager opens the database named by cfg.
func NewManager(cfg *config.Config) (*Manager, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.PostgresDSN(),
			PreferSimpleProtocol: true, // Required for Supabase Supavisor; harmless for direct connections
		}), gormCfg)
	case "sqlite":
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.DBPath+"?_foreign_keys=on"), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &Manager{db: db, driver: cfg.DBDriver, url: cfg.PostgresURL()}, nil
}

// RunMigrations brings the schema up to date. Postgres uses the versioned SQL
// files in dir; SQLite databases are auto-migrated from the models.
func (m *Manager) RunMigrations(dir string) error {
	log := logger.Get()
	if m.driver == "sqlite" {
		log.Info("Auto-migrating SQLite schema...")
		if err := m.db.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		return nil
	}

	log.Info("Running database migrations...")
	mig, err := migrate.New("file://"+dir, m.url)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			log.Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			log.Warnf("migrate database close error: %v", dbErr)
		}
	}()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("Database migrations completed successfully")
	return nil
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
