package database

import (
	"fmt"

	"github.com/mikepea/marketplace/pkg/marketplace/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open opens a connection for the configured dialect.
// sqlite is used for local development and tests, postgres in production.
func Open(cfg config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Type == "sqlite" {
		// sqlite allows a single writer; one connection avoids SQLITE_BUSY
		// and keeps :memory: databases on one handle.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Connect initializes the package-level connection.
func Connect(cfg config.Database, log *zap.Logger) error {
	var err error
	DB, err = Open(cfg)
	if err != nil {
		return err
	}
	log.Info("database connected", zap.String("type", cfg.Type))
	return nil
}

// GetDB returns the database instance.
func GetDB() *gorm.DB {
	return DB
}

// IsPostgres reports whether db talks to postgres
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
