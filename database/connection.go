package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ikanisa/easymo-router/internal/config"
	"github.com/ikanisa/easymo-router/internal/models"
)

// Connect opens the configured database.
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		log.Info("connecting to SQLite", zap.String("path", cfg.SQLitePath))
		dialector = sqlite.Open(cfg.SQLitePath)
	case config.DriverPostgres:
		dialector = postgres.Open(postgresDSN(cfg, log))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// SQLite allows a single writer
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	log.Info("database connected", zap.String("driver", cfg.Driver))
	return db, nil
}

func postgresDSN(cfg config.DatabaseConfig, log *zap.Logger) string {
	// Cloud Run with Cloud SQL connects over the unix socket
	if cfg.InstanceConnectionName != "" {
		log.Info("connecting to Cloud SQL via socket", zap.String("instance", cfg.InstanceConnectionName))
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.InstanceConnectionName, cfg.User, cfg.Password, cfg.Name)
	}
	log.Info("connecting to PostgreSQL", zap.String("host", cfg.Host))
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable",
		cfg.Host, cfg.User, cfg.Password, cfg.Name)
}

// Migrate creates or updates every table the router uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.SessionState{},
		&models.UserMemory{},
		&models.TransactionCacheEntry{},
		&models.InboundLog{},
		&models.Interaction{},
		&models.SupportTicket{},
	)
}
