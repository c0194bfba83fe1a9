// Package database owns the Postgres connection pool and schema migrations.
package database

import (
	"fmt"
	"log"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chronicae/chronicler/pkg/config"
)

// Connect opens the Postgres pool behind a gorm handle. Timestamps are
// pinned to UTC so clip capture arithmetic never crosses timezones.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	logMode := logger.Info
	if cfg.Server.Environment == "production" {
		logMode = logger.Error
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{
		Logger:  logger.Default.LogMode(logMode),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MinConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	log.Println("✅ Database connected successfully")
	return db, nil
}

// Migrate applies pending SQL files from migrations/ through sql-migrate and
// reports how many ran.
func Migrate(db *gorm.DB) (int, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to unwrap sql.DB: %w", err)
	}

	source := &migrate.FileMigrationSource{Dir: "migrations"}
	applied, err := migrate.Exec(sqlDB, "postgres", source, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return applied, nil
}

// Close tears down the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to unwrap sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close postgres connection: %w", err)
	}
	return nil
}
