// Package db opens the metadata database. SQLite is used by default, Postgres
// is available for deployments that run more than one instance.
package db

import (
	"errors"
	"fmt"

	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/pkg/util"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrUnknownDriver = errors.New("unknown database driver")

// New opens the database described by driver and dsn and migrates the schema
func New(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "sqlite":
		// If running in a docker container don't allow the sqlite file to be created
		if dsn != ":memory:" {
			if err := util.RequireMounted(dsn); err != nil {
				return nil, fmt.Errorf("SQLite database file not mounted, %w", err)
			}
		}

		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database, %w", driver, err)
	}

	if driver == "sqlite" && dsn == ":memory:" {
		// Every new connection to :memory: gets its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database handle, %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(model.File{}); err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}
