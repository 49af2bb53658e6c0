package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Path string // database file, ":memory:" for an in-memory database
}

// Open opens the database file, creating its directory, and migrates the schema
func (store *SQLiteStore) Open() error {
	if store.Path == "" {
		return errors.New(fmt.Errorf("sqlite path is empty")).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if store.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(store.Path), 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				FileContext(store.Path, 0).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(store.Path), gormConfig())
	if err != nil {
		return errors.New(fmt.Errorf("failed to open SQLite database: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", "sqlite").
			Build()
	}

	// a single connection keeps ":memory:" databases shared
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	GetLogger().Debug("opened SQLite database", logger.String("path", store.Path))
	return store.migrate("sqlite")
}
