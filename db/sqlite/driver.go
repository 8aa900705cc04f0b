package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates a GORM *DB backed by the SQLite file at path. The parent
// directory is created when missing; in-memory DSNs are used as given.
func Open(path string) (*gorm.DB, error) {
	if !strings.Contains(path, ":memory:") && !strings.Contains(path, "mode=memory") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir for %q: %w", path, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection also keeps an in-memory database alive.
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
