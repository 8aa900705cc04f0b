package mysql

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultMaxOpen = 20
	defaultMaxIdle = 5
	defaultMaxLife = time.Hour
)

// Open connects to MySQL and sizes the pool; zero limits fall back to defaults.
// dsn must carry parseTime=true so DATETIME columns scan into time.Time.
func Open(dsn string, maxOpen, maxIdle int, maxLife time.Duration) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("mysql: empty dsn")
	}
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       dsn,
		DefaultStringSize:         191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpen
	}
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdle
	}
	if maxLife <= 0 {
		maxLife = defaultMaxLife
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLife)
	return db, nil
}
