package db

import (
	"path/filepath"
	"testing"

	"github.com/kasuganosora/isoarpg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "game.db")
	db, err := Open(config.DatabaseConfig{Mode: ModeSQLite, SQLitePath: path})
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
	assert.FileExists(t, path)
}

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: "embedded_xml"})
	assert.ErrorContains(t, err, "unknown mode")
}

func TestOpen_MySQLRequiresDSN(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Mode: ModeMySQL})
	assert.ErrorContains(t, err, "empty dsn")
}
