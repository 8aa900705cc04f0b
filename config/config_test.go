package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 50*time.Millisecond, cfg.Game.TickInterval())
	assert.Equal(t, "town", cfg.Game.StartLevel)
	assert.Equal(t, 8, cfg.Game.FollowRange)
	assert.Equal(t, 2, cfg.Game.EnemyHealth)
	assert.Equal(t, 0.5, cfg.Game.BreadcrumbInterval)
	assert.Equal(t, Speed{X: 150, Y: 100}, cfg.Game.PlayerSpeed)
	assert.Equal(t, Speed{X: 80, Y: 40}, cfg.Game.EnemySpeed)
	assert.Equal(t, 9, cfg.Game.AttackFrame)
	assert.Equal(t, 72*time.Hour, cfg.Security.JWTTTLH)
	assert.Equal(t, 5*time.Minute, cfg.Game.RoomIdleTimeout)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  admin_key: secret
game:
  tick_ms: 20
  start_level: crypt
  enemy_speed: {x: 60, y: 30}
security:
  allowed_origins: ["http://localhost:3000"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.AdminKey)
	assert.Equal(t, 20*time.Millisecond, cfg.Game.TickInterval())
	assert.Equal(t, "crypt", cfg.Game.StartLevel)
	assert.Equal(t, Speed{X: 60, Y: 30}, cfg.Game.EnemySpeed)
	assert.Equal(t, Speed{X: 150, Y: 100}, cfg.Game.PlayerSpeed)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Security.AllowedOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
