package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kasuganosora/isoarpg/game/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleLevel = `
id: crypt
name: Crypt
collision:
  - "......"
  - ".##..."
  - "......"
player_spawn: {x: 0, y: 0}
enemies:
  - {x: 5, y: 2, name: fallen}
  - {x: 4, y: 0}
anims:
  enemy:
    attack: {prefix: "skel_a_", frames: 12, fps: 24}
`

func TestParseLevel(t *testing.T) {
	lv, err := ParseLevel([]byte(sampleLevel))
	require.NoError(t, err)
	assert.Equal(t, "crypt", lv.ID)
	assert.Equal(t, 64.0, lv.TileWidth)
	assert.Equal(t, 32.0, lv.TileHeight)

	w, h := lv.Size()
	assert.Equal(t, 6, w)
	assert.Equal(t, 3, h)
	assert.True(t, lv.Blocked(grid.Pos{X: 1, Y: 1}))
	assert.False(t, lv.Blocked(grid.Pos{X: 3, Y: 1}))
	assert.Len(t, lv.Enemies, 2)
	assert.Equal(t, "fallen", lv.Enemies[0].Name)

	require.NotNil(t, lv.Anims.Enemy)
	assert.Equal(t, "skel_a_", lv.Anims.Enemy.Attack.Prefix)
	assert.Equal(t, 12, lv.Anims.Enemy.Attack.Frames)
	assert.Nil(t, lv.Anims.Player)
}

func TestLevel_Walkable(t *testing.T) {
	lv, err := ParseLevel([]byte(sampleLevel))
	require.NoError(t, err)
	tiles := lv.Walkable()
	require.Len(t, tiles, 18)
	assert.Equal(t, 0, tiles[1*6+1])
	assert.Equal(t, 1, tiles[0])
}

func TestParseLevel_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing id":      "collision: ['..']\nplayer_spawn: {x: 0, y: 0}",
		"ragged rows":     "id: a\ncollision: ['...', '..']",
		"bad glyph":       "id: a\ncollision: ['.x.']",
		"spawn off map":   "id: a\ncollision: ['..']\nplayer_spawn: {x: 4, y: 0}",
		"spawn on wall":   "id: a\ncollision: ['#.']\nplayer_spawn: {x: 0, y: 0}",
		"shared spawn":    "id: a\ncollision: ['...']\nplayer_spawn: {x: 0, y: 0}\nenemies: [{x: 0, y: 0}]",
		"empty collision": "id: a",
		"not yaml":        "id: [",
	}
	for name, doc := range cases {
		_, err := ParseLevel([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoader_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crypt.yaml"), []byte(sampleLevel), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	l := NewLoader(dir, zap.NewNop())
	require.NoError(t, l.Load())
	assert.Equal(t, []string{"crypt"}, l.IDs())

	lv, err := l.Level("crypt")
	require.NoError(t, err)
	assert.Equal(t, "Crypt", lv.Name)

	_, err = l.Level("nope")
	assert.ErrorIs(t, err, ErrLevelNotFound)
}

func TestLoader_DuplicateID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(sampleLevel), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(sampleLevel), 0o644))

	err := NewLoader(dir, zap.NewNop()).Load()
	assert.ErrorContains(t, err, "duplicate level id")
}

func TestLoader_MissingDir(t *testing.T) {
	err := NewLoader(filepath.Join(t.TempDir(), "absent"), zap.NewNop()).Load()
	assert.Error(t, err)
}
