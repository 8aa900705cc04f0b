package resource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kasuganosora/isoarpg/game/action"
	"github.com/kasuganosora/isoarpg/game/grid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrLevelNotFound is returned for an unknown level ID.
var ErrLevelNotFound = errors.New("resource: level not found")

// SpawnPoint is a cell an entity is placed on when the level starts.
type SpawnPoint struct {
	X    int    `yaml:"x"`
	Y    int    `yaml:"y"`
	Name string `yaml:"name"`
}

// Cell returns the spawn point as a grid position.
func (sp SpawnPoint) Cell() grid.Pos {
	return grid.Pos{X: sp.X, Y: sp.Y}
}

// LevelAnims overrides the stock animation tables for one level.
type LevelAnims struct {
	Player *action.AnimSet `yaml:"player"`
	Enemy  *action.AnimSet `yaml:"enemy"`
}

// Level is one level definition file.
//
//	id: town
//	tile_width: 64
//	tile_height: 32
//	collision:
//	  - "....#...."
//	player_spawn: {x: 1, y: 1}
//	enemies:
//	  - {x: 7, y: 3, name: fallen}
type Level struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	TileWidth   float64      `yaml:"tile_width"`
	TileHeight  float64      `yaml:"tile_height"`
	Collision   []string     `yaml:"collision"`
	PlayerSpawn SpawnPoint   `yaml:"player_spawn"`
	Enemies     []SpawnPoint `yaml:"enemies"`
	Anims       LevelAnims   `yaml:"anims"`
}

// Size implements grid.Mask.
func (lv *Level) Size() (int, int) {
	return grid.RowMask(lv.Collision).Size()
}

// Blocked implements grid.Mask; '#' cells are blocked.
func (lv *Level) Blocked(p grid.Pos) bool {
	return grid.RowMask(lv.Collision).Blocked(p)
}

// Walkable returns a row-major 0/1 table of the static terrain, 1 meaning walkable.
func (lv *Level) Walkable() []int {
	w, h := lv.Size()
	tiles := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !lv.Blocked(grid.Pos{X: x, Y: y}) {
				tiles[y*w+x] = 1
			}
		}
	}
	return tiles
}

// ParseLevel decodes and validates one level document.
func ParseLevel(data []byte) (*Level, error) {
	var lv Level
	if err := yaml.Unmarshal(data, &lv); err != nil {
		return nil, fmt.Errorf("resource: parse level: %w", err)
	}
	if lv.TileWidth == 0 {
		lv.TileWidth = 64
	}
	if lv.TileHeight == 0 {
		lv.TileHeight = 32
	}
	if err := validateLevel(&lv); err != nil {
		return nil, fmt.Errorf("resource: invalid level %q: %w", lv.ID, err)
	}
	return &lv, nil
}

func validateLevel(lv *Level) error {
	if lv.ID == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if len(lv.Collision) == 0 {
		return fmt.Errorf("collision cannot be empty")
	}
	width := len(lv.Collision[0])
	for i, row := range lv.Collision {
		if len(row) != width {
			return fmt.Errorf("collision row %d has width %d, want %d", i, len(row), width)
		}
		if strings.Trim(row, ".#") != "" {
			return fmt.Errorf("collision row %d contains characters other than '.' and '#'", i)
		}
	}
	if lv.TileWidth < 0 || lv.TileHeight < 0 {
		return fmt.Errorf("tile size must be positive")
	}
	check := func(what string, sp SpawnPoint) error {
		if sp.X < 0 || sp.Y < 0 || sp.X >= width || sp.Y >= len(lv.Collision) {
			return fmt.Errorf("%s (%d,%d) outside %dx%d level", what, sp.X, sp.Y, width, len(lv.Collision))
		}
		if lv.Blocked(sp.Cell()) {
			return fmt.Errorf("%s (%d,%d) is on a blocked cell", what, sp.X, sp.Y)
		}
		return nil
	}
	if err := check("player_spawn", lv.PlayerSpawn); err != nil {
		return err
	}
	seen := map[grid.Pos]bool{lv.PlayerSpawn.Cell(): true}
	for i, sp := range lv.Enemies {
		if err := check(fmt.Sprintf("enemies[%d]", i), sp); err != nil {
			return err
		}
		if seen[sp.Cell()] {
			return fmt.Errorf("enemies[%d] (%d,%d) shares a cell with another spawn", i, sp.X, sp.Y)
		}
		seen[sp.Cell()] = true
	}
	return nil
}

// Loader reads every level file of a directory.
type Loader struct {
	Dir    string
	levels map[string]*Level
	logger *zap.Logger
}

// NewLoader creates a Loader for dir.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	return &Loader{Dir: dir, levels: make(map[string]*Level), logger: logger}
}

// Load parses every *.yaml / *.yml file in the directory.
func (l *Loader) Load() error {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", l.Dir, err)
	}
	for _, ent := range entries {
		ext := filepath.Ext(ent.Name())
		if ent.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(l.Dir, ent.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("resource: read %s: %w", path, err)
		}
		lv, err := ParseLevel(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if _, dup := l.levels[lv.ID]; dup {
			return fmt.Errorf("resource: duplicate level id %q in %s", lv.ID, path)
		}
		l.levels[lv.ID] = lv
		w, h := lv.Size()
		l.logger.Info("level loaded",
			zap.String("level", lv.ID),
			zap.Int("width", w),
			zap.Int("height", h),
			zap.Int("enemies", len(lv.Enemies)))
	}
	return nil
}

// Add registers an already parsed level.
func (l *Loader) Add(lv *Level) {
	l.levels[lv.ID] = lv
}

// Level returns the level with id.
func (l *Loader) Level(id string) (*Level, error) {
	lv, ok := l.levels[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, id)
	}
	return lv, nil
}

// IDs lists the loaded level IDs in sorted order.
func (l *Loader) IDs() []string {
	ids := make([]string, 0, len(l.levels))
	for id := range l.levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
