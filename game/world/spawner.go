package world

import (
	"github.com/kasuganosora/isoarpg/game/grid"
	"github.com/kasuganosora/isoarpg/resource"
	"go.uber.org/zap"
)

const defaultEnemyName = "fallen"

// SpawnAll places one enemy per spawn point. Blocked or occupied points are
// logged and skipped.
func SpawnAll(l *Level, points []resource.SpawnPoint, logger *zap.Logger) int {
	spawned := 0
	for _, sp := range points {
		name := sp.Name
		if name == "" {
			name = defaultEnemyName
		}
		if l.Collision().IsBlocked(sp.Cell()) {
			logger.Warn("enemy spawn skipped, cell blocked", zap.Stringer("cell", sp.Cell()))
			continue
		}
		if _, err := l.SpawnEnemy(name, sp.Cell()); err != nil {
			logger.Warn("enemy spawn skipped",
				zap.Stringer("cell", sp.Cell()),
				zap.Error(err))
			continue
		}
		spawned++
	}
	logger.Debug("enemies spawned", zap.Int("count", spawned), zap.Int("points", len(points)))
	return spawned
}

// FreeCellNear returns the unblocked cell closest to want in Chebyshev
// rings, scanning each ring row by row.
func FreeCellNear(g *grid.CollisionGrid, want grid.Pos) (grid.Pos, bool) {
	limit := max(g.Width(), g.Height())
	for r := 0; r <= limit; r++ {
		for y := want.Y - r; y <= want.Y+r; y++ {
			for x := want.X - r; x <= want.X+r; x++ {
				if grid.Distance(want, grid.Pos{X: x, Y: y}) != r {
					continue
				}
				p := grid.Pos{X: x, Y: y}
				if !g.IsBlocked(p) {
					return p, true
				}
			}
		}
	}
	return grid.Pos{}, false
}
