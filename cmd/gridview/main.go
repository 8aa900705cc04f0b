// Command gridview runs one level locally and draws it top-down in the terminal.
//
//	gridview [-seed N] data/levels/town.yaml
//
// Arrows or hjkl move the cursor. Enter walks there, a attacks toward it,
// e engages the enemy under it, q quits.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/kasuganosora/isoarpg/game/grid"
	"github.com/kasuganosora/isoarpg/game/world"
	"github.com/kasuganosora/isoarpg/resource"
	"go.uber.org/zap"
)

func main() {
	seed := flag.Uint64("seed", 1, "level RNG seed")
	tick := flag.Duration("tick", world.DefaultTickInterval, "simulation step")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: gridview [-seed N] [-tick D] <level.yaml>")
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalln(err)
	}
	def, err := resource.ParseLevel(data)
	if err != nil {
		log.Fatalln(err)
	}
	v, err := newViewer(def, *seed, zap.NewNop())
	if err != nil {
		log.Fatalln(err)
	}

	scr, err := tcell.NewScreen()
	if err != nil {
		log.Fatalln(err)
	}
	if err := scr.Init(); err != nil {
		log.Fatalln(err)
	}
	defer scr.Fini()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := scr.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(*tick)
	defer ticker.Stop()
	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				scr.Sync()
			case *tcell.EventKey:
				if !v.handleKey(ev) {
					return
				}
			}
		case <-ticker.C:
			v.level.Tick(tick.Seconds())
			v.kills += countKills(v.level.DrainEvents())
		}
		draw(scr, v)
	}
}

// viewer is the local simulation plus the cursor driving it.
type viewer struct {
	def    *resource.Level
	level  *world.Level
	self   *world.Entity
	cursor grid.Pos
	kills  int
}

func newViewer(def *resource.Level, seed uint64, logger *zap.Logger) (*viewer, error) {
	cfg := world.DefaultLevelConfig(def.ID)
	cfg.TileWidth, cfg.TileHeight = def.TileWidth, def.TileHeight
	cfg.Seed = seed
	l := world.NewLevel(cfg, def, logger)
	world.SpawnAll(l, def.Enemies, logger)

	cell, ok := world.FreeCellNear(l.Collision(), def.PlayerSpawn.Cell())
	if !ok {
		return nil, fmt.Errorf("level %s has no free cell", def.ID)
	}
	self, err := l.SpawnPlayer("you", 0, cell)
	if err != nil {
		return nil, err
	}
	return &viewer{def: def, level: l, self: self, cursor: cell}, nil
}

func (v *viewer) moveCursor(dx, dy int) {
	next := v.cursor.Add(grid.Pos{X: dx, Y: dy})
	if v.level.Projection().InBounds(next) {
		v.cursor = next
	}
}

// handleKey applies one key press; it returns false on quit.
func (v *viewer) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		v.moveCursor(0, -1)
	case tcell.KeyDown:
		v.moveCursor(0, 1)
	case tcell.KeyLeft:
		v.moveCursor(-1, 0)
	case tcell.KeyRight:
		v.moveCursor(1, 0)
	case tcell.KeyEnter:
		v.submit(world.Intent{Kind: world.IntentMove, Cell: v.cursor})
	case tcell.KeyRune:
		return v.handleRune(ev.Rune())
	}
	return true
}

func (v *viewer) handleRune(r rune) bool {
	switch r {
	case 'q':
		return false
	case 'h':
		v.moveCursor(-1, 0)
	case 'j':
		v.moveCursor(0, 1)
	case 'k':
		v.moveCursor(0, -1)
	case 'l':
		v.moveCursor(1, 0)
	case 'a':
		v.submit(world.Intent{Kind: world.IntentAttack, Cell: v.cursor})
	case 'e':
		if e := v.level.EnemyAt(v.cursor); e != nil {
			v.submit(world.Intent{Kind: world.IntentEngage, Target: e.ID})
		}
	}
	return true
}

func (v *viewer) submit(in world.Intent) {
	if v.self.Player != nil {
		v.self.Player.Submit(in)
	}
}

func countKills(events []world.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Type == world.EventKill {
			n++
		}
	}
	return n
}

// frame renders the level as one rune per cell.
func (v *viewer) frame() [][]rune {
	w, h := v.def.Size()
	rows := make([][]rune, h)
	for y := range rows {
		rows[y] = make([]rune, w)
		for x := range rows[y] {
			if v.def.Blocked(grid.Pos{X: x, Y: y}) {
				rows[y][x] = '#'
			} else {
				rows[y][x] = '.'
			}
		}
	}
	for _, c := range v.level.Trail().Crumbs() {
		if c.Pos.Y >= 0 && c.Pos.Y < h && c.Pos.X >= 0 && c.Pos.X < w {
			rows[c.Pos.Y][c.Pos.X] = ':'
		}
	}
	for _, st := range v.level.Snapshot() {
		r := 'f'
		if st.Kind == world.KindPlayer.String() {
			r = '@'
		} else if st.State == "dead" {
			r = 'x'
		}
		rows[st.Y][st.X] = r
	}
	return rows
}

var (
	styleWall   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleFloor  = tcell.StyleDefault.Foreground(tcell.ColorDarkGreen)
	styleCrumb  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	stylePlayer = tcell.StyleDefault.Foreground(tcell.ColorLightGreen).Bold(true)
	styleEnemy  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleDead   = tcell.StyleDefault.Foreground(tcell.ColorMaroon)
)

func styleOf(r rune) tcell.Style {
	switch r {
	case '#':
		return styleWall
	case ':':
		return styleCrumb
	case '@':
		return stylePlayer
	case 'f':
		return styleEnemy
	case 'x':
		return styleDead
	}
	return styleFloor
}

func draw(scr tcell.Screen, v *viewer) {
	scr.Clear()
	rows := v.frame()
	for y, row := range rows {
		for x, r := range row {
			st := styleOf(r)
			if (grid.Pos{X: x, Y: y}) == v.cursor {
				st = st.Reverse(true)
			}
			scr.SetContent(x, y, r, nil, st)
		}
	}
	status := fmt.Sprintf("%s  tick %d  you %s  cursor %s  kills %d",
		v.def.Name, v.level.TickCount(), v.self.Cell(), v.cursor, v.kills)
	for i, r := range status {
		scr.SetContent(i, len(rows)+1, r, nil, tcell.StyleDefault)
	}
	scr.Show()
}
