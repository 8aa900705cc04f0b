package world

import (
	"sort"
	"sync"
	"time"

	"github.com/kasuganosora/isoarpg/resource"
	"go.uber.org/zap"
)

// WorldManager owns every running Room, one per level ID.
type WorldManager struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	levels   *resource.Loader
	base     LevelConfig
	interval time.Duration
	sink     EventSink
	logger   *zap.Logger
}

// NewWorldManager creates a manager that builds rooms from levels with the
// tuning in base.
func NewWorldManager(levels *resource.Loader, base LevelConfig, interval time.Duration, sink EventSink, logger *zap.Logger) *WorldManager {
	return &WorldManager{
		rooms:    make(map[string]*Room),
		levels:   levels,
		base:     base,
		interval: interval,
		sink:     sink,
		logger:   logger,
	}
}

// Levels returns the level definitions the manager builds rooms from.
func (wm *WorldManager) Levels() *resource.Loader { return wm.levels }

// GetOrCreate returns the Room for levelID, creating and starting it if needed.
func (wm *WorldManager) GetOrCreate(levelID string) (*Room, error) {
	wm.mu.RLock()
	room, ok := wm.rooms[levelID]
	wm.mu.RUnlock()
	if ok {
		return room, nil
	}

	def, err := wm.levels.Level(levelID)
	if err != nil {
		return nil, err
	}

	wm.mu.Lock()
	defer wm.mu.Unlock()
	if room, ok = wm.rooms[levelID]; ok {
		return room, nil
	}
	room = NewRoom(def, wm.base, wm.interval, wm.sink, wm.logger)
	wm.rooms[levelID] = room
	go room.Run()
	wm.logger.Info("level room created", zap.String("level", levelID))
	return room, nil
}

// Get returns the Room for levelID, or nil if it is not running.
func (wm *WorldManager) Get(levelID string) *Room {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.rooms[levelID]
}

// Destroy stops and removes the Room for levelID.
func (wm *WorldManager) Destroy(levelID string) bool {
	wm.mu.Lock()
	room, ok := wm.rooms[levelID]
	if ok {
		delete(wm.rooms, levelID)
	}
	wm.mu.Unlock()
	if ok {
		room.Stop()
		wm.logger.Info("level room destroyed", zap.String("level", levelID))
	}
	return ok
}

// ActiveRoomCount returns the number of running rooms.
func (wm *WorldManager) ActiveRoomCount() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return len(wm.rooms)
}

// RoomInfo summarises one running room.
type RoomInfo struct {
	Level   string `json:"level"`
	Players int    `json:"players"`
}

// Rooms lists the running rooms ordered by level ID.
func (wm *WorldManager) Rooms() []RoomInfo {
	wm.mu.RLock()
	out := make([]RoomInfo, 0, len(wm.rooms))
	for id, r := range wm.rooms {
		out = append(out, RoomInfo{Level: id, Players: r.PlayerCount()})
	}
	wm.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out
}

// GC destroys rooms that have been empty for at least idle and returns their IDs.
func (wm *WorldManager) GC(idle time.Duration) []string {
	now := time.Now()
	wm.mu.RLock()
	var victims []string
	for id, r := range wm.rooms {
		since, empty := r.IdleSince()
		if empty && now.Sub(since) >= idle {
			victims = append(victims, id)
		}
	}
	wm.mu.RUnlock()

	sort.Strings(victims)
	for _, id := range victims {
		wm.Destroy(id)
	}
	return victims
}

// StopAll stops every room and waits for their loops to exit.
func (wm *WorldManager) StopAll() {
	wm.mu.Lock()
	rooms := make([]*Room, 0, len(wm.rooms))
	for _, r := range wm.rooms {
		rooms = append(rooms, r)
	}
	wm.rooms = make(map[string]*Room)
	wm.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
	}
	for _, r := range rooms {
		<-r.Done()
	}
}
