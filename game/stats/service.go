// Package stats persists gameplay events raised by rooms: kill counters,
// the kill leaderboard, each level's recent-event list and the combat log.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/isoarpg/audit"
	"github.com/kasuganosora/isoarpg/cache"
	"github.com/kasuganosora/isoarpg/game/world"
	"github.com/kasuganosora/isoarpg/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// RankingKey is the sorted set of kills per account id.
	RankingKey = "ranking:kills"
	// RecentLen bounds each level's recent-event list.
	RecentLen = 50

	queueSize  = 256
	opTimeout  = 3 * time.Second
	rankingMax = 100
)

// EventsChannel is the pub/sub channel carrying a level's events.
func EventsChannel(level string) string { return "level:" + level + ":events" }

func recentKey(level string) string { return "level:" + level + ":recent" }

// RankEntry is one leaderboard row.
type RankEntry struct {
	Rank      int    `json:"rank"`
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	Kills     int64  `json:"kills"`
}

// Service consumes room events off the tick path. It implements world.EventSink.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	ps     cache.PubSub
	combat *audit.Service

	ch       chan []world.Event
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *zap.Logger

	// seeded is set once the sorted set has been rebuilt from the database
	// by this process; increments before that would shadow older rows.
	seeded atomic.Bool
}

// New starts the event worker. ps and combat may be nil.
func New(db *gorm.DB, c cache.Cache, ps cache.PubSub, combat *audit.Service, logger *zap.Logger) *Service {
	s := &Service{
		db:     db,
		cache:  c,
		ps:     ps,
		combat: combat,
		ch:     make(chan []world.Event, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Publish hands one tick's events to the worker without blocking.
func (s *Service) Publish(events []world.Event) {
	if len(events) == 0 {
		return
	}
	select {
	case <-s.stopCh:
		return
	default:
	}
	select {
	case s.ch <- events:
	default:
		s.logger.Warn("stats queue full, dropping events",
			zap.String("level", events[0].Level), zap.Int("count", len(events)))
	}
}

// Stop drains queued events and waits for the worker.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case batch := <-s.ch:
			s.handleBatch(batch)
		case <-s.stopCh:
			for {
				select {
				case batch := <-s.ch:
					s.handleBatch(batch)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) handleBatch(events []world.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	for i := range events {
		s.handle(ctx, events[i])
	}
}

func (s *Service) handle(ctx context.Context, ev world.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encode event", zap.Error(err))
		return
	}

	if ev.Type == world.EventKill && ev.AccountID != 0 {
		if err := s.recordKill(ctx, ev); err != nil {
			s.logger.Error("record kill",
				zap.Int64("account_id", ev.AccountID), zap.String("level", ev.Level), zap.Error(err))
		}
	}

	key := recentKey(ev.Level)
	if err := s.cache.LPush(ctx, key, string(payload)); err != nil {
		s.logger.Warn("push recent event", zap.String("key", key), zap.Error(err))
	} else if err := s.cache.LTrim(ctx, key, 0, RecentLen-1); err != nil {
		s.logger.Warn("trim recent events", zap.String("key", key), zap.Error(err))
	}

	if s.ps != nil {
		if err := s.ps.Publish(ctx, EventsChannel(ev.Level), string(payload)); err != nil {
			s.logger.Warn("publish event", zap.String("level", ev.Level), zap.Error(err))
		}
	}

	if s.combat != nil {
		entry := audit.Entry{
			Level:    ev.Level,
			Event:    string(ev.Type),
			ActorID:  ev.ActorID,
			TargetID: ev.TargetID,
			X:        ev.X,
			Y:        ev.Y,
		}
		if ev.AccountID != 0 {
			acc := ev.AccountID
			entry.AccountID = &acc
		}
		s.combat.Log(entry)
	}
}

// recordKill bumps the persistent counter and the leaderboard.
func (s *Service) recordKill(ctx context.Context, ev world.Event) error {
	var acc model.Account
	if err := s.db.WithContext(ctx).Select("id, username").First(&acc, ev.AccountID).Error; err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	row := model.PlayerStats{
		AccountID: ev.AccountID,
		Username:  acc.Username,
		Kills:     1,
		LastLevel: ev.Level,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"kills":      gorm.Expr("kills + 1"),
			"last_level": ev.Level,
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert stats: %w", err)
	}
	if !s.seeded.Load() {
		if _, err := s.Refresh(ctx); err != nil {
			return fmt.Errorf("seed ranking: %w", err)
		}
		return nil
	}
	if _, err := s.cache.ZIncrBy(ctx, RankingKey, 1, strconv.FormatInt(ev.AccountID, 10)); err != nil {
		return fmt.Errorf("bump ranking: %w", err)
	}
	return nil
}

// Top returns the leaderboard, read from the sorted set and falling back to
// the database when the set is empty or unavailable. The set is rebuilt
// from the database on first use.
func (s *Service) Top(ctx context.Context, limit int) ([]RankEntry, error) {
	if limit <= 0 || limit > rankingMax {
		limit = rankingMax
	}
	if !s.seeded.Load() {
		if _, err := s.Refresh(ctx); err != nil {
			s.logger.Warn("ranking seed failed", zap.Error(err))
		}
	}
	zs, err := s.cache.ZRevRangeWithScores(ctx, RankingKey, 0, int64(limit-1))
	if err == nil && len(zs) > 0 {
		entries := make([]RankEntry, 0, len(zs))
		for _, z := range zs {
			id, err := strconv.ParseInt(z.Member, 10, 64)
			if err != nil {
				continue
			}
			entries = append(entries, RankEntry{Rank: len(entries) + 1, AccountID: id, Kills: int64(z.Score)})
		}
		s.enrichNames(ctx, entries)
		return entries, nil
	}
	if err != nil && !cache.IsNotFound(err) {
		s.logger.Warn("ranking cache read failed, using db", zap.Error(err))
	}

	rows, err := s.topFromDB(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]RankEntry, len(rows))
	for i, r := range rows {
		entries[i] = RankEntry{Rank: i + 1, AccountID: r.AccountID, Username: r.Username, Kills: r.Kills}
		_ = s.cache.ZAdd(ctx, RankingKey, float64(r.Kills), strconv.FormatInt(r.AccountID, 10))
	}
	return entries, nil
}

// Refresh rebuilds the leaderboard set from the database.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	rows, err := s.topFromDB(ctx, rankingMax)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Del(ctx, RankingKey); err != nil {
		return 0, fmt.Errorf("clear ranking: %w", err)
	}
	for _, r := range rows {
		if err := s.cache.ZAdd(ctx, RankingKey, float64(r.Kills), strconv.FormatInt(r.AccountID, 10)); err != nil {
			return 0, fmt.Errorf("rebuild ranking: %w", err)
		}
	}
	s.seeded.Store(true)
	return len(rows), nil
}

// Recent returns up to n of a level's latest events, newest first.
func (s *Service) Recent(ctx context.Context, level string, n int) ([]world.Event, error) {
	if n <= 0 || n > RecentLen {
		n = RecentLen
	}
	raw, err := s.cache.LRange(ctx, recentKey(level), 0, int64(n-1))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]world.Event, 0, len(raw))
	for _, r := range raw {
		var ev world.Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Kills returns the persisted kill count of one account.
func (s *Service) Kills(ctx context.Context, accountID int64) (int64, error) {
	var row model.PlayerStats
	err := s.db.WithContext(ctx).First(&row, "account_id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return row.Kills, err
}

func (s *Service) topFromDB(ctx context.Context, limit int) ([]model.PlayerStats, error) {
	var rows []model.PlayerStats
	err := s.db.WithContext(ctx).
		Where("kills > 0").
		Order("kills DESC").Order("account_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query ranking: %w", err)
	}
	return rows, nil
}

func (s *Service) enrichNames(ctx context.Context, entries []RankEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.AccountID
	}
	var rows []model.PlayerStats
	if err := s.db.WithContext(ctx).Select("account_id, username").Where("account_id IN ?", ids).Find(&rows).Error; err != nil {
		s.logger.Warn("ranking names", zap.Error(err))
		return
	}
	names := make(map[int64]string, len(rows))
	for _, r := range rows {
		names[r.AccountID] = r.Username
	}
	for i := range entries {
		entries[i].Username = names[entries[i].AccountID]
	}
}
