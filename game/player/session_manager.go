package player

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager maintains the registry of all connected PlayerSessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int64]*PlayerSession // accountID → session
	logger   *zap.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[int64]*PlayerSession),
		logger:   logger,
	}
}

// Register adds a session and returns the one it displaced, if any.
// The displaced session is closed.
func (sm *SessionManager) Register(s *PlayerSession) *PlayerSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	old, ok := sm.sessions[s.AccountID]
	if ok {
		old.Close()
		sm.logger.Info("duplicate session displaced",
			zap.Int64("account_id", s.AccountID))
	}
	sm.sessions[s.AccountID] = s
	sm.logger.Info("player session registered",
		zap.Int64("account_id", s.AccountID),
		zap.String("username", s.Username))
	return old
}

// Unregister removes s if it is still the registered session of its account.
func (sm *SessionManager) Unregister(s *PlayerSession) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if cur, ok := sm.sessions[s.AccountID]; ok && cur == s {
		delete(sm.sessions, s.AccountID)
		sm.logger.Info("player session unregistered", zap.Int64("account_id", s.AccountID))
	}
}

// Get returns the session for accountID, or nil.
func (sm *SessionManager) Get(accountID int64) *PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[accountID]
}

// IsOnline reports whether an account is currently connected.
func (sm *SessionManager) IsOnline(accountID int64) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.sessions[accountID]
	return ok
}

// Count returns the number of currently connected sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns a snapshot slice of all current sessions.
func (sm *SessionManager) All() []*PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*PlayerSession, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// BroadcastToAll sends pkt to every connected session.
func (sm *SessionManager) BroadcastToAll(pkt *Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		sm.logger.Error("failed to marshal broadcast packet", zap.Error(err))
		return
	}
	for _, s := range sm.All() {
		s.SendRaw(data)
	}
}

// CloseAllSessions closes every session and waits up to 10 s for them to unregister.
func (sm *SessionManager) CloseAllSessions() {
	sessions := sm.All()
	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if sm.Count() == 0 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
