package player

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadlineS = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Packet is the unified WS message envelope.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewPacket marshals payload into a Packet of type typ.
func NewPacket(typ string, payload any) (*Packet, error) {
	pkt := &Packet{Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		pkt.Payload = raw
	}
	return pkt, nil
}

// PlayerSession is one connected client. The level it plays in and the
// entity it drives are set by the room it joins.
type PlayerSession struct {
	AccountID int64
	Username  string

	Conn     *websocket.Conn
	SendChan chan []byte
	Done     chan struct{}
	TraceID  string
	LastSeq  uint64

	levelID  string
	entityID int64

	mu        sync.Mutex
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewPlayerSession creates a new PlayerSession with write goroutine started.
func NewPlayerSession(accountID int64, username string, conn *websocket.Conn, logger *zap.Logger) *PlayerSession {
	s := &PlayerSession{
		AccountID: accountID,
		Username:  username,
		Conn:      conn,
		SendChan:  make(chan []byte, sendChanBuf),
		Done:      make(chan struct{}),
		logger:    logger,
	}
	go s.writePump()
	return s
}

// writePump drains SendChan to the connection and pings it periodically.
func (s *PlayerSession) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data, ok := <-s.SendChan:
			if !ok {
				return
			}
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error",
					zap.Int64("account_id", s.AccountID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes pkt and sends it non-blocking. Drops if channel full or closed.
func (s *PlayerSession) Send(pkt *Packet) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	s.enqueue(data, pkt.Type)
}

// SendRaw sends pre-encoded bytes non-blocking.
func (s *PlayerSession) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	s.enqueue(data, "")
}

func (s *PlayerSession) enqueue(data []byte, typ string) {
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		if !s.IsClosed() && s.logger != nil {
			s.logger.Warn("send channel full, dropping packet",
				zap.Int64("account_id", s.AccountID),
				zap.String("type", typ))
		}
	}
}

// SendError sends an error packet carrying msg.
func (s *PlayerSession) SendError(msg string) {
	pkt, _ := NewPacket("error", map[string]string{"message": msg})
	s.Send(pkt)
}

// Close signals the writePump to shut down.
func (s *PlayerSession) Close() {
	s.closeOnce.Do(func() { close(s.Done) })
}

// IsClosed returns true if the session has been closed.
func (s *PlayerSession) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// Bind records the level and entity the session now controls.
func (s *PlayerSession) Bind(levelID string, entityID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levelID = levelID
	s.entityID = entityID
}

// Unbind clears the level binding.
func (s *PlayerSession) Unbind() {
	s.Bind("", 0)
}

// Binding returns the bound level ID and entity ID; an empty level means none.
func (s *PlayerSession) Binding() (string, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levelID, s.entityID
}

// SendHeartbeatPong answers a client ping.
func (s *PlayerSession) SendHeartbeatPong(clientTS int64) {
	pkt, _ := NewPacket("pong", map[string]int64{
		"client_ts": clientTS,
		"server_ts": time.Now().UnixMilli(),
	})
	s.Send(pkt)
}

// SetReadDeadline resets the WebSocket read deadline to 60 s from now.
func (s *PlayerSession) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadlineS))
}
