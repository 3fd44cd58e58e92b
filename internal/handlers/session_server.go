package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vqiu25/inky/internal/database"
	"github.com/vqiu25/inky/internal/game"
	"github.com/vqiu25/inky/internal/models"
)

// SessionServer owns the single game.Store and the live WebSocket
// connection registry. Every session the store creates gets its broadcast
// functions and collaborators wired here.
type SessionServer struct {
	Store  *game.Store
	logger *logrus.Logger

	connMu sync.Mutex
	conns  map[uuid.UUID]*websocket.Conn
}

func NewSessionServer(cfg models.GameConfig, logger *logrus.Logger) *SessionServer {
	ss := &SessionServer{
		Store:  game.NewStore(cfg, logger),
		logger: logger,
		conns:  make(map[uuid.UUID]*websocket.Conn),
	}
	ss.Store.OnNewSession(func(s *game.Session) {
		s.BroadcastFn = ss.broadcastFn()
		s.BroadcastToPlayerFn = ss.broadcastToPlayerFn()
		s.WordSource = database.LoadPhrases
		s.OnGameEnd = ss.persistGameEnd
	})
	return ss
}

// registerConn records a player's connection, replacing any previous one.
func (ss *SessionServer) registerConn(playerID uuid.UUID, c *websocket.Conn) {
	ss.connMu.Lock()
	defer ss.connMu.Unlock()
	if old, ok := ss.conns[playerID]; ok && old != c {
		old.Close(websocket.StatusPolicyViolation, "Replaced by a newer connection.")
	}
	ss.conns[playerID] = c
}

// unregisterConn drops a player's connection if it is still the one given.
func (ss *SessionServer) unregisterConn(playerID uuid.UUID, c *websocket.Conn) {
	ss.connMu.Lock()
	defer ss.connMu.Unlock()
	if cur, ok := ss.conns[playerID]; ok && cur == c {
		delete(ss.conns, playerID)
	}
}

// broadcastFn builds the Session.BroadcastFn implementation. It is invoked
// while the session lock is held, so the connection snapshot is taken under
// the separate registry lock and all writes happen asynchronously.
func (ss *SessionServer) broadcastFn() game.BroadcastFunc {
	return func(ev game.Event) {
		ss.connMu.Lock()
		targets := make([]*websocket.Conn, 0, len(ss.conns))
		for _, c := range ss.conns {
			targets = append(targets, c)
		}
		ss.connMu.Unlock()

		msgBytes, err := json.Marshal(ev)
		if err != nil {
			ss.logger.Errorf("failed to marshal broadcast event %s: %v", ev.Type, err)
			return
		}

		go func(conns []*websocket.Conn, data []byte) {
			for _, c := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				err := c.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					ss.logger.Warnf("failed to write broadcast %s: %v", ev.Type, err)
				}
			}
		}(targets, msgBytes)
	}
}

// broadcastToPlayerFn builds the private-send implementation, used for the
// drawer's word candidates. Same locking discipline as broadcastFn.
func (ss *SessionServer) broadcastToPlayerFn() game.BroadcastToPlayerFunc {
	return func(playerID uuid.UUID, ev game.Event) {
		ss.connMu.Lock()
		c := ss.conns[playerID]
		ss.connMu.Unlock()
		if c == nil {
			return
		}

		msgBytes, err := json.Marshal(ev)
		if err != nil {
			ss.logger.Errorf("failed to marshal private event %s: %v", ev.Type, err)
			return
		}
		go func(conn *websocket.Conn, data []byte) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				ss.logger.Warnf("failed to write private event %s to %s: %v", ev.Type, playerID, err)
			}
		}(c, msgBytes)
	}
}

// persistGameEnd hands the finalized stat deltas to the persistence layer.
// Runs on its own goroutine, invoked exactly once per game.
func (ss *SessionServer) persistGameEnd(sessionID uuid.UUID, deltas []models.StatDelta) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.ApplyStatDeltas(ctx, sessionID, deltas); err != nil {
		ss.logger.Errorf("failed to persist stat deltas for session %s: %v", sessionID, err)
		return
	}
	ss.logger.WithFields(logrus.Fields{
		"session": sessionID.String(),
		"players": len(deltas),
	}).Info("stat deltas persisted")
}

// broadcastRoster pushes the current waiting-room snapshot to everyone.
func (ss *SessionServer) broadcastRoster() {
	ss.broadcastFn()(game.Event{
		Type:    game.EventRosterUpdate,
		Payload: ss.Store.RosterPayload(),
	})
}
