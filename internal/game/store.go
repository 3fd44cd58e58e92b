package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vqiu25/inky/internal/models"
)

// Store owns the Roster and at most one live Session. It is the only
// writer of both; its mutex serializes join/leave/start against session
// retirement. Session-internal transitions are serialized by the session's
// own lock.
type Store struct {
	mu sync.Mutex

	cfg     models.GameConfig
	log     *logrus.Logger
	roster  *Roster
	current *Session

	// newSessionHooks lets the transport wire broadcast functions and
	// collaborators onto every session the store creates.
	newSessionHooks []func(*Session)
}

// NewStore builds an idle store with an empty roster.
func NewStore(cfg models.GameConfig, logger *logrus.Logger) *Store {
	return &Store{
		cfg:    cfg,
		log:    logger,
		roster: NewRoster(cfg.MaxPlayers),
	}
}

// OnNewSession registers a hook run against every session before it begins.
func (s *Store) OnNewSession(hook func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newSessionHooks = append(s.newSessionHooks, hook)
}

// Join adds an identity to the waiting roster. Joining twice with the same
// id is a no-op that still succeeds. Rejected with ErrSessionBusy while a
// game is running and ErrRosterFull at capacity; neither changes state.
func (s *Store) Join(user models.User) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, ErrSessionBusy
	}
	if err := s.roster.Add(user); err != nil {
		return nil, err
	}
	return s.roster.Players(), nil
}

// Leave removes an identity. In the lobby it only shrinks the roster; with
// a game running it also routes the departure through the session lifecycle.
func (s *Store) Leave(playerID uuid.UUID) []models.User {
	s.mu.Lock()
	session := s.current
	s.roster.Remove(playerID)
	players := s.roster.Players()
	s.mu.Unlock()

	if session != nil {
		session.HandlePlayerLeft(playerID)
	}
	return players
}

// StartGame promotes the roster into a running session. Rejects a second
// concurrent start with ErrSessionBusy and a short roster with
// ErrNotEnoughPlayers.
func (s *Store) StartGame() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, ErrSessionBusy
	}
	session, err := NewSession(s.roster.Players(), s.cfg, s.log)
	if err != nil {
		return nil, err
	}
	session.OnIdle = s.sessionRetired
	for _, hook := range s.newSessionHooks {
		hook(session)
	}

	s.current = session
	s.log.WithFields(logrus.Fields{
		"session": session.ID.String(),
		"players": len(session.Players),
	}).Info("game started")

	go session.Begin()
	return session, nil
}

// Current returns the live session, or nil when idle.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// RosterPayload returns the roster_update broadcast payload.
func (s *Store) RosterPayload() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Snapshot()
}

// sessionRetired frees the single slot once a session reports itself
// finished or aborted. The roster is reset; players rejoin for the next
// game.
func (s *Store) sessionRetired(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.ID != sessionID {
		return
	}
	s.current = nil
	s.roster.Clear()
	s.log.WithField("session", sessionID.String()).Info("session retired")
}
