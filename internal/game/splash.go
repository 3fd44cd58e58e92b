package game

import (
	"time"

	"github.com/google/uuid"
)

// SetSplash records the splash debuff expiry for one player. The effective
// duration is capped at the lesser of the configured ceiling and the turn's
// remaining time.
func (s *Session) SetSplash(playerID uuid.UUID, durationMs int) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.setSplashLocked(playerID, durationMs)
}

// setSplashLocked applies the cap, stores the expiry, broadcasts the change
// and schedules the expiry callback so cleanup happens even if nothing ever
// sweeps. Assumes lock is held.
func (s *Session) setSplashLocked(playerID uuid.UUID, durationMs int) {
	if s.playerByID(playerID) == nil {
		return
	}
	duration := time.Duration(durationMs) * time.Millisecond
	if ceiling := s.Cfg.SplashCap(); duration > ceiling {
		duration = ceiling
	}
	if remaining := time.Duration(s.turnSecondsLeft) * time.Second; s.Phase == PhaseTurnInProgress && duration > remaining {
		duration = remaining
	}
	if duration <= 0 {
		return
	}

	s.splash[playerID] = time.Now().Add(duration)
	s.fireEvent(Event{
		Type: EventSplashChanged,
		Payload: map[string]interface{}{
			"id":          playerID.String(),
			"active":      true,
			"duration_ms": duration.Milliseconds(),
		},
	})

	turnID := s.TurnID
	time.AfterFunc(duration, func() {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		if s.TurnID != turnID {
			return
		}
		s.clearSplashLocked(playerID)
	})
}

// ClearSplash removes one player's splash entry unconditionally.
func (s *Session) ClearSplash(playerID uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.clearSplashLocked(playerID)
}

// clearSplashLocked drops the entry and broadcasts the change, a no-op when
// none exists. Assumes lock is held.
func (s *Session) clearSplashLocked(playerID uuid.UUID) {
	if _, ok := s.splash[playerID]; !ok {
		return
	}
	delete(s.splash, playerID)
	s.fireEvent(Event{
		Type: EventSplashChanged,
		Payload: map[string]interface{}{
			"id":     playerID.String(),
			"active": false,
		},
	})
}

// SweepSplashes removes every entry whose expiry has already passed.
func (s *Session) SweepSplashes() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	now := time.Now()
	for id, expiry := range s.splash {
		if !expiry.After(now) {
			s.clearSplashLocked(id)
		}
	}
}

// IsSplashActive reports whether the player has a live splash entry.
func (s *Session) IsSplashActive(playerID uuid.UUID) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	expiry, ok := s.splash[playerID]
	return ok && expiry.After(time.Now())
}

// clearAllSplashesLocked empties splash state at a turn boundary with no
// per-entry broadcast; the turn_ended event already resets clients. Assumes
// lock is held.
func (s *Session) clearAllSplashesLocked() {
	for id := range s.splash {
		delete(s.splash, id)
	}
}
