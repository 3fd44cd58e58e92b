package game

import (
	"time"
)

// The three countdowns are all built the same way: a one-second AfterFunc
// chain that re-acquires the session lock, checks the TurnID it was armed
// under, and drops itself on mismatch. Cancellation is explicit at every
// transition; the TurnID guard catches the callback that was already in
// flight when Stop was called.

// startTurnCountdown arms the main turn clock. Assumes lock is held.
func (s *Session) startTurnCountdown(seconds int) {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
	}
	s.turnSecondsLeft = seconds
	s.fireEvent(Event{
		Type:    EventTurnTick,
		Payload: map[string]interface{}{"seconds": s.turnSecondsLeft},
	})
	s.armTurnTick(s.TurnID)
}

// armTurnTick schedules the next one-second turn tick. Assumes lock is held.
func (s *Session) armTurnTick(turnID int) {
	s.turnTimer = time.AfterFunc(1*time.Second, func() {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		if s.TurnID != turnID || s.Phase != PhaseTurnInProgress {
			return
		}
		s.turnSecondsLeft--
		if s.turnSecondsLeft <= 0 {
			s.endTurnLocked(turnEnd{Reason: EndReasonTimedOut})
			return
		}
		s.fireEvent(Event{
			Type:    EventTurnTick,
			Payload: map[string]interface{}{"seconds": s.turnSecondsLeft},
		})
		s.armTurnTick(turnID)
	})
}

// adjustTurnCountdown shifts the live turn clock by deltaSeconds, flooring
// at one second so the adjustment itself never ends the turn. A no-op when
// the countdown is not running. Assumes lock is held.
func (s *Session) adjustTurnCountdown(deltaSeconds int) bool {
	if s.Phase != PhaseTurnInProgress || s.turnTimer == nil {
		return false
	}
	s.turnSecondsLeft += deltaSeconds
	if s.turnSecondsLeft < 1 {
		s.turnSecondsLeft = 1
	}
	s.fireEvent(Event{
		Type:    EventTurnTick,
		Payload: map[string]interface{}{"seconds": s.turnSecondsLeft},
	})
	return true
}

// startRevealCountdown builds the hidden-position set (everything except
// the always-visible first letter) and arms the periodic reveal schedule.
// Assumes lock is held.
func (s *Session) startRevealCountdown() {
	if s.revealTimer != nil {
		s.revealTimer.Stop()
	}
	s.hiddenPositions = s.hiddenPositions[:0]
	for i := 1; i < len(s.secretRunes); i++ {
		s.hiddenPositions = append(s.hiddenPositions, i)
	}
	if !s.revealBudgetRemains() {
		return
	}
	s.armRevealTick(s.TurnID)
}

// armRevealTick schedules the next scheduled letter reveal. Assumes lock is
// held.
func (s *Session) armRevealTick(turnID int) {
	interval := time.Duration(s.Cfg.RevealIntervalSeconds) * time.Second
	s.revealTimer = time.AfterFunc(interval, func() {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		if s.TurnID != turnID || s.Phase != PhaseTurnInProgress {
			return
		}
		s.revealOneLocked()
		if s.revealBudgetRemains() {
			s.armRevealTick(turnID)
		}
	})
}

// revealBudgetRemains reports whether the scheduled reveal loop may take
// another position: the hidden set is non-empty and revealing has not yet
// exposed half the word. Assumes lock is held.
func (s *Session) revealBudgetRemains() bool {
	return len(s.hiddenPositions) > 0 && 2*len(s.hiddenPositions) >= len(s.secretRunes)
}

// revealOneLocked removes one uniformly random position from the hidden set
// and broadcasts it. Assumes lock is held.
func (s *Session) revealOneLocked() {
	if len(s.hiddenPositions) == 0 {
		return
	}
	pick := s.rng.Intn(len(s.hiddenPositions))
	pos := s.hiddenPositions[pick]
	s.hiddenPositions = append(s.hiddenPositions[:pick], s.hiddenPositions[pick+1:]...)

	s.fireEvent(Event{
		Type: EventLetterRevealed,
		Payload: map[string]interface{}{
			"position": pos,
			"letter":   string(s.secretRunes[pos]),
		},
	})
}

// forceRevealLocked is the out-of-band power-up path. It ignores the
// half-word stop rule but still never touches position zero, and is a no-op
// once nothing is hidden. position <= 0 means "server choice". Assumes lock
// is held.
func (s *Session) forceRevealLocked(position int) {
	if s.Phase != PhaseTurnInProgress || len(s.hiddenPositions) == 0 {
		return
	}
	if position > 0 {
		for i, p := range s.hiddenPositions {
			if p == position {
				s.hiddenPositions = append(s.hiddenPositions[:i], s.hiddenPositions[i+1:]...)
				s.fireEvent(Event{
					Type: EventLetterRevealed,
					Payload: map[string]interface{}{
						"position": p,
						"letter":   string(s.secretRunes[p]),
					},
				})
				return
			}
		}
		// Requested position already visible: fall through to server choice.
	}
	s.revealOneLocked()
}

// startInterTurnCountdown arms the between-turns clock. At zero it either
// finalizes the game (round cap exceeded or finish requested) or announces
// the next drawer. Assumes lock is held.
func (s *Session) startInterTurnCountdown(seconds int) {
	if s.interTurnTimer != nil {
		s.interTurnTimer.Stop()
	}
	s.interTurnSecondsLeft = seconds
	s.fireEvent(Event{
		Type:    EventInterTurnTick,
		Payload: map[string]interface{}{"seconds": s.interTurnSecondsLeft},
	})
	s.armInterTurnTick(s.TurnID)
}

// armInterTurnTick schedules the next inter-turn tick. Assumes lock is
// held.
func (s *Session) armInterTurnTick(turnID int) {
	s.interTurnTimer = time.AfterFunc(1*time.Second, func() {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		if s.TurnID != turnID || s.Phase != PhaseTurnEnding {
			return
		}
		s.interTurnSecondsLeft--
		if s.interTurnSecondsLeft > 0 {
			s.fireEvent(Event{
				Type:    EventInterTurnTick,
				Payload: map[string]interface{}{"seconds": s.interTurnSecondsLeft},
			})
			s.armInterTurnTick(turnID)
			return
		}
		s.interTurnTimer = nil
		if s.Round > s.Cfg.MaxRounds || s.finishRequested || s.activePlayerCount() < 2 {
			s.finalizeLocked()
			return
		}
		s.Phase = PhaseAwaitingWord
		s.announceDrawer()
	})
}

// cancelTimersLocked stops and nulls all three countdowns. Callbacks
// already past Stop are neutralized by the TurnID bump that every
// transition performs. Assumes lock is held.
func (s *Session) cancelTimersLocked() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	if s.revealTimer != nil {
		s.revealTimer.Stop()
		s.revealTimer = nil
	}
	if s.interTurnTimer != nil {
		s.interTurnTimer.Stop()
		s.interTurnTimer = nil
	}
	s.turnSecondsLeft = 0
	s.interTurnSecondsLeft = 0
}
