package game

import (
	"math"

	"github.com/google/uuid"
)

// guessDeltas computes the points awarded for one correct guess: the
// guesser earns the remaining seconds (doubled when their multiplier is
// armed) and the drawer earns an even split of the base value across the
// active guessers. Fractional drawer shares are kept; rounding happens
// only at the presentation edge. Assumes lock is held.
func (s *Session) guessDeltas(guesser *PlayerState, secondsRemaining int) (guesserDelta, drawerDelta float64) {
	base := float64(secondsRemaining)
	guesserDelta = base
	if guesser.MultiplierActive {
		guesserDelta = base * 2
	}

	divisor := s.activePlayerCount() - 1
	if divisor < 1 {
		divisor = 1
	}
	drawerDelta = base / float64(divisor)
	return guesserDelta, drawerDelta
}

// IncrementPowerupUsage bumps the named per-game counter for one player.
// Returns false, with no broadcast, when either the player is absent from
// the session or the key is not part of the catalogue.
func (s *Session) IncrementPowerupUsage(playerID uuid.UUID, powerupKey string) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.incrementPowerupUsageLocked(playerID, powerupKey)
}

// incrementPowerupUsageLocked is the under-lock form used by the activation
// path. Assumes lock is held.
func (s *Session) incrementPowerupUsageLocked(playerID uuid.UUID, powerupKey string) bool {
	player := s.playerByID(playerID)
	if player == nil {
		s.log.Warnf("powerup usage for unknown player %s, ignoring", playerID)
		return false
	}
	if _, ok := player.User.PowerupUses[powerupKey]; !ok {
		s.log.Warnf("unknown powerup key %q from player %s, ignoring", powerupKey, playerID)
		return false
	}
	player.sessionPowerupUses[powerupKey]++
	return true
}

// roundPoints converts the internal fractional score to the integer shown
// to players and written to lifetime totals.
func roundPoints(points float64) int {
	return int(math.Round(points))
}
