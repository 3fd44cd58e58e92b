package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vqiu25/inky/internal/models"
)

// PowerupRequest is the inbound activation shape. Position is only
// meaningful for the letter reveal (zero means "server choice"); TargetID
// is only meaningful for effects aimed at another player.
type PowerupRequest struct {
	Key      string
	Position int
	TargetID uuid.UUID
}

// ActivatePowerup dispatches one power-up activation: the usage counter is
// bumped first (an unknown player or key rejects the whole activation
// silently), then the effect is applied and a system chat notice names the
// user and the effect.
func (s *Session) ActivatePowerup(playerID uuid.UUID, req PowerupRequest) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if !s.incrementPowerupUsageLocked(playerID, req.Key) {
		return false
	}
	player := s.playerByID(playerID)

	switch req.Key {
	case models.PowerupTimeIncrease:
		s.adjustTurnCountdown(s.Cfg.TimePowerupDeltaSeconds)
	case models.PowerupTimeDecrease:
		s.adjustTurnCountdown(-s.Cfg.TimePowerupDeltaSeconds)
	case models.PowerupRevealLetter:
		s.forceRevealLocked(req.Position)
	case models.PowerupScoreMultiplier:
		player.MultiplierActive = true
	case models.PowerupInkSplatter:
		s.splatterOthersLocked(playerID)
	case models.PowerupEraseDrawing:
		// Pure instruction to the drawing surface; only usage is tracked.
		s.fireEvent(Event{Type: EventEraseDrawing})
	}

	s.logAction(playerID, "powerup", map[string]interface{}{"key": req.Key})
	s.fireEvent(Event{
		Type: EventSystemChat,
		Payload: map[string]interface{}{
			"message": fmt.Sprintf("%s used %s!", player.User.Username, powerupLabel(req.Key)),
		},
	})
	return true
}

// splatterOthersLocked puts the splash debuff on every active player other
// than the activator. Assumes lock is held.
func (s *Session) splatterOthersLocked(activatorID uuid.UUID) {
	for _, p := range s.Players {
		if p.HasLeft || p.User.ID == activatorID {
			continue
		}
		s.setSplashLocked(p.User.ID, s.Cfg.SplashCapMs)
	}
}

func powerupLabel(key string) string {
	switch key {
	case models.PowerupTimeIncrease:
		return "Time Increase"
	case models.PowerupTimeDecrease:
		return "Time Decrease"
	case models.PowerupRevealLetter:
		return "Reveal Letter"
	case models.PowerupScoreMultiplier:
		return "Score Multiplier"
	case models.PowerupInkSplatter:
		return "Ink Splatter"
	case models.PowerupEraseDrawing:
		return "Erase Drawing"
	default:
		return key
	}
}
