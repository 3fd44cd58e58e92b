package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vqiu25/inky/internal/cache"
	"github.com/vqiu25/inky/internal/models"
)

// Lifetime achievement thresholds.
const (
	achievementGamesPlayed  = 5
	achievementTotalPoints  = 10000
	achievementPowerupsUsed = 50
	achievementHighScore    = 1000
	achievementWins         = 5
)

// finalizeLocked computes final standings and stat deltas for every
// participant, departed players included, broadcasts the summary, hands the
// deltas to the persistence collaborator and retires the session. Exactly
// once per game. Assumes lock is held.
func (s *Session) finalizeLocked() {
	if s.finalized {
		return
	}
	s.finalized = true
	s.cancelTimersLocked()

	// Maximal-points players share the win.
	best := -1.0
	for _, p := range s.Players {
		if p.Points > best {
			best = p.Points
		}
	}

	deltas := make([]models.StatDelta, 0, len(s.Players))
	standings := make([]map[string]interface{}, 0, len(s.Players))
	for _, p := range s.Players {
		won := p.Points == best
		sessionPoints := roundPoints(p.Points)

		projected := p.User
		projected.GamesPlayed++
		projected.TotalPoints += sessionPoints
		if sessionPoints > projected.HighScore {
			projected.HighScore = sessionPoints
		}
		if won {
			projected.Wins++
		}
		for k, n := range p.sessionPowerupUses {
			projected.PowerupUses[k] += n
		}

		ach := projected.Achievements
		if projected.GamesPlayed >= achievementGamesPlayed {
			ach.GamesPlayed = true
		}
		if projected.TotalPoints >= achievementTotalPoints {
			ach.TotalPoints = true
		}
		if projected.TotalPowerupUses() >= achievementPowerupsUsed {
			ach.PowerupsUsed = true
		}
		if projected.HighScore >= achievementHighScore {
			ach.HighScore = true
		}
		if projected.Wins >= achievementWins {
			ach.Wins = true
		}

		deltas = append(deltas, models.StatDelta{
			UserID:       p.User.ID,
			PointsGained: sessionPoints,
			Won:          won,
			NewHighScore: projected.HighScore,
			PowerupUses:  copyCounters(p.sessionPowerupUses),
			Achievements: ach,
		})
		standings = append(standings, map[string]interface{}{
			"id":           p.User.ID.String(),
			"username":     p.User.Username,
			"points":       sessionPoints,
			"won":          won,
			"left":         p.HasLeft,
			"achievements": ach,
		})
	}

	s.Phase = PhaseFinished
	s.logAction(uuid.Nil, "game_finished", map[string]interface{}{"players": len(deltas)})
	s.fireEvent(Event{
		Type:    EventGameFinished,
		Payload: map[string]interface{}{"standings": standings},
	})

	s.publishSummary(deltas)
	if s.OnGameEnd != nil {
		go s.OnGameEnd(s.ID, deltas)
	}
	s.signalIdle()
}

// publishSummary pushes the finalized deltas onto the action queue for the
// offline consumer. Assumes lock is held; the publish itself is async.
func (s *Session) publishSummary(deltas []models.StatDelta) {
	record := cache.SessionSummaryRecord{
		SessionID: s.ID,
		Deltas:    deltas,
		Timestamp: time.Now().UnixMilli(),
	}
	go func(rec cache.SessionSummaryRecord) {
		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishSessionSummary(ctx, rec); err != nil {
			s.log.Warnf("failed to publish session summary: %v", err)
		}
	}(record)
}

func copyCounters(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
