package models

import "github.com/google/uuid"

// StatDelta is the per-player outcome of one finished game, handed to the
// persistence collaborator exactly once at finalization.
type StatDelta struct {
	UserID uuid.UUID `json:"user_id"`

	// PointsGained is this session's score, rounded to the nearest integer.
	PointsGained int  `json:"points_gained"`
	Won          bool `json:"won"`

	// NewHighScore is non-zero only when this game's score beat the user's
	// previous lifetime high score.
	NewHighScore int `json:"new_high_score,omitempty"`

	// PowerupUses counts power-ups activated during this session only.
	PowerupUses map[string]int `json:"powerup_uses,omitempty"`

	// Achievements reflects the flags as they stand after this game,
	// including any newly earned ones.
	Achievements Achievements `json:"achievements"`
}
