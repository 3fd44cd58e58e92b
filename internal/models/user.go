package models

import "github.com/google/uuid"

// Power-up keys. These are the only counters an identity carries; an
// unknown key is rejected by the session rather than lazily created.
const (
	PowerupTimeIncrease    = "time_increase"
	PowerupTimeDecrease    = "time_decrease"
	PowerupRevealLetter    = "reveal_letter"
	PowerupScoreMultiplier = "score_multiplier"
	PowerupInkSplatter     = "ink_splatter"
	PowerupEraseDrawing    = "erase_drawing"
)

// PowerupKeys lists every valid power-up key in a stable order.
var PowerupKeys = []string{
	PowerupTimeIncrease,
	PowerupTimeDecrease,
	PowerupRevealLetter,
	PowerupScoreMultiplier,
	PowerupInkSplatter,
	PowerupEraseDrawing,
}

// NewPowerupCounters returns a zeroed counter map containing every valid key.
func NewPowerupCounters() map[string]int {
	m := make(map[string]int, len(PowerupKeys))
	for _, k := range PowerupKeys {
		m[k] = 0
	}
	return m
}

// Achievements holds the per-user achievement flags. Each flag is set once
// its threshold is crossed and never cleared.
type Achievements struct {
	GamesPlayed  bool `json:"gamesPlayed"`  // 5+ games played
	TotalPoints  bool `json:"totalPoints"`  // 10000+ lifetime points
	PowerupsUsed bool `json:"powerupsUsed"` // 50+ power-ups activated
	HighScore    bool `json:"highScore"`    // 1000+ points in one game
	Wins         bool `json:"wins"`         // 5+ wins
}

// User is a persisted identity. The session core receives copies of these,
// mutates its own working state, and hands back StatDeltas at game end.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`

	IsEphemeral bool `json:"is_ephemeral"`

	GamesPlayed int `json:"games_played"`
	TotalPoints int `json:"total_points"`
	HighScore   int `json:"high_score"`
	Wins        int `json:"wins"`

	PowerupUses  map[string]int `json:"powerup_uses"`
	Achievements Achievements   `json:"achievements"`
}

// TotalPowerupUses sums every power-up counter.
func (u *User) TotalPowerupUses() int {
	total := 0
	for _, n := range u.PowerupUses {
		total += n
	}
	return total
}
