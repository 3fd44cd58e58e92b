package models

import "time"

// GameConfig captures the session tuning knobs loaded at startup.
// See internal/config for how these are resolved from file and env.
type GameConfig struct {
	// MaxPlayers bounds the waiting-room roster.
	MaxPlayers int `mapstructure:"max_players"`

	// MaxRounds is how many full drawer cycles a game lasts.
	MaxRounds int `mapstructure:"max_rounds"`

	// TurnSeconds is the drawing/guessing countdown per turn.
	TurnSeconds int `mapstructure:"turn_seconds"`

	// RevealIntervalSeconds is the period of the progressive letter reveal.
	RevealIntervalSeconds int `mapstructure:"reveal_interval_seconds"`

	// InterTurnSeconds is the pause between turns; DepartureInterTurnSeconds
	// replaces it when the turn ended because a player left.
	InterTurnSeconds          int `mapstructure:"inter_turn_seconds"`
	DepartureInterTurnSeconds int `mapstructure:"departure_inter_turn_seconds"`

	// TimePowerupDeltaSeconds is the amount a time power-up adds to or
	// subtracts from a live turn countdown.
	TimePowerupDeltaSeconds int `mapstructure:"time_powerup_delta_seconds"`

	// SplashCapMs bounds a splash debuff's effective duration.
	SplashCapMs int `mapstructure:"splash_cap_ms"`

	// WordChoiceCount is how many phrase candidates the drawer picks from.
	WordChoiceCount int `mapstructure:"word_choice_count"`
}

// DefaultGameConfig returns the documented defaults.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		MaxPlayers:                6,
		MaxRounds:                 3,
		TurnSeconds:               90,
		RevealIntervalSeconds:     20,
		InterTurnSeconds:          4,
		DepartureInterTurnSeconds: 5,
		TimePowerupDeltaSeconds:   30,
		SplashCapMs:               10000,
		WordChoiceCount:           3,
	}
}

// SplashCap returns SplashCapMs as a time.Duration.
func (c GameConfig) SplashCap() time.Duration {
	return time.Duration(c.SplashCapMs) * time.Millisecond
}
