package config

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/vqiu25/inky/internal/models"
)

// AppConfig is the full process configuration: HTTP listener plus the
// session tuning knobs.
type AppConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	LogLevel string            `mapstructure:"log_level"`
	Game     models.GameConfig `mapstructure:"game"`
}

// Load reads inky.yaml from the working directory if present, then applies
// INKY_* environment overrides (INKY_GAME_TURN_SECONDS and friends).
// Missing values fall back to defaults; a malformed file is an error.
func Load(logger *logrus.Logger) (*AppConfig, error) {
	v := viper.New()

	v.SetConfigName("inky")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := models.DefaultGameConfig()
	v.SetDefault("host", "")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "debug")
	v.SetDefault("game.max_players", defaults.MaxPlayers)
	v.SetDefault("game.max_rounds", defaults.MaxRounds)
	v.SetDefault("game.turn_seconds", defaults.TurnSeconds)
	v.SetDefault("game.reveal_interval_seconds", defaults.RevealIntervalSeconds)
	v.SetDefault("game.inter_turn_seconds", defaults.InterTurnSeconds)
	v.SetDefault("game.departure_inter_turn_seconds", defaults.DepartureInterTurnSeconds)
	v.SetDefault("game.time_powerup_delta_seconds", defaults.TimePowerupDeltaSeconds)
	v.SetDefault("game.splash_cap_ms", defaults.SplashCapMs)
	v.SetDefault("game.word_choice_count", defaults.WordChoiceCount)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
		logger.Info("no inky.yaml found, using defaults and environment")
	} else {
		logger.Infof("loaded configuration from %s", v.ConfigFileUsed())
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
