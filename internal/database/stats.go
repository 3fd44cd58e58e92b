package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vqiu25/inky/internal/models"
)

// ApplyStatDeltas persists one finished game's per-player outcomes in a
// single transaction: lifetime counters, high scores, win counts, power-up
// usage, and achievement flags. It is invoked exactly once per game.
func ApplyStatDeltas(ctx context.Context, sessionID uuid.UUID, deltas []models.StatDelta) error {
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, status)
			VALUES ($1, 'completed')
			ON CONFLICT (id) DO UPDATE SET status = 'completed'
		`
		if _, err := tx.Exec(ctx, upsertGame, sessionID); err != nil {
			return err
		}

		for _, d := range deltas {
			achievements, err := json.Marshal(d.Achievements)
			if err != nil {
				return fmt.Errorf("failed to marshal achievements for %s: %w", d.UserID, err)
			}
			sessionUses, err := json.Marshal(d.PowerupUses)
			if err != nil {
				return fmt.Errorf("failed to marshal powerup uses for %s: %w", d.UserID, err)
			}

			// powerup_uses holds lifetime counters keyed by power-up name;
			// merge the session's counts into it field by field.
			updateUser := `
				UPDATE users SET
					games_played = games_played + 1,
					total_points = total_points + $2,
					high_score   = GREATEST(high_score, $3),
					wins         = wins + $4,
					powerup_uses = (
						SELECT jsonb_object_agg(k, COALESCE((powerup_uses->>k)::int, 0) + COALESCE(($5::jsonb->>k)::int, 0))
						FROM jsonb_object_keys(powerup_uses) AS k
					),
					achievements = $6
				WHERE id = $1
			`
			winInc := 0
			if d.Won {
				winInc = 1
			}
			if _, err := tx.Exec(ctx, updateUser,
				d.UserID, d.PointsGained, d.NewHighScore, winInc, sessionUses, achievements,
			); err != nil {
				return err
			}

			insertResult := `
				INSERT INTO game_results (game_id, player_id, score, did_win)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (game_id, player_id) DO UPDATE SET score=$3, did_win=$4
			`
			if _, err := tx.Exec(ctx, insertResult, sessionID, d.UserID, d.PointsGained, d.Won); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx apply stat deltas: %w", err)
	}
	return nil
}
