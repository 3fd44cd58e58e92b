package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vqiu25/inky/internal/auth"
	"github.com/vqiu25/inky/internal/models"
)

// CreateUser hashes the password and inserts the user row with zeroed
// lifetime stats and power-up counters.
func CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	hash, err := auth.HashPassword(user.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash

	if user.PowerupUses == nil {
		user.PowerupUses = models.NewPowerupCounters()
	}
	powerups, err := json.Marshal(user.PowerupUses)
	if err != nil {
		return fmt.Errorf("failed to marshal powerup counters: %w", err)
	}
	achievements, err := json.Marshal(user.Achievements)
	if err != nil {
		return fmt.Errorf("failed to marshal achievements: %w", err)
	}

	q := `INSERT INTO users (id, email, password, username, avatar, is_ephemeral,
	        games_played, total_points, high_score, wins, powerup_uses, achievements)
	      VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, 0, $7, $8)`

	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			user.ID, user.Email, user.Password, user.Username, user.Avatar,
			user.IsEphemeral, powerups, achievements,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

const userColumns = `id, email, password, username, avatar, is_ephemeral,
	games_played, total_points, high_score, wins, powerup_uses, achievements`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var powerups, achievements []byte
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.Username, &u.Avatar, &u.IsEphemeral,
		&u.GamesPlayed, &u.TotalPoints, &u.HighScore, &u.Wins,
		&powerups, &achievements,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(powerups, &u.PowerupUses); err != nil {
		return nil, fmt.Errorf("failed to decode powerup counters: %w", err)
	}
	if err := json.Unmarshal(achievements, &u.Achievements); err != nil {
		return nil, fmt.Errorf("failed to decode achievements: %w", err)
	}
	return &u, nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(DB.QueryRow(ctx, q, email))
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(DB.QueryRow(ctx, q, id))
}

// AuthenticateUser verifies credentials and returns a signed session token.
func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	user, err := GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.Password)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.IssueToken(user.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}
	return token, nil
}
