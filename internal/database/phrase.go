package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vqiu25/inky/internal/models"
)

// LoadPhrases returns up to n random phrase strings. The session edge calls
// this once per word selection to offer the drawer its candidates.
func LoadPhrases(ctx context.Context, n int) ([]string, error) {
	q := `SELECT text FROM phrases ORDER BY random() LIMIT $1`
	rows, err := DB.Query(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query phrases: %w", err)
	}
	defer rows.Close()

	var phrases []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan phrase: %w", err)
		}
		phrases = append(phrases, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("phrase rows error: %w", err)
	}
	return phrases, nil
}

// CreatePhrase inserts a new phrase.
func CreatePhrase(ctx context.Context, p *models.Phrase) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate phrase id: %w", err)
		}
		p.ID = id
	}

	q := `INSERT INTO phrases (id, text, created_by) VALUES ($1, $2, $3)`
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, p.ID, p.Text, p.CreatedBy)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert phrase: %w", err)
	}
	return nil
}

// ListPhrases returns every stored phrase.
func ListPhrases(ctx context.Context) ([]models.Phrase, error) {
	q := `SELECT id, text, created_by FROM phrases ORDER BY text`
	rows, err := DB.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query phrases: %w", err)
	}
	defer rows.Close()

	var phrases []models.Phrase
	for rows.Next() {
		var p models.Phrase
		if err := rows.Scan(&p.ID, &p.Text, &p.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan phrase: %w", err)
		}
		phrases = append(phrases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("phrase rows error: %w", err)
	}
	return phrases, nil
}
