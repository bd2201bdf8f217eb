package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ndquoc/pairmatch/internal/models"
)

// LoadAll returns every player row. Used once at startup to warm the
// in-memory directory.
func (s *Store) LoadAll(ctx context.Context) ([]*models.Player, error) {
	q := `
	SELECT username, total_score, total_wins, total_losses, total_draws
	FROM players
	`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p := &models.Player{Status: models.StatusOffline}
		if err := rows.Scan(
			&p.Username, &p.TotalScore, &p.TotalWins, &p.TotalLosses, &p.TotalDraws,
		); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading player rows: %w", err)
	}
	return players, nil
}

// GetByUsername fetches one player, matching case-insensitively.
// Returns (nil, nil) when no such player exists.
func (s *Store) GetByUsername(ctx context.Context, username string) (*models.Player, error) {
	p := &models.Player{Status: models.StatusOffline}
	q := `
	SELECT username, total_score, total_wins, total_losses, total_draws
	FROM players
	WHERE LOWER(username)=LOWER($1)
	`
	err := s.pool.QueryRow(ctx, q, username).Scan(
		&p.Username, &p.TotalScore, &p.TotalWins, &p.TotalLosses, &p.TotalDraws,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player %q: %w", username, err)
	}
	return p, nil
}

// Insert creates a player row with zeroed stats.
func (s *Store) Insert(ctx context.Context, p *models.Player) error {
	q := `INSERT INTO players (username, total_score, total_wins, total_losses, total_draws)
	      VALUES ($1, $2, $3, $4, $5)`

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			p.Username, p.TotalScore, p.TotalWins, p.TotalLosses, p.TotalDraws,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert player %q: %w", p.Username, err)
	}
	return nil
}

// UpdateStats writes the player's accumulated totals back to their row.
func (s *Store) UpdateStats(ctx context.Context, p *models.Player) error {
	q := `
	UPDATE players
	SET total_score=$1, total_wins=$2, total_losses=$3, total_draws=$4
	WHERE LOWER(username)=LOWER($5)
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			p.TotalScore, p.TotalWins, p.TotalLosses, p.TotalDraws, p.Username,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to update stats for %q: %w", p.Username, err)
	}
	return nil
}
