package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ndquoc/pairmatch/internal/models"
)

const historyLimit = 20

// InsertMatchHistory records one finished match. Called by the
// historian consumer, not the live server.
func (s *Store) InsertMatchHistory(ctx context.Context, rec models.MatchRecord) error {
	q := `INSERT INTO match_history
	      (room_id, player_one, player_two, player_one_score, player_two_score, winner, is_draw, finished_at)
	      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			rec.RoomID, rec.PlayerOne, rec.PlayerTwo,
			rec.PlayerOneScore, rec.PlayerTwoScore,
			rec.Winner, rec.IsDraw,
			time.UnixMilli(rec.FinishedAt),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert match record for room %s: %w", rec.RoomID, err)
	}
	return nil
}

// MatchHistoryForPlayer returns the player's most recent matches,
// newest first, with each row oriented to the requesting player.
func (s *Store) MatchHistoryForPlayer(ctx context.Context, username string) ([]models.MatchHistoryEntry, error) {
	q := `
	SELECT player_one, player_two, player_one_score, player_two_score, winner, is_draw, finished_at
	FROM match_history
	WHERE LOWER(player_one)=LOWER($1) OR LOWER(player_two)=LOWER($1)
	ORDER BY finished_at DESC
	LIMIT $2
	`
	rows, err := s.pool.Query(ctx, q, username, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history for %q: %w", username, err)
	}
	defer rows.Close()

	key := models.KeyOf(username)
	var entries []models.MatchHistoryEntry
	for rows.Next() {
		var (
			p1, p2, winner string
			s1, s2         int
			isDraw         bool
			finishedAt     time.Time
		)
		if err := rows.Scan(&p1, &p2, &s1, &s2, &winner, &isDraw, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match history row: %w", err)
		}

		e := models.MatchHistoryEntry{PlayedOn: finishedAt}
		if models.KeyOf(p1) == key {
			e.OpponentName, e.MyScore, e.OpponentScore = p2, s1, s2
		} else {
			e.OpponentName, e.MyScore, e.OpponentScore = p1, s2, s1
		}
		switch {
		case isDraw:
			e.Result = "Draw"
		case models.KeyOf(winner) == key:
			e.Result = "Win"
		default:
			e.Result = "Loss"
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading match history rows: %w", err)
	}
	return entries, nil
}
