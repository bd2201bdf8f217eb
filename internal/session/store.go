package session

import (
	"context"

	"github.com/ndquoc/pairmatch/internal/models"
)

// PlayerStore is the persistence collaborator for player stats and match
// history. Every call is allowed to fail: the manager logs the error and
// keeps playing with its in-memory state as the authority.
type PlayerStore interface {
	// LoadAll returns every known player, used to warm the directory at
	// startup.
	LoadAll(ctx context.Context) ([]*models.Player, error)
	// GetByUsername returns the stored player, or (nil, nil) if the
	// username has never been seen.
	GetByUsername(ctx context.Context, username string) (*models.Player, error)
	// Insert stores a brand-new player row.
	Insert(ctx context.Context, p *models.Player) error
	// UpdateStats writes the player's current lifetime counters.
	UpdateStats(ctx context.Context, p *models.Player) error
	// MatchHistoryForPlayer returns the player's most recent finished
	// matches, newest first.
	MatchHistoryForPlayer(ctx context.Context, username string) ([]models.MatchHistoryEntry, error)
}

// MatchRecorder receives the outcome of every finished match for
// asynchronous persistence (the historian queue).
type MatchRecorder interface {
	PublishMatchResult(ctx context.Context, rec models.MatchRecord) error
}
