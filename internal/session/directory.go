package session

import (
	"sort"
	"sync"

	"github.com/ndquoc/pairmatch/internal/models"
)

// Directory is the in-memory cache of every player the process has seen,
// keyed by normalized username. It is the source of truth for presence
// and live stat counters while the server runs.
type Directory struct {
	mu      sync.Mutex
	players map[models.Key]*models.Player
}

// NewDirectory initializes an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		players: make(map[models.Key]*models.Player),
	}
}

// Load caches a batch of players, typically the full set from the store
// at startup. Players already cached are left alone.
func (d *Directory) Load(players []*models.Player) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range players {
		if _, exists := d.players[p.Key()]; !exists {
			d.players[p.Key()] = p
		}
	}
}

// Get returns the cached player for a key, or nil.
func (d *Directory) Get(key models.Key) *models.Player {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.players[key]
}

// Put caches a player.
func (d *Directory) Put(p *models.Player) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.players[p.Key()] = p
}

// Online returns every player currently marked Online.
func (d *Directory) Online() []*models.Player {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []*models.Player{}
	for _, p := range d.players {
		if p.Status == models.StatusOnline {
			out = append(out, p)
		}
	}
	return out
}

// Leaderboard returns all known players sorted by total score, ties
// broken by total wins.
func (d *Directory) Leaderboard() []*models.Player {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.Player, 0, len(d.players))
	for _, p := range d.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].TotalWins > out[j].TotalWins
	})
	return out
}
