package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/ndquoc/pairmatch/internal/models"
)

// MaxPlayers is the seat capacity of every room.
const MaxPlayers = 2

// Room status values.
const (
	RoomWaiting  = "WAITING"
	RoomPlaying  = "PLAYING"
	RoomFinished = "FINISHED"
)

// Room is a matchmaking/session unit: a host, up to two participants,
// their ready and rematch votes, and the embedded game state while a
// match is in progress.
//
// A Room has no lock of its own; all mutation is serialized by the
// session manager that owns the room registry.
type Room struct {
	ID         string           `json:"roomId"`
	Host       *models.Player   `json:"host"`
	Players    []*models.Player `json:"players"`
	MaxPlayers int              `json:"maxPlayers"`
	CardCount  int              `json:"cardCount"`
	Status     string           `json:"status"`

	ReadyPlayers []string `json:"readyPlayers"`

	RematchVotes map[models.Key]bool `json:"-"`
	State        *State              `json:"gameState,omitempty"`

	// Per-turn sub-state while Status is RoomPlaying: how many cards the
	// current player has turned face-up and which ones.
	FlipCount  int    `json:"-"`
	FlippedIdx [2]int `json:"-"`

	// TurnSeq increments every time the turn state changes; deferred
	// timer callbacks capture it when scheduled and no-op if it moved.
	TurnSeq int `json:"-"`
}

// NewRoomID generates a short server-unique room identifier.
func NewRoomID() string {
	return "room-" + uuid.NewString()[:8]
}

// NewRoom creates a waiting room with the host as its only participant.
// The host is implicitly ready.
func NewRoom(id string, host *models.Player, cardCount int) *Room {
	return &Room{
		ID:           id,
		Host:         host,
		Players:      []*models.Player{host},
		MaxPlayers:   MaxPlayers,
		CardCount:    cardCount,
		Status:       RoomWaiting,
		ReadyPlayers: []string{host.Username},
		RematchVotes: make(map[models.Key]bool),
		FlippedIdx:   [2]int{-1, -1},
	}
}

// AddPlayer seats a player if there is room and they are not already in.
func (r *Room) AddPlayer(p *models.Player) bool {
	if len(r.Players) >= r.MaxPlayers || r.HasPlayer(p.Key()) {
		return false
	}
	r.Players = append(r.Players, p)
	return true
}

// RemovePlayer unseats a player and drops their ready and rematch votes.
func (r *Room) RemovePlayer(p *models.Player) {
	key := p.Key()
	for i, seated := range r.Players {
		if seated.Key() == key {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			break
		}
	}
	for i, name := range r.ReadyPlayers {
		if models.KeyOf(name) == key {
			r.ReadyPlayers = append(r.ReadyPlayers[:i], r.ReadyPlayers[i+1:]...)
			break
		}
	}
	delete(r.RematchVotes, key)
}

// HasPlayer reports whether the player is seated in this room.
func (r *Room) HasPlayer(key models.Key) bool {
	for _, p := range r.Players {
		if p.Key() == key {
			return true
		}
	}
	return false
}

// Opponent returns the other seated player, or nil if there is none.
func (r *Room) Opponent(key models.Key) *models.Player {
	for _, p := range r.Players {
		if p.Key() != key {
			return p
		}
	}
	return nil
}

// SetPlayerReady records a player's ready vote, once.
func (r *Room) SetPlayerReady(username string) {
	key := models.KeyOf(username)
	for _, name := range r.ReadyPlayers {
		if models.KeyOf(name) == key {
			return
		}
	}
	r.ReadyPlayers = append(r.ReadyPlayers, username)
}

// AreAllPlayersReady reports whether the game may start. A host waiting
// alone counts as ready; otherwise every seated player must have voted.
func (r *Room) AreAllPlayersReady() bool {
	if len(r.Players) == 1 && r.Players[0].Key() == r.Host.Key() {
		return true
	}
	return len(r.ReadyPlayers) == len(r.Players)
}

// InitializeGame builds a fresh shuffled State, clears rematch votes and
// moves the room to PLAYING. The host always takes the first turn.
func (r *Room) InitializeGame() {
	usernames := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		usernames = append(usernames, p.Username)
		r.RematchVotes[p.Key()] = false
	}

	r.State = NewState(r.ID, r.CardCount, usernames)
	r.State.CurrentPlayer = r.Host.Username
	r.State.Message = "GO! Turn: " + r.Host.Username
	r.Status = RoomPlaying
	r.ResetFlips()
}

// ResetToWaiting returns the room to the waiting state with only the
// host implicitly ready. Used when a participant leaves and the room
// survives.
func (r *Room) ResetToWaiting() {
	r.Status = RoomWaiting
	r.State = nil
	r.RematchVotes = make(map[models.Key]bool)
	r.ReadyPlayers = []string{r.Host.Username}
	r.ResetFlips()
}

// ResetFlips clears the per-turn flip counter and pending indices.
func (r *Room) ResetFlips() {
	r.FlipCount = 0
	r.FlippedIdx = [2]int{-1, -1}
}

// AllRematchVotesIn reports whether every seated player voted yes.
func (r *Room) AllRematchVotesIn() bool {
	if len(r.Players) < MaxPlayers {
		return false
	}
	for _, p := range r.Players {
		if !r.RematchVotes[p.Key()] {
			return false
		}
	}
	return true
}

// StampTurn marks the start of a turn window on the embedded state.
func (r *Room) StampTurn(duration time.Duration) {
	if r.State == nil {
		return
	}
	r.State.TurnStartTime = time.Now().UnixMilli()
	r.State.TurnDuration = duration.Milliseconds()
}
