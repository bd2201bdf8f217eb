package models

import "strings"

// Status describes a player's presence from the server's point of view.
type Status string

const (
	StatusOffline Status = "Offline"
	StatusOnline  Status = "Online"
	StatusInRoom  Status = "InRoom"
)

// Key is the normalized (lower-cased) username used for all map and set
// lookups. The display-cased username is kept on the Player itself.
type Key string

// KeyOf normalizes a username into its lookup key.
func KeyOf(username string) Key {
	return Key(strings.ToLower(username))
}

// Player is a known player: persisted lifetime stats plus the live
// presence status for the running process.
type Player struct {
	Username    string `json:"username"`
	TotalScore  int    `json:"totalScore"`
	TotalWins   int    `json:"totalWins"`
	TotalLosses int    `json:"totalLosses"`
	TotalDraws  int    `json:"totalDraws"`
	Status      Status `json:"status"`
}

// NewPlayer builds a fresh offline player with zeroed stats.
func NewPlayer(username string) *Player {
	return &Player{
		Username: username,
		Status:   StatusOffline,
	}
}

// Key returns the player's normalized identity key.
func (p *Player) Key() Key {
	return KeyOf(p.Username)
}
