package models

import "time"

// MatchRecord is the raw outcome of one finished match, queued for
// asynchronous persistence by the historian service.
type MatchRecord struct {
	RoomID         string `json:"room_id"`
	PlayerOne      string `json:"player_one"`
	PlayerTwo      string `json:"player_two"`
	PlayerOneScore int    `json:"player_one_score"`
	PlayerTwoScore int    `json:"player_two_score"`
	Winner         string `json:"winner_username,omitempty"`
	IsDraw         bool   `json:"is_draw"`
	FinishedAt     int64  `json:"finished_at"` // epoch millis
}

// MatchHistoryEntry is one row of a player's match history, already
// oriented from that player's perspective.
type MatchHistoryEntry struct {
	OpponentName  string    `json:"opponentName"`
	MyScore       int       `json:"myScore"`
	OpponentScore int       `json:"opponentScore"`
	Result        string    `json:"result"` // "Win", "Loss" or "Draw"
	PlayedOn      time.Time `json:"playedOn"`
}
