// Package game holds the in-memory state of one card-matching session:
// the room that groups two players and the game state of the match they
// are playing.
package game

import "math/rand"

// Game status values carried on State.GameStatus.
const (
	GamePlaying  = "PLAYING"
	GameFinished = "FINISHED"
)

// cardSymbols is the pool of card face identifiers. A deck of N cards
// uses the first N/2 symbols, each appearing exactly twice.
var cardSymbols = []string{
	"icon-1", "icon-2", "icon-3", "icon-4",
	"icon-5", "icon-6", "icon-7", "icon-8",
	"icon-9", "icon-10", "icon-11", "icon-12",
	"icon-13", "icon-14", "icon-15", "icon-16",
}

// State is the mutable state of one in-progress or finished match.
// It is serialized as-is into GAME_STARTED / GAME_UPDATE / GAME_OVER
// payloads, so clients see exactly what the server tracks.
type State struct {
	RoomID      string   `json:"roomId"`
	CardValues  []string `json:"cardValues"`
	CardFlipped []bool   `json:"cardFlipped"`
	CardMatched []bool   `json:"cardMatched"`

	Scores        map[string]int `json:"scores"`
	CurrentPlayer string         `json:"currentPlayerUsername"`

	// TurnStartTime/TurnDuration let clients render the turn countdown;
	// both are in milliseconds.
	TurnStartTime int64 `json:"turnStartTime"`
	TurnDuration  int64 `json:"turnDuration"`

	GameStatus string `json:"gameStatus"`
	Message    string `json:"message"`
}

// NewState builds a shuffled deck of cardCount cards for the given
// players, with all flip/match bits cleared and all scores at zero.
// cardCount must be even.
func NewState(roomID string, cardCount int, usernames []string) *State {
	pairs := cardCount / 2
	cards := make([]string, 0, cardCount)
	for i := 0; i < pairs; i++ {
		sym := cardSymbols[i%len(cardSymbols)]
		cards = append(cards, sym, sym)
	}
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})

	scores := make(map[string]int, len(usernames))
	for _, u := range usernames {
		scores[u] = 0
	}

	return &State{
		RoomID:      roomID,
		CardValues:  cards,
		CardFlipped: make([]bool, cardCount),
		CardMatched: make([]bool, cardCount),
		Scores:      scores,
		GameStatus:  GamePlaying,
	}
}

// IsFinished reports whether every card has been matched.
func (s *State) IsFinished() bool {
	for _, matched := range s.CardMatched {
		if !matched {
			return false
		}
	}
	return true
}

// FlippedUnmatched counts cards currently face-up but not yet matched.
func (s *State) FlippedUnmatched() int {
	n := 0
	for i, flipped := range s.CardFlipped {
		if flipped && !s.CardMatched[i] {
			n++
		}
	}
	return n
}

// CanFlip reports whether index i is a legal flip target: in range,
// face-down and not already matched.
func (s *State) CanFlip(i int) bool {
	if i < 0 || i >= len(s.CardValues) {
		return false
	}
	return !s.CardFlipped[i] && !s.CardMatched[i]
}
