package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ndquoc/pairmatch/internal/game"
	"github.com/ndquoc/pairmatch/internal/models"
	"github.com/ndquoc/pairmatch/internal/protocol"
)

// Score bonuses.
const (
	matchBonus   = 10 // per matched pair, during play
	winBonus     = 10 // added to the winner's banked score
	forfeitBonus = 5  // added when the opponent abandons the game
)

type outcome int

const (
	outcomeWin outcome = iota
	outcomeLoss
	outcomeDraw
)

// flipCardLocked handles one FLIP_CARD: validates the flip, applies it,
// and either restarts the turn timer (first flip) or schedules the
// match resolution after the settle delay (second flip).
func (m *Manager) flipCardLocked(h Handler, player *models.Player, payload protocol.FlipPayload) {
	room, ok := m.rooms.Get(payload.RoomID)
	if !ok {
		m.sendErrorLocked(h, "Error: Room not found.")
		return
	}
	if room.Status != game.RoomPlaying || room.State == nil {
		return
	}

	state := room.State
	if models.KeyOf(state.CurrentPlayer) != player.Key() {
		m.sendErrorLocked(h, "It's not your turn.")
		return
	}
	if room.FlipCount >= 2 {
		m.sendErrorLocked(h, "Two cards flipped. Please wait for the result.")
		return
	}
	if !state.CanFlip(payload.CardIndex) {
		return
	}

	m.cancelTurnTimerLocked(room.ID)

	state.CardFlipped[payload.CardIndex] = true
	room.FlippedIdx[room.FlipCount] = payload.CardIndex
	room.FlipCount++

	if room.FlipCount == 1 {
		state.Message = player.Username + " flipped 1 card..."
		room.StampTurn(m.TurnDuration)
		m.broadcastToRoomLocked(room, protocol.New(protocol.TypeGameUpdate, protocol.ServerName, state), nil)
		m.startTurnTimerLocked(room)
		return
	}

	state.Message = "Get ready!"
	room.StampTurn(m.SettleDelay)
	m.broadcastToRoomLocked(room, protocol.New(protocol.TypeGameUpdate, protocol.ServerName, state), nil)
	m.scheduleSettleLocked(room, player.Key())
}

// scheduleSettleLocked arms the deferred match resolution for the two
// pending flips. The callback captures the room's turn sequence so a
// resolution that raced with a leave or teardown becomes a no-op.
func (m *Manager) scheduleSettleLocked(room *game.Room, flipper models.Key) {
	if t, ok := m.settleTimers[room.ID]; ok {
		t.Stop()
	}
	room.TurnSeq++
	seq := room.TurnSeq
	roomID := room.ID
	m.settleTimers[roomID] = time.AfterFunc(m.SettleDelay, func() {
		m.resolveFlips(roomID, flipper, seq)
	})
}

// resolveFlips runs after the settle delay: scores a match or hides the
// mismatched pair, then passes the turn. Fired from a timer goroutine.
func (m *Manager) resolveFlips(roomID string, flipper models.Key, seq int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.settleTimers, roomID)

	room, ok := m.rooms.Get(roomID)
	if !ok || room.Status != game.RoomPlaying || room.State == nil || room.TurnSeq != seq {
		return
	}

	state := room.State
	i, j := room.FlippedIdx[0], room.FlippedIdx[1]
	if i < 0 || j < 0 {
		return
	}

	var message string
	if state.CardValues[i] == state.CardValues[j] {
		state.CardMatched[i] = true
		state.CardMatched[j] = true

		var scorer *models.Player
		for _, p := range room.Players {
			if p.Key() == flipper {
				scorer = p
			}
		}
		if scorer != nil {
			state.Scores[scorer.Username] += matchBonus
			message = scorer.Username + " scored a point!"
		} else {
			message = "Pair matched!"
		}

		if state.IsFinished() {
			m.finishGameLocked(room)
			return
		}
	} else {
		state.CardFlipped[i] = false
		state.CardFlipped[j] = false
		message = "No match!"
	}

	m.switchTurnLocked(room)
	room.ResetFlips()
	state.Message = message + " Turn: " + state.CurrentPlayer
	room.StampTurn(m.TurnDuration)

	m.broadcastToRoomLocked(room, protocol.New(protocol.TypeGameUpdate, protocol.ServerName, state), nil)
	m.startTurnTimerLocked(room)
}

// switchTurnLocked hands the turn to the other participant.
func (m *Manager) switchTurnLocked(room *game.Room) {
	next := room.Opponent(models.KeyOf(room.State.CurrentPlayer))
	if next == nil {
		next = room.Host
	}
	room.State.CurrentPlayer = next.Username
}

// startTurnTimerLocked arms the turn deadline for the room, replacing
// any timer already pending. The callback validates the captured turn
// sequence before acting, so a stale fire cannot override a move that
// already advanced the turn.
func (m *Manager) startTurnTimerLocked(room *game.Room) {
	if t, ok := m.turnTimers[room.ID]; ok {
		t.Stop()
	}
	room.TurnSeq++
	seq := room.TurnSeq
	roomID := room.ID
	m.turnTimers[roomID] = time.AfterFunc(m.TurnDuration, func() {
		m.turnTimeout(roomID, seq)
	})
}

// turnTimeout expires the current turn: a single pending flip is hidden
// again and the turn passes. Fired from a timer goroutine.
func (m *Manager) turnTimeout(roomID string, seq int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms.Get(roomID)
	if !ok || room.Status != game.RoomPlaying || room.State == nil || room.TurnSeq != seq {
		return
	}
	delete(m.turnTimers, roomID)

	state := room.State
	if room.FlipCount == 1 && room.FlippedIdx[0] >= 0 {
		state.CardFlipped[room.FlippedIdx[0]] = false
	}
	room.ResetFlips()

	m.switchTurnLocked(room)
	state.Message = "Time's up! Switching to " + state.CurrentPlayer + "'s turn."
	room.StampTurn(m.TurnDuration)

	m.broadcastToRoomLocked(room, protocol.New(protocol.TypeGameUpdate, protocol.ServerName, state), nil)
	m.startTurnTimerLocked(room)
}

// cancelTurnTimerLocked stops the pending turn timer for a room.
func (m *Manager) cancelTurnTimerLocked(roomID string) {
	if t, ok := m.turnTimers[roomID]; ok {
		t.Stop()
		delete(m.turnTimers, roomID)
	}
}

// cancelTimersLocked stops both the turn timer and any pending settle
// callback for a room.
func (m *Manager) cancelTimersLocked(roomID string) {
	m.cancelTurnTimerLocked(roomID)
	if t, ok := m.settleTimers[roomID]; ok {
		t.Stop()
		delete(m.settleTimers, roomID)
	}
}

// finishGameLocked ends the match: banks final scores with the win
// bonus, persists every participant's stats, publishes the match record
// and broadcasts GAME_OVER.
func (m *Manager) finishGameLocked(room *game.Room) {
	state := room.State
	room.Status = game.RoomFinished
	state.GameStatus = game.GameFinished
	m.cancelTimersLocked(room.ID)

	var winner, loser *models.Player
	if len(room.Players) == 2 {
		a, b := room.Players[0], room.Players[1]
		switch {
		case state.Scores[a.Username] > state.Scores[b.Username]:
			winner, loser = a, b
		case state.Scores[b.Username] > state.Scores[a.Username]:
			winner, loser = b, a
		}
	}
	isDraw := winner == nil

	var message string
	if isDraw {
		message = fmt.Sprintf("Game Over! It's a draw with %d points!", state.Scores[room.Players[0].Username])
		for _, p := range room.Players {
			m.applyStatsLocked(p, state.Scores[p.Username], outcomeDraw)
		}
	} else {
		message = fmt.Sprintf("Game Over! %s wins with %d points!", winner.Username, state.Scores[winner.Username])
		m.applyStatsLocked(winner, state.Scores[winner.Username]+winBonus, outcomeWin)
		m.applyStatsLocked(loser, state.Scores[loser.Username], outcomeLoss)
	}

	state.Message = message
	state.TurnDuration = 0
	m.log.Infof("Room %s finished: %s", room.ID, message)

	winnerName := ""
	if winner != nil {
		winnerName = winner.Username
	}
	m.publishRecordLocked(room, winnerName, isDraw)

	m.broadcastToRoomLocked(room, protocol.New(protocol.TypeGameOver, protocol.ServerName, state), nil)
	m.broadcastScoreboardLocked()
	m.broadcastRoomListLocked()
}

// applyStatsLocked adds a finished match's contribution to a player's
// lifetime counters and persists them. Persistence runs off the manager
// goroutine and failures are logged, never fatal.
func (m *Manager) applyStatsLocked(player *models.Player, scoreDelta int, result outcome) {
	player.TotalScore += scoreDelta
	switch result {
	case outcomeWin:
		player.TotalWins++
	case outcomeLoss:
		player.TotalLosses++
	case outcomeDraw:
		player.TotalDraws++
	}

	if m.store == nil {
		return
	}
	snapshot := *player
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := m.store.UpdateStats(ctx, &snapshot); err != nil {
			m.log.Warnf("could not persist stats for %s: %v", snapshot.Username, err)
		}
	}()
}

// publishRecordLocked queues the finished match for the historian.
func (m *Manager) publishRecordLocked(room *game.Room, winnerName string, isDraw bool) {
	if m.recorder == nil || room.State == nil || len(room.Players) < 2 {
		return
	}
	p1, p2 := room.Players[0], room.Players[1]
	rec := models.MatchRecord{
		RoomID:         room.ID,
		PlayerOne:      p1.Username,
		PlayerTwo:      p2.Username,
		PlayerOneScore: room.State.Scores[p1.Username],
		PlayerTwoScore: room.State.Scores[p2.Username],
		Winner:         winnerName,
		IsDraw:         isDraw,
		FinishedAt:     time.Now().UnixMilli(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := m.recorder.PublishMatchResult(ctx, rec); err != nil {
			m.log.Warnf("could not publish match record for room %s: %v", rec.RoomID, err)
		}
	}()
}
