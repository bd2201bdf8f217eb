package session

import (
	"fmt"

	"github.com/ndquoc/pairmatch/internal/game"
	"github.com/ndquoc/pairmatch/internal/models"
	"github.com/ndquoc/pairmatch/internal/protocol"
)

// Deck size bounds; decks must be even so every value pairs up.
const (
	minCardCount     = 4
	maxCardCount     = 32
	defaultCardCount = 16
)

func validCardCount(n int) bool {
	return n >= minCardCount && n <= maxCardCount && n%2 == 0
}

// createRoomLocked creates a room hosted by player, optionally sending
// an invite to target. The room is created even when the invite cannot
// be delivered.
func (m *Manager) createRoomLocked(h Handler, player *models.Player, cardCount int, target string) {
	if m.rooms.FindByPlayer(player.Key()) != nil {
		m.sendErrorLocked(h, "Error: You are already in a room.")
		return
	}
	if cardCount == 0 {
		cardCount = defaultCardCount
	}
	if !validCardCount(cardCount) {
		m.sendErrorLocked(h, fmt.Sprintf("Error: Invalid card count %d.", cardCount))
		return
	}

	room := game.NewRoom(game.NewRoomID(), player, cardCount)
	m.rooms.Add(room)
	player.Status = models.StatusOnline

	h.Send(protocol.New(protocol.TypeCreateRoomSuccess, protocol.ServerName, room))
	m.log.Infof("New room created: %s by %s", room.ID, player.Username)

	if target != "" {
		m.sendInviteLocked(h, player, room, target)
	}

	m.broadcastPlayerListLocked()
	m.broadcastRoomListLocked()
}

// invitePlayerLocked relays a host's invite for the room they are
// waiting in.
func (m *Manager) invitePlayerLocked(h Handler, player *models.Player, target string) {
	room := m.rooms.FindByPlayer(player.Key())
	if room == nil || room.Host.Key() != player.Key() {
		m.sendErrorLocked(h, "Error: You are not the host.")
		return
	}
	if room.Status != game.RoomWaiting {
		m.sendErrorLocked(h, "Error: The game has already started.")
		return
	}
	if m.sendInviteLocked(h, player, room, target) {
		m.sendErrorLocked(h, "Invite sent to "+target)
	}
}

// sendInviteLocked delivers a RECEIVE_INVITE to target if they are
// online and idle; otherwise the inviter gets an error notice. Returns
// whether the invite was delivered.
func (m *Manager) sendInviteLocked(h Handler, inviter *models.Player, room *game.Room, target string) bool {
	targetHandler := m.handlerFor(models.KeyOf(target))
	if targetHandler == nil {
		m.sendErrorLocked(h, "Error: Player "+target+" not found.")
		return false
	}
	targetPlayer := m.conns[targetHandler]
	if targetPlayer == nil || targetPlayer.Status != models.StatusOnline {
		m.sendErrorLocked(h, "Player "+target+" is busy.")
		return false
	}
	targetHandler.Send(protocol.New(protocol.TypeReceiveInvite, inviter.Username, room.ID))
	return true
}

// declineInviteLocked notifies a room's host that the invitee said no.
func (m *Manager) declineInviteLocked(player *models.Player, roomID string) {
	room, ok := m.rooms.Get(roomID)
	if !ok {
		return
	}
	hostHandler := m.handlerFor(room.Host.Key())
	if hostHandler == nil {
		return
	}
	hostHandler.Send(protocol.New(protocol.TypeInviteDeclined, player.Username,
		"Player "+player.Username+" declined the invite."))
}

// joinRoomLocked seats a lobby player in a waiting room by id. A player
// already seated anywhere, including hosting their own waiting room, is
// rejected; they must leave first.
func (m *Manager) joinRoomLocked(h Handler, player *models.Player, roomID string) {
	if m.rooms.FindByPlayer(player.Key()) != nil {
		h.Send(protocol.New(protocol.TypeJoinRoomFailed, protocol.ServerName, "You are already in another room."))
		return
	}

	room, ok := m.rooms.Get(roomID)
	if !ok {
		h.Send(protocol.New(protocol.TypeJoinRoomFailed, protocol.ServerName, "Room not found."))
		return
	}
	if room.Status != game.RoomWaiting {
		h.Send(protocol.New(protocol.TypeJoinRoomFailed, protocol.ServerName, "The game has already started."))
		return
	}
	if !room.AddPlayer(player) {
		h.Send(protocol.New(protocol.TypeJoinRoomFailed, protocol.ServerName, "Room is full or you are already in it."))
		return
	}

	if len(room.Players) == room.MaxPlayers {
		room.Host.Status = models.StatusInRoom
		player.Status = models.StatusInRoom
	}

	m.log.Infof("[JOIN] %s joined room %s (%d players)", player.Username, room.ID, len(room.Players))

	h.Send(protocol.New(protocol.TypeJoinRoomSuccess, protocol.ServerName, room))
	m.broadcastRoomStateLocked(room)
	m.broadcastPlayerListLocked()
	m.broadcastRoomListLocked()
}

// playerReadyLocked records a guest's ready vote. The host is ready by
// definition and is told so instead.
func (m *Manager) playerReadyLocked(h Handler, player *models.Player) {
	room := m.rooms.FindByPlayer(player.Key())
	if room == nil {
		m.sendErrorLocked(h, "Error: You are not in a room.")
		return
	}
	if player.Key() == room.Host.Key() {
		m.sendErrorLocked(h, "You are the host, you are ready by default.")
		return
	}
	room.SetPlayerReady(player.Username)
	m.broadcastRoomStateLocked(room)
}

// startGameLocked begins the match on the host's command once both
// seats are filled and ready.
func (m *Manager) startGameLocked(h Handler, player *models.Player) {
	room := m.rooms.FindByPlayer(player.Key())
	if room == nil || room.Host.Key() != player.Key() {
		m.sendErrorLocked(h, "Error: You are not the host.")
		return
	}
	if room.Status != game.RoomWaiting {
		m.sendErrorLocked(h, "Error: The game has already started.")
		return
	}
	if len(room.Players) < room.MaxPlayers {
		m.sendErrorLocked(h, "Error: Need 2 players to start.")
		return
	}
	if !room.AreAllPlayersReady() {
		m.sendErrorLocked(h, "Error: Not all players are ready.")
		return
	}
	m.startMatchLocked(room)
}

// startMatchLocked initializes a fresh game in the room, announces it
// and arms the first turn timer. Used for both first starts and
// rematches.
func (m *Manager) startMatchLocked(room *game.Room) {
	room.InitializeGame()
	room.StampTurn(m.TurnDuration)
	for _, p := range room.Players {
		p.Status = models.StatusInRoom
		room.SetPlayerReady(p.Username)
	}

	m.log.Infof("Game started in room %s (%d cards), %s to move",
		room.ID, room.CardCount, room.State.CurrentPlayer)

	m.broadcastToRoomLocked(room, protocol.New(protocol.TypeGameStarted, protocol.ServerName, room.State), nil)
	m.startTurnTimerLocked(room)
	m.broadcastRoomListLocked()
}

// leaveRoomLocked removes a player from a room with all the protocol
// consequences: forfeiting an in-progress game to the opponent,
// transferring hostship, resetting or destroying the room.
func (m *Manager) leaveRoomLocked(player *models.Player, roomID string) {
	room, ok := m.rooms.Get(roomID)
	if !ok || !room.HasPlayer(player.Key()) {
		return
	}

	m.cancelTimersLocked(room.ID)

	wasPlaying := room.Status == game.RoomPlaying
	if wasPlaying && len(room.Players) == room.MaxPlayers {
		m.forfeitLocked(room, player)
	}

	m.removeFromRoomLocked(room, player)

	if wasPlaying {
		m.broadcastScoreboardLocked()
	}
	m.broadcastPlayerListLocked()
	m.broadcastRoomListLocked()
}

// forfeitLocked settles an abandoned game in favor of the remaining
// player: their match score plus a completion bonus is banked, the
// leaver gets nothing, and the terminal state is announced.
func (m *Manager) forfeitLocked(room *game.Room, leaver *models.Player) {
	winner := room.Opponent(leaver.Key())
	if winner == nil || room.State == nil {
		return
	}

	state := room.State
	m.applyStatsLocked(winner, state.Scores[winner.Username]+forfeitBonus, outcomeWin)
	m.applyStatsLocked(leaver, 0, outcomeLoss)

	state.GameStatus = game.GameFinished
	state.Message = leaver.Username + " left! " + winner.Username + " wins!"
	state.TurnDuration = 0

	m.publishRecordLocked(room, winner.Username, false)
	m.broadcastToRoomLocked(room,
		protocol.New(protocol.TypeOpponentLeft, protocol.ServerName, state),
		m.handlerFor(leaver.Key()))
}

// removeFromRoomLocked unseats the player and either destroys the empty
// room or resets it to a single-participant waiting room, transferring
// hostship if needed.
func (m *Manager) removeFromRoomLocked(room *game.Room, player *models.Player) {
	room.RemovePlayer(player)
	player.Status = models.StatusOnline

	if len(room.Players) == 0 {
		m.rooms.Delete(room.ID)
		m.log.Infof("Room %s was disbanded (empty).", room.ID)
		return
	}

	remaining := room.Players[0]
	remaining.Status = models.StatusOnline
	if room.Host.Key() == player.Key() {
		room.Host = remaining
		m.log.Infof("Host %s left room %s, %s is the new host.", player.Username, room.ID, remaining.Username)
	} else {
		m.log.Infof("Player %s left room %s.", player.Username, room.ID)
	}

	room.ResetToWaiting()

	m.broadcastRoomStateLocked(room)
}

// rematchRequestLocked records a rematch vote in a finished room and
// starts a fresh game once both participants have voted.
func (m *Manager) rematchRequestLocked(h Handler, player *models.Player) {
	room := m.rooms.FindByPlayer(player.Key())
	if room == nil || room.Status != game.RoomFinished {
		return
	}

	room.RematchVotes[player.Key()] = true
	m.log.Infof("%s requested a rematch in room %s", player.Username, room.ID)

	if room.AllRematchVotesIn() {
		m.startMatchLocked(room)
		return
	}

	h.Send(protocol.New(protocol.TypeRematchRequest, player.Username,
		"Rematch request sent. Waiting for opponent."))

	if opp := room.Opponent(player.Key()); opp != nil {
		if oh := m.handlerFor(opp.Key()); oh != nil {
			oh.Send(protocol.New(protocol.TypeRematchRequest, player.Username,
				"Opponent wants a rematch. Do you agree?"))
		}
	}
}

// rematchResponseLocked handles the answer to a rematch request: an
// acceptance counts as the second vote, a decline removes the player
// from the room with the ordinary leave consequences.
func (m *Manager) rematchResponseLocked(h Handler, player *models.Player, accepted bool) {
	room := m.rooms.FindByPlayer(player.Key())
	if room == nil || room.Status != game.RoomFinished {
		return
	}

	if accepted {
		room.RematchVotes[player.Key()] = true
		if room.AllRematchVotesIn() {
			m.startMatchLocked(room)
		} else {
			m.broadcastRoomStateLocked(room)
		}
		return
	}

	m.log.Infof("%s declined the rematch in room %s", player.Username, room.ID)
	h.Send(protocol.New(protocol.TypeLeaveRoom, protocol.ServerName, "You have left the room."))

	m.cancelTimersLocked(room.ID)
	m.removeFromRoomLocked(room, player)

	m.broadcastPlayerListLocked()
	m.broadcastRoomListLocked()
}
