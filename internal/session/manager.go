// Package session implements the server's single authority for
// presence, matchmaking and game-command dispatch. Every live
// connection funnels its inbound commands into one Manager; the Manager
// serializes all mutation of the player directory, the room registry
// and each room's game state behind one mutex, and fans outbound
// commands back to the affected connections.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ndquoc/pairmatch/internal/game"
	"github.com/ndquoc/pairmatch/internal/models"
	"github.com/ndquoc/pairmatch/internal/protocol"
)

// Handler is the manager's view of one live connection. Send must never
// block (implementations push onto a buffered channel and drop on
// overflow); Close tears the connection down asynchronously.
type Handler interface {
	Send(cmd protocol.Command)
	Close()
}

const storeTimeout = 5 * time.Second

// Manager owns the room registry, the player directory and the set of
// live connections, and implements the command-dispatch protocol.
type Manager struct {
	mu sync.Mutex

	log      *logrus.Logger
	store    PlayerStore   // nil disables persistence
	recorder MatchRecorder // nil disables match-record publishing

	directory *Directory
	rooms     *game.RoomStore

	conns map[Handler]*models.Player // nil value until LOGIN succeeds
	byKey map[models.Key]Handler

	turnTimers   map[string]*time.Timer
	settleTimers map[string]*time.Timer

	// TurnDuration bounds each turn; SettleDelay is the pause between
	// the second flip and match resolution. Both are overridable before
	// any game starts (tests shrink them).
	TurnDuration time.Duration
	SettleDelay  time.Duration
}

// NewManager builds a Manager and warms the player directory from the
// store if one is configured.
func NewManager(logger *logrus.Logger, store PlayerStore, recorder MatchRecorder) *Manager {
	m := &Manager{
		log:          logger,
		store:        store,
		recorder:     recorder,
		directory:    NewDirectory(),
		rooms:        game.NewRoomStore(),
		conns:        make(map[Handler]*models.Player),
		byKey:        make(map[models.Key]Handler),
		turnTimers:   make(map[string]*time.Timer),
		settleTimers: make(map[string]*time.Timer),
		TurnDuration: 10 * time.Second,
		SettleDelay:  2 * time.Second,
	}
	if store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		players, err := store.LoadAll(ctx)
		if err != nil {
			logger.Warnf("could not load players from store: %v", err)
		} else {
			m.directory.Load(players)
			logger.Infof("Loaded %d players from the store.", len(players))
		}
	}
	return m
}

// Attach registers a freshly accepted, not-yet-authenticated connection.
func (m *Manager) Attach(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[h] = nil
}

// Detach unregisters a connection. If it had a logged-in player, the
// player is removed from any room they were seated in and marked
// offline. Detaching an already-removed handler is a no-op.
func (m *Manager) Detach(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	player, ok := m.conns[h]
	if !ok {
		return
	}
	delete(m.conns, h)
	if player == nil {
		return
	}

	key := player.Key()
	if m.byKey[key] == h {
		delete(m.byKey, key)
	}

	if room := m.rooms.FindByPlayer(key); room != nil {
		m.leaveRoomLocked(player, room.ID)
	}

	player.Status = models.StatusOffline
	m.log.Infof("[DISCONNECT] %s has disconnected.", player.Username)

	m.broadcastPlayerListLocked()
	m.broadcastScoreboardLocked()
	m.broadcastRoomListLocked()
}

// Dispatch routes one inbound command from a connection. Commands from
// a handler with no bound player are rejected (LOGIN excepted); malformed
// payloads and unknown types are answered with a scoped error and
// otherwise ignored.
func (m *Manager) Dispatch(h Handler, cmd protocol.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cmd.Type == protocol.TypeLogin {
		var username string
		if err := cmd.DecodeData(&username); err != nil {
			h.Send(protocol.New(protocol.TypeLogin, protocol.ServerName, "Error: Invalid login payload."))
			h.Close()
			return
		}
		m.loginLocked(h, username)
		return
	}

	player, ok := m.conns[h]
	if !ok || player == nil {
		h.Send(protocol.New(protocol.TypeLogin, protocol.ServerName, "Error: Please login first."))
		h.Close()
		return
	}

	switch cmd.Type {
	case protocol.TypeCreateRoom:
		var cardCount int
		if err := cmd.DecodeData(&cardCount); err != nil {
			m.sendErrorLocked(h, "Invalid payload for CREATE_ROOM.")
			return
		}
		m.createRoomLocked(h, player, cardCount, "")

	case protocol.TypeCreateRoomAndInvite:
		var payload protocol.InvitePayload
		if err := cmd.DecodeData(&payload); err != nil {
			m.sendErrorLocked(h, "Invalid payload for CREATE_ROOM_AND_INVITE.")
			return
		}
		m.createRoomLocked(h, player, payload.CardCount, payload.TargetUsername)

	case protocol.TypeInvitePlayer:
		var target string
		if err := cmd.DecodeData(&target); err != nil {
			m.sendErrorLocked(h, "Invalid payload for INVITE_PLAYER.")
			return
		}
		m.invitePlayerLocked(h, player, target)

	case protocol.TypeDeclineInvite:
		var roomID string
		if err := cmd.DecodeData(&roomID); err != nil {
			return
		}
		m.declineInviteLocked(player, roomID)

	case protocol.TypeAcceptInvite, protocol.TypeJoinRoom:
		var roomID string
		if err := cmd.DecodeData(&roomID); err != nil {
			h.Send(protocol.New(protocol.TypeJoinRoomFailed, protocol.ServerName, "Invalid room id."))
			return
		}
		m.joinRoomLocked(h, player, roomID)

	case protocol.TypeLeaveRoom:
		var roomID string
		if err := cmd.DecodeData(&roomID); err != nil {
			return
		}
		m.leaveRoomLocked(player, roomID)

	case protocol.TypePlayerReady:
		m.playerReadyLocked(h, player)

	case protocol.TypeStartGame:
		m.startGameLocked(h, player)

	case protocol.TypeFlipCard:
		var payload protocol.FlipPayload
		if err := cmd.DecodeData(&payload); err != nil {
			m.sendErrorLocked(h, "Invalid payload for FLIP_CARD.")
			return
		}
		m.flipCardLocked(h, player, payload)

	case protocol.TypeQuitGame:
		if room := m.rooms.FindByPlayer(player.Key()); room != nil {
			m.leaveRoomLocked(player, room.ID)
		}

	case protocol.TypeRematchRequest:
		m.rematchRequestLocked(h, player)

	case protocol.TypeRematchResponse:
		var accepted bool
		if err := cmd.DecodeData(&accepted); err != nil {
			m.sendErrorLocked(h, "Invalid payload for REMATCH_RESPONSE.")
			return
		}
		m.rematchResponseLocked(h, player, accepted)

	case protocol.TypeMatchHistoryRequest:
		m.matchHistoryLocked(h, player)

	default:
		m.log.Warnf("Unknown command %q from %s", cmd.Type, player.Username)
		m.sendErrorLocked(h, "Unknown command: "+string(cmd.Type))
	}
}

// loginLocked admits a connection under a unique username. A username
// already online is rejected and the offending connection closed.
func (m *Manager) loginLocked(h Handler, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		h.Send(protocol.New(protocol.TypeLogin, protocol.ServerName, "Error: Username must not be empty."))
		h.Close()
		return
	}

	key := models.KeyOf(username)
	if _, online := m.byKey[key]; online {
		m.log.Warnf("[LOGIN] rejected duplicate session for %s", username)
		h.Send(protocol.New(protocol.TypeLogin, protocol.ServerName,
			"Error: Account "+username+" is already logged in."))
		h.Close()
		return
	}

	player := m.findOrCreatePlayerLocked(username)
	player.Status = models.StatusOnline
	m.conns[h] = player
	m.byKey[key] = h

	m.log.Infof("[LOGIN] %s has logged in. (Score: %d)", player.Username, player.TotalScore)

	h.Send(protocol.New(protocol.TypeLoginSuccess, protocol.ServerName, m.directory.Online()))

	m.broadcastPlayerListLocked()
	m.broadcastRoomListLocked()
	m.broadcastScoreboardLocked()
}

// findOrCreatePlayerLocked resolves a username to its Player, consulting
// the directory first, then the store, inserting a new row when the
// username has never been seen. Store failures degrade to a fresh
// in-memory player.
func (m *Manager) findOrCreatePlayerLocked(username string) *models.Player {
	key := models.KeyOf(username)
	if p := m.directory.Get(key); p != nil {
		return p
	}

	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		p, err := m.store.GetByUsername(ctx, username)
		if err != nil {
			m.log.Warnf("store lookup for %s failed: %v", username, err)
		} else if p != nil {
			m.directory.Put(p)
			return p
		}
	}

	p := models.NewPlayer(username)
	m.directory.Put(p)
	if m.store != nil {
		snapshot := *p
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := m.store.Insert(ctx, &snapshot); err != nil {
				m.log.Warnf("could not insert player %s: %v", snapshot.Username, err)
			}
		}()
	}
	return p
}

// matchHistoryLocked serves a player's recent match history. The store
// read happens off the manager goroutine so a slow database cannot
// stall dispatch.
func (m *Manager) matchHistoryLocked(h Handler, player *models.Player) {
	if m.store == nil {
		m.sendErrorLocked(h, "Match history is unavailable.")
		return
	}
	username := player.Username
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		entries, err := m.store.MatchHistoryForPlayer(ctx, username)
		if err != nil {
			m.log.Warnf("match history lookup for %s failed: %v", username, err)
			h.Send(protocol.New(protocol.TypeChatMessage, protocol.ServerName, "Match history is unavailable."))
			return
		}
		h.Send(protocol.New(protocol.TypeMatchHistory, protocol.ServerName, entries))
	}()
}

// sendErrorLocked answers a handler with a chat-style error notice.
func (m *Manager) sendErrorLocked(h Handler, msg string) {
	h.Send(protocol.New(protocol.TypeChatMessage, protocol.ServerName, msg))
}

// handlerFor returns the live handler for a player key, or nil.
func (m *Manager) handlerFor(key models.Key) Handler {
	return m.byKey[key]
}

// broadcastPlayerListLocked pushes the online-player set to every
// authenticated connection.
func (m *Manager) broadcastPlayerListLocked() {
	cmd := protocol.New(protocol.TypeUpdatePlayerList, protocol.ServerName, m.directory.Online())
	for h, p := range m.conns {
		if p != nil {
			h.Send(cmd)
		}
	}
}

// broadcastScoreboardLocked pushes the full leaderboard to every
// authenticated connection.
func (m *Manager) broadcastScoreboardLocked() {
	cmd := protocol.New(protocol.TypeUpdatePlayerScore, protocol.ServerName, m.directory.Leaderboard())
	for h, p := range m.conns {
		if p != nil {
			h.Send(cmd)
		}
	}
}

// broadcastRoomListLocked pushes the open-room list to players sitting
// in the lobby.
func (m *Manager) broadcastRoomListLocked() {
	cmd := protocol.New(protocol.TypeUpdateRoomList, protocol.ServerName, m.rooms.List())
	for h, p := range m.conns {
		if p != nil && p.Status == models.StatusOnline {
			h.Send(cmd)
		}
	}
}

// broadcastToRoomLocked sends a command to every seated participant of
// the room except exclude. Participants without a live handler are
// skipped; they are already on their way out.
func (m *Manager) broadcastToRoomLocked(room *game.Room, cmd protocol.Command, exclude Handler) {
	for _, p := range room.Players {
		h := m.handlerFor(p.Key())
		if h != nil && h != exclude {
			h.Send(cmd)
		}
	}
}

// broadcastRoomStateLocked pushes the room's composite state to its
// participants.
func (m *Manager) broadcastRoomStateLocked(room *game.Room) {
	m.broadcastToRoomLocked(room, protocol.New(protocol.TypeUpdateRoomState, protocol.ServerName, room), nil)
}
