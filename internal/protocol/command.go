// Package protocol defines the wire protocol spoken between the server
// and its clients: a single Command envelope carried as JSON text frames
// over a websocket, with a closed set of command types and type-specific
// payloads.
package protocol

import "encoding/json"

// ServerName is the username stamped on server-originated commands.
const ServerName = "SERVER"

// Type enumerates every command the server sends or accepts.
type Type string

const (
	TypeLogin             Type = "LOGIN"
	TypeLoginSuccess      Type = "LOGIN_SUCCESS"
	TypeUpdatePlayerList  Type = "UPDATE_PLAYER_LIST"
	TypeUpdatePlayerScore Type = "UPDATE_PLAYER_SCORE"
	TypeChatMessage       Type = "CHAT_MESSAGE"

	TypeCreateRoom          Type = "CREATE_ROOM"
	TypeCreateRoomAndInvite Type = "CREATE_ROOM_AND_INVITE"
	TypeCreateRoomSuccess   Type = "CREATE_ROOM_SUCCESS"
	TypeInvitePlayer        Type = "INVITE_PLAYER"
	TypeReceiveInvite       Type = "RECEIVE_INVITE"
	TypeDeclineInvite       Type = "DECLINE_INVITE"
	TypeInviteDeclined      Type = "RECEIVE_INVITE_DECLINED"
	TypeAcceptInvite        Type = "ACCEPT_INVITE"
	TypeJoinRoom            Type = "JOIN_ROOM"
	TypeJoinRoomSuccess     Type = "JOIN_ROOM_SUCCESS"
	TypeJoinRoomFailed      Type = "JOIN_ROOM_FAILED"
	TypeUpdateRoomList      Type = "UPDATE_ROOM_LIST"
	TypeUpdateRoomState     Type = "UPDATE_ROOM_STATE"
	TypeLeaveRoom           Type = "LEAVE_ROOM"

	TypePlayerReady  Type = "PLAYER_READY"
	TypeStartGame    Type = "START_GAME"
	TypeGameStarted  Type = "GAME_STARTED"
	TypeFlipCard     Type = "FLIP_CARD"
	TypeGameUpdate   Type = "GAME_UPDATE"
	TypeGameOver     Type = "GAME_OVER"
	TypeOpponentLeft Type = "OPPONENT_LEFT"

	TypeQuitGame        Type = "QUIT_GAME"
	TypeRematchRequest  Type = "REMATCH_REQUEST"
	TypeRematchResponse Type = "REMATCH_RESPONSE"

	TypeMatchHistoryRequest Type = "MATCH_HISTORY_REQUEST"
	TypeMatchHistory        Type = "MATCH_HISTORY"
)

// Command is the single message envelope. Username identifies the
// sender ("SERVER" for server-originated commands); the shape of Data
// depends on Type.
type Command struct {
	Type     Type            `json:"type"`
	Username string          `json:"username"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// New builds a Command with the given payload marshaled into Data.
// A payload that fails to marshal yields a command with empty Data;
// callers only ever pass JSON-clean values.
func New(t Type, username string, data interface{}) Command {
	cmd := Command{Type: t, Username: username}
	if data == nil {
		return cmd
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return cmd
	}
	cmd.Data = raw
	return cmd
}

// DecodeData unmarshals the payload into v.
func (c Command) DecodeData(v interface{}) error {
	return json.Unmarshal(c.Data, v)
}

// FlipPayload is the FLIP_CARD request payload.
type FlipPayload struct {
	RoomID    string `json:"roomId"`
	CardIndex int    `json:"cardIndex"`
}

// InvitePayload is the CREATE_ROOM_AND_INVITE request payload.
type InvitePayload struct {
	CardCount      int    `json:"cardCount"`
	TargetUsername string `json:"targetUsername"`
}
