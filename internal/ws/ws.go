// Package ws adapts websocket connections to the session manager: one
// read pump feeding inbound commands into Dispatch, one write pump
// draining a buffered out-channel back to the client.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ndquoc/pairmatch/internal/middleware"
	"github.com/ndquoc/pairmatch/internal/protocol"
	"github.com/ndquoc/pairmatch/internal/session"
)

const (
	subprotocol   = "game"
	outBufferSize = 32
	writeTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
	pingTimeout   = 15 * time.Second
)

// Conn is one live client connection as seen by the session manager.
type Conn struct {
	out    chan protocol.Command
	cancel context.CancelFunc
	log    *logrus.Logger
	remote string
}

// Send pushes a command onto the connection's out-channel without
// blocking. A full or abandoned channel drops the message with a
// warning; the write pump has stalled and the connection is on its way
// out.
func (c *Conn) Send(cmd protocol.Command) {
	select {
	case c.out <- cmd:
	default:
		c.log.Warnf("dropped %s command to %s: out channel full", cmd.Type, c.remote)
	}
}

// Close tears the connection down; the pumps observe the cancelled
// context and exit.
func (c *Conn) Close() {
	c.cancel()
}

// Handler returns the websocket endpoint. Each accepted connection is
// attached to the manager, pumped until it fails or is closed, then
// detached (which runs the leave-room/logout protocol as a side effect).
func Handler(logger *logrus.Logger, m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != subprotocol {
			c.Close(websocket.StatusPolicyViolation, "client must speak the game subprotocol")
			return
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		conn := &Conn{
			out:    make(chan protocol.Command, outBufferSize),
			cancel: cancel,
			log:    logger,
			remote: r.RemoteAddr,
		}

		m.Attach(conn)
		go writePump(ctx, c, conn)

		readErr := readPump(ctx, c, conn, m)

		m.Detach(conn)
		cancel()
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readPump reads commands off the wire until the connection fails or
// the context is cancelled. Malformed frames are answered with an error
// notice and skipped; transport errors are terminal.
func readPump(ctx context.Context, c *websocket.Conn, conn *Conn, m *session.Manager) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var cmd protocol.Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			conn.Send(protocol.New(protocol.TypeChatMessage, protocol.ServerName, "Invalid JSON format."))
			continue
		}

		m.Dispatch(conn, cmd)
	}
}

// writePump drains the out-channel to the wire and keeps the connection
// alive with periodic pings. Any write or ping failure ends the pump;
// the read side observes the broken connection and cleans up.
func writePump(ctx context.Context, c *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-conn.out:
			data, err := json.Marshal(cmd)
			if err != nil {
				conn.log.Warnf("failed to marshal outgoing %s command: %v", cmd.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				conn.log.Warnf("write to %s failed: %v", conn.remote, err)
				conn.cancel()
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				conn.log.Warnf("ping to %s failed, assuming disconnect: %v", conn.remote, err)
				conn.cancel()
				return
			}
		}
	}
}
