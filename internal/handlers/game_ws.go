// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/middleware"
	"github.com/jason-s-yu/trivia/internal/session"
	"github.com/sirupsen/logrus"
)

const wsSubprotocol = "trivia"

// PresenceMessage is the envelope of every presence channel frame.
type PresenceMessage struct {
	Type     string            `json:"type"`
	Role     auth.Role         `json:"role,omitempty"`
	Presence *session.Presence `json:"presence,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// GameWSHandler joins the caller to the game's presence set for as long as the
// connection stays open. Admin-class callers land in the admin set, everyone else in
// the user set.
//
// Client frames: {"type":"ping"} and, for admins, {"type":"presence"}.
func GameWSHandler(logger logrus.FieldLogger, gs *GameServer, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, ok := gameIDFromPath(w, r)
		if !ok {
			return
		}
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}
		entry, err := gs.Registry.Get(gameID)
		if err != nil {
			gs.respondError(w, r, err)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{wsSubprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for game %s: %v", gameID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != wsSubprotocol {
			c.Close(BadSubprotocolError, "Client must use the 'trivia' subprotocol.")
			return
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		gs.JoinPresence(gameID, claims.Role, claims.Subject)
		defer gs.LeavePresence(gameID, claims.Role, claims.Subject)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			select {
			case <-entry.Done():
				c.Close(GameEndedError, "Game session ended.")
			case <-ctx.Done():
			}
		}()

		err = wsjson.Write(ctx, c, PresenceMessage{Type: "joined", Role: claims.Role})
		if err == nil {
			err = readPresenceMessages(ctx, c, entry, claims)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// readPresenceMessages serves client frames until the connection fails or closes.
func readPresenceMessages(ctx context.Context, c *websocket.Conn, entry *session.Entry, claims auth.Claims) error {
	for {
		var msg PresenceMessage
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.Close(InvalidMessageError, "invalid message")
			}
			return err
		}

		var reply PresenceMessage
		switch msg.Type {
		case "ping":
			reply = PresenceMessage{Type: "pong"}
		case "presence":
			if !claims.Role.IsAdmin() {
				reply = PresenceMessage{Type: "error", Error: errNotAdmin.Error()}
				break
			}
			p := entry.Presence()
			reply = PresenceMessage{Type: "presence", Presence: &p}
		default:
			reply = PresenceMessage{Type: "error", Error: "unknown message type"}
		}
		if err := wsjson.Write(ctx, c, reply); err != nil {
			return err
		}
	}
}
