package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vqiu25/inky/internal/game"
	"github.com/vqiu25/inky/internal/middleware"
)

// SessionMessage is the inbound WebSocket envelope for session actions.
type SessionMessage struct {
	Type string `json:"type"`

	// Word carries the drawer's selection for word_selected.
	Word string `json:"word,omitempty"`

	// Key, Position and Target parameterize powerup activations.
	Key      string `json:"key,omitempty"`
	Position int    `json:"position,omitempty"`
	Target   string `json:"target,omitempty"`

	// Message carries chat text.
	Message string `json:"message,omitempty"`

	// Seconds is the countdown value attached to an explicit correct_guess.
	Seconds int `json:"seconds,omitempty"`

	// Payload is an opaque container relayed verbatim for drawing updates.
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// SessionWSHandler upgrades the connection, authenticates the user
// (creating an ephemeral guest when needed), joins them to the roster and
// runs the read loop until the connection drops.
func SessionWSHandler(logger *logrus.Logger, ss *SessionServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"session"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		if c.Subprotocol() != "session" {
			c.Close(websocket.StatusCode(BadSubprotocolError), "Client must use the 'session' subprotocol.")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		userID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("user authentication failed: %v", err)
			c.Close(websocket.StatusCode(InvalidAuthTokenError), "Authentication failed.")
			return
		}

		user, err := lookupUser(r.Context(), userID)
		if err != nil {
			logger.Warnf("user %s not found after auth: %v", userID, err)
			c.Close(websocket.StatusPolicyViolation, "Unknown user.")
			return
		}

		if _, err := ss.Store.Join(*user); err != nil {
			// Rejections go back to the originating caller only.
			switch {
			case errors.Is(err, game.ErrRosterFull):
				c.Close(websocket.StatusCode(SessionFullError), "Session is full.")
			case errors.Is(err, game.ErrSessionBusy):
				c.Close(websocket.StatusCode(SessionBusyError), "A game is already in progress.")
			default:
				c.Close(websocket.StatusInternalError, "Join failed.")
			}
			return
		}

		ss.registerConn(userID, c)
		ss.broadcastRoster()
		logger.Infof("user %s (%s) joined the session from %s", user.Username, userID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readSessionMessages(ctx, c, ss, userID, logger)

		ss.unregisterConn(userID, c)
		ss.Store.Leave(userID)
		ss.broadcastRoster()
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
		logger.Infof("user %s left the session", userID)
	}
}

// readSessionMessages reads and routes client messages until the connection
// closes or the context is cancelled.
func readSessionMessages(ctx context.Context, c *websocket.Conn, ss *SessionServer, userID uuid.UUID, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for user %s", userID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for user %s", userID)
			} else {
				logger.Warnf("error reading from WebSocket for user %s: %v (status: %d)", userID, err, status)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg SessionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("invalid JSON from user %s: %v", userID, err)
			sendWsError(ctx, c, logger, "Invalid JSON format.")
			continue
		}

		logger.Debugf("received action %q from user %s", msg.Type, userID)

		switch msg.Type {
		case "start_game":
			if _, err := ss.Store.StartGame(); err != nil {
				sendWsError(ctx, c, logger, startErrorMessage(err))
			}

		case "word_selected":
			session := ss.Store.Current()
			if session == nil {
				sendWsError(ctx, c, logger, "No game in progress.")
				continue
			}
			if err := session.HandleWordSelected(userID, msg.Word); err != nil {
				sendWsError(ctx, c, logger, wordErrorMessage(err))
			}

		case "correct_guess":
			// Explicit guess confirmation from a client that validates
			// locally; unknown identities are dropped inside the session.
			session := ss.Store.Current()
			if session != nil {
				session.HandleCorrectGuess(userID, msg.Seconds)
			}

		case "powerup":
			session := ss.Store.Current()
			if session == nil {
				continue
			}
			req := game.PowerupRequest{Key: msg.Key, Position: msg.Position}
			if msg.Target != "" {
				if target, err := uuid.Parse(msg.Target); err == nil {
					req.TargetID = target
				}
			}
			session.ActivatePowerup(userID, req)

		case "chat_message":
			session := ss.Store.Current()
			if session != nil && !session.HandleChatMessage(userID, msg.Message) {
				continue // correct guess, scored and suppressed
			}
			ss.relayFrom(userID, game.EventChatMessage, map[string]interface{}{"message": msg.Message})

		case "drawing_update":
			// Only the drawer's canvas is authoritative.
			session := ss.Store.Current()
			if session == nil || session.Drawer() != userID {
				continue
			}
			ss.relayFrom(userID, game.EventDrawingUpdate, msg.Payload)

		case "ping":
			sendWsMessage(ctx, c, logger, map[string]string{"type": "pong"})

		default:
			sendWsError(ctx, c, logger, fmt.Sprintf("Unknown action type: %s", msg.Type))
		}
	}
}

// relayFrom broadcasts an opaque pass-through event tagged with its sender.
func (ss *SessionServer) relayFrom(senderID uuid.UUID, evType game.EventType, payload map[string]interface{}) {
	ss.broadcastFn()(game.Event{
		Type:    evType,
		User:    &game.EventUser{ID: senderID},
		Payload: payload,
	})
}

func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrSessionBusy):
		return "A game is already in progress."
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "At least two players are required to start."
	default:
		return "Could not start the game."
	}
}

func wordErrorMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrNotDrawer):
		return "Only the drawer may select the word."
	case errors.Is(err, game.ErrWrongPhase):
		return "Word selection is not open."
	case errors.Is(err, game.ErrWordNotOffered):
		return "Pick one of the offered words."
	default:
		return "Word selection failed."
	}
}

// sendWsMessage marshals a message and sends it with a write timeout.
func sendWsMessage(ctx context.Context, c *websocket.Conn, logger *logrus.Logger, message interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		logger.Errorf("error marshaling WebSocket message: %v", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(writeCtx, websocket.MessageText, msgBytes); err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			logger.Warnf("error writing WebSocket message: %v", err)
		}
	}
}

// sendWsError sends a structured error message to the client.
func sendWsError(ctx context.Context, c *websocket.Conn, logger *logrus.Logger, errorMsg string) {
	sendWsMessage(ctx, c, logger, map[string]interface{}{
		"type":    "error",
		"message": errorMsg,
	})
}
