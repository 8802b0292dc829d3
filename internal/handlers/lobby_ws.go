// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/lobby"
	"github.com/squadup-gg/squadup/internal/middleware"
)

// LobbyWSHandler upgrades to the lobby socket: it seats the player in the
// session (joining them if needed), attaches a connection, and runs the
// read loop until the client goes away.
func (s *Server) LobbyWSHandler(w http.ResponseWriter, r *http.Request) {
	lobbyID, err := uuid.Parse(chi.URLParam(r, "lobbyID"))
	if err != nil {
		http.Error(w, "invalid lobby id", http.StatusBadRequest)
		return
	}

	// Identity is resolved before the upgrade: once Accept hijacks the
	// connection, a freshly minted guest cookie can no longer be set.
	playerID, err := s.EnsureEphemeralPlayer(w, r)
	if err != nil {
		s.Log.Warnf("player authentication failed for lobby %s: %v", lobbyID, err)
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	session, ok := s.Lobbies.Get(lobbyID)
	if !ok {
		http.Error(w, "lobby does not exist", http.StatusNotFound)
		return
	}

	profile, err := s.Profiles.Get(r.Context(), playerID)
	if err != nil {
		s.Log.Warnf("profile lookup failed for %s: %v", playerID, err)
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{"lobby"},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.Log.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != "lobby" {
		c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
		return
	}

	err = session.Join(lobby.Member{
		PlayerID: profile.ID,
		Username: profile.Username,
		Avatar:   profile.Avatar,
		Score:    profile.Score,
	})
	switch {
	case err == nil, errors.Is(err, lobby.ErrAlreadyMember):
		// Fresh join or reconnect, both fine.
	case errors.Is(err, lobby.ErrLobbyFull):
		c.Close(websocket.StatusPolicyViolation, "lobby is full")
		return
	case errors.Is(err, lobby.ErrNotInMatch):
		c.Close(NotEligibleError, "player is not part of this match")
		return
	case errors.Is(err, lobby.ErrLobbyClosed):
		c.Close(InvalidLobbyIDError, "lobby is no longer active")
		return
	default:
		var scoreErr *lobby.ScoreTooLowError
		if errors.As(err, &scoreErr) {
			c.Close(NotEligibleError, scoreErr.Error())
			return
		}
		s.Log.Warnf("lobby join failed for %s: %v", playerID, err)
		c.Close(websocket.StatusPolicyViolation, "join rejected")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	conn := lobby.NewConn(profile.ID, profile.Username, profile.ID == session.HostID, cancel)
	if err := session.Attach(conn); err != nil {
		s.Log.Warnf("attach failed for %s: %v", playerID, err)
		c.Close(websocket.StatusPolicyViolation, "attach rejected")
		cancel()
		return
	}

	middleware.LogWebSocketConnect(s.Log, r.RemoteAddr, r.URL.Path)
	go s.writePump(ctx, c, conn)
	readErr := s.readPump(ctx, c, session, conn)
	middleware.LogWebSocketDisconnect(s.Log, r.RemoteAddr, r.URL.Path, readErr)

	// A dropped socket keeps the seat; only an explicit leave gives it up.
	session.Detach(conn)
	conn.Close()
}

// readPump consumes client actions until the connection closes. It
// returns the terminating read error, nil for a clean closure.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, session *lobby.Session, conn *lobby.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		typ, data, err := c.Read(ctx)
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

		var packet map[string]interface{}
		if err := json.Unmarshal(data, &packet); err != nil {
			conn.WriteError("invalid JSON")
			continue
		}

		if done := s.handleLobbyAction(packet, session, conn); done {
			return nil
		}
	}
}

// handleLobbyAction dispatches one decoded client packet. It returns true
// when the connection should stop reading (the player left).
func (s *Server) handleLobbyAction(packet map[string]interface{}, session *lobby.Session, conn *lobby.Conn) bool {
	action, _ := packet["type"].(string)

	switch action {
	case "toggle_ready", "ready", "unready":
		if _, err := session.ToggleReady(conn.PlayerID); err != nil {
			conn.WriteError(err.Error())
		}
	case "chat":
		text, _ := packet["text"].(string)
		if _, err := session.Send(conn.PlayerID, text); err != nil {
			conn.WriteError(err.Error())
		}
	case "start_game":
		if err := session.Start(conn.PlayerID); err != nil {
			conn.WriteError(err.Error())
		}
	case "leave_lobby":
		session.Leave(conn.PlayerID)
		return true
	default:
		s.Log.WithFields(logrus.Fields{
			"lobby":  session.ID,
			"player": conn.PlayerID,
		}).Warnf("unknown lobby action %q", action)
		conn.WriteError("unknown action type: " + action)
	}
	return false
}

// writePump drains the connection's out channel to the socket and keeps
// the connection alive with periodic pings.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *lobby.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.Out:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.Log.Warnf("failed to marshal outgoing msg for %s: %v", conn.PlayerID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Log.Warnf("write failed for %s: %v", conn.PlayerID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.Log.Warnf("ping failed for %s, assuming disconnect: %v", conn.PlayerID, err)
				return
			}
		}
	}
}
