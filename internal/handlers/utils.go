package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/squadup-gg/squadup/internal/auth"
)

var errNoToken = errors.New("missing auth token")

// extractCookieToken pulls a named cookie value out of the Cookie header,
// or returns empty if not present.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// authenticatedPlayer resolves the auth_token cookie to a player id.
func authenticatedPlayer(r *http.Request) (uuid.UUID, error) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		return uuid.Nil, errNoToken
	}
	playerIDStr, err := auth.VerifyToken(token)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(playerIDStr)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
