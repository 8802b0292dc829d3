package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/lobby"
)

type lobbySummary struct {
	ID      uuid.UUID           `json:"id"`
	MatchID string              `json:"match_id,omitempty"`
	State   lobby.State         `json:"state"`
	Config  lobby.Config        `json:"config"`
	Players []lobby.PlayerState `json:"players"`
}

func summarize(s *lobby.Session) lobbySummary {
	out := lobbySummary{
		ID:      s.ID,
		State:   s.State(),
		Config:  s.Config,
		Players: s.Players(),
	}
	if s.MatchID != uuid.Nil {
		out.MatchID = s.MatchID.String()
	}
	return out
}

// CreateLobbyHandler opens a hosted lobby with the caller as host.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := s.EnsureEphemeralPlayer(w, r)
	if err != nil {
		s.Log.WithError(err).Warn("could not resolve player for lobby create")
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	var cfg lobby.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && err.Error() != "EOF" {
		http.Error(w, "bad lobby request payload", http.StatusBadRequest)
		return
	}
	if cfg.Game == "" {
		http.Error(w, "game is required", http.StatusBadRequest)
		return
	}

	profile, err := s.Profiles.Get(r.Context(), playerID)
	if err != nil {
		s.Log.WithError(err).Warn("host profile lookup failed")
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}

	session := lobby.NewSession(cfg, lobby.Member{
		PlayerID: profile.ID,
		Username: profile.Username,
		Avatar:   profile.Avatar,
		Score:    profile.Score,
	})
	if s.ChatLimit > 0 {
		session.SetChatLimit(s.ChatLimit)
	}
	s.Lobbies.Add(session)

	writeJSON(w, http.StatusCreated, summarize(session))
}

// MatchLobbyHandler resolves a formed match to its shared lobby session,
// creating the session on first sight. Every matched player lands on the
// same session no matter how often the match event is delivered.
func (s *Server) MatchLobbyHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := authenticatedPlayer(r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	matchID, err := uuid.Parse(chi.URLParam(r, "matchID"))
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}

	m, err := s.Matches.MatchForPlayer(r.Context(), playerID)
	if err != nil {
		s.Log.WithError(err).Warn("match lookup failed for lobby handoff")
		http.Error(w, "match lookup unavailable, retry shortly", http.StatusServiceUnavailable)
		return
	}
	if m == nil || m.ID != matchID {
		http.Error(w, "no such match for this player", http.StatusNotFound)
		return
	}

	session, created := s.Lobbies.GetOrCreateForMatch(*m)
	if created {
		if s.ChatLimit > 0 {
			session.SetChatLimit(s.ChatLimit)
		}
		s.Log.WithFields(logrus.Fields{
			"match": m.ID,
			"lobby": session.ID,
		}).Info("created lobby for formed match")
	}
	writeJSON(w, http.StatusOK, summarize(session))
}

// ListLobbiesHandler returns every live session, including match-formed
// ones waiting for their players to attach.
func (s *Server) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := authenticatedPlayer(r); err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	sessions := s.Lobbies.List()
	out := make([]lobbySummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, summarize(session))
	}
	writeJSON(w, http.StatusOK, out)
}
