package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/squadup-gg/squadup/internal/notify"
	"github.com/squadup-gg/squadup/internal/queue"
)

// waitMatchWindow bounds how long a long-poll request is held open.
const waitMatchWindow = 25 * time.Second

type joinQueueRequest struct {
	Game string `json:"game"`
	Vibe string `json:"vibe"`
}

// JoinQueueHandler enqueues the player for a (game, vibe) bucket. A
// re-join moves the player to the back of the line.
func (s *Server) JoinQueueHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := s.EnsureEphemeralPlayer(w, r)
	if err != nil {
		s.Log.WithError(err).Warn("could not resolve player for queue join")
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	var req joinQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Game == "" || req.Vibe == "" {
		http.Error(w, "game and vibe are required", http.StatusBadRequest)
		return
	}

	if err := s.Queue.Join(r.Context(), playerID, req.Game, req.Vibe); err != nil {
		s.queueError(w, err, "queue join failed")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// LeaveQueueHandler removes the player from every queue bucket. Leaving
// while not queued succeeds.
func (s *Server) LeaveQueueHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := authenticatedPlayer(r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	if err := s.Queue.Leave(r.Context(), playerID); err != nil {
		s.queueError(w, err, "queue leave failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// PollMatchHandler is the fallback for clients that missed the push: it
// returns the player's pending match, or 204 when there is none yet.
func (s *Server) PollMatchHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := authenticatedPlayer(r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	m, err := s.Matches.MatchForPlayer(r.Context(), playerID)
	if err != nil {
		s.Log.WithError(err).Warn("match poll failed")
		http.Error(w, "match lookup unavailable, retry shortly", http.StatusServiceUnavailable)
		return
	}
	if m == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// WaitMatchHandler holds the request open until a match is recorded for
// the player or the wait window closes (204, the client re-issues). This
// is the push fallback for clients that cannot keep a subscription up.
func (s *Server) WaitMatchHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := authenticatedPlayer(r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(r.Context(), waitMatchWindow)
	defer cancel()

	poller := notify.NewPoller(interval, s.Matches.MatchForPlayer)
	m, err := poller.Wait(ctx, playerID)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// queueError maps a storage outage to a retryable 503 so the client keeps
// its flow instead of treating the action as failed for good.
func (s *Server) queueError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, queue.ErrStoreUnavailable) {
		s.Log.WithError(err).Warn(msg)
		w.Header().Set("Retry-After", "5")
		http.Error(w, "queue temporarily unavailable, retry shortly", http.StatusServiceUnavailable)
		return
	}
	s.Log.WithError(err).Error(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}
