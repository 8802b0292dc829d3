// Package handlers exposes the HTTP and WebSocket API: account creation
// and login, queue join/leave with a match poll fallback, lobby
// create/list plus the live lobby socket, and outcome reporting.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/lobby"
	"github.com/squadup-gg/squadup/internal/middleware"
	"github.com/squadup-gg/squadup/internal/models"
	"github.com/squadup-gg/squadup/internal/queue"
	"github.com/squadup-gg/squadup/internal/settlement"
)

// ProfileStore is the slice of the profile repository the API needs.
type ProfileStore interface {
	Create(ctx context.Context, p *models.Profile) error
	Get(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// MatchLookup answers the poll fallback for pending matches.
type MatchLookup interface {
	MatchForPlayer(ctx context.Context, playerID uuid.UUID) (*models.ActiveMatch, error)
}

// Settler applies a reported outcome to a player's profile.
type Settler interface {
	Settle(ctx context.Context, matchID, playerID uuid.UUID, outcome settlement.Outcome) (*models.Profile, error)
}

// Server wires the API handlers to their collaborators.
type Server struct {
	Log      *logrus.Logger
	Queue    queue.Store
	Matches  MatchLookup
	Lobbies  *lobby.Store
	Profiles ProfileStore
	Settler  Settler

	// ChatLimit overrides the per-lobby chat window when positive.
	ChatLimit int

	// PollInterval is the long-poll re-check cadence.
	PollInterval time.Duration
}

func NewServer(log *logrus.Logger, q queue.Store, matches MatchLookup, lobbies *lobby.Store, profiles ProfileStore, settler Settler) *Server {
	return &Server{
		Log:      log,
		Queue:    q,
		Matches:  matches,
		Lobbies:  lobbies,
		Profiles: profiles,
		Settler:  settler,
	}
}

// Routes builds the chi router for both binaries' health checks and the
// game-facing API.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(s.Log))

	r.Post("/user/create", s.CreateProfileHandler)
	r.Post("/user/login", s.LoginHandler)

	r.Post("/queue/join", s.JoinQueueHandler)
	r.Post("/queue/leave", s.LeaveQueueHandler)
	r.Get("/queue/match", s.PollMatchHandler)
	r.Get("/queue/match/wait", s.WaitMatchHandler)

	r.Post("/lobby/create", s.CreateLobbyHandler)
	r.Get("/lobby/list", s.ListLobbiesHandler)
	r.Get("/lobby/ws/{lobbyID}", s.LobbyWSHandler)

	r.Get("/match/{matchID}/lobby", s.MatchLobbyHandler)
	r.Post("/match/outcome", s.ReportOutcomeHandler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}
