package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/squadup-gg/squadup/internal/auth"
	"github.com/squadup-gg/squadup/internal/models"
)

// EnsureEphemeralPlayer resolves the request's player identity, creating a
// guest profile and setting its cookie when no valid token is present.
func (s *Server) EnsureEphemeralPlayer(w http.ResponseWriter, r *http.Request) (uuid.UUID, error) {
	cookieHeader := r.Header.Get("Cookie")
	if strings.Contains(cookieHeader, "auth_token=") {
		token := extractCookieToken(cookieHeader, "auth_token")
		if playerIDStr, err := auth.VerifyToken(token); err == nil {
			return uuid.Parse(playerIDStr)
		}
		// Invalid or expired token; fall through and mint a guest.
	}

	guest := models.Profile{
		Username:    "Guest",
		IsEphemeral: true,
	}
	if err := s.Profiles.Create(r.Context(), &guest); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest profile: %w", err)
	}
	token, err := auth.CreateToken(guest.ID.String())
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create guest token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	return guest.ID, nil
}

// CreateProfileHandler registers a full account.
func (s *Server) CreateProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
		Avatar   string `json:"avatar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Username == "" {
		http.Error(w, "email, password, and username are required", http.StatusBadRequest)
		return
	}

	profile := models.Profile{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		Avatar:   req.Avatar,
	}
	if err := s.Profiles.Create(r.Context(), &profile); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		s.Log.WithError(err).Error("failed to create profile")
		http.Error(w, "error creating profile", http.StatusInternalServerError)
		return
	}

	profile.Password = ""
	writeJSON(w, http.StatusCreated, profile)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// LoginHandler exchanges credentials for a session token, also set as an
// HttpOnly cookie.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	token, err := s.Profiles.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.Log.WithField("email", req.Email).Infof("failed login attempt: %v", err)
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}
