package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/squadup-gg/squadup/internal/settlement"
)

type reportOutcomeRequest struct {
	MatchID string `json:"match_id"`
	Win     bool   `json:"win"`
}

// ReportOutcomeHandler settles a finished match for the reporting player.
// Reporting the same match twice is a conflict, not a second settlement.
func (s *Server) ReportOutcomeHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := authenticatedPlayer(r)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	var req reportOutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		http.Error(w, "invalid match id", http.StatusBadRequest)
		return
	}

	outcome := settlement.OutcomeLose
	if req.Win {
		outcome = settlement.OutcomeWin
	}

	profile, err := s.Settler.Settle(r.Context(), matchID, playerID, outcome)
	if err != nil {
		if errors.Is(err, settlement.ErrDuplicateSettlement) {
			http.Error(w, "match already settled", http.StatusConflict)
			return
		}
		s.Log.WithError(err).Error("settlement failed")
		http.Error(w, "settlement failed", http.StatusInternalServerError)
		return
	}

	profile.Password = ""
	writeJSON(w, http.StatusOK, profile)
}
