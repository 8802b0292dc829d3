package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MatchStatus tracks an ActiveMatch through its short life between
// formation and lobby hand-off.
type MatchStatus string

const (
	MatchStatusReady MatchStatus = "ready"
)

// QueueEntry is one player waiting in a (game, vibe) bucket. A player holds
// at most one live entry per game; re-joining replaces the old entry and
// resets seniority to the time of the new call.
type QueueEntry struct {
	PlayerID   uuid.UUID `json:"player_id"`
	Game       string    `json:"game"`
	Vibe       string    `json:"vibe"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ActiveMatch is the hand-off artifact from queue to lobby: a fixed,
// ordered set of players claimed from one bucket. PlayerIDs is immutable
// once the match is formed.
type ActiveMatch struct {
	ID        uuid.UUID   `json:"id"`
	Game      string      `json:"game"`
	Vibe      string      `json:"vibe"`
	PlayerIDs []uuid.UUID `json:"player_ids"`
	Status    MatchStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// MarshalBinary lets go-redis store the match directly as a hash value.
func (m ActiveMatch) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}
