package models

import (
	"time"

	"github.com/google/uuid"
)

// Score bounds for the reputation metric. A profile's score never leaves
// this range regardless of how many settlements are applied.
const (
	MinScore = 0
	MaxScore = 100
)

// MatchHistoryLimit caps the number of history records kept per profile.
// Older records are dropped, not archived.
const MatchHistoryLimit = 10

// Profile is a player's persistent record: identity, reputation score,
// aggregate stats, and a bounded window of recent match results.
type Profile struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email,omitempty"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`

	IsEphemeral bool `json:"is_ephemeral"`

	Score        int           `json:"score"`
	Stats        Stats         `json:"stats"`
	MatchHistory []MatchRecord `json:"match_history"`
}

// Stats is the aggregate stat block adjusted on every settlement.
type Stats struct {
	MatchesPlayed         int `json:"matches_played"`
	MVPs                  int `json:"mvps"`
	PerfectBehaviorStreak int `json:"perfect_behavior_streak"`
}

// MatchRecord is one entry in a profile's bounded match history.
type MatchRecord struct {
	Date           time.Time `json:"date"`
	ResultingScore int       `json:"resulting_score"`
	Performance    float64   `json:"performance"`
}
