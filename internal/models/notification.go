package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a notification for the client UI.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Notification is an event emitted to the notification sink, e.g. a match
// settlement outcome. Consumers (UI, email digests) live outside this core.
type Notification struct {
	PlayerID  uuid.UUID `json:"player_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

func (n Notification) MarshalBinary() ([]byte, error) {
	return json.Marshal(n)
}
