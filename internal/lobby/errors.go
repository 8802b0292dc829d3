// internal/lobby/errors.go
package lobby

import (
	"errors"
	"fmt"
)

var (
	// ErrLobbyFull rejects a join against a roster at capacity.
	ErrLobbyFull = errors.New("lobby is at capacity")

	// ErrAlreadyMember rejects a second join by the same player.
	ErrAlreadyMember = errors.New("player is already in the lobby")

	// ErrNotMember rejects actions from players outside the roster.
	ErrNotMember = errors.New("player is not a lobby member")

	// ErrNotInMatch rejects joins to a match-formed session by players
	// who were not part of the match.
	ErrNotInMatch = errors.New("player was not matched into this lobby")

	// ErrHostAlwaysReady rejects ready toggles by the host.
	ErrHostAlwaysReady = errors.New("host readiness is pinned and cannot be toggled")

	// ErrLobbyNotFull rejects ready toggles before the roster is full.
	ErrLobbyNotFull = errors.New("cannot ready up until the lobby is full")

	// ErrNotHost rejects a start call from anyone but the host.
	ErrNotHost = errors.New("only the host may start the match")

	// ErrNotReadyToStart signals "lobby not ready", not a fault.
	ErrNotReadyToStart = errors.New("lobby is not ready to start")

	// ErrLobbyClosed rejects actions against started or abandoned lobbies.
	ErrLobbyClosed = errors.New("lobby is no longer active")

	// ErrEmptyMessage rejects empty or whitespace-only chat.
	ErrEmptyMessage = errors.New("chat message is empty")
)

// ScoreTooLowError carries the failing threshold so the UI can explain the
// rejection.
type ScoreTooLowError struct {
	Required int
	Actual   int
}

func (e *ScoreTooLowError) Error() string {
	return fmt.Sprintf("reputation score %d is below the lobby minimum of %d", e.Actual, e.Required)
}
