// Package lobby holds the pre-game session aggregate: a bounded roster
// with a host, per-player readiness, and an arrival-ordered chat log.
//
// A session moves forming -> full -> ready_to_start -> started, or to
// abandoned when the host (or the last player) leaves. All transitions are
// rejected, never retried, when their preconditions fail; the caller is
// expected to refresh and let the user retry.
package lobby

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/squadup-gg/squadup/internal/models"
)

// State is the readiness-gate state machine position.
type State string

const (
	StateForming      State = "forming"
	StateFull         State = "full"
	StateReadyToStart State = "ready_to_start"
	StateStarted      State = "started"
	StateAbandoned    State = "abandoned"
)

// DefaultChatLogLimit bounds the chat window when no limit is configured.
const DefaultChatLogLimit = 100

// Config is the lobby's fixed configuration, supplied by the host or
// derived from a formed match.
type Config struct {
	Title       string `json:"title"`
	Game        string `json:"game"`
	Vibe        string `json:"vibe"`
	MinScore    int    `json:"min_score"`
	MicRequired bool   `json:"mic_required"`
	MaxPlayers  int    `json:"max_players"`

	// AllowEarlyReady permits ready toggles before the roster is full.
	// Default is the stricter gate: readiness is meaningful only at
	// capacity.
	AllowEarlyReady bool `json:"allow_early_ready"`
}

// Member carries the admission-time facts about a joining player.
type Member struct {
	PlayerID uuid.UUID
	Username string
	Avatar   string
	Role     string
	Score    int
}

// PlayerState is one seat in the roster. IsReady is the only field mutated
// after join; the host's is pinned true.
type PlayerState struct {
	PlayerID uuid.UUID `json:"player_id"`
	Username string    `json:"username"`
	Avatar   string    `json:"avatar"`
	IsHost   bool      `json:"is_host"`
	IsReady  bool      `json:"is_ready"`
	Role     string    `json:"role"`
	Score    int       `json:"score"`
}

// ChatMessage is one entry in the bounded, arrival-ordered chat log.
// System entries (join/leave/ready notices) have no sender.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	SenderID  uuid.UUID `json:"sender_id,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsSystem  bool      `json:"is_system"`
}

// Session is one live lobby. All state is guarded by mu; the mutex is the
// single linearizable point that gives chat its arrival order and keeps
// concurrent joins from over-admitting.
type Session struct {
	ID      uuid.UUID
	MatchID uuid.UUID // zero for hosted lobbies
	Config  Config
	HostID  uuid.UUID

	mu        sync.Mutex
	state     State
	players   []*PlayerState // host at index 0 once joined
	chatLog   []ChatMessage
	chatLimit int
	conns     map[uuid.UUID]*Conn

	// roster restricts admission to the matched players when the session
	// came from a formed match. Nil for hosted lobbies (anyone may join).
	roster map[uuid.UUID]bool

	// OnEmpty is invoked (outside the lock) when the session abandons,
	// typically wired to Store.Delete.
	OnEmpty func(sessionID uuid.UUID)
}

// NewSession creates a hosted lobby and seats the host, pinned ready, at
// index 0. MaxPlayers is clamped to the game's hard limit.
func NewSession(cfg Config, host Member) *Session {
	cfg.MaxPlayers = models.ClampLobbySize(cfg.Game, cfg.MaxPlayers)
	if cfg.Title == "" {
		cfg.Title = fmt.Sprintf("%s's lobby", host.Username)
	}

	s := &Session{
		ID:        uuid.New(),
		Config:    cfg,
		HostID:    host.PlayerID,
		state:     StateForming,
		chatLimit: DefaultChatLogLimit,
		conns:     make(map[uuid.UUID]*Conn),
	}
	s.players = append(s.players, &PlayerState{
		PlayerID: host.PlayerID,
		Username: host.Username,
		Avatar:   host.Avatar,
		Role:     host.Role,
		Score:    host.Score,
		IsHost:   true,
		IsReady:  true,
	})
	s.appendSystemLocked(fmt.Sprintf("%s created the lobby", host.Username))
	s.recomputeStateLocked()
	return s
}

// FromMatch creates the shared session for a formed match. The first
// matched player hosts; everyone attaches through the normal join path,
// and only the matched players are admitted.
func FromMatch(m models.ActiveMatch) *Session {
	roster := make(map[uuid.UUID]bool, len(m.PlayerIDs))
	for _, id := range m.PlayerIDs {
		roster[id] = true
	}
	return &Session{
		ID:      uuid.New(),
		MatchID: m.ID,
		Config: Config{
			Title:      fmt.Sprintf("%s %s match", m.Game, m.Vibe),
			Game:       m.Game,
			Vibe:       m.Vibe,
			MaxPlayers: models.ClampLobbySize(m.Game, len(m.PlayerIDs)),
		},
		HostID:    m.PlayerIDs[0],
		state:     StateForming,
		chatLimit: DefaultChatLogLimit,
		conns:     make(map[uuid.UUID]*Conn),
		roster:    roster,
	}
}

// SetChatLimit overrides the chat window size. Calls after messages exist
// only affect future appends.
func (s *Session) SetChatLimit(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > 0 {
		s.chatLimit = limit
	}
}

// State returns the current gate state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Players returns a snapshot of the roster in seat order.
func (s *Session) Players() []PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayerState, len(s.players))
	for i, p := range s.players {
		out[i] = *p
	}
	return out
}

// ChatLog returns a copy of the current chat window.
func (s *Session) ChatLog() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.chatLog...)
}

// Join admits a player. Eligibility (MinScore) and capacity are checked at
// admission only; a score that later drops does not evict anyone.
func (s *Session) Join(m Member) error {
	s.mu.Lock()

	if s.state == StateStarted || s.state == StateAbandoned {
		s.mu.Unlock()
		return ErrLobbyClosed
	}
	if s.findLocked(m.PlayerID) != nil {
		s.mu.Unlock()
		return ErrAlreadyMember
	}
	if s.roster != nil && !s.roster[m.PlayerID] {
		s.mu.Unlock()
		return ErrNotInMatch
	}
	if len(s.players) >= s.Config.MaxPlayers {
		s.mu.Unlock()
		return ErrLobbyFull
	}
	isHost := m.PlayerID == s.HostID
	if !isHost && m.Score < s.Config.MinScore {
		s.mu.Unlock()
		return &ScoreTooLowError{Required: s.Config.MinScore, Actual: m.Score}
	}

	ps := &PlayerState{
		PlayerID: m.PlayerID,
		Username: m.Username,
		Avatar:   m.Avatar,
		Role:     m.Role,
		Score:    m.Score,
		IsHost:   isHost,
		IsReady:  isHost, // host readiness is pinned
	}
	if isHost {
		s.players = append([]*PlayerState{ps}, s.players...)
	} else {
		s.players = append(s.players, ps)
	}

	s.appendSystemLocked(fmt.Sprintf("%s joined the lobby", m.Username))
	s.recomputeStateLocked()
	payload := s.rosterPayloadLocked("lobby_update")
	payload["player_joined"] = m.PlayerID.String()
	s.broadcastLocked(payload)
	s.mu.Unlock()
	return nil
}

// Leave removes a player. Host departure abandons the session outright,
// there is no host re-election; so does the last player leaving. Leaving
// is immediate and not reversible by the same call.
func (s *Session) Leave(playerID uuid.UUID) {
	s.mu.Lock()

	ps := s.findLocked(playerID)
	if ps == nil {
		s.mu.Unlock()
		return
	}
	for i, p := range s.players {
		if p.PlayerID == playerID {
			s.players = append(s.players[:i:i], s.players[i+1:]...)
			break
		}
	}
	if conn, ok := s.conns[playerID]; ok {
		delete(s.conns, playerID)
		conn.Close()
	}

	abandoned := false
	if s.state == StateStarted {
		// Started sessions drain silently; the last seat emptying still
		// tears the session down so the store does not leak it.
		abandoned = len(s.players) == 0
	} else {
		s.appendSystemLocked(fmt.Sprintf("%s left the lobby", ps.Username))
		if ps.IsHost || len(s.players) == 0 {
			abandoned = true
			s.state = StateAbandoned
			if ps.IsHost && len(s.players) > 0 {
				s.appendSystemLocked("the host left, lobby closed")
			}
		} else {
			s.recomputeStateLocked()
		}
		payload := s.rosterPayloadLocked("lobby_update")
		payload["player_left"] = playerID.String()
		s.broadcastLocked(payload)
	}

	var remaining []*Conn
	if abandoned {
		for id, conn := range s.conns {
			remaining = append(remaining, conn)
			delete(s.conns, id)
		}
	}
	onEmpty := s.OnEmpty
	s.mu.Unlock()

	for _, conn := range remaining {
		conn.Close()
	}
	if abandoned && onEmpty != nil {
		onEmpty(s.ID)
	}
}

// ToggleReady flips a non-host player's readiness and returns the new
// value. Unless AllowEarlyReady is set, toggling is rejected while the
// roster is below capacity.
func (s *Session) ToggleReady(playerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStarted || s.state == StateAbandoned {
		return false, ErrLobbyClosed
	}
	ps := s.findLocked(playerID)
	if ps == nil {
		return false, ErrNotMember
	}
	if ps.IsHost {
		return false, ErrHostAlwaysReady
	}
	if s.state == StateForming && !s.Config.AllowEarlyReady {
		return false, ErrLobbyNotFull
	}

	ps.IsReady = !ps.IsReady
	if ps.IsReady {
		s.appendSystemLocked(fmt.Sprintf("%s is ready", ps.Username))
	} else {
		s.appendSystemLocked(fmt.Sprintf("%s is no longer ready", ps.Username))
	}
	s.recomputeStateLocked()

	s.broadcastLocked(map[string]interface{}{
		"type":      "ready_update",
		"player_id": playerID.String(),
		"username":  ps.Username,
		"is_ready":  ps.IsReady,
		"state":     string(s.state),
	})
	return ps.IsReady, nil
}

// Start transitions to started. Only the host may call it, and only from
// ready_to_start; anything else signals "lobby not ready", not a fault.
func (s *Session) Start(requesterID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requesterID != s.HostID {
		return ErrNotHost
	}
	if s.state != StateReadyToStart {
		return ErrNotReadyToStart
	}

	s.state = StateStarted
	s.appendSystemLocked("match starting")
	s.broadcastLocked(map[string]interface{}{
		"type":     "match_start",
		"lobby_id": s.ID.String(),
		"match_id": s.matchIDStringLocked(),
	})
	return nil
}

// Send appends a player chat message. Ordering is arrival order at this
// session's mutex, not client submission time.
func (s *Session) Send(senderID uuid.UUID, text string) (ChatMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ChatMessage{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ps := s.findLocked(senderID)
	if ps == nil {
		return ChatMessage{}, ErrNotMember
	}

	msg := ChatMessage{
		ID:        uuid.New(),
		SenderID:  senderID,
		Sender:    ps.Username,
		Text:      trimmed,
		Timestamp: time.Now(),
	}
	s.appendChatLocked(msg)
	s.broadcastLocked(chatPayload(msg))
	return msg, nil
}

// Attach registers a live connection for a member and sends them the full
// state snapshot. A prior connection for the same player is replaced.
func (s *Session) Attach(conn *Conn) error {
	s.mu.Lock()
	if s.findLocked(conn.PlayerID) == nil {
		s.mu.Unlock()
		return ErrNotMember
	}
	old := s.conns[conn.PlayerID]
	s.conns[conn.PlayerID] = conn
	snapshot := s.statePayloadLocked(conn.PlayerID)
	s.mu.Unlock()

	if old != nil && old != conn {
		old.Close()
	}
	conn.Write(snapshot)
	return nil
}

// Detach drops a connection without removing the player from the roster
// (a reconnect keeps the seat). No-op if another connection replaced it.
func (s *Session) Detach(conn *Conn) {
	s.mu.Lock()
	if current, ok := s.conns[conn.PlayerID]; ok && current == conn {
		delete(s.conns, conn.PlayerID)
	}
	s.mu.Unlock()
}

func (s *Session) findLocked(playerID uuid.UUID) *PlayerState {
	for _, p := range s.players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// recomputeStateLocked evaluates the readiness gate: ready_to_start iff
// the roster is at capacity and every non-host player is ready.
func (s *Session) recomputeStateLocked() {
	if s.state == StateStarted || s.state == StateAbandoned {
		return
	}
	if len(s.players) < s.Config.MaxPlayers {
		s.state = StateForming
		return
	}
	for _, p := range s.players {
		if !p.IsHost && !p.IsReady {
			s.state = StateFull
			return
		}
	}
	s.state = StateReadyToStart
}

func (s *Session) appendChatLocked(msg ChatMessage) {
	s.chatLog = append(s.chatLog, msg)
	if len(s.chatLog) > s.chatLimit {
		s.chatLog = append([]ChatMessage(nil), s.chatLog[len(s.chatLog)-s.chatLimit:]...)
	}
}

func (s *Session) appendSystemLocked(text string) {
	msg := ChatMessage{
		ID:        uuid.New(),
		Text:      text,
		Timestamp: time.Now(),
		IsSystem:  true,
	}
	s.appendChatLocked(msg)
	s.broadcastLocked(chatPayload(msg))
}

func (s *Session) broadcastLocked(payload map[string]interface{}) {
	for _, conn := range s.conns {
		conn.Write(payload)
	}
}

func (s *Session) matchIDStringLocked() string {
	if s.MatchID == uuid.Nil {
		return ""
	}
	return s.MatchID.String()
}

func chatPayload(msg ChatMessage) map[string]interface{} {
	payload := map[string]interface{}{
		"type":      "chat",
		"id":        msg.ID.String(),
		"text":      msg.Text,
		"ts":        msg.Timestamp.UnixMilli(),
		"is_system": msg.IsSystem,
	}
	if !msg.IsSystem {
		payload["player_id"] = msg.SenderID.String()
		payload["username"] = msg.Sender
	}
	return payload
}

func (s *Session) rosterPayloadLocked(msgType string) map[string]interface{} {
	roster := make([]map[string]interface{}, 0, len(s.players))
	for _, p := range s.players {
		roster = append(roster, map[string]interface{}{
			"player_id": p.PlayerID.String(),
			"username":  p.Username,
			"is_host":   p.IsHost,
			"is_ready":  p.IsReady,
		})
	}
	return map[string]interface{}{
		"type":   msgType,
		"state":  string(s.state),
		"roster": roster,
	}
}

// statePayloadLocked is the full snapshot sent to a freshly attached
// connection.
func (s *Session) statePayloadLocked(forPlayer uuid.UUID) map[string]interface{} {
	payload := s.rosterPayloadLocked("lobby_state")
	payload["lobby_id"] = s.ID.String()
	payload["match_id"] = s.matchIDStringLocked()
	payload["host_id"] = s.HostID.String()
	payload["your_id"] = forPlayer.String()
	payload["your_is_host"] = forPlayer == s.HostID
	payload["config"] = s.Config
	payload["chat_log"] = append([]ChatMessage(nil), s.chatLog...)
	return payload
}
