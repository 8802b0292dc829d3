// internal/lobby/conn.go
package lobby

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Conn is a single player's live presence in a lobby. Out feeds the
// transport's write pump; Cancel tears down the read loop.
type Conn struct {
	PlayerID uuid.UUID
	Username string
	IsHost   bool
	Cancel   context.CancelFunc
	Out      chan map[string]interface{}

	closeOnce sync.Once
}

// NewConn builds a connection with a buffered out channel.
func NewConn(playerID uuid.UUID, username string, isHost bool, cancel context.CancelFunc) *Conn {
	return &Conn{
		PlayerID: playerID,
		Username: username,
		IsHost:   isHost,
		Cancel:   cancel,
		Out:      make(chan map[string]interface{}, 16),
	}
}

// Write pushes a message onto Out without blocking. A full or closed
// channel drops the message; the attached snapshot resync covers drops.
func (c *Conn) Write(msg map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			// Send on closed channel during teardown; nothing to do.
		}
	}()
	select {
	case c.Out <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Printf("lobby conn %s: out channel full, dropped %q message", c.PlayerID, msgType)
	}
}

// WriteError sends an error payload to this connection only.
func (c *Conn) WriteError(message string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// Close shuts the out channel and cancels the read loop. Safe to call more
// than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.Out)
		if c.Cancel != nil {
			c.Cancel()
		}
	})
}
