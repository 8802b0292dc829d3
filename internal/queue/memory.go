// internal/queue/memory.go
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/squadup-gg/squadup/internal/models"
)

// MemStore is an in-process Store with the same semantics as RedisStore.
// It backs the domain tests so they run without infrastructure.
type MemStore struct {
	mu      sync.Mutex
	seq     int64
	buckets map[Bucket][]memEntry
	// index maps playerID -> game -> vibe, mirroring the Redis dedup hash.
	index map[uuid.UUID]map[string]string
}

type memEntry struct {
	playerID   uuid.UUID
	seq        int64
	enqueuedAt time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		buckets: make(map[Bucket][]memEntry),
		index:   make(map[uuid.UUID]map[string]string),
	}
}

func (s *MemStore) Join(_ context.Context, playerID uuid.UUID, game, vibe string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeFromGameLocked(playerID, game)

	s.seq++
	b := Bucket{Game: game, Vibe: vibe}
	s.buckets[b] = append(s.buckets[b], memEntry{
		playerID:   playerID,
		seq:        s.seq,
		enqueuedAt: time.Now(),
	})
	if s.index[playerID] == nil {
		s.index[playerID] = make(map[string]string)
	}
	s.index[playerID][game] = vibe
	return nil
}

func (s *MemStore) Leave(_ context.Context, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for game := range s.index[playerID] {
		s.removeFromGameLocked(playerID, game)
	}
	delete(s.index, playerID)
	return nil
}

func (s *MemStore) Entries(_ context.Context, game, vibe string) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := Bucket{Game: game, Vibe: vibe}
	entries := make([]models.QueueEntry, 0, len(s.buckets[b]))
	for _, e := range s.buckets[b] {
		entries = append(entries, models.QueueEntry{
			PlayerID:   e.playerID,
			Game:       game,
			Vibe:       vibe,
			EnqueuedAt: e.enqueuedAt,
		})
	}
	return entries, nil
}

func (s *MemStore) ClaimOldest(_ context.Context, game, vibe string, n int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := Bucket{Game: game, Vibe: vibe}
	if len(s.buckets[b]) < n {
		return nil, nil
	}

	claimed := s.buckets[b][:n]
	s.buckets[b] = append([]memEntry(nil), s.buckets[b][n:]...)

	ids := make([]uuid.UUID, 0, n)
	for _, e := range claimed {
		ids = append(ids, e.playerID)
		delete(s.index[e.playerID], game)
		if len(s.index[e.playerID]) == 0 {
			delete(s.index, e.playerID)
		}
	}
	return ids, nil
}

func (s *MemStore) Buckets(_ context.Context) ([]Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buckets := make([]Bucket, 0, len(s.buckets))
	for b := range s.buckets {
		buckets = append(buckets, b)
	}
	return buckets, nil
}

// removeFromGameLocked drops the player's entry for one game, if present.
func (s *MemStore) removeFromGameLocked(playerID uuid.UUID, game string) {
	vibe, ok := s.index[playerID][game]
	if !ok {
		return
	}
	b := Bucket{Game: game, Vibe: vibe}
	entries := s.buckets[b]
	for i, e := range entries {
		if e.playerID == playerID {
			s.buckets[b] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	delete(s.index[playerID], game)
}
