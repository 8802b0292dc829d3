package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// TestJoinDedup verifies that joining twice for the same game leaves exactly
// one entry, positioned at the time of the second call.
func TestJoinDedup(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	player := uuid.New()
	other := uuid.New()

	require.NoError(t, s.Join(ctx, player, "CS2", "Tryhard"))
	require.NoError(t, s.Join(ctx, other, "CS2", "Tryhard"))
	require.NoError(t, s.Join(ctx, player, "CS2", "Tryhard"))

	entries, err := s.Entries(ctx, "CS2", "Tryhard")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Re-joining forfeits seniority: the other player is now in front.
	require.Equal(t, other, entries[0].PlayerID)
	require.Equal(t, player, entries[1].PlayerID)
}

// TestJoinSwitchesVibe verifies that re-joining the same game under a
// different vibe removes the stale entry from the old bucket.
func TestJoinSwitchesVibe(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	player := uuid.New()

	require.NoError(t, s.Join(ctx, player, "CS2", "Tryhard"))
	require.NoError(t, s.Join(ctx, player, "CS2", "Chill"))

	tryhard, err := s.Entries(ctx, "CS2", "Tryhard")
	require.NoError(t, err)
	require.Empty(t, tryhard)

	chill, err := s.Entries(ctx, "CS2", "Chill")
	require.NoError(t, err)
	require.Len(t, chill, 1)
}

// TestConcurrentRejoinsKeepOneEntry races one player's joins across both
// vibes of a game; read-then-write interleaving must not leave the player
// queued in more than one bucket.
func TestConcurrentRejoinsKeepOneEntry(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	player := uuid.New()
	vibes := []string{"Tryhard", "Chill"}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Join(ctx, player, "CS2", vibes[i%2]); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, vibe := range vibes {
		entries, err := s.Entries(ctx, "CS2", vibe)
		require.NoError(t, err)
		total += len(entries)
	}
	require.Equal(t, 1, total)

	// And the dedup index agrees: one leave clears everything.
	require.NoError(t, s.Leave(ctx, player))
	for _, vibe := range vibes {
		entries, err := s.Entries(ctx, "CS2", vibe)
		require.NoError(t, err)
		require.Empty(t, entries)
	}
}

func TestLeaveIsNoOpWhenAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.Leave(ctx, uuid.New()))
}

func TestLeaveRemovesAllGames(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	player := uuid.New()

	require.NoError(t, s.Join(ctx, player, "CS2", "Tryhard"))
	require.NoError(t, s.Join(ctx, player, "RocketLeague", "Chill"))
	require.NoError(t, s.Leave(ctx, player))

	for _, b := range [][2]string{{"CS2", "Tryhard"}, {"RocketLeague", "Chill"}} {
		entries, err := s.Entries(ctx, b[0], b[1])
		require.NoError(t, err)
		require.Empty(t, entries)
	}
}

// TestClaimOldestFIFO verifies claims take the earliest-enqueued players,
// that later joiners remain queued, and that a short bucket yields nothing.
func TestClaimOldestFIFO(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	players := make([]uuid.UUID, 6)
	for i := range players {
		players[i] = uuid.New()
		require.NoError(t, s.Join(ctx, players[i], "CS2", "Tryhard"))
	}

	claimed, err := s.ClaimOldest(ctx, "CS2", "Tryhard", 5)
	require.NoError(t, err)
	require.Equal(t, players[:5], claimed)

	// The sixth player keeps waiting.
	remaining, err := s.Entries(ctx, "CS2", "Tryhard")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, players[5], remaining[0].PlayerID)

	// One player is not enough for another claim, and nothing is consumed.
	claimed, err = s.ClaimOldest(ctx, "CS2", "Tryhard", 5)
	require.NoError(t, err)
	require.Nil(t, claimed)

	remaining, err = s.Entries(ctx, "CS2", "Tryhard")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}
