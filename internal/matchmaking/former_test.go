package matchmaking

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/squadup-gg/squadup/internal/models"
	"github.com/squadup-gg/squadup/internal/queue"
)

// fakeEvents records formed matches instead of touching Redis.
type fakeEvents struct {
	recorded  []models.ActiveMatch
	published []models.ActiveMatch
}

func (f *fakeEvents) RecordMatch(_ context.Context, m models.ActiveMatch) error {
	f.recorded = append(f.recorded, m)
	return nil
}

func (f *fakeEvents) PublishMatch(_ context.Context, m models.ActiveMatch) error {
	f.published = append(f.published, m)
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// TestAttemptFIFOScenario: A..E join in order, F joins before formation.
// The first match holds exactly A..E; F stays queued.
func TestAttemptFIFOScenario(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemStore()
	events := &fakeEvents{}
	former := NewFormer(store, events, quietLogger())

	players := make([]uuid.UUID, 6)
	for i := range players {
		players[i] = uuid.New()
		require.NoError(t, store.Join(ctx, players[i], "CS2", "Tryhard"))
	}

	match, err := former.Attempt(ctx, "CS2", "Tryhard")
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Equal(t, players[:5], match.PlayerIDs)
	require.Equal(t, models.MatchStatusReady, match.Status)
	require.Equal(t, "CS2", match.Game)
	require.Equal(t, "Tryhard", match.Vibe)

	remaining, err := store.Entries(ctx, "CS2", "Tryhard")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, players[5], remaining[0].PlayerID)

	require.Len(t, events.recorded, 1)
	require.Len(t, events.published, 1)
}

func TestAttemptShortBucketIsNotAnError(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemStore()
	events := &fakeEvents{}
	former := NewFormer(store, events, quietLogger())

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Join(ctx, uuid.New(), "CS2", "Chill"))
	}

	match, err := former.Attempt(ctx, "CS2", "Chill")
	require.NoError(t, err)
	require.Nil(t, match)
	require.Empty(t, events.recorded)

	// Nothing was consumed by the failed attempt.
	entries, err := store.Entries(ctx, "CS2", "Chill")
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestDrainAllFormsEveryPossibleMatch(t *testing.T) {
	ctx := context.Background()
	store := queue.NewMemStore()
	events := &fakeEvents{}
	log := quietLogger()
	drainer := NewDrainer(NewFormer(store, events, log), store, log)

	// 11 players in one bucket: two matches, one left over.
	for i := 0; i < 11; i++ {
		require.NoError(t, store.Join(ctx, uuid.New(), "Valorant", "Tryhard"))
	}
	// A second bucket with exactly one match's worth.
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Join(ctx, uuid.New(), "CS2", "Chill"))
	}

	drainer.DrainAll(ctx)

	require.Len(t, events.recorded, 3)

	left, err := store.Entries(ctx, "Valorant", "Tryhard")
	require.NoError(t, err)
	require.Len(t, left, 1)
}
