// Package matchmaking groups queued players into matches. Formation is
// pure FIFO within a (game, vibe) bucket: the five oldest entries form the
// match, with no skill or latency weighting.
package matchmaking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/models"
	"github.com/squadup-gg/squadup/internal/queue"
)

// Events is the slice of the notifier the former needs.
type Events interface {
	RecordMatch(ctx context.Context, m models.ActiveMatch) error
	PublishMatch(ctx context.Context, m models.ActiveMatch) error
}

// Former forms matches out of queue buckets.
type Former struct {
	store  queue.Store
	events Events
	size   int
	log    *logrus.Logger
}

func NewFormer(store queue.Store, events Events, log *logrus.Logger) *Former {
	return &Former{store: store, events: events, size: models.MatchSize, log: log}
}

// Attempt tries to form one match from the (game, vibe) bucket. Returning
// (nil, nil) means the bucket holds fewer players than a match needs; that
// is the normal, frequent outcome, not an error.
//
// The queue claim is atomic and happens before the match record is
// written: a crash in between drops the claimed players back to an empty
// queue (they re-join), but the same entries can never be matched twice.
func (f *Former) Attempt(ctx context.Context, game, vibe string) (*models.ActiveMatch, error) {
	playerIDs, err := f.store.ClaimOldest(ctx, game, vibe, f.size)
	if err != nil {
		return nil, err
	}
	if playerIDs == nil {
		return nil, nil
	}

	match := models.ActiveMatch{
		ID:        uuid.New(),
		Game:      game,
		Vibe:      vibe,
		PlayerIDs: playerIDs,
		Status:    models.MatchStatusReady,
		CreatedAt: time.Now(),
	}

	if err := f.events.RecordMatch(ctx, match); err != nil {
		return nil, err
	}
	if err := f.events.PublishMatch(ctx, match); err != nil {
		// Push is best effort; the recorded match is already pollable.
		f.log.WithField("match", match.ID).Warnf("publish failed: %v", err)
	}

	f.log.WithFields(logrus.Fields{
		"match":   match.ID,
		"game":    game,
		"vibe":    vibe,
		"players": len(playerIDs),
	}).Info("match formed")
	return &match, nil
}
