// Package notify delivers match-found events to waiting clients and emits
// settlement notifications to the sink collaborators consume.
//
// Push delivery is at-least-once with no ordering guarantee; clients treat
// the match id as an idempotency key. Every published match is also
// recorded per player so the poll fallback works when push is not
// confirmed.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/models"
)

// matchRecordTTL bounds how long an unclaimed match stays pollable.
const matchRecordTTL = 5 * time.Minute

// Notifier pushes match-found events over per-player pub/sub channels and
// maintains the per-player match records behind the poll fallback.
type Notifier struct {
	client *redis.Client
	log    *logrus.Logger
}

func NewNotifier(client *redis.Client, log *logrus.Logger) *Notifier {
	return &Notifier{client: client, log: log}
}

func playerChannel(playerID uuid.UUID) string {
	return "match:push:" + playerID.String()
}

func playerMatchKey(playerID uuid.UUID) string {
	return "match:player:" + playerID.String()
}

// RecordMatch writes the match under every member's poll key. This must
// succeed before the match is considered delivered anywhere; push alone is
// not good enough.
func (n *Notifier) RecordMatch(ctx context.Context, m models.ActiveMatch) error {
	pipe := n.client.Pipeline()
	for _, playerID := range m.PlayerIDs {
		pipe.Set(ctx, playerMatchKey(playerID), m, matchRecordTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record match %s: %w", m.ID, err)
	}
	return nil
}

// PublishMatch pushes the match to each member's channel. Delivery is best
// effort per player; a failed publish is logged and the poll fallback
// covers the gap.
func (n *Notifier) PublishMatch(ctx context.Context, m models.ActiveMatch) error {
	for _, playerID := range m.PlayerIDs {
		if err := n.client.Publish(ctx, playerChannel(playerID), m).Err(); err != nil {
			n.log.WithFields(logrus.Fields{
				"match":  m.ID,
				"player": playerID,
			}).Warnf("match push failed, player will fall back to polling: %v", err)
		}
	}
	return nil
}

// MatchForPlayer is the poll fallback: it returns the player's pending
// match, or nil when none is recorded.
func (n *Notifier) MatchForPlayer(ctx context.Context, playerID uuid.UUID) (*models.ActiveMatch, error) {
	data, err := n.client.Get(ctx, playerMatchKey(playerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read match record for %s: %w", playerID, err)
	}

	var m models.ActiveMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed match record for %s: %w", playerID, err)
	}
	return &m, nil
}

// Subscribe opens the player's push channel. The caller owns the returned
// subscription and must close it.
func (n *Notifier) Subscribe(ctx context.Context, playerID uuid.UUID) *redis.PubSub {
	return n.client.Subscribe(ctx, playerChannel(playerID))
}
