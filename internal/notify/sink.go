// internal/notify/sink.go
package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/models"
)

// DefaultSinkList is the Redis list collaborators drain notifications from.
var DefaultSinkList = "squadup_notifications"

// sinkListLimit bounds the outbox; this core does not archive.
const sinkListLimit = 1000

// Sink is the notification outbox exposed to collaborators. Settlement
// outcomes land here; the consumers (UI feeds, digests) are external.
type Sink struct {
	client *redis.Client
	list   string
	log    *logrus.Logger
}

func NewSink(client *redis.Client, log *logrus.Logger) *Sink {
	return &Sink{client: client, list: DefaultSinkList, log: log}
}

// Notify appends one notification to the outbox, trimming it to the most
// recent window.
func (s *Sink) Notify(ctx context.Context, n models.Notification) error {
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, s.list, n)
	pipe.LTrim(ctx, s.list, -sinkListLimit, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push notification to %q: %w", s.list, err)
	}

	s.log.WithFields(logrus.Fields{
		"player":   n.PlayerID,
		"severity": n.Severity,
	}).Debug(n.Title)
	return nil
}
