// internal/notify/poller.go
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/squadup-gg/squadup/internal/models"
)

// MatchLookup is the read behind the poll fallback, satisfied by
// (*Notifier).MatchForPlayer.
type MatchLookup func(ctx context.Context, playerID uuid.UUID) (*models.ActiveMatch, error)

// Poller periodically re-checks a player's match membership. It is the
// required fallback when push delivery is not confirmed (reconnects,
// transport outages).
type Poller struct {
	interval time.Duration
	lookup   MatchLookup
}

func NewPoller(interval time.Duration, lookup MatchLookup) *Poller {
	return &Poller{interval: interval, lookup: lookup}
}

// Wait polls until a match is found or ctx is done. Lookup errors are
// swallowed between ticks; a transport gap is not an error, just a reason
// to keep polling.
func (p *Poller) Wait(ctx context.Context, playerID uuid.UUID) (*models.ActiveMatch, error) {
	if m, err := p.lookup(ctx, playerID); err == nil && m != nil {
		return m, nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			m, err := p.lookup(ctx, playerID)
			if err != nil {
				continue
			}
			if m != nil {
				return m, nil
			}
		}
	}
}
