// internal/matchmaking/drainer.go
package matchmaking

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/queue"
)

// Drainer walks every active bucket and forms as many matches as each can
// yield. It is run on a periodic schedule by the matchworker binary.
type Drainer struct {
	former *Former
	store  queue.Store
	log    *logrus.Logger
}

func NewDrainer(former *Former, store queue.Store, log *logrus.Logger) *Drainer {
	return &Drainer{former: former, store: store, log: log}
}

// DrainAll runs one drain pass. Per-bucket failures are logged and do not
// stop the pass; a wedged bucket must not starve the others.
func (d *Drainer) DrainAll(ctx context.Context) {
	buckets, err := d.store.Buckets(ctx)
	if err != nil {
		d.log.Warnf("drain pass skipped, bucket listing failed: %v", err)
		return
	}

	for _, b := range buckets {
		for {
			match, err := d.former.Attempt(ctx, b.Game, b.Vibe)
			if err != nil {
				d.log.WithField("bucket", b.String()).Warnf("formation attempt failed: %v", err)
				break
			}
			if match == nil {
				break
			}
		}
	}
}
