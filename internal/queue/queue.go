// Package queue implements the matchmaking queue: durable entries of
// (player, game, vibe, enqueuedAt) partitioned into buckets keyed by
// (game, vibe). Formation reads oldest-first; joining is last-writer-wins
// per (player, game).
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/squadup-gg/squadup/internal/models"
)

// ErrStoreUnavailable wraps any storage-level failure. It is retryable:
// callers surface it to the client as a temporary condition instead of
// failing the user flow outright.
var ErrStoreUnavailable = errors.New("queue store unavailable")

// Bucket identifies one (game, vibe) queue partition.
type Bucket struct {
	Game string
	Vibe string
}

func (b Bucket) String() string { return b.Game + "|" + b.Vibe }

// Store is the queue contract consumed by handlers and the match former.
type Store interface {
	// Join replaces any prior entry for (playerID, game) and enqueues the
	// player at the back of the (game, vibe) bucket, timestamped now.
	Join(ctx context.Context, playerID uuid.UUID, game, vibe string) error

	// Leave removes the player's entries across all games. Removing an
	// absent player is a no-op, never an error.
	Leave(ctx context.Context, playerID uuid.UUID) error

	// Entries returns a bucket's entries ordered by enqueue time ascending.
	Entries(ctx context.Context, game, vibe string) ([]models.QueueEntry, error)

	// ClaimOldest atomically removes and returns the n oldest players of a
	// bucket, or nil if the bucket holds fewer than n. No partial claims.
	ClaimOldest(ctx context.Context, game, vibe string, n int) ([]uuid.UUID, error)

	// Buckets lists every bucket that has seen a join since startup.
	Buckets(ctx context.Context) ([]Bucket, error)
}

const playerKeyPrefix = "queue:player:"

// joinScript replaces the player's entry for a game and enqueues the new
// one in a single atomic step. Reading the old vibe, removing the stale
// bucket entry, and writing the fresh one cannot interleave with another
// join for the same player, so at most one live entry per (player, game)
// holds even under concurrent joins.
var joinScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[2], ARGV[1])
if old then
	redis.call('ZREM', ARGV[5] .. old, ARGV[3])
end
redis.call('ZADD', KEYS[1], ARGV[4], ARGV[3])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('SADD', KEYS[3], ARGV[6])
return 1
`)

// claimScript removes the n oldest members of a bucket iff at least n are
// present, clearing each player's per-game index entry in the same atomic
// step so a claimed player cannot be matched twice.
var claimScript = redis.NewScript(`
local n = tonumber(ARGV[1])
if redis.call('ZCARD', KEYS[1]) < n then
	return {}
end
local members = redis.call('ZRANGE', KEYS[1], 0, n - 1)
redis.call('ZREM', KEYS[1], unpack(members))
for _, id in ipairs(members) do
	redis.call('HDEL', ARGV[3] .. id, ARGV[2])
end
return members
`)

// RedisStore keeps each bucket in a sorted set scored by enqueue time and a
// per-player hash (game -> vibe) as the dedup index.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func bucketKey(game, vibe string) string {
	return bucketKeyPrefix + game + ":" + vibe
}

func playerKey(playerID uuid.UUID) string {
	return playerKeyPrefix + playerID.String()
}

const bucketsKey = "queue:buckets"

const bucketKeyPrefix = "queue:bucket:"

func (s *RedisStore) Join(ctx context.Context, playerID uuid.UUID, game, vibe string) error {
	err := joinScript.Run(ctx, s.client,
		[]string{bucketKey(game, vibe), playerKey(playerID), bucketsKey},
		game,
		vibe,
		playerID.String(),
		float64(time.Now().UnixNano()),
		bucketKeyPrefix+game+":",
		Bucket{Game: game, Vibe: vibe}.String(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Leave(ctx context.Context, playerID uuid.UUID) error {
	pKey := playerKey(playerID)

	games, err := s.client.HGetAll(ctx, pKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(games) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for game, vibe := range games {
		pipe.ZRem(ctx, bucketKey(game, vibe), playerID.String())
	}
	pipe.Del(ctx, pKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Entries(ctx context.Context, game, vibe string) ([]models.QueueEntry, error) {
	zs, err := s.client.ZRangeWithScores(ctx, bucketKey(game, vibe), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	entries := make([]models.QueueEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		entries = append(entries, models.QueueEntry{
			PlayerID:   id,
			Game:       game,
			Vibe:       vibe,
			EnqueuedAt: time.Unix(0, int64(z.Score)),
		})
	}
	return entries, nil
}

func (s *RedisStore) ClaimOldest(ctx context.Context, game, vibe string, n int) ([]uuid.UUID, error) {
	res, err := claimScript.Run(ctx, s.client, []string{bucketKey(game, vibe)}, n, game, playerKeyPrefix).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	raw, ok := res.([]interface{})
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		member, _ := v.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			return nil, fmt.Errorf("claimed malformed queue member %q: %w", member, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStore) Buckets(ctx context.Context) ([]Bucket, error) {
	members, err := s.client.SMembers(ctx, bucketsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	buckets := make([]Bucket, 0, len(members))
	for _, m := range members {
		game, vibe, ok := strings.Cut(m, "|")
		if !ok {
			continue
		}
		buckets = append(buckets, Bucket{Game: game, Vibe: vibe})
	}
	return buckets, nil
}
