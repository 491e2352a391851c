// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list score events are pushed to.
const DefaultQueueName = "trivia_score_events"

const archiveKeyPrefix = "trivia:final:"

// ErrNotArchived is returned when no finished game is stored under an id.
var ErrNotArchived = errors.New("game not archived")

// ConnectRedis builds a client for addr/db and checks it with a ping.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ScoreQueue publishes score events for the historian.
type ScoreQueue struct {
	rdb   *redis.Client
	queue string
}

// NewScoreQueue returns a queue writer. An empty name selects DefaultQueueName.
func NewScoreQueue(rdb *redis.Client, queue string) *ScoreQueue {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ScoreQueue{rdb: rdb, queue: queue}
}

// Name is the Redis list the queue writes to.
func (q *ScoreQueue) Name() string { return q.queue }

// PublishScoreEvent serializes ev to JSON and appends it to the queue.
func (q *ScoreQueue) PublishScoreEvent(ctx context.Context, ev models.ScoreEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal ScoreEvent: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}

// ResultArchive keeps the final state of expired games so their results stay
// readable after the live session is gone.
type ResultArchive struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultArchive stores snapshots for ttl; 0 keeps them until deleted.
func NewResultArchive(rdb *redis.Client, ttl time.Duration) *ResultArchive {
	return &ResultArchive{rdb: rdb, ttl: ttl}
}

func archiveKey(id uuid.UUID) string {
	return archiveKeyPrefix + id.String()
}

// SaveFinal stores snap, replacing any earlier copy.
func (a *ResultArchive) SaveFinal(ctx context.Context, snap game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot of game %s: %w", snap.ID, err)
	}
	if err := a.rdb.Set(ctx, archiveKey(snap.ID), data, a.ttl).Err(); err != nil {
		return fmt.Errorf("failed to archive game %s: %w", snap.ID, err)
	}
	return nil
}

// LoadFinal returns the archived snapshot of id, or ErrNotArchived.
func (a *ResultArchive) LoadFinal(ctx context.Context, id uuid.UUID) (game.Snapshot, error) {
	data, err := a.rdb.Get(ctx, archiveKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return game.Snapshot{}, fmt.Errorf("%w: %s", ErrNotArchived, id)
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("failed to load archived game %s: %w", id, err)
	}

	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("corrupt archive for game %s: %w", id, err)
	}
	return snap, nil
}

// DeleteFinal drops the archived copy of id, if any.
func (a *ResultArchive) DeleteFinal(ctx context.Context, id uuid.UUID) error {
	if err := a.rdb.Del(ctx, archiveKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete archived game %s: %w", id, err)
	}
	return nil
}
