// internal/historian/historian.go pops score events from the Redis queue and persists
// them in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// EventSink stores a batch of score events atomically.
type EventSink interface {
	InsertScoreEvents(ctx context.Context, events []models.ScoreEvent) error
}

// Service drains one Redis list into an EventSink.
type Service struct {
	rdb        *redis.Client
	queue      string
	sink       EventSink
	batchSize  int
	flushDelay time.Duration
	logger     logrus.FieldLogger

	batch     []models.ScoreEvent
	lastFlush time.Time
}

// Config holds the tunables of a Service.
type Config struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
}

// NewService builds a historian; zero Config fields fall back to 20 events / 500ms.
func NewService(rdb *redis.Client, sink EventSink, cfg Config, logger logrus.FieldLogger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 500 * time.Millisecond
	}
	return &Service{
		rdb:        rdb,
		queue:      cfg.Queue,
		sink:       sink,
		batchSize:  cfg.BatchSize,
		flushDelay: cfg.FlushDelay,
		logger:     logger,
		batch:      make([]models.ScoreEvent, 0, cfg.BatchSize),
	}
}

// Run pops events until ctx is cancelled, then flushes what is left.
// A batch is written when it is full or flushDelay has passed since the last write.
func (s *Service) Run(ctx context.Context) {
	s.lastFlush = time.Now()
	// BLPOP timeouts are whole seconds
	popTimeout := s.flushDelay
	if popTimeout < time.Second {
		popTimeout = time.Second
	}

	s.logger.WithField("queue", s.queue).Info("historian started")
	for {
		if ctx.Err() != nil {
			s.flush(context.Background())
			s.logger.Info("historian shutting down")
			return
		}

		res, err := s.rdb.BLPop(ctx, popTimeout, s.queue).Result()
		switch {
		case err == nil && len(res) == 2:
			// res[0] is the queue name
			s.accept(res[1])
		case err == nil, errors.Is(err, redis.Nil):
		case ctx.Err() != nil:
			continue
		default:
			s.logger.WithError(err).Error("BLPop failed")
			s.sleep(ctx, time.Second)
		}

		if ctx.Err() == nil && (len(s.batch) >= s.batchSize || time.Since(s.lastFlush) >= s.flushDelay) {
			s.flush(ctx)
		}
	}
}

func (s *Service) accept(payload string) {
	var ev models.ScoreEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.logger.WithError(err).Warn("dropping invalid score event")
		return
	}
	s.batch = append(s.batch, ev)
}

// flush writes the pending batch. A failed batch is logged and dropped.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	pending := make([]models.ScoreEvent, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]

	if err := s.sink.InsertScoreEvents(ctx, pending); err != nil {
		s.logger.WithError(err).WithField("events", len(pending)).Error("failed to flush score events")
		return
	}
	s.logger.WithField("events", len(pending)).Debug("flushed score events")
}

func (s *Service) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
