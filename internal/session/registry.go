// internal/session/registry.go
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long a live game is kept after start.
const DefaultTTL = 72 * time.Hour

// EvictReason says why a session ended.
type EvictReason string

const (
	ReasonExpired EvictReason = "expired"
	ReasonReset   EvictReason = "reset"
)

// EvictHook receives the final state of every evicted game. It runs on the goroutine
// that performed the eviction, after all registry locks are released.
type EvictHook func(final game.Snapshot, reason EvictReason)

// TeamSeed is the persisted identity of a team taking part in a new session.
type TeamSeed struct {
	ID   uuid.UUID
	Name string
}

// Registry maps game ids to live games and owns their TTL eviction.
//
// mu only guards the map and the expiry queue. Work on a game happens under that
// game's Entry locks, so unrelated games never contend.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
	expiry  expiryQueue

	ttl     time.Duration
	now     func() time.Time
	onEvict EvictHook
	logger  logrus.FieldLogger
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, so tests can move time forward.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithEvictHook registers fn to observe evictions.
func WithEvictHook(fn EvictHook) Option {
	return func(r *Registry) { r.onEvict = fn }
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[uuid.UUID]*Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start builds a sealed game from the given definition and registers it.
// It fails with game.ErrAlreadyStarted if the id is already live.
func (r *Registry) Start(id uuid.UUID, name string, rounds []game.Round, teams []TeamSeed) (*Entry, error) {
	g := game.New(id, name)
	for _, rd := range rounds {
		if err := g.AddRound(rd); err != nil {
			return nil, err
		}
	}
	for _, t := range teams {
		if err := g.AddTeam(t.ID, t.Name); err != nil {
			return nil, err
		}
	}
	if err := g.Seal(); err != nil {
		return nil, err
	}

	now := r.now()
	var stale *Entry

	r.mu.Lock()
	if existing, ok := r.entries[id]; ok {
		if now.Before(existing.expiresAt) {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: game %s", game.ErrAlreadyStarted, id)
		}
		// expired but not swept yet
		delete(r.entries, id)
		stale = existing
	}
	e := newEntry(g, now, r.ttl)
	r.entries[id] = e
	r.expiry.schedule(e)
	r.mu.Unlock()

	if stale != nil {
		r.finish(stale, ReasonExpired)
	}

	r.logger.WithFields(logrus.Fields{
		"game_id":    id,
		"rounds":     len(rounds),
		"teams":      len(teams),
		"expires_at": e.expiresAt,
	}).Info("game session started")
	return e, nil
}

// Get returns the live entry for id, or game.ErrNotFound.
func (r *Registry) Get(id uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: game %s", game.ErrNotFound, id)
	}
	if !r.now().Before(e.expiresAt) {
		r.evictEntry(e, ReasonExpired)
		return nil, fmt.Errorf("%w: game %s", game.ErrNotFound, id)
	}
	return e, nil
}

// Evict removes id and its presence sets. Missing ids are a no-op.
func (r *Registry) Evict(id uuid.UUID) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if ok {
		r.evictEntry(e, ReasonReset)
	}
}

// Sweep evicts every entry whose TTL has passed and returns how many it removed.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	var due []*Entry
	for _, e := range r.expiry.popDue(now) {
		if r.entries[e.id] == e {
			delete(r.entries, e.id)
			due = append(due, e)
		}
	}
	r.mu.Unlock()

	for _, e := range due {
		r.finish(e, ReasonExpired)
	}
	return len(due)
}

// NextExpiry reports when the next live entry expires.
func (r *Registry) NextExpiry() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.expiry.Len() > 0 {
		top := r.expiry[0].entry
		if r.entries[top.id] == top {
			return top.expiresAt, true
		}
		r.expiry.dropHead()
	}
	return time.Time{}, false
}

// Len returns the number of live games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// JoinPresence records identity in the admin or user set of a live game.
// It does nothing when the game is not live.
func (r *Registry) JoinPresence(id uuid.UUID, role auth.Role, identity string) {
	if e, err := r.Get(id); err == nil {
		e.join(role, identity)
	}
}

// LeavePresence removes identity from the admin or user set of a live game.
func (r *Registry) LeavePresence(id uuid.UUID, role auth.Role, identity string) {
	if e, err := r.Get(id); err == nil {
		e.leave(role, identity)
	}
}

// Run sweeps expired entries every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.WithField("evicted", n).Info("swept expired game sessions")
			}
		}
	}
}

// evictEntry removes e if it is still the registered entry for its id.
func (r *Registry) evictEntry(e *Entry, reason EvictReason) {
	r.mu.Lock()
	if r.entries[e.id] != e {
		r.mu.Unlock()
		return
	}
	delete(r.entries, e.id)
	r.mu.Unlock()

	r.finish(e, reason)
}

func (r *Registry) finish(e *Entry, reason EvictReason) {
	final := e.retire()
	r.logger.WithFields(logrus.Fields{
		"game_id": e.id,
		"reason":  reason,
	}).Info("game session evicted")
	if r.onEvict != nil {
		r.onEvict(final, reason)
	}
}
