// internal/session/entry.go
package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/game"
)

// Entry is one live game held by the Registry.
//
// mu guards the game (score matrix, intrigue flag) and the evicted flag. presenceMu
// guards the two presence sets so that joins and leaves never wait behind scoring.
type Entry struct {
	id        uuid.UUID
	startedAt time.Time
	expiresAt time.Time

	mu      sync.RWMutex
	game    *game.Game
	evicted bool

	presenceMu sync.Mutex
	admins     map[string]struct{}
	users      map[string]struct{}

	done chan struct{}
}

func newEntry(g *game.Game, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		id:        g.ID,
		startedAt: now,
		expiresAt: now.Add(ttl),
		game:      g,
		admins:    make(map[string]struct{}),
		users:     make(map[string]struct{}),
		done:      make(chan struct{}),
	}
}

// ID returns the game id.
func (e *Entry) ID() uuid.UUID { return e.id }

// StartedAt returns when the session was created.
func (e *Entry) StartedAt() time.Time { return e.startedAt }

// ExpiresAt returns when the TTL sweep will evict the session.
func (e *Entry) ExpiresAt() time.Time { return e.expiresAt }

// Done is closed once the entry has been evicted.
func (e *Entry) Done() <-chan struct{} { return e.done }

// View runs fn with shared access to the game. fn must not keep the pointer.
func (e *Entry) View(fn func(g *game.Game) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.evicted {
		return fmt.Errorf("%w: game %s", game.ErrNotFound, e.id)
	}
	return fn(e.game)
}

// Update runs fn with exclusive access to the game. fn must not keep the pointer.
func (e *Entry) Update(fn func(g *game.Game) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return fmt.Errorf("%w: game %s", game.ErrNotFound, e.id)
	}
	return fn(e.game)
}

// Presence is a sorted copy of both presence sets.
type Presence struct {
	Admins []string `json:"admins"`
	Users  []string `json:"users"`
}

// Presence returns the identities currently connected to the game's channels.
func (e *Entry) Presence() Presence {
	e.presenceMu.Lock()
	defer e.presenceMu.Unlock()
	return Presence{Admins: sortedKeys(e.admins), Users: sortedKeys(e.users)}
}

func (e *Entry) join(role auth.Role, identity string) {
	e.presenceMu.Lock()
	defer e.presenceMu.Unlock()
	if e.admins == nil {
		return // evicted
	}
	e.presenceSet(role)[identity] = struct{}{}
}

func (e *Entry) leave(role auth.Role, identity string) {
	e.presenceMu.Lock()
	defer e.presenceMu.Unlock()
	if e.admins == nil {
		return
	}
	delete(e.presenceSet(role), identity)
}

func (e *Entry) presenceSet(role auth.Role) map[string]struct{} {
	if role.IsAdmin() {
		return e.admins
	}
	return e.users
}

// retire marks the entry evicted once any in-flight mutation has finished, and returns
// the final state of the game.
func (e *Entry) retire() game.Snapshot {
	e.mu.Lock()
	e.evicted = true
	snap := e.game.Snapshot()
	e.mu.Unlock()
	close(e.done)

	e.presenceMu.Lock()
	e.admins = nil
	e.users = nil
	e.presenceMu.Unlock()

	return snap
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
