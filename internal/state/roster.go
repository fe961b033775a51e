// Package state owns the shared connection state of the chat engine: which
// connections exist, which of them have announced a display name, and which
// are currently typing. All three live behind a single mutex so that any
// mutation touching one connection is observed atomically by every other
// connection, regardless of which goroutine drives it.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type entry struct {
	name        string
	typingName  string
	connectedAt time.Time
}

// Roster is the authoritative record of attached connections. The zero value
// is not usable; construct with NewRoster.
type Roster struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	// order preserves insertion so presence and typing lists are stable.
	order []uuid.UUID
}

// Removed describes what was dropped by a Remove call.
type Removed struct {
	Name         string
	WasTyping    bool
	ConnectedFor time.Duration
}

func NewRoster() *Roster {
	return &Roster{entries: make(map[uuid.UUID]*entry)}
}

// Register creates an anonymous entry for a new connection. Connection ids are
// engine-generated, so registering the same id twice is a programming error
// and panics rather than silently corrupting the roster.
func (r *Roster) Register(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		panic(fmt.Sprintf("state: connection %s registered twice", id))
	}
	r.entries[id] = &entry{connectedAt: time.Now()}
	r.order = append(r.order, id)
}

// Identify attaches a display name to a registered connection. The name must
// already be sanitized by the caller. Returns false for unknown ids.
func (r *Roster) Identify(id uuid.UUID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.name = name
	return true
}

// Remove deletes a connection and atomically clears its presence and typing
// state. The second return value is false if the id was not registered.
func (r *Roster) Remove(id uuid.UUID) (Removed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Removed{}, false
	}
	delete(r.entries, id)
	r.order = lo.Without(r.order, id)
	return Removed{
		Name:         e.name,
		WasTyping:    e.typingName != "",
		ConnectedFor: time.Since(e.connectedAt),
	}, true
}

// Names returns the display names of identified connections in the order they
// connected. Anonymous connections are skipped. Duplicate names are allowed
// and appear once per connection.
func (r *Roster) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.FilterMap(r.order, func(id uuid.UUID, _ int) (string, bool) {
		e := r.entries[id]
		return e.name, e.name != ""
	})
}

// SetTyping marks a connection as composing under the given (sanitized) name.
// Returns false for unknown ids.
func (r *Roster) SetTyping(id uuid.UUID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.typingName = name
	return true
}

// ClearTyping drops the typing mark for a connection and reports whether there
// was one to drop.
func (r *Roster) ClearTyping(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.typingName == "" {
		return false
	}
	e.typingName = ""
	return true
}

// TypingNames returns the names of currently typing connections in connection
// order.
func (r *Roster) TypingNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return lo.FilterMap(r.order, func(id uuid.UUID, _ int) (string, bool) {
		e := r.entries[id]
		return e.typingName, e.typingName != ""
	})
}

// FindByName returns the first connection, in connection order, currently
// identified as name. With duplicate names this is a deliberate
// first-match-wins linear scan over the online set.
func (r *Roster) FindByName(name string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		if r.entries[id].name == name {
			return id, true
		}
	}
	return uuid.UUID{}, false
}

// Len reports how many connections are registered, identified or not.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
