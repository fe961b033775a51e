package server

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chathub/internal/state"
	"chathub/internal/store"
)

// newTestHub builds a hub over a throwaway badger store. The hub's Run loop
// is not started; tests drive the handlers directly on attached clients.
func newTestHub(t *testing.T) *Hub {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	messages := store.NewMessageStore(db, slog.Default())
	return NewHub(state.NewRoster(), messages, DefaultConfig(), slog.Default())
}

// attach registers a pumpless client the way the Run loop would.
func attach(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := NewClient(nil, h, "test-addr")
	h.roster.Register(c.id)
	h.mutex.Lock()
	h.clients[c.id] = c
	h.mutex.Unlock()
	return c
}

func nextEvent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatal("expected a queued event, found none")
		return Envelope{}
	}
}

func noEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("expected no queued event, got %s", frame)
	default:
	}
}

func payloadAs[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func expectEvent[T any](t *testing.T, c *Client, event string) T {
	t.Helper()
	env := nextEvent(t, c)
	require.Equal(t, event, env.Event)
	return payloadAs[T](t, env)
}

func TestHandleJoinBroadcastsPresenceAndNotice(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)

	h.handleJoin(a, "  alice  ")

	req.Equal([]string{"alice"}, expectEvent[[]string](t, a, EventPresenceUpdate))
	noEvent(t, a) // the join notice goes to the others only

	req.Equal([]string{"alice"}, expectEvent[[]string](t, b, EventPresenceUpdate))
	req.Equal("alice", expectEvent[string](t, b, EventUserJoined))
}

func TestHandleJoinEmptyNameIsDropped(t *testing.T) {
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)

	h.handleJoin(a, "   \t ")

	noEvent(t, a)
	noEvent(t, b)
	require.Empty(t, h.roster.Names())
}

func TestHandleJoinEscapesName(t *testing.T) {
	h := newTestHub(t)
	a := attach(t, h)

	h.handleJoin(a, "<b>eve</b>")

	got := expectEvent[[]string](t, a, EventPresenceUpdate)
	require.Equal(t, []string{"&lt;b&gt;eve&lt;/b&gt;"}, got)
}

func TestDuplicateDisplayNamesAreAllowed(t *testing.T) {
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)

	h.handleJoin(a, "alice")
	h.handleJoin(b, "alice")

	require.Equal(t, []string{"alice", "alice"}, h.roster.Names())
}

func TestTypingGoesToOthersOnly(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)
	h.handleJoin(a, "alice")
	h.handleJoin(b, "bob")
	drain(a)
	drain(b)

	h.handleTyping(a, "alice")
	noEvent(t, a)
	req.Equal([]string{"alice"}, expectEvent[[]string](t, b, EventTypingUpdate))

	h.handleStopTyping(a)
	noEvent(t, a)
	req.Empty(expectEvent[[]string](t, b, EventTypingUpdate))

	// A second stop is a no-op, not a fresh broadcast.
	h.handleStopTyping(a)
	noEvent(t, b)
}

func TestTypingEmptyNameIsDropped(t *testing.T) {
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)

	h.handleTyping(a, "  ")

	noEvent(t, b)
	require.Empty(t, h.roster.TypingNames())
}

func TestDispatchIgnoresUnknownAndMalformedEvents(t *testing.T) {
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)

	h.dispatch(a, Envelope{Event: "frobnicate", Payload: json.RawMessage(`42`)})
	h.dispatch(a, Envelope{Event: EventJoin, Payload: json.RawMessage(`{broken`)})
	h.dispatch(a, Envelope{Event: EventTyping, Payload: json.RawMessage(`[]`)})
	h.dispatch(a, Envelope{Event: EventChatMessage, Payload: json.RawMessage(`"not an object"`)})

	noEvent(t, a)
	noEvent(t, b)
	require.Empty(t, h.roster.Names())
}

func TestRemoveClientCleansUpAndNotifies(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)
	h.handleJoin(a, "alice")
	h.handleJoin(b, "bob")
	h.handleTyping(a, "alice")
	drain(a)
	drain(b)

	h.removeClient(a)

	req.Equal([]string{"bob"}, expectEvent[[]string](t, b, EventPresenceUpdate))
	req.Empty(expectEvent[[]string](t, b, EventTypingUpdate))
	req.Equal("alice", expectEvent[string](t, b, EventUserLeft))

	req.Equal(1, h.roster.Len())
	req.Empty(h.roster.TypingNames())

	// The send channel is closed exactly once; a second removal is harmless.
	_, open := <-a.send
	req.False(open)
	h.removeClient(a)
}

func TestRemoveAnonymousClientEmitsNoLeaveNotice(t *testing.T) {
	req := require.New(t)
	h := newTestHub(t)
	a := attach(t, h)
	b := attach(t, h)
	h.handleJoin(b, "bob")
	drain(b)

	h.removeClient(a)

	req.Equal([]string{"bob"}, expectEvent[[]string](t, b, EventPresenceUpdate))
	req.Empty(expectEvent[[]string](t, b, EventTypingUpdate))
	noEvent(t, b)
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}
