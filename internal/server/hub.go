// Package server coordinates client registration, presence, typing
// indicators, and event fan-out for the chat hub via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"chathub/internal/sanitize"
	"chathub/internal/state"
	"chathub/internal/store"
)

// Hub owns the set of open WebSocket connections and routes every inbound
// event to the roster, the message pipeline, or the bin. Roster mutations are
// serialized by the roster's own lock; the hub's mutex only guards the client
// map, so a blocking message persist never holds up presence or typing
// traffic from other connections.
type Hub struct {
	cfg      *Config
	roster   *state.Roster
	pipeline *Pipeline
	log      *slog.Logger

	clients    map[uuid.UUID]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub wires a hub over the given roster and message store. Call Run in its
// own goroutine before accepting connections.
func NewHub(roster *state.Roster, messages *store.MessageStore, cfg *Config, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:        cfg,
		roster:     roster,
		log:        log,
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.pipeline = NewPipeline(h, roster, messages, cfg.Room, log)
	return h
}

// Run is the hub's lifecycle loop, handling client registration and
// unregistration until Shutdown is called. It runs indefinitely and should be
// started in a separate goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}
			h.roster.Register(client.id)

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			count := len(h.clients)
			h.mutex.Unlock()
			h.log.Info("client connected", "addr", client.addr, "clients", count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// removeClient tears down one connection: drops it from the client map,
// clears its roster state in a single step, and tells everyone else. The
// roster removal is atomic, so no other event handler can observe a
// half-removed connection.
func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	_, registered := h.clients[client.id]
	if registered {
		delete(h.clients, client.id)
		client.closed = true
	}
	count := len(h.clients)
	h.mutex.Unlock()
	if registered {
		close(client.send)
	}

	removed, ok := h.roster.Remove(client.id)
	if !ok {
		return
	}
	h.log.Info("client disconnected",
		"addr", client.addr,
		"name", removed.Name,
		"session", removed.ConnectedFor.Round(time.Second),
		"clients", count)

	h.ToAll(EventPresenceUpdate, h.roster.Names())
	h.ToAll(EventTypingUpdate, h.roster.TypingNames())
	if removed.Name != "" {
		h.ToAllExcept(client, EventUserLeft, removed.Name)
	}
}

// dispatch routes one inbound frame. It runs on the sending client's read
// goroutine, which serializes that client's own events.
func (h *Hub) dispatch(client *Client, env Envelope) {
	switch env.Event {
	case EventJoin:
		var name string
		if err := json.Unmarshal(env.Payload, &name); err != nil {
			h.log.Debug("malformed join payload", "addr", client.addr, "error", err)
			return
		}
		h.handleJoin(client, name)

	case EventChatMessage:
		var sub ChatSubmission
		if err := json.Unmarshal(env.Payload, &sub); err != nil {
			h.log.Debug("malformed chat payload", "addr", client.addr, "error", err)
			return
		}
		h.pipeline.Submit(client, sub)

	case EventTyping:
		var name string
		if err := json.Unmarshal(env.Payload, &name); err != nil {
			h.log.Debug("malformed typing payload", "addr", client.addr, "error", err)
			return
		}
		h.handleTyping(client, name)

	case EventStopTyping:
		h.handleStopTyping(client)

	default:
		h.log.Debug("ignoring unknown event", "event", env.Event, "addr", client.addr)
	}
}

func (h *Hub) handleJoin(client *Client, rawName string) {
	name := sanitize.Clean(rawName)
	if name == "" {
		return
	}
	if !h.roster.Identify(client.id, name) {
		return
	}
	h.log.Debug("client identified", "addr", client.addr, "name", name)

	h.ToAll(EventPresenceUpdate, h.roster.Names())
	h.ToAllExcept(client, EventUserJoined, name)
}

func (h *Hub) handleTyping(client *Client, rawName string) {
	name := sanitize.Clean(rawName)
	if name == "" {
		return
	}
	if !h.roster.SetTyping(client.id, name) {
		return
	}
	h.ToAllExcept(client, EventTypingUpdate, h.roster.TypingNames())
}

func (h *Hub) handleStopTyping(client *Client) {
	if !h.roster.ClearTyping(client.id) {
		return
	}
	h.ToAllExcept(client, EventTypingUpdate, h.roster.TypingNames())
}

// ToAll delivers an event to every connected client, best effort.
func (h *Hub) ToAll(event string, payload any) {
	h.fanOut(event, payload, nil)
}

// ToAllExcept delivers an event to every connected client but skip.
func (h *Hub) ToAllExcept(skip *Client, event string, payload any) {
	h.fanOut(event, payload, skip)
}

// ToOne delivers an event to a single client, best effort. A closed or
// saturated target is evicted, never an error.
func (h *Hub) ToOne(client *Client, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error("failed to encode event", "event", event, "error", err)
		return
	}
	if !h.safeSend(client, frame) {
		h.evict([]*Client{client})
	}
}

func (h *Hub) fanOut(event string, payload any, skip *Client) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		h.log.Error("failed to encode event", "event", event, "error", err)
		return
	}

	var failed []*Client
	for _, client := range h.clientSnapshot() {
		if client == skip {
			continue
		}
		if !h.safeSend(client, frame) {
			failed = append(failed, client)
		}
	}
	h.evict(failed)
}

func (h *Hub) safeSend(client *Client, frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn("recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock for the whole send so the channel cannot be closed under
	// us by a concurrent unregister.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	current, exists := h.clients[client.id]
	if !exists || current != client || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// evict drops clients whose send buffers are dead. Their roster state is
// cleaned up by the normal unregister path once their pumps exit.
func (h *Hub) evict(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channels []chan []byte
	for _, client := range failed {
		if _, exists := h.clients[client.id]; exists {
			delete(h.clients, client.id)
			client.closed = true
			channels = append(channels, client.send)
			h.log.Warn("client evicted due to full send buffer", "addr", client.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}

func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) client(id uuid.UUID) *Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients[id]
}

func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	clients := h.clientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("error closing client connection", "addr", client.addr, "error", err)
			}
		}
	}
	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for client goroutines to drain, up to the
// timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")
	h.cancel()
	<-h.done

	drained := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached; some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
