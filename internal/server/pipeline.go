// Package server message pipeline: validation, sanitization, persistence, and
// fan-out for chat submissions.
package server

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"chathub/internal/sanitize"
	"chathub/internal/state"
	"chathub/internal/store"
)

// maxMessageLength bounds the sanitized text, matching the persisted schema.
const maxMessageLength = 1000

// Pipeline turns a raw chat submission into a persisted message and a
// broadcast. Submit runs on the submitting client's read goroutine, so a slow
// store write blocks only that one connection.
type Pipeline struct {
	hub      *Hub
	roster   *state.Roster
	messages *store.MessageStore
	room     string
	log      *slog.Logger
}

func NewPipeline(hub *Hub, roster *state.Roster, messages *store.MessageStore, room string, log *slog.Logger) *Pipeline {
	return &Pipeline{hub: hub, roster: roster, messages: messages, room: room, log: log}
}

// Submit validates, sanitizes, persists, and fans out one chat message.
// Malformed submissions are dropped silently; a failed persist is reported to
// the sender only and nothing is broadcast.
func (p *Pipeline) Submit(client *Client, sub ChatSubmission) {
	if sub.Sender == "" || sub.Text == "" {
		return
	}

	// Escaped exactly once, before anything is stored or relayed. The length
	// window applies to the sanitized text.
	sender := sanitize.Clean(sub.Sender)
	text := sanitize.Clean(sub.Text)
	if n := utf8.RuneCountInString(text); n == 0 || n > maxMessageLength {
		return
	}

	now := time.Now().UTC()
	record := store.Message{
		ID:        uuid.New(),
		Room:      p.room,
		Sender:    sender,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.messages.Append(record); err != nil {
		p.log.Error("message persist failed", "addr", client.addr, "error", err)
		// The failed send never happened: no broadcast, and the sender's
		// typing indicator stays as it was.
		p.hub.ToOne(client, EventError, ErrorNotice{Message: "Failed to send message"})
		return
	}

	delivery := ChatDelivery{Sender: sender, Text: text, CreatedAt: record.CreatedAt}
	if recipient := sanitize.Clean(sub.Recipient); recipient != "" {
		delivery.Recipient = recipient
		// First-match scan over the online set; an offline recipient is not
		// an error, the sender still gets its echo.
		if id, online := p.roster.FindByName(recipient); online {
			if target := p.hub.client(id); target != nil {
				p.hub.ToOne(target, EventChatMessage, delivery)
			}
		}
		p.hub.ToOne(client, EventChatMessage, delivery)
	} else {
		p.hub.ToAll(EventChatMessage, delivery)
	}

	if p.roster.ClearTyping(client.id) {
		p.hub.ToAll(EventTypingUpdate, p.roster.TypingNames())
	}
}
