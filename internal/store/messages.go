// Package store persists chat messages in BadgerDB and serves the bounded
// history reads performed at page load. The engine only ever appends;
// messages are immutable once written.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultRoom is the only room the hub currently serves. The room tag is
// persisted anyway so history stays partitioned if more rooms ever appear.
const DefaultRoom = "general"

// DefaultHistoryLimit bounds history reads when the caller does not say.
const DefaultHistoryLimit = 100

// Message is the persisted document for one chat message.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessageStore appends and reads messages. Safe for concurrent use; Badger
// serializes the transactions.
type MessageStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageStore(db *badger.DB, log *slog.Logger) *MessageStore {
	return &MessageStore{db: db, log: log}
}

// key formats "msg:{room}:{timestamp_padded}:{uuid}". The 19-digit zero
// padding makes lexicographic order match chronological order, and the UUID
// disambiguates two messages landing on the same nanosecond.
func key(m Message) []byte {
	return fmt.Appendf(nil, "msg:%s:%019d:%s", m.Room, m.CreatedAt.UnixNano(), m.ID)
}

// Append durably writes one message.
func (s *MessageStore) Append(m Message) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding message %s: %w", m.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(m), doc)
	})
	if err != nil {
		return fmt.Errorf("writing message %s: %w", m.ID, err)
	}
	return nil
}

// Recent returns the most recent limit messages of a room in chronological
// order. A non-positive limit falls back to DefaultHistoryLimit.
func (s *MessageStore) Recent(room string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var docs [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := fmt.Appendf(nil, "msg:%s:", room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past every real timestamp, then walk backwards.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(docs) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				docs = append(docs, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading history for room %q: %w", room, err)
	}

	messages := make([]Message, 0, len(docs))
	for _, doc := range docs {
		var m Message
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, fmt.Errorf("decoding stored message: %w", err)
		}
		messages = append(messages, m)
	}
	// The reverse scan yields newest first; history readers want oldest first.
	return lo.Reverse(messages), nil
}
