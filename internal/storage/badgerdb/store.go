// Package badgerdb provides an alternative BadgerDB-backed chat log and user
// directory, selectable through the server configuration.
package badgerdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/chatchum/relay/internal/relay"
)

// Store persists chat history and the user directory in BadgerDB.
type Store struct {
	db *badger.DB
}

// diskRecord is the stored form of a relay.Record.
type diskRecord struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Content  string `json:"content"`
	SentAt   int64  `json:"sent_at"`
}

// Open opens (creating if necessary) a Badger database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the Badger handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// messageKey builds "msg:{a}|{b}:{timestamp}:{uuid}". Participants are
// sorted so both directions of a conversation share one prefix, and the
// 19-digit zero-padded nanosecond timestamp makes lexicographic iteration
// chronological. The UUID disambiguates two messages in the same nanosecond.
func messageKey(rec relay.Record) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		pairKey(rec.Sender, rec.Receiver), rec.SentAt.UnixNano(), rec.ID))
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func userKey(name string) []byte {
	return []byte("user:" + name)
}

// Append persists one delivered message.
func (s *Store) Append(ctx context.Context, rec relay.Record) error {
	value, err := json.Marshal(diskRecord{
		ID:       rec.ID.String(),
		Sender:   rec.Sender,
		Receiver: rec.Receiver,
		Content:  rec.Content,
		SentAt:   rec.SentAt.UTC().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal chat record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(rec), value)
	})
}

// Query returns the history between a and b, oldest first. The sorted pair
// prefix makes this a single forward scan.
func (s *Store) Query(ctx context.Context, a, b string) ([]relay.Record, error) {
	prefix := []byte("msg:" + pairKey(a, b) + ":")

	var values [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(v []byte) error {
				values = append(values, append([]byte(nil), v...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan chat history: %w", err)
	}

	records := make([]relay.Record, 0, len(values))
	for _, value := range values {
		var disk diskRecord
		if err := json.Unmarshal(value, &disk); err != nil {
			return nil, fmt.Errorf("unmarshal chat record: %w", err)
		}
		id, err := uuid.Parse(disk.ID)
		if err != nil {
			return nil, fmt.Errorf("parse message id: %w", err)
		}
		records = append(records, relay.Record{
			ID:       id,
			Sender:   disk.Sender,
			Receiver: disk.Receiver,
			Content:  disk.Content,
			SentAt:   time.Unix(0, disk.SentAt).UTC(),
		})
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records, nil
}

// Exists reports whether name is present in the directory.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(name))
		return err
	})
	switch {
	case err == badger.ErrKeyNotFound:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check username: %w", err)
	}
	return true, nil
}

// Add records name in the directory. Returns false when the name was
// already present.
func (s *Store) Add(ctx context.Context, name string) (bool, error) {
	added := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(name))
		switch {
		case err == badger.ErrKeyNotFound:
			added = true
			return txn.Set(userKey(name), nil)
		case err != nil:
			return err
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("add username: %w", err)
	}
	return added, nil
}

// Remove deletes name from the directory.
func (s *Store) Remove(ctx context.Context, name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(userKey(name))
	})
	if err != nil {
		return fmt.Errorf("remove username: %w", err)
	}
	return nil
}
