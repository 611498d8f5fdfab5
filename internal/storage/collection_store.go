// Package storage persists a local snapshot of the conversation collection so
// the client has something to show before the first full fetch completes.
// The server remains the source of truth; the snapshot is replaced wholesale.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pulse-chat/go-client/internal/securestore"
	"pulse-chat/go-client/pkg/models"
)

const snapshotVersion = 1

var ErrSnapshotVersion = errors.New("storage: unsupported snapshot version")

type snapshot struct {
	Version       int                   `json:"version"`
	SavedAt       time.Time             `json:"saved_at"`
	Conversations []models.Conversation `json:"conversations"`
}

// CollectionStore writes and reads collection snapshots at a fixed path,
// encrypted when a passphrase is set. A nil store ignores all calls.
type CollectionStore struct {
	mu     sync.Mutex
	path   string
	secret string
}

// New returns a store for the given path, or nil when path is empty.
func New(path, passphrase string) *CollectionStore {
	if path == "" {
		return nil
	}
	return &CollectionStore{path: path, secret: passphrase}
}

// Save replaces the snapshot on disk with the given collection.
func (s *CollectionStore) Save(conversations []models.Conversation) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snapshot{
		Version:       snapshotVersion,
		SavedAt:       time.Now().UTC(),
		Conversations: conversations,
	})
	if err != nil {
		return err
	}
	if s.secret != "" {
		if data, err = securestore.Seal(s.secret, data); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Load reads the snapshot from disk. A missing file yields an empty
// collection, not an error. Plaintext snapshots written before encryption was
// configured are still readable.
func (s *CollectionStore) Load() ([]models.Conversation, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if s.secret != "" {
		decoded, err := securestore.Open(s.secret, data)
		if err != nil {
			if !errors.Is(err, securestore.ErrPlaintext) {
				return nil, err
			}
		} else {
			data = decoded
		}
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Version != snapshotVersion {
		return nil, ErrSnapshotVersion
	}
	return snap.Conversations, nil
}
