package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pulse-chat/go-client/pkg/models"
)

func sampleCollection() []models.Conversation {
	return []models.Conversation{
		{
			ID:        "c1",
			OtherUser: models.User{ID: "u2", Username: "sam"},
			Messages: []models.Message{
				{ID: "m1", ConversationID: "c1", SenderID: "u2", Text: "hello", IsRead: false},
			},
			LatestMessageText:  "hello",
			UnreadMessageCount: 1,
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "state", "conversations.json"), "")
	if err := store.Save(sampleCollection()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" || got[0].UnreadMessageCount != 1 {
		t.Fatalf("unexpected collection: %+v", got)
	}
	if len(got[0].Messages) != 1 || got[0].Messages[0].ID != "m1" {
		t.Fatalf("messages not restored: %+v", got[0].Messages)
	}
}

func TestEncryptedSnapshotHidesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.enc")
	store := New(path, "passphrase")
	if err := store.Save(sampleCollection()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot file: %v", err)
	}
	if strings.Contains(string(raw), "hello") {
		t.Fatal("snapshot on disk contains plaintext message text")
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != 1 || got[0].Messages[0].Text != "hello" {
		t.Fatalf("unexpected decrypted collection: %+v", got)
	}
}

func TestLoadPlaintextSnapshotWithPassphraseConfigured(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.json")
	if err := New(path, "").Save(sampleCollection()); err != nil {
		t.Fatalf("save plaintext failed: %v", err)
	}
	got, err := New(path, "newly-configured").Load()
	if err != nil {
		t.Fatalf("load should tolerate pre-encryption snapshots: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected collection: %+v", got)
	}
}

func TestLoadMissingFileYieldsEmpty(t *testing.T) {
	got, err := New(filepath.Join(t.TempDir(), "absent.json"), "p").Load()
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil collection, got %+v", got)
	}
}

func TestNilStoreIsNoOp(t *testing.T) {
	var store *CollectionStore
	if err := store.Save(sampleCollection()); err != nil {
		t.Fatalf("nil store save must be a no-op: %v", err)
	}
	if got, err := store.Load(); err != nil || got != nil {
		t.Fatalf("nil store load must be empty: %v %+v", err, got)
	}
}
