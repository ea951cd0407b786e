package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is the persisted state for one submission fingerprint.
type Entry struct {
	JobID     string    `json:"jobId"`
	Status    string    `json:"status"` // processing or completed
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists fingerprint-to-job bindings between runs so a restarted
// client can reattach instead of re-uploading.
type Store interface {
	Get(digest string) (Entry, bool, error)
	Put(digest string, e Entry) error
	Delete(digest string) error
}

// FileStore keeps one JSON file per fingerprint digest.
type FileStore struct {
	dir string
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(digest string) string {
	return filepath.Join(s.dir, digest+".json")
}

func (s *FileStore) Get(digest string) (Entry, bool, error) {
	data, err := os.ReadFile(s.path(digest))
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupt state reads as absent; the next Put rewrites it.
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *FileStore) Put(digest string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(digest), data, 0o644)
}

func (s *FileStore) Delete(digest string) error {
	err := os.Remove(s.path(digest))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemStore is an in-memory Store for tests and embedding.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]Entry)}
}

func (s *MemStore) Get(digest string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[digest]
	return e, ok, nil
}

func (s *MemStore) Put(digest string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[digest] = e
	return nil
}

func (s *MemStore) Delete(digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, digest)
	return nil
}
