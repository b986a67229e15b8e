// Package session keeps the single bearer token that authenticates the client.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is the persisted form of the session.
type Record struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Store persists one Record. A missing record loads as the zero value.
type Store interface {
	Load() (Record, error)
	Save(Record) error
	Clear() error
}

// TokenFileName is the well-known file inside the config dir.
const TokenFileName = "token.json"

// FileStore keeps the record as JSON in <dir>/token.json.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir. The directory is created on Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path is the token file location.
func (s *FileStore) Path() string { return filepath.Join(s.dir, TokenFileName) }

func (s *FileStore) Load() (Record, error) {
	b, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", s.Path(), err)
	}
	return rec, nil
}

func (s *FileStore) Save(rec Record) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStore is an in-process Store for tests and short-lived clients.
type MemoryStore struct {
	mu  sync.Mutex
	rec Record
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec, nil
}

func (m *MemoryStore) Save(rec Record) error {
	m.mu.Lock()
	m.rec = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.rec = Record{}
	m.mu.Unlock()
	return nil
}
