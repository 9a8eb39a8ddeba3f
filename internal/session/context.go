// Package session implements the client roles: the player and the projector.
// Both derive their view state exclusively from committed document snapshots
// delivered by the store; a rejected write never shows up in a view.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/alexdean/worst-idea/internal/model"
	"github.com/alexdean/worst-idea/internal/store"
)

// gameIDKey is the single persisted key remembering the last-joined game.
const gameIDKey = "_worst_idea_game_id"

var ErrNotSignedIn = errors.New("identity has not been acquired")

// Context is everything a client role needs, built once at startup from the
// identity result and the local persistence primitive. Roles never reach for
// ambient globals.
type Context struct {
	Principal model.Principal
	Docs      store.DocumentStore
	Local     LocalStore
}

// LocalStore is the cookie-like single-key persistence used to remember the
// joined game across reloads.
type LocalStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryLocalStore is an in-memory LocalStore.
type MemoryLocalStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryLocalStore() *MemoryLocalStore {
	return &MemoryLocalStore{values: make(map[string]string)}
}

func (s *MemoryLocalStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryLocalStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryLocalStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileLocalStore persists keys as a JSON file, for clients that outlive a
// process.
type FileLocalStore struct {
	mu   sync.Mutex
	path string
}

func NewFileLocalStore(path string) *FileLocalStore {
	return &FileLocalStore{path: path}
}

func (s *FileLocalStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.read()
	v, ok := values[key]
	return v, ok
}

func (s *FileLocalStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.read()
	values[key] = value
	return s.write(values)
}

func (s *FileLocalStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.read()
	delete(values, key)
	return s.write(values)
}

func (s *FileLocalStore) read() map[string]string {
	values := make(map[string]string)
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return values
	}
	_ = json.Unmarshal(raw, &values)
	return values
}

func (s *FileLocalStore) write(values map[string]string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}
