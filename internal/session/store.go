package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store reads and writes the session map as a single JSON file. A mutex
// serializes in-process writers; the file itself is replaced atomically via
// temp-file rename so readers never observe a partial write.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by the given file path. The file does not
// need to exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the full session map. A missing file yields an empty map; an
// unreadable or corrupt file is logged and also yields an empty map so a bad
// store never takes the reply flow down.
func (s *Store) Load() map[string]*Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("session store unreadable, starting empty", "path", s.path, "error", err)
		}
		return make(map[string]*Entry)
	}
	var m map[string]*Entry
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("session store corrupt, starting empty", "path", s.path, "error", err)
		return make(map[string]*Entry)
	}
	if m == nil {
		m = make(map[string]*Entry)
	}
	return m
}

// Save writes the full session map atomically.
func (s *Store) Save(m map[string]*Entry) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write session store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync session store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close session store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace session store: %w", err)
	}
	return nil
}

// Update runs fn over the current map under the store lock and persists the
// result. This is the read-modify-write cycle every mutation goes through.
func (s *Store) Update(fn func(map[string]*Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.Load()
	fn(m)
	return s.Save(m)
}

// Get returns a copy of one entry, or nil when absent.
func (s *Store) Get(key string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Load()[key].Clone()
}
