package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store persists unit state as one JSON document per unit under a
// directory. Writes go through a temp file and rename, so a concurrent
// reader observes either the old or the new record set, never a partial
// write.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates the state directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// Load returns the persisted unit, or a fresh New unit when none has
// been saved yet. Every other failure propagates: retry history must
// never be silently reconstructed from nothing.
func (s *Store) Load(key Key, maxRetries int) (*Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(s.path(key), key, maxRetries)
}

func (s *Store) loadLocked(path string, key Key, maxRetries int) (*Unit, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewUnit(key, maxRetries), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read unit state %s: %w", key, err)
	}
	var u Unit
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode unit state %s: %w", key, err)
	}
	if u.MaxRetries <= 0 {
		u.MaxRetries = maxRetries
		if u.MaxRetries <= 0 {
			u.MaxRetries = DefaultMaxRetries
		}
	}
	return &u, nil
}

// Save persists the unit atomically.
func (s *Store) Save(u *Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return fmt.Errorf("encode unit state %s: %w", u.Key, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".unit-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write unit state %s: %w", u.Key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(u.Key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace unit state %s: %w", u.Key, err)
	}
	return nil
}

// Exists reports whether the unit has persisted state.
func (s *Store) Exists(key Key) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// List loads every persisted unit, ordered by key.
func (s *Store) List() ([]*Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read state dir: %w", err)
	}
	var units []*Unit
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read unit state file %s: %w", name, err)
		}
		var u Unit
		if err := json.Unmarshal(data, &u); err != nil {
			return nil, fmt.Errorf("decode unit state file %s: %w", name, err)
		}
		units = append(units, &u)
	}
	sort.Slice(units, func(i, j int) bool {
		return units[i].Key.String() < units[j].Key.String()
	})
	return units, nil
}

func (s *Store) path(key Key) string {
	return filepath.Join(s.dir, sanitizeFilename(key.String())+".json")
}

// sanitizeFilename keeps unit keys filesystem-safe.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unit"
	}
	return b.String()
}
