// Package prefs persists user preferences as a small TOML key/value file.
//
// Two keys survive restarts: the ordered channel roster ("order") and the
// channel-points automation flag ("channelPoints"). Writes are atomic
// (temp file + rename) so a crash mid-save never corrupts the store.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// DefaultOrder is the built-in roster seeded on first run.
var DefaultOrder = []string{
	"viichan6",
	"gosegugosegu",
	"cotton__123",
	"lilpaaaaaa",
	"vo_ine",
	"jingburger",
}

const fileName = "prefs.toml"

// Preferences is a point-in-time snapshot of the flags a session captures
// at creation. Later toggles do not affect an existing snapshot.
type Preferences struct {
	ChannelPoints bool
}

type schema struct {
	Order         []string `toml:"order"`
	ChannelPoints *bool    `toml:"channelPoints"`
}

// Store is the durable preference store. All mutation goes through its
// methods; the underlying file is never touched directly by callers.
type Store struct {
	path string

	mu   sync.RWMutex
	data schema
}

// Open loads the store from dir, seeding defaults on first run.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}

	s := &Store{path: filepath.Join(dir, fileName)}

	raw, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		s.data = schema{Order: append([]string(nil), DefaultOrder...)}
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read prefs: %w", err)
	}

	if err := toml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse prefs: %w", err)
	}
	if len(s.data.Order) == 0 {
		s.data.Order = append([]string(nil), DefaultOrder...)
	}
	return s, nil
}

// Order returns a copy of the ordered roster.
func (s *Store) Order() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.data.Order...)
}

// Primary returns the roster's primary channel (index 0) and false when
// the roster is empty.
func (s *Store) Primary() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data.Order) == 0 {
		return "", false
	}
	return s.data.Order[0], true
}

// SetOrder replaces the roster and persists it.
func (s *Store) SetOrder(order []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Order = append([]string(nil), order...)
	return s.save()
}

// ChannelPoints reports whether the companion automation flag is enabled.
// Defaults to true when the key was never written.
func (s *Store) ChannelPoints() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.ChannelPoints == nil {
		return true
	}
	return *s.data.ChannelPoints
}

// SetChannelPoints writes the companion automation flag.
func (s *Store) SetChannelPoints(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ChannelPoints = &enabled
	return s.save()
}

// ToggleChannelPoints flips the flag and returns the new value.
func (s *Store) ToggleChannelPoints() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := true
	if s.data.ChannelPoints != nil {
		next = !*s.data.ChannelPoints
	} else {
		next = false
	}
	s.data.ChannelPoints = &next
	return next, s.save()
}

// Snapshot captures the current flags for a session being created.
func (s *Store) Snapshot() Preferences {
	return Preferences{ChannelPoints: s.ChannelPoints()}
}

// save writes the store atomically. Caller holds s.mu.
func (s *Store) save() error {
	raw, err := toml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit prefs: %w", err)
	}
	return nil
}
