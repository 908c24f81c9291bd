package config

import (
	"fmt"
	"sync"
)

// Change describes one settings update.
type Change struct {
	Old Settings
	New Settings
}

func (c Change) DisplayModeChanged() bool { return c.Old.DisplayMode != c.New.DisplayMode }
func (c Change) IntervalChanged() bool    { return c.Old.RefreshInterval != c.New.RefreshInterval }
func (c Change) PathChanged() bool        { return c.Old.ExecutablePath != c.New.ExecutablePath }

// Store owns the process's configuration, persists settings updates to
// path, and notifies subscribers after each change.
type Store struct {
	mu      sync.Mutex
	path    string
	cfg     Config
	nextID  int
	obs     map[int]func(Change)
	persist bool
}

// NewStore wraps cfg. Updates are written to path; an empty path keeps
// settings in memory only.
func NewStore(path string, cfg Config) *Store {
	cfg.Settings = cfg.Settings.normalize()
	return &Store{
		path:    path,
		cfg:     cfg,
		obs:     make(map[int]func(Change)),
		persist: path != "",
	}
}

func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Settings
}

func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Subscribe registers fn for future changes and returns a function that removes it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.obs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.obs, id)
		s.mu.Unlock()
	}
}

// Update applies fn to a copy of the settings, validates and persists the
// result, then notifies subscribers. Nothing changes when fn's result is
// invalid or cannot be saved.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	old := s.cfg.Settings
	next := old
	fn(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if next == old {
		s.mu.Unlock()
		return nil
	}
	if s.persist {
		cfg := s.cfg
		cfg.Settings = next
		if err := Save(s.path, cfg); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("save settings: %w", err)
		}
	}
	s.cfg.Settings = next
	observers := make([]func(Change), 0, len(s.obs))
	for _, fn := range s.obs {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	change := Change{Old: old, New: next}
	for _, fn := range observers {
		fn(change)
	}
	return nil
}

func (s *Store) SetDisplayMode(m DisplayMode) error {
	return s.Update(func(st *Settings) { st.DisplayMode = m })
}

func (s *Store) SetRefreshInterval(r RefreshInterval) error {
	return s.Update(func(st *Settings) { st.RefreshInterval = r })
}

func (s *Store) SetExecutablePath(path string) error {
	return s.Update(func(st *Settings) { st.ExecutablePath = path })
}

func (s *Store) ResetExecutablePath() error {
	return s.SetExecutablePath(DefaultExecutablePath)
}
