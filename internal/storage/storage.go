package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/eugenenazirov/storeconf/internal/settings"
)

var (
	// ErrNoSections indicates an attempt to store settings without any configured section.
	ErrNoSections = errors.New("settings must contain at least one section")
)

// Snapshot is one generation of resolved settings.
type Snapshot struct {
	Settings settings.Settings
	Revision uint64
	LoadedAt time.Time
}

// Storage provides access to the settings currently being served.
type Storage interface {
	Current() (Snapshot, error)
	Replace(resolved settings.Settings) (Snapshot, error)
}

// MemoryStorage keeps the current snapshot in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu       sync.RWMutex
	snapshot Snapshot
	clock    func() time.Time
}

// Option configures a MemoryStorage.
type Option func(*MemoryStorage)

// WithClock overrides the time source used to stamp snapshots.
func WithClock(clock func() time.Time) Option {
	return func(s *MemoryStorage) {
		s.clock = clock
	}
}

// NewMemoryStorage initialises storage with the first revision of the settings.
func NewMemoryStorage(initial settings.Settings, opts ...Option) (*MemoryStorage, error) {
	s := &MemoryStorage{
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.Replace(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the snapshot being served.
func (s *MemoryStorage) Current() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot, nil
}

// Replace stores the settings as a new revision. Settings without sections
// are rejected and the previous snapshot is kept.
func (s *MemoryStorage) Replace(resolved settings.Settings) (Snapshot, error) {
	if len(resolved.Sections()) == 0 {
		return Snapshot{}, ErrNoSections
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = Snapshot{
		Settings: resolved,
		Revision: s.snapshot.Revision + 1,
		LoadedAt: s.clock(),
	}
	return s.snapshot, nil
}
