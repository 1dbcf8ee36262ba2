package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eugenenazirov/storeconf/internal/settings"
)

var fixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func cacheSettings(t *testing.T, port int) settings.Settings {
	t.Helper()

	resolved, err := settings.Load(settings.Map("test", map[string]any{
		"redis": map[string]any{"host": "127.0.0.1", "port": port},
	}))
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	return resolved
}

func TestNewMemoryStorageStartsAtFirstRevision(t *testing.T) {
	t.Parallel()

	store, err := NewMemoryStorage(cacheSettings(t, 6379), WithClock(func() time.Time { return fixedTime }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := store.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", snap.Revision)
	}
	if !snap.LoadedAt.Equal(fixedTime) {
		t.Fatalf("expected load time %v, got %v", fixedTime, snap.LoadedAt)
	}
	if cache, ok := snap.Settings.Cache(); !ok || cache.Port != 6379 {
		t.Fatalf("unexpected cache settings %+v", cache)
	}
}

func TestReplaceUpdatesState(t *testing.T) {
	t.Parallel()

	store, err := NewMemoryStorage(cacheSettings(t, 6379))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	replaced, err := store.Replace(cacheSettings(t, 6380))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replaced.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", replaced.Revision)
	}

	snap, err := store.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache, _ := snap.Settings.Cache(); cache.Port != 6380 {
		t.Fatalf("expected port 6380, got %d", cache.Port)
	}
}

func TestReplaceRejectsEmptySettings(t *testing.T) {
	t.Parallel()

	store, err := NewMemoryStorage(cacheSettings(t, 6379))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.Replace(settings.Settings{}); !errors.Is(err, ErrNoSections) {
		t.Fatalf("expected ErrNoSections, got %v", err)
	}

	snap, _ := store.Current()
	if snap.Revision != 1 {
		t.Fatalf("expected previous revision to be kept, got %d", snap.Revision)
	}
}

func TestNewMemoryStorageRejectsEmptySettings(t *testing.T) {
	t.Parallel()

	if _, err := NewMemoryStorage(settings.Settings{}); !errors.Is(err, ErrNoSections) {
		t.Fatalf("expected ErrNoSections, got %v", err)
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store, err := NewMemoryStorage(cacheSettings(t, 6379))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	candidates := make([]settings.Settings, 32)
	for i := range candidates {
		candidates[i] = cacheSettings(t, 7000+i)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func(resolved settings.Settings) {
			defer wg.Done()
			if _, err := store.Replace(resolved); err != nil {
				t.Errorf("Replace failed: %v", err)
			}
		}(candidates[i])

		go func() {
			defer wg.Done()
			if _, err := store.Current(); err != nil {
				t.Errorf("Current failed: %v", err)
			}
		}()
	}

	wg.Wait()

	snap, err := store.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := uint64(33); snap.Revision != want {
		t.Fatalf("expected revision %d, got %d", want, snap.Revision)
	}
}
