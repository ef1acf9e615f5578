package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ichs-dev/tayyib-kiosk/pkg/i18n"
)

// MemoryStore keeps the visit in process memory. This is the default for
// a single-device kiosk; state does not survive a process restart.
type MemoryStore struct {
	mu          sync.RWMutex
	visit       *Visit
	defaultLang i18n.Lang
}

// NewMemoryStore creates an in-memory visit store.
func NewMemoryStore(defaultLang i18n.Lang) *MemoryStore {
	return &MemoryStore{defaultLang: defaultLang}
}

// Ensure returns the current visit, creating one if none exists.
func (s *MemoryStore) Ensure(_ context.Context) (*Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.visit == nil {
		s.visit = &Visit{
			ID:        uuid.New().String(),
			StartedAt: time.Now().UTC(),
			Lang:      s.defaultLang,
		}
	}
	v := *s.visit
	return &v, nil
}

// Current retrieves the active visit.
func (s *MemoryStore) Current(_ context.Context) (*Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.visit == nil {
		return nil, ErrNoVisit
	}
	v := *s.visit
	return &v, nil
}

// SetLanguage records the chosen language.
func (s *MemoryStore) SetLanguage(ctx context.Context, lang i18n.Lang, lock bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.visit == nil {
		s.visit = &Visit{
			ID:        uuid.New().String(),
			StartedAt: time.Now().UTC(),
		}
	}
	s.visit.Lang = lang
	if lock {
		s.visit.LangLocked = true
	}
	return nil
}

// Clear removes the visit.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visit = nil
	return nil
}

// Close releases any resources held by the store.
func (s *MemoryStore) Close() error { return nil }
