package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coletivobank/coletivo/pkg/cache"
	"github.com/coletivobank/coletivo/pkg/domain"
	"github.com/coletivobank/coletivo/pkg/domain/draft"
	"github.com/google/uuid"
)

// MemoryDraftStore implements cache.DraftStore in process.
type MemoryDraftStore struct {
	drafts map[uuid.UUID]draft.Draft
	mu     sync.RWMutex
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewMemoryDraftStore creates a store that sweeps expired drafts every
// interval. Close stops the sweeper.
func NewMemoryDraftStore(interval time.Duration) *MemoryDraftStore {
	s := &MemoryDraftStore{
		drafts: make(map[uuid.UUID]draft.Draft),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go s.cleanup(interval)
	return s
}

func (s *MemoryDraftStore) Get(_ context.Context, id uuid.UUID) (*draft.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[id]
	if !ok || d.Expired(s.now()) {
		return nil, fmt.Errorf("%w: draft %s", domain.ErrNotFound, id)
	}
	d.Payload = append([]byte(nil), d.Payload...)
	return &d, nil
}

func (s *MemoryDraftStore) Set(_ context.Context, d *draft.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *d
	stored.Payload = append([]byte(nil), d.Payload...)
	s.drafts[d.ID] = stored
	return nil
}

func (s *MemoryDraftStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, id)
	return nil
}

func (s *MemoryDraftStore) Take(_ context.Context, id uuid.UUID) (*draft.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok || d.Expired(s.now()) {
		return nil, fmt.Errorf("%w: draft %s", domain.ErrNotFound, id)
	}
	delete(s.drafts, id)
	return &d, nil
}

// Close stops the background sweeper.
func (s *MemoryDraftStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryDraftStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for id, d := range s.drafts {
				if d.Expired(now) {
					delete(s.drafts, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ cache.DraftStore = (*MemoryDraftStore)(nil)
