package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"paylog/pkg/domain"
	"paylog/pkg/platform/sentinel"
)

// InMemoryStore keeps registries and event records in process memory. It is
// the default for development and the workhorse of the unit suites; deploys
// use the Postgres store.
type InMemoryStore struct {
	mu         sync.RWMutex
	registries map[domain.RegistryID]*Registry
	events     []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{registries: make(map[domain.RegistryID]*Registry)}
}

func (s *InMemoryStore) CreateRegistry(_ context.Context, reg *Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.registries[reg.ID]; exists {
		return sentinel.ErrConflict
	}
	s.registries[reg.ID] = reg.Clone()
	return nil
}

func (s *InMemoryStore) FindRegistry(_ context.Context, id domain.RegistryID) (*Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registries[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return reg.Clone(), nil
}

func (s *InMemoryStore) Execute(_ context.Context, id domain.RegistryID, fn func(reg *Registry) (*Transition, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registries[id]
	if !ok {
		return sentinel.ErrNotFound
	}

	// fn sees a snapshot; the stored registry is only touched on success.
	tr, err := fn(reg.Clone())
	if err != nil {
		return err
	}
	if tr == nil {
		return nil
	}
	if tr.MilestoneID < 0 || tr.MilestoneID >= len(reg.Milestones) {
		return sentinel.ErrInvalidState
	}
	reg.Milestones[tr.MilestoneID] = tr.Milestone.Clone()
	s.events = append(s.events, cloneRecord(tr.Record))
	return nil
}

func (s *InMemoryStore) ListEvents(_ context.Context, id domain.RegistryID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.events {
		if rec.RegistryID == id {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func (s *InMemoryStore) PendingEvents(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.events {
		if rec.PublishedAt != nil {
			continue
		}
		out = append(out, cloneRecord(rec))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		marked[id] = struct{}{}
	}
	for i := range s.events {
		if _, ok := marked[s.events[i].ID]; ok && s.events[i].PublishedAt == nil {
			at := publishedAt
			s.events[i].PublishedAt = &at
		}
	}
	return nil
}

func cloneRecord(rec Record) Record {
	clone := rec
	if rec.Payload != nil {
		clone.Payload = append([]byte(nil), rec.Payload...)
	}
	if rec.PublishedAt != nil {
		t := *rec.PublishedAt
		clone.PublishedAt = &t
	}
	return clone
}
