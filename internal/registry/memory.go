package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/leozw/domain-guardian/internal/core"
)

// MemoryStore keeps records in process. Used by tests and local runs
// without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []*core.DomainRecord
	byID     map[uuid.UUID]*core.DomainRecord
	byDomain map[string]*core.DomainRecord
	bySpace  map[uuid.UUID]*core.DomainRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[uuid.UUID]*core.DomainRecord),
		byDomain: make(map[string]*core.DomainRecord),
		bySpace:  make(map[uuid.UUID]*core.DomainRecord),
	}
}

func (m *MemoryStore) Insert(_ context.Context, rec *core.DomainRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bySpace[rec.SpaceID]; ok {
		return core.ErrDuplicateOwner
	}
	key := Normalize(rec.Domain)
	if _, ok := m.byDomain[key]; ok {
		return core.ErrDuplicateDomain
	}

	stored := *rec
	m.records = append(m.records, &stored)
	m.byID[stored.ID] = &stored
	m.byDomain[key] = &stored
	m.bySpace[stored.SpaceID] = &stored
	return nil
}

func (m *MemoryStore) GetByDomain(_ context.Context, domain string) (*core.DomainRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.byDomain[Normalize(domain)]), nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*core.DomainRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.byID[id]), nil
}

func (m *MemoryStore) GetBySpace(_ context.Context, spaceID uuid.UUID) (*core.DomainRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return clone(m.bySpace[spaceID]), nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, status core.DomainStatus) ([]*core.DomainRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*core.DomainRecord{}
	for _, rec := range m.records {
		if rec.Status == status {
			out = append(out, clone(rec))
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, expected core.DomainStatus, upd core.StatusUpdate) (*core.DomainRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if rec.Status != expected {
		return nil, core.ErrConflict
	}

	*rec = upd.Apply(*rec)
	return clone(rec), nil
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) (*core.DomainRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	delete(m.byID, id)
	delete(m.byDomain, Normalize(rec.Domain))
	delete(m.bySpace, rec.SpaceID)
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			break
		}
	}
	return clone(rec), nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func clone(rec *core.DomainRecord) *core.DomainRecord {
	if rec == nil {
		return nil
	}
	c := *rec
	return &c
}
