package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leozw/domain-guardian/internal/core"
)

// ChangeHook is called with the hostname of a record after its status
// changed or it was removed.
type ChangeHook func(ctx context.Context, domain string)

type Option func(*Registry)

func WithChangeHook(hook ChangeHook) Option {
	return func(r *Registry) {
		r.hooks = append(r.hooks, hook)
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

type Registry struct {
	store Store
	now   func() time.Time
	hooks []ChangeHook
}

func New(store Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Create(ctx context.Context, spaceID uuid.UUID, domain string) (*core.DomainRecord, error) {
	if spaceID == uuid.Nil {
		return nil, core.ErrInvalidSpace
	}

	normalized, err := NormalizeAndValidate(domain)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	rec := &core.DomainRecord{
		ID:        uuid.New(),
		SpaceID:   spaceID,
		Domain:    normalized,
		Status:    core.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("register %s: %w", normalized, err)
	}
	return rec, nil
}

func (r *Registry) Get(ctx context.Context, domain string) (*core.DomainRecord, error) {
	return r.store.GetByDomain(ctx, Normalize(domain))
}

func (r *Registry) GetByID(ctx context.Context, id uuid.UUID) (*core.DomainRecord, error) {
	return r.store.GetByID(ctx, id)
}

func (r *Registry) GetBySpace(ctx context.Context, spaceID uuid.UUID) (*core.DomainRecord, error) {
	return r.store.GetBySpace(ctx, spaceID)
}

// List returns every record with the given status in insertion order.
func (r *Registry) List(ctx context.Context, status core.DomainStatus) ([]*core.DomainRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return r.store.ListByStatus(ctx, status)
}

// UpdateStatus is reserved for the lifecycle controller.
func (r *Registry) UpdateStatus(ctx context.Context, id uuid.UUID, expected core.DomainStatus, upd core.StatusUpdate) (*core.DomainRecord, error) {
	rec, err := r.store.UpdateStatus(ctx, id, expected, upd)
	if err != nil {
		return nil, err
	}
	r.notify(ctx, rec.Domain)
	return rec, nil
}

func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := r.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	r.notify(ctx, rec.Domain)
	return nil
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *Registry) notify(ctx context.Context, domain string) {
	for _, hook := range r.hooks {
		hook(ctx, domain)
	}
}
