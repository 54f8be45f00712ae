package routing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/core"
	"github.com/leozw/domain-guardian/internal/registry"
)

type Lookup interface {
	Get(ctx context.Context, domain string) (*core.DomainRecord, error)
}

type SpaceDirectory interface {
	GetPublicSpace(ctx context.Context, id uuid.UUID) (*core.SpacePublic, error)
}

type Cache interface {
	Get(ctx context.Context, host string) (*core.SpacePublic, bool, error)
	Set(ctx context.Context, host string, space *core.SpacePublic) error
	Invalidate(ctx context.Context, host string)
}

// Resolver maps an incoming hostname to the space that serves it.
type Resolver struct {
	lookup Lookup
	spaces SpaceDirectory
	cache  Cache
	logger *zap.Logger
}

// NewResolver accepts a nil cache.
func NewResolver(lookup Lookup, spaces SpaceDirectory, cache Cache, logger *zap.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		spaces: spaces,
		cache:  cache,
		logger: logger.With(zap.String("component", "routing")),
	}
}

// CacheKey is the canonical form a host is cached under.
func CacheKey(host string) string {
	return strings.TrimPrefix(registry.Normalize(host), "www.")
}

// InvalidateHook drops cached lookups whenever a record changes.
func InvalidateHook(cache Cache) registry.ChangeHook {
	return func(ctx context.Context, domain string) {
		cache.Invalidate(ctx, CacheKey(domain))
	}
}

// Resolve returns the public profile of the space behind host. Hosts whose
// record is not active report core.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, host string) (*core.SpacePublic, error) {
	normalized := registry.Normalize(host)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty host", core.ErrInvalidDomain)
	}
	key := CacheKey(normalized)

	if r.cache != nil {
		space, found, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("Resolve cache read failed", zap.String("domain", key), zap.Error(err))
		} else if found {
			return space, nil
		}
	}

	rec, err := r.findActive(ctx, key, normalized)
	if err != nil {
		return nil, err
	}

	space, err := r.spaces.GetPublicSpace(ctx, rec.SpaceID)
	if err != nil {
		return nil, fmt.Errorf("load space %s: %w", rec.SpaceID, err)
	}
	if space == nil {
		return nil, fmt.Errorf("space %s for %s: %w", rec.SpaceID, rec.Domain, core.ErrNotFound)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, space); err != nil {
			r.logger.Warn("Resolve cache write failed", zap.String("domain", key), zap.Error(err))
		} else if !r.stillRoutable(ctx, rec.Domain) {
			// The record changed while we were filling the cache and its
			// invalidation ran before our write.
			r.cache.Invalidate(ctx, key)
			return nil, fmt.Errorf("%s: %w", rec.Domain, core.ErrNotFound)
		}
	}
	return space, nil
}

func (r *Resolver) stillRoutable(ctx context.Context, domain string) bool {
	rec, err := r.lookup.Get(ctx, domain)
	if err != nil {
		r.logger.Warn("Resolve recheck failed", zap.String("domain", domain), zap.Error(err))
		return false
	}
	return rec != nil && rec.Status.Routable()
}

// findActive prefers the bare host and falls back to the www form when
// that is what was registered.
func (r *Resolver) findActive(ctx context.Context, hosts ...string) (*core.DomainRecord, error) {
	for i, host := range hosts {
		if i > 0 && host == hosts[0] {
			continue
		}
		rec, err := r.lookup.Get(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", host, err)
		}
		if rec != nil && rec.Status.Routable() {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", hosts[0], core.ErrNotFound)
}

// MemoryDirectory is a SpaceDirectory for local runs without Postgres.
type MemoryDirectory struct {
	mu     sync.RWMutex
	spaces map[uuid.UUID]core.SpacePublic
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{spaces: make(map[uuid.UUID]core.SpacePublic)}
}

func (d *MemoryDirectory) Put(space core.SpacePublic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.spaces[space.ID] = space
}

func (d *MemoryDirectory) GetPublicSpace(_ context.Context, id uuid.UUID) (*core.SpacePublic, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	space, ok := d.spaces[id]
	if !ok {
		return nil, nil
	}
	return &space, nil
}
