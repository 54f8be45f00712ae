package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/core"
	"github.com/leozw/domain-guardian/internal/registry"
)

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]core.SpacePublic
	invalidated []string
	getErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]core.SpacePublic{}}
}

func (c *fakeCache) Get(_ context.Context, host string) (*core.SpacePublic, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	space, ok := c.entries[host]
	if !ok {
		return nil, false, nil
	}
	return &space, true, nil
}

func (c *fakeCache) Set(_ context.Context, host string, space *core.SpacePublic) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[host] = *space
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, host)
	c.invalidated = append(c.invalidated, host)
}

type fixture struct {
	store    *registry.MemoryStore
	registry *registry.Registry
	spaces   *MemoryDirectory
	cache    *fakeCache
	resolver *Resolver
}

func setupResolver(t *testing.T) *fixture {
	t.Helper()
	store := registry.NewMemoryStore()
	cache := newFakeCache()
	reg := registry.New(store, registry.WithChangeHook(InvalidateHook(cache)))
	spaces := NewMemoryDirectory()
	return &fixture{
		store:    store,
		registry: reg,
		spaces:   spaces,
		cache:    cache,
		resolver: NewResolver(reg, spaces, cache, zap.NewNop()),
	}
}

// withStatus registers domain for a fresh space and forces it into status.
func (f *fixture) withStatus(t *testing.T, domain string, status core.DomainStatus) (*core.DomainRecord, core.SpacePublic) {
	t.Helper()
	ctx := context.Background()
	space := core.SpacePublic{ID: uuid.New(), SpaceName: "Acme", Slug: "acme-" + domain, HeaderTitle: "Feedback"}
	f.spaces.Put(space)

	rec, err := f.registry.Create(ctx, space.ID, domain)
	require.NoError(t, err)
	if status != core.StatusPending {
		rec, err = f.registry.UpdateStatus(ctx, rec.ID, core.StatusPending, core.StatusUpdate{Status: status, UpdatedAt: time.Now()})
		require.NoError(t, err)
	}
	return rec, space
}

func TestResolve_ActiveDomain(t *testing.T) {
	f := setupResolver(t)
	_, space := f.withStatus(t, "feedback.acme.com", core.StatusActive)

	for _, host := range []string{"feedback.acme.com", "www.feedback.acme.com", "FEEDBACK.acme.com."} {
		got, err := f.resolver.Resolve(context.Background(), host)
		require.NoError(t, err, host)
		assert.Equal(t, space, *got)
	}
}

func TestResolve_OnlyActiveDomainsResolve(t *testing.T) {
	statuses := []core.DomainStatus{core.StatusPending, core.StatusDNSVerified, core.StatusFailed, core.StatusDisconnected}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			f := setupResolver(t)
			f.withStatus(t, "site.example.org", status)

			_, err := f.resolver.Resolve(context.Background(), "site.example.org")
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestResolve_UnknownAndEmptyHost(t *testing.T) {
	f := setupResolver(t)

	_, err := f.resolver.Resolve(context.Background(), "nobody.example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.resolver.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, core.ErrInvalidDomain)
}

func TestResolve_RegisteredWithWWW(t *testing.T) {
	f := setupResolver(t)
	_, space := f.withStatus(t, "www.shop.io", core.StatusActive)

	got, err := f.resolver.Resolve(context.Background(), "www.shop.io")
	require.NoError(t, err)
	assert.Equal(t, space.ID, got.ID)
}

func TestResolve_MissingSpace(t *testing.T) {
	f := setupResolver(t)
	ctx := context.Background()
	rec, err := f.registry.Create(ctx, uuid.New(), "orphan.example.com")
	require.NoError(t, err)
	_, err = f.registry.UpdateStatus(ctx, rec.ID, core.StatusPending, core.StatusUpdate{Status: core.StatusActive, UpdatedAt: time.Now()})
	require.NoError(t, err)

	_, err = f.resolver.Resolve(ctx, "orphan.example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestResolve_CacheIsFilledAndInvalidated(t *testing.T) {
	f := setupResolver(t)
	ctx := context.Background()
	rec, space := f.withStatus(t, "cached.example.com", core.StatusActive)

	_, err := f.resolver.Resolve(ctx, "www.cached.example.com")
	require.NoError(t, err)
	assert.Equal(t, space, f.cache.entries["cached.example.com"])

	// the status change drops the entry so the next lookup sees it
	_, err = f.registry.UpdateStatus(ctx, rec.ID, core.StatusActive, core.StatusUpdate{Status: core.StatusDisconnected, UpdatedAt: time.Now()})
	require.NoError(t, err)
	assert.Contains(t, f.cache.invalidated, "cached.example.com")

	_, err = f.resolver.Resolve(ctx, "cached.example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestResolve_CacheFailureFallsThrough(t *testing.T) {
	f := setupResolver(t)
	_, space := f.withStatus(t, "flaky.example.com", core.StatusActive)
	f.cache.getErr = errors.New("connection refused")

	got, err := f.resolver.Resolve(context.Background(), "flaky.example.com")
	require.NoError(t, err)
	assert.Equal(t, space.ID, got.ID)
}

func TestResolve_WithoutCache(t *testing.T) {
	f := setupResolver(t)
	_, space := f.withStatus(t, "plain.example.com", core.StatusActive)

	r := NewResolver(f.registry, f.spaces, nil, zap.NewNop())
	got, err := r.Resolve(context.Background(), "plain.example.com")
	require.NoError(t, err)
	assert.Equal(t, space.ID, got.ID)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "example.com", CacheKey("www.Example.com."))
	assert.Equal(t, "example.com", CacheKey("example.com"))
	assert.Equal(t, "app.example.com", CacheKey(" APP.example.com "))
}

// demotingDirectory disconnects the domain while its space is being loaded.
type demotingDirectory struct {
	SpaceDirectory
	registry *registry.Registry
	id       uuid.UUID
	once     sync.Once
}

func (d *demotingDirectory) GetPublicSpace(ctx context.Context, id uuid.UUID) (*core.SpacePublic, error) {
	var err error
	d.once.Do(func() {
		_, err = d.registry.UpdateStatus(ctx, d.id, core.StatusActive, core.StatusUpdate{Status: core.StatusDisconnected, UpdatedAt: time.Now()})
	})
	if err != nil {
		return nil, err
	}
	return d.SpaceDirectory.GetPublicSpace(ctx, id)
}

func TestResolve_DemotionDuringLookupIsNotCached(t *testing.T) {
	f := setupResolver(t)
	ctx := context.Background()
	rec, _ := f.withStatus(t, "racing.example.com", core.StatusActive)

	dir := &demotingDirectory{SpaceDirectory: f.spaces, registry: f.registry, id: rec.ID}
	r := NewResolver(f.registry, dir, f.cache, zap.NewNop())

	_, err := r.Resolve(ctx, "racing.example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)

	stored, err := f.registry.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDisconnected, stored.Status)
	assert.NotContains(t, f.cache.entries, "racing.example.com")

	_, err = r.Resolve(ctx, "racing.example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
