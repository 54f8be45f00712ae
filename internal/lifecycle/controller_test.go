package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/auth"
	"github.com/leozw/domain-guardian/internal/checker"
	"github.com/leozw/domain-guardian/internal/core"
	"github.com/leozw/domain-guardian/internal/registry"
)

const adminKey = "admin-key"

type fakeVerifier struct {
	mu        sync.Mutex
	outcomes  map[string]checker.Outcome
	onResolve func(domain string)
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{outcomes: map[string]checker.Outcome{}}
}

func (f *fakeVerifier) set(domain string, o checker.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[domain] = o
}

func (f *fakeVerifier) Resolve(_ context.Context, domain string) checker.Outcome {
	if f.onResolve != nil {
		f.onResolve(domain)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.outcomes[domain]
	if !ok {
		return checker.Outcome{Kind: checker.NotFound}
	}
	return o
}

func (f *fakeVerifier) Matches(cname string) bool {
	return checker.NormalizeCNAME(cname) == "cname.vercel-dns.com"
}

func (f *fakeVerifier) Targets() []string {
	return []string{"cname.vercel-dns.com"}
}

type fixture struct {
	store    *registry.MemoryStore
	registry *registry.Registry
	verifier *fakeVerifier
	ctrl     *Controller
}

func setupController(t *testing.T) *fixture {
	t.Helper()
	store := registry.NewMemoryStore()
	reg := registry.New(store)
	v := newFakeVerifier()
	return &fixture{
		store:    store,
		registry: reg,
		verifier: v,
		ctrl:     NewController(reg, v, auth.NewAdminGate(adminKey), nil, zap.NewNop()),
	}
}

func (f *fixture) register(t *testing.T, domain string) *core.DomainRecord {
	t.Helper()
	rec, err := f.ctrl.Register(context.Background(), uuid.New(), domain)
	require.NoError(t, err)
	return rec
}

func (f *fixture) status(t *testing.T, id uuid.UUID) core.DomainStatus {
	t.Helper()
	rec, err := f.registry.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec.Status
}

func resolved(cname string) checker.Outcome {
	return checker.Outcome{Kind: checker.Resolved, CNAME: cname}
}

func TestController_RegisterVerifyActivate(t *testing.T) {
	ctx := context.Background()
	f := setupController(t)

	rec := f.register(t, "example.com")
	assert.Equal(t, core.StatusPending, rec.Status)

	f.verifier.set("example.com", resolved("cname.vercel-dns.com"))
	verified, err := f.ctrl.Verify(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDNSVerified, verified.Status)
	require.NotNil(t, verified.DNSVerifiedAt)
	assert.Nil(t, verified.ActivatedAt)
	assert.Nil(t, verified.FailureReason)

	_, err = f.ctrl.Activate(ctx, rec.ID, "wrong")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, core.StatusDNSVerified, f.status(t, rec.ID))

	active, err := f.ctrl.Activate(ctx, rec.ID, adminKey)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, active.Status)
	require.NotNil(t, active.ActivatedAt)
	assert.False(t, active.UpdatedAt.Before(verified.UpdatedAt))
}

func TestController_VerifyFailures(t *testing.T) {
	tests := []struct {
		name    string
		outcome checker.Outcome
		reason  string
	}{
		{"cname elsewhere", resolved("somewhere.else.net"), "CNAME points to somewhere.else.net, expected cname.vercel-dns.com"},
		{"no cname", checker.Outcome{Kind: checker.NoRecord}, "no CNAME record configured"},
		{"nxdomain", checker.Outcome{Kind: checker.NotFound}, "domain does not exist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupController(t)
			rec := f.register(t, "failing.com")
			f.verifier.set("failing.com", tt.outcome)

			got, err := f.ctrl.Verify(context.Background(), rec.ID)
			require.NoError(t, err)
			assert.Equal(t, core.StatusFailed, got.Status)
			require.NotNil(t, got.FailureReason)
			assert.Equal(t, tt.reason, *got.FailureReason)
			assert.Nil(t, got.DNSVerifiedAt)
		})
	}
}

func TestController_VerifyInconclusiveLeavesRecordUntouched(t *testing.T) {
	tests := []struct {
		name    string
		outcome checker.Outcome
		want    error
	}{
		{"timeout", checker.Outcome{Kind: checker.Timeout}, core.ErrDNSTimeout},
		{"server error", checker.Outcome{Kind: checker.ServerError, Reason: "rcode SERVFAIL"}, core.ErrDNSUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := setupController(t)
			rec := f.register(t, "flaky.com")
			f.verifier.set("flaky.com", tt.outcome)

			before, err := f.registry.GetByID(ctx, rec.ID)
			require.NoError(t, err)

			_, err = f.ctrl.Verify(ctx, rec.ID)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, core.IsRetryable(err))

			after, err := f.registry.GetByID(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestController_ReverifyFromFailedAndVerified(t *testing.T) {
	ctx := context.Background()
	f := setupController(t)
	rec := f.register(t, "retry.com")

	f.verifier.set("retry.com", checker.Outcome{Kind: checker.NoRecord})
	got, err := f.ctrl.Verify(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)

	f.verifier.set("retry.com", resolved("CNAME.VERCEL-DNS.COM."))
	got, err = f.ctrl.Verify(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDNSVerified, got.Status)
	assert.Nil(t, got.FailureReason)

	// re-verifying a verified domain resolves again and can demote it
	f.verifier.set("retry.com", resolved("other.host.net"))
	got, err = f.ctrl.Verify(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.NotNil(t, got.DNSVerifiedAt)
}

func TestController_VerifyRejectsRoutedStatuses(t *testing.T) {
	ctx := context.Background()
	f := setupController(t)
	rec := f.register(t, "live.com")
	f.verifier.set("live.com", resolved("cname.vercel-dns.com"))

	_, err := f.ctrl.Verify(ctx, rec.ID)
	require.NoError(t, err)
	_, err = f.ctrl.Activate(ctx, rec.ID, adminKey)
	require.NoError(t, err)

	_, err = f.ctrl.Verify(ctx, rec.ID)
	assert.ErrorIs(t, err, core.ErrPreconditionFailed)
	assert.Equal(t, core.StatusActive, f.status(t, rec.ID))
}

func TestController_ActivatePreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("pending", func(t *testing.T) {
		f := setupController(t)
		rec := f.register(t, "pending.com")

		_, err := f.ctrl.Activate(ctx, rec.ID, adminKey)
		assert.ErrorIs(t, err, core.ErrPreconditionFailed)
		assert.Equal(t, core.StatusPending, f.status(t, rec.ID))
	})

	t.Run("failed", func(t *testing.T) {
		f := setupController(t)
		rec := f.register(t, "failed.com")
		_, err := f.ctrl.Verify(ctx, rec.ID)
		require.NoError(t, err)

		_, err = f.ctrl.Activate(ctx, rec.ID, adminKey)
		assert.ErrorIs(t, err, core.ErrPreconditionFailed)
		assert.Equal(t, core.StatusFailed, f.status(t, rec.ID))
	})

	t.Run("already active", func(t *testing.T) {
		f := setupController(t)
		rec := f.register(t, "active.com")
		f.verifier.set("active.com", resolved("cname.vercel-dns.com"))
		_, err := f.ctrl.Verify(ctx, rec.ID)
		require.NoError(t, err)
		_, err = f.ctrl.Activate(ctx, rec.ID, adminKey)
		require.NoError(t, err)

		_, err = f.ctrl.Activate(ctx, rec.ID, adminKey)
		assert.ErrorIs(t, err, core.ErrPreconditionFailed)
	})

	t.Run("missing", func(t *testing.T) {
		f := setupController(t)
		_, err := f.ctrl.Activate(ctx, uuid.New(), adminKey)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("unauthorized before lookup", func(t *testing.T) {
		f := setupController(t)
		_, err := f.ctrl.Activate(ctx, uuid.New(), "")
		assert.ErrorIs(t, err, core.ErrUnauthorized)
	})
}

func TestController_DisconnectAndReactivate(t *testing.T) {
	ctx := context.Background()
	f := setupController(t)
	rec := f.register(t, "drift.com")
	f.verifier.set("drift.com", resolved("cname.vercel-dns.com"))

	_, err := f.ctrl.Disconnect(ctx, rec.ID, "domain does not exist")
	assert.ErrorIs(t, err, core.ErrPreconditionFailed)

	_, err = f.ctrl.Verify(ctx, rec.ID)
	require.NoError(t, err)
	_, err = f.ctrl.Activate(ctx, rec.ID, adminKey)
	require.NoError(t, err)

	got, err := f.ctrl.Disconnect(ctx, rec.ID, "domain does not exist")
	require.NoError(t, err)
	assert.Equal(t, core.StatusDisconnected, got.Status)
	require.NotNil(t, got.DisconnectedAt)
	assert.Equal(t, "domain does not exist", *got.FailureReason)

	got, err = f.ctrl.Activate(ctx, rec.ID, adminKey)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, got.Status)
	assert.NotNil(t, got.DisconnectedAt)
}

func TestController_RemoveIsUnconditional(t *testing.T) {
	ctx := context.Background()

	for _, activate := range []bool{false, true} {
		f := setupController(t)
		rec := f.register(t, "remove.com")
		if activate {
			f.verifier.set("remove.com", resolved("cname.vercel-dns.com"))
			_, err := f.ctrl.Verify(ctx, rec.ID)
			require.NoError(t, err)
			_, err = f.ctrl.Activate(ctx, rec.ID, adminKey)
			require.NoError(t, err)
		}

		require.NoError(t, f.ctrl.Remove(ctx, rec.ID))
		got, err := f.registry.GetByID(ctx, rec.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, f.ctrl.Remove(ctx, rec.ID), core.ErrNotFound)
	}
}

func TestController_ListPending(t *testing.T) {
	ctx := context.Background()
	f := setupController(t)
	a := f.register(t, "a.com")
	b := f.register(t, "b.com")
	f.verifier.set("b.com", resolved("cname.vercel-dns.com"))
	_, err := f.ctrl.Verify(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.ctrl.ListPending(ctx, "nope", "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	pending, err := f.ctrl.ListPending(ctx, adminKey, "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	verified, err := f.ctrl.ListPending(ctx, adminKey, core.StatusDNSVerified)
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, b.ID, verified[0].ID)
}

func TestController_SerializesTransitionsPerRecord(t *testing.T) {
	ctx := context.Background()
	f := setupController(t)
	rec := f.register(t, "busy.com")
	f.verifier.set("busy.com", resolved("cname.vercel-dns.com"))

	var inFlight, maxInFlight int32
	f.verifier.onResolve = func(string) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ctrl.Verify(ctx, rec.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	assert.Equal(t, core.StatusDNSVerified, f.status(t, rec.ID))
}

func TestController_ConcurrentWriterSurfacesConflict(t *testing.T) {
	ctx := context.Background()
	f := setupController(t)
	rec := f.register(t, "contended.com")
	f.verifier.set("contended.com", resolved("cname.vercel-dns.com"))

	// another process fails the record while our lookup is in flight
	f.verifier.onResolve = func(string) {
		_, err := f.store.UpdateStatus(ctx, rec.ID, core.StatusPending, core.StatusUpdate{
			Status:        core.StatusFailed,
			UpdatedAt:     time.Now().UTC(),
			FailureReason: "no CNAME record configured",
		})
		require.NoError(t, err)
	}

	_, err := f.ctrl.Verify(ctx, rec.ID)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, core.StatusFailed, f.status(t, rec.ID))
}

func TestController_VerifyCancelledContextWritesNothing(t *testing.T) {
	f := setupController(t)
	rec := f.register(t, "cancel.com")
	f.verifier.set("cancel.com", resolved("cname.vercel-dns.com"))

	ctx, cancel := context.WithCancel(context.Background())
	f.verifier.onResolve = func(string) { cancel() }

	_, err := f.ctrl.Verify(ctx, rec.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.StatusPending, f.status(t, rec.ID))
}
