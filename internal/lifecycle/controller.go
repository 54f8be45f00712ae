package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/auth"
	"github.com/leozw/domain-guardian/internal/checker"
	"github.com/leozw/domain-guardian/internal/core"
	"github.com/leozw/domain-guardian/internal/metrics"
	"github.com/leozw/domain-guardian/internal/registry"
)

type Verifier interface {
	Resolve(ctx context.Context, domain string) checker.Outcome
	Matches(cname string) bool
	Targets() []string
}

// Controller is the only component that changes a domain's status.
type Controller struct {
	registry *registry.Registry
	verifier Verifier
	gate     *auth.AdminGate
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time
	locks    *keyedMutex
}

func NewController(reg *registry.Registry, verifier Verifier, gate *auth.AdminGate, metrics *metrics.Collector, logger *zap.Logger) *Controller {
	return &Controller{
		registry: reg,
		verifier: verifier,
		gate:     gate,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "lifecycle")),
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
}

func (c *Controller) Register(ctx context.Context, spaceID uuid.UUID, domain string) (*core.DomainRecord, error) {
	rec, err := c.registry.Create(ctx, spaceID, domain)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Custom domain registered",
		zap.String("domain_id", rec.ID.String()),
		zap.String("domain", rec.Domain),
		zap.String("space_id", rec.SpaceID.String()),
	)
	return rec, nil
}

// Verify resolves the domain's CNAME and moves it to dns_verified or
// failed. Inconclusive lookups leave the record untouched and return a
// retryable error.
func (c *Controller) Verify(ctx context.Context, id uuid.UUID) (*core.DomainRecord, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	rec, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch rec.Status {
	case core.StatusPending, core.StatusFailed, core.StatusDNSVerified:
	default:
		return nil, fmt.Errorf("%w: cannot verify a domain in status %s", core.ErrPreconditionFailed, rec.Status)
	}

	outcome := c.verifier.Resolve(ctx, rec.Domain)
	c.metrics.RecordLookup(outcome.Kind.String(), outcome.Duration)

	switch outcome.Kind {
	case checker.Timeout:
		c.metrics.RecordVerification(outcome.Kind.String(), "unchanged")
		return nil, fmt.Errorf("verify %s: %w", rec.Domain, core.ErrDNSTimeout)
	case checker.ServerError:
		c.metrics.RecordVerification(outcome.Kind.String(), "unchanged")
		return nil, fmt.Errorf("verify %s: %w: %s", rec.Domain, core.ErrDNSUnavailable, outcome.Reason)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("verify %s: %w", rec.Domain, err)
	}

	now := c.now().UTC()
	upd := core.StatusUpdate{UpdatedAt: now}
	if healthy, reason := c.Assess(outcome); healthy {
		upd.Status = core.StatusDNSVerified
		upd.DNSVerifiedAt = &now
	} else {
		upd.Status = core.StatusFailed
		upd.FailureReason = reason
	}

	updated, err := c.apply(ctx, rec, upd)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordVerification(outcome.Kind.String(), string(updated.Status))
	return updated, nil
}

// Activate makes a verified (or previously disconnected) domain routable.
func (c *Controller) Activate(ctx context.Context, id uuid.UUID, credential string) (*core.DomainRecord, error) {
	if err := c.gate.Require(credential); err != nil {
		c.metrics.RecordAuthFailure("activate")
		return nil, err
	}

	unlock := c.locks.Lock(id)
	defer unlock()

	rec, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.Status != core.StatusDNSVerified && rec.Status != core.StatusDisconnected {
		return nil, fmt.Errorf("%w: activation requires dns_verified or disconnected, domain is %s", core.ErrPreconditionFailed, rec.Status)
	}

	now := c.now().UTC()
	return c.apply(ctx, rec, core.StatusUpdate{
		Status:      core.StatusActive,
		UpdatedAt:   now,
		ActivatedAt: &now,
	})
}

// Disconnect demotes an active domain that failed its health check.
func (c *Controller) Disconnect(ctx context.Context, id uuid.UUID, reason string) (*core.DomainRecord, error) {
	unlock := c.locks.Lock(id)
	defer unlock()

	rec, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.Status != core.StatusActive {
		return nil, fmt.Errorf("%w: only active domains can be disconnected, domain is %s", core.ErrPreconditionFailed, rec.Status)
	}

	now := c.now().UTC()
	return c.apply(ctx, rec, core.StatusUpdate{
		Status:         core.StatusDisconnected,
		UpdatedAt:      now,
		DisconnectedAt: &now,
		FailureReason:  reason,
	})
}

// Remove deletes the record whatever its status.
func (c *Controller) Remove(ctx context.Context, id uuid.UUID) error {
	unlock := c.locks.Lock(id)
	defer unlock()

	if err := c.registry.Delete(ctx, id); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}

	c.logger.Info("Custom domain removed", zap.String("domain_id", id.String()))
	return nil
}

// ListPending lists records awaiting action. status defaults to pending.
func (c *Controller) ListPending(ctx context.Context, credential string, status core.DomainStatus) ([]*core.DomainRecord, error) {
	if err := c.gate.Require(credential); err != nil {
		c.metrics.RecordAuthFailure("list_pending")
		return nil, err
	}
	if status == "" {
		status = core.StatusPending
	}
	return c.registry.List(ctx, status)
}

// Assess decides whether a lookup proves the domain still points at our
// infrastructure, and why not when it does not.
func (c *Controller) Assess(outcome checker.Outcome) (healthy bool, reason string) {
	switch outcome.Kind {
	case checker.Resolved:
		if c.verifier.Matches(outcome.CNAME) {
			return true, ""
		}
		return false, fmt.Sprintf("CNAME points to %s, expected %s", outcome.CNAME, strings.Join(c.verifier.Targets(), " or "))
	case checker.NoRecord:
		return false, "no CNAME record configured"
	case checker.NotFound:
		return false, "domain does not exist"
	case checker.Timeout:
		return false, "DNS lookup timed out"
	case checker.ServerError:
		return false, "DNS server failure: " + outcome.Reason
	default:
		return false, "unknown DNS outcome"
	}
}

func (c *Controller) load(ctx context.Context, id uuid.UUID) (*core.DomainRecord, error) {
	rec, err := c.registry.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load domain %s: %w", id, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("domain %s: %w", id, core.ErrNotFound)
	}
	return rec, nil
}

func (c *Controller) apply(ctx context.Context, rec *core.DomainRecord, upd core.StatusUpdate) (*core.DomainRecord, error) {
	if !rec.Status.CanTransitionTo(upd.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", core.ErrPreconditionFailed, rec.Status, upd.Status)
	}

	updated, err := c.registry.UpdateStatus(ctx, rec.ID, rec.Status, upd)
	if err != nil {
		c.logger.Warn("Status update rejected",
			zap.String("domain_id", rec.ID.String()),
			zap.String("domain", rec.Domain),
			zap.String("from", string(rec.Status)),
			zap.String("to", string(upd.Status)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("update %s: %w", rec.Domain, err)
	}

	c.metrics.RecordTransition(rec.Status, updated.Status)
	c.logger.Info("Custom domain status changed",
		zap.String("domain_id", rec.ID.String()),
		zap.String("domain", rec.Domain),
		zap.String("from", string(rec.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("reason", upd.FailureReason),
	)
	return updated, nil
}
