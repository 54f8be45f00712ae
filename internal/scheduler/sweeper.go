package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/leozw/domain-guardian/internal/auth"
	"github.com/leozw/domain-guardian/internal/core"
	"github.com/leozw/domain-guardian/internal/lifecycle"
	"github.com/leozw/domain-guardian/internal/metrics"
	"github.com/leozw/domain-guardian/internal/registry"
)

type SweeperConfig struct {
	Concurrency      int
	QueriesPerSecond float64
}

type DomainResult struct {
	ID      uuid.UUID `json:"id"`
	Domain  string    `json:"domain"`
	Healthy bool      `json:"healthy"`
	Outcome string    `json:"outcome,omitempty"`
	CNAME   string    `json:"cname,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Demoted bool      `json:"demoted"`
	Skipped bool      `json:"skipped,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type Report struct {
	Checked    int            `json:"checked"`
	Demoted    int            `json:"demoted"`
	Results    []DomainResult `json:"results"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Sweeper re-verifies every active domain and disconnects the ones whose
// DNS no longer points at us. A lookup error on an active domain counts as
// unhealthy.
type Sweeper struct {
	registry    *registry.Registry
	verifier    lifecycle.Verifier
	controller  *lifecycle.Controller
	gate        *auth.AdminGate
	metrics     *metrics.Collector
	logger      *zap.Logger
	concurrency int
	limiter     *rate.Limiter
}

func NewSweeper(reg *registry.Registry, verifier lifecycle.Verifier, controller *lifecycle.Controller, gate *auth.AdminGate, metrics *metrics.Collector, logger *zap.Logger, cfg SweeperConfig) *Sweeper {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.QueriesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), 1)
	}

	return &Sweeper{
		registry:    reg,
		verifier:    verifier,
		controller:  controller,
		gate:        gate,
		metrics:     metrics,
		logger:      logger.With(zap.String("component", "sweeper")),
		concurrency: concurrency,
		limiter:     limiter,
	}
}

// Sweep runs a single pass. When ctx ends early the partial report is
// returned together with the context error; records that were not fully
// checked are marked skipped and left as they were.
func (s *Sweeper) Sweep(ctx context.Context, credential string) (*Report, error) {
	if err := s.gate.Require(credential); err != nil {
		s.metrics.RecordAuthFailure("sweep")
		return nil, err
	}

	report := &Report{StartedAt: time.Now().UTC()}

	records, err := s.registry.List(ctx, core.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active domains: %w", err)
	}

	results := make([]DomainResult, len(records))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			results[i] = s.check(ctx, rec)
			return nil
		})
	}
	g.Wait()

	report.Results = results
	for _, res := range results {
		if !res.Skipped {
			report.Checked++
		}
		if res.Demoted {
			report.Demoted++
		}
	}
	report.FinishedAt = time.Now().UTC()
	s.metrics.RecordSweep(report.Checked, report.FinishedAt.Sub(report.StartedAt))

	s.logger.Info("Health sweep finished",
		zap.Int("active", len(records)),
		zap.Int("checked", report.Checked),
		zap.Int("demoted", report.Demoted),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("sweep interrupted: %w", err)
	}
	return report, nil
}

func (s *Sweeper) check(ctx context.Context, rec *core.DomainRecord) DomainResult {
	res := DomainResult{ID: rec.ID, Domain: rec.Domain}

	if err := s.limiter.Wait(ctx); err != nil {
		res.Skipped = true
		res.Error = "skipped: " + err.Error()
		return res
	}

	outcome := s.verifier.Resolve(ctx, rec.Domain)
	s.metrics.RecordLookup(outcome.Kind.String(), outcome.Duration)

	res.Outcome = outcome.Kind.String()
	res.CNAME = outcome.CNAME
	res.Healthy, res.Reason = s.controller.Assess(outcome)
	if res.Healthy {
		return res
	}

	// A lookup cut short by our own cancellation says nothing about the domain.
	if ctx.Err() != nil {
		res.Skipped = true
		res.Error = "skipped: " + ctx.Err().Error()
		return res
	}

	if _, err := s.controller.Disconnect(ctx, rec.ID, res.Reason); err != nil {
		res.Error = err.Error()
		s.logger.Warn("Failed to disconnect unhealthy domain",
			zap.String("domain_id", rec.ID.String()),
			zap.String("domain", rec.Domain),
			zap.String("reason", res.Reason),
			zap.Error(err),
		)
		return res
	}

	res.Demoted = true
	s.metrics.RecordDemotion(res.Outcome)
	s.logger.Warn("Active domain disconnected",
		zap.String("domain_id", rec.ID.String()),
		zap.String("domain", rec.Domain),
		zap.String("outcome", res.Outcome),
		zap.String("reason", res.Reason),
	)
	return res
}
