package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/leozw/domain-guardian/internal/config"
	"github.com/leozw/domain-guardian/internal/core"
)

// Collector records lifecycle metrics. A nil *Collector is a no-op so
// components can be built without metrics in tests.
type Collector struct {
	config   *config.MimirConfig
	gatherer prometheus.Gatherer
	client   *http.Client
	logger   *zap.Logger

	// DNS
	dnsLookupDuration  *prometheus.HistogramVec
	verificationsTotal *prometheus.CounterVec

	// Lifecycle
	transitionsTotal  *prometheus.CounterVec
	authFailuresTotal *prometheus.CounterVec

	// Sweep
	sweepChecked       prometheus.Counter
	sweepDemotions     *prometheus.CounterVec
	sweepDuration      prometheus.Histogram
	lastSweepTimestamp prometheus.Gauge
}

func NewCollector(cfg config.MimirConfig, reg *prometheus.Registry, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		config:   &cfg,
		gatherer: reg,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With(zap.String("component", "metrics")),

		dnsLookupDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "custom_domain_dns_lookup_duration_seconds",
				Help:    "Duration of CNAME lookups in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"outcome"},
		),

		verificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custom_domain_verifications_total",
				Help: "Verification attempts by DNS outcome and resulting status",
			},
			[]string{"outcome", "result"},
		),

		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custom_domain_transitions_total",
				Help: "Status transitions applied to custom domains",
			},
			[]string{"from", "to"},
		),

		authFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custom_domain_admin_auth_failures_total",
				Help: "Rejected admin credentials by operation",
			},
			[]string{"operation"},
		),

		sweepChecked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "custom_domain_sweep_checked_total",
				Help: "Active domains re-checked by health sweeps",
			},
		),

		sweepDemotions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "custom_domain_sweep_demotions_total",
				Help: "Active domains disconnected by health sweeps, by DNS outcome",
			},
			[]string{"reason"},
		),

		sweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "custom_domain_sweep_duration_seconds",
				Help:    "Wall time of a full health sweep",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),

		lastSweepTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "custom_domain_last_sweep_timestamp_seconds",
				Help: "Unix time the last health sweep finished",
			},
		),
	}
}

func (c *Collector) RecordLookup(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.dnsLookupDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordVerification counts a verify call. result is the new status, or
// "unchanged" when the lookup was inconclusive.
func (c *Collector) RecordVerification(outcome, result string) {
	if c == nil {
		return
	}
	c.verificationsTotal.WithLabelValues(outcome, result).Inc()
}

func (c *Collector) RecordTransition(from, to core.DomainStatus) {
	if c == nil {
		return
	}
	c.transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

func (c *Collector) RecordAuthFailure(operation string) {
	if c == nil {
		return
	}
	c.authFailuresTotal.WithLabelValues(operation).Inc()
}

func (c *Collector) RecordDemotion(reason string) {
	if c == nil {
		return
	}
	c.sweepDemotions.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordSweep(checked int, d time.Duration) {
	if c == nil {
		return
	}
	c.sweepChecked.Add(float64(checked))
	c.sweepDuration.Observe(d.Seconds())
	c.lastSweepTimestamp.SetToCurrentTime()
}
