package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

type OutcomeKind int

const (
	Resolved OutcomeKind = iota + 1
	NoRecord
	NotFound
	Timeout
	ServerError
)

func (k OutcomeKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case NoRecord:
		return "no_record"
	case NotFound:
		return "not_found"
	case Timeout:
		return "timeout"
	case ServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of a CNAME lookup. CNAME is set only for
// Resolved, Reason only for ServerError.
type Outcome struct {
	Kind     OutcomeKind
	CNAME    string
	Reason   string
	Duration time.Duration
}

func (o Outcome) String() string {
	switch o.Kind {
	case Resolved:
		return "resolved " + o.CNAME
	case ServerError:
		return "server error: " + o.Reason
	default:
		return o.Kind.String()
	}
}

// Exchanger sends a single DNS query; *dns.Client satisfies it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

type DNSVerifierConfig struct {
	Servers []string
	Timeout time.Duration
	Targets []string
}

// DNSVerifier checks that a hostname carries a CNAME pointing at one of the
// allowed infrastructure targets.
type DNSVerifier struct {
	client  Exchanger
	servers []string
	timeout time.Duration
	targets map[string]struct{}
	logger  *zap.Logger
}

func NewDNSVerifier(cfg DNSVerifierConfig, logger *zap.Logger) *DNSVerifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return NewDNSVerifierWithClient(&dns.Client{Timeout: timeout}, cfg, logger)
}

func NewDNSVerifierWithClient(client Exchanger, cfg DNSVerifierConfig, logger *zap.Logger) *DNSVerifier {
	servers := cfg.Servers
	if len(servers) == 0 {
		servers = []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	targets := make(map[string]struct{}, len(cfg.Targets))
	for _, t := range cfg.Targets {
		if n := NormalizeCNAME(t); n != "" {
			targets[n] = struct{}{}
		}
	}

	return &DNSVerifier{
		client:  client,
		servers: servers,
		timeout: timeout,
		targets: targets,
		logger:  logger.With(zap.String("component", "dns_verifier")),
	}
}

// NormalizeCNAME strips the root-zone dot and lowercases.
func NormalizeCNAME(cname string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(cname), "."))
}

// Matches reports whether cname is one of the allowed targets.
func (d *DNSVerifier) Matches(cname string) bool {
	_, ok := d.targets[NormalizeCNAME(cname)]
	return ok
}

func (d *DNSVerifier) Targets() []string {
	out := make([]string, 0, len(d.targets))
	for t := range d.targets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Resolve queries the configured servers in order until one gives a
// definitive answer. The whole lookup is bounded by the verifier timeout.
func (d *DNSVerifier) Resolve(ctx context.Context, domain string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	var outcome Outcome
	for _, server := range d.servers {
		outcome = d.query(ctx, domain, server)
		if outcome.Kind != Timeout && outcome.Kind != ServerError {
			break
		}
		if ctx.Err() != nil {
			outcome = Outcome{Kind: Timeout}
			break
		}
		d.logger.Debug("DNS server gave no definitive answer",
			zap.String("domain", domain),
			zap.String("server", server),
			zap.String("outcome", outcome.String()),
		)
	}
	outcome.Duration = time.Since(start)
	return outcome
}

func (d *DNSVerifier) query(ctx context.Context, domain, server string) Outcome {
	fqdn := dns.Fqdn(domain)

	m := new(dns.Msg)
	m.SetQuestion(fqdn, dns.TypeCNAME)
	m.RecursionDesired = true

	r, _, err := d.client.ExchangeContext(ctx, m, server)
	if err != nil {
		if isTimeout(err) {
			return Outcome{Kind: Timeout}
		}
		return Outcome{Kind: ServerError, Reason: err.Error()}
	}
	if r == nil {
		return Outcome{Kind: ServerError, Reason: "empty response"}
	}

	switch r.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return Outcome{Kind: NotFound}
	default:
		return Outcome{Kind: ServerError, Reason: fmt.Sprintf("rcode %s", dns.RcodeToString[r.Rcode])}
	}

	var first string
	for _, ans := range r.Answer {
		cname, ok := ans.(*dns.CNAME)
		if !ok {
			continue
		}
		if strings.EqualFold(cname.Hdr.Name, fqdn) {
			return Outcome{Kind: Resolved, CNAME: NormalizeCNAME(cname.Target)}
		}
		if first == "" {
			first = cname.Target
		}
	}
	if first != "" {
		return Outcome{Kind: Resolved, CNAME: NormalizeCNAME(first)}
	}
	return Outcome{Kind: NoRecord}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
