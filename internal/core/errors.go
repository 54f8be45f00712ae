package core

import "errors"

var (
	ErrInvalidDomain      = errors.New("invalid domain")
	ErrInvalidSpace       = errors.New("invalid space id")
	ErrDuplicateDomain    = errors.New("domain already registered")
	ErrDuplicateOwner     = errors.New("space already owns a custom domain")
	ErrNotFound           = errors.New("custom domain not found")
	ErrPreconditionFailed = errors.New("domain is not in an eligible status")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrConflict           = errors.New("domain status changed concurrently")

	// Retryable: the record is left untouched.
	ErrDNSTimeout     = errors.New("dns lookup timed out")
	ErrDNSUnavailable = errors.New("dns server failure")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidDomain, "invalid_domain"},
	{ErrInvalidSpace, "invalid_space"},
	{ErrDuplicateDomain, "duplicate_domain"},
	{ErrDuplicateOwner, "duplicate_owner"},
	{ErrNotFound, "not_found"},
	{ErrPreconditionFailed, "precondition_failed"},
	{ErrUnauthorized, "unauthorized"},
	{ErrConflict, "conflict"},
	{ErrDNSTimeout, "dns_timeout"},
	{ErrDNSUnavailable, "dns_unavailable"},
}

// ErrorKind maps err onto its machine readable kind, "internal" when it is
// none of the known errors.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrDNSTimeout) || errors.Is(err, ErrDNSUnavailable)
}
