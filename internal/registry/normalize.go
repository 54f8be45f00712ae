package registry

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leozw/domain-guardian/internal/core"
)

var validate = validator.New()

// Normalize lowercases and trims a hostname and drops the root-zone dot.
func Normalize(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimSuffix(domain, ".")
	return strings.ToLower(domain)
}

// NormalizeAndValidate returns the normalized hostname or ErrInvalidDomain.
func NormalizeAndValidate(domain string) (string, error) {
	normalized := Normalize(domain)
	if normalized == "" || len(normalized) > 253 {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidDomain, domain)
	}
	if err := validate.Var(normalized, "fqdn"); err != nil && !isPunycodeTLD(normalized) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidDomain, domain)
	}
	return normalized, nil
}

// isPunycodeTLD accepts names under an IDN top-level domain such as
// example.xn--p1ai, whose hyphenated last label the fqdn tag rejects.
func isPunycodeTLD(domain string) bool {
	labels := strings.Split(domain, ".")
	if len(labels) < 2 || !strings.HasPrefix(labels[len(labels)-1], "xn--") {
		return false
	}
	for _, label := range labels {
		if !isLDHLabel(label) {
			return false
		}
	}
	return true
}

func isLDHLabel(label string) bool {
	if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, r := range label {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}
