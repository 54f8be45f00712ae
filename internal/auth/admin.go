package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/leozw/domain-guardian/internal/core"
)

// AdminGate guards operations that change live traffic routing.
// A gate built with an empty secret rejects every credential.
type AdminGate struct {
	digest [sha256.Size]byte
	set    bool
}

func NewAdminGate(secret string) *AdminGate {
	if secret == "" {
		return &AdminGate{}
	}
	return &AdminGate{digest: sha256.Sum256([]byte(secret)), set: true}
}

func (g *AdminGate) Configured() bool {
	return g.set
}

// Authorize compares digests so neither content nor length leaks through
// timing.
func (g *AdminGate) Authorize(credential string) bool {
	got := sha256.Sum256([]byte(credential))
	match := subtle.ConstantTimeCompare(got[:], g.digest[:]) == 1
	return g.set && credential != "" && match
}

func (g *AdminGate) Require(credential string) error {
	if !g.Authorize(credential) {
		return core.ErrUnauthorized
	}
	return nil
}
