package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "duplicate_domain", ErrorKind(fmt.Errorf("create: %w", ErrDuplicateDomain)))
	assert.Equal(t, "precondition_failed", ErrorKind(ErrPreconditionFailed))
	assert.Equal(t, "dns_timeout", ErrorKind(fmt.Errorf("verify x: %w", ErrDNSTimeout)))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", ErrDNSTimeout)))
	assert.True(t, IsRetryable(ErrDNSUnavailable))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(nil))
}
