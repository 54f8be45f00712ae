package postgres

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/leozw/domain-guardian/internal/core"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"space taken", &pq.Error{Code: uniqueViolation, Constraint: spaceConstraint}, core.ErrDuplicateOwner},
		{"domain taken", &pq.Error{Code: uniqueViolation, Constraint: domainConstraint}, core.ErrDuplicateDomain},
		{"unknown unique", &pq.Error{Code: uniqueViolation, Constraint: "other"}, core.ErrDuplicateDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateError(tt.err), tt.want)
		})
	}

	other := &pq.Error{Code: "23503"}
	assert.Equal(t, error(other), translateError(other))

	plain := errors.New("connection refused")
	assert.Equal(t, plain, translateError(plain))
	assert.NoError(t, translateError(nil))
}
