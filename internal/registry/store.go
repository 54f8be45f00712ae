package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/leozw/domain-guardian/internal/core"
)

// Store persists domain records.
//
// Insert must be atomic with respect to both the domain and the space
// uniqueness constraints and report core.ErrDuplicateDomain or
// core.ErrDuplicateOwner. Lookups return (nil, nil) when nothing matches.
// UpdateStatus applies the update only while the record still holds
// expected, reporting core.ErrConflict otherwise.
type Store interface {
	Insert(ctx context.Context, rec *core.DomainRecord) error
	GetByDomain(ctx context.Context, domain string) (*core.DomainRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*core.DomainRecord, error)
	GetBySpace(ctx context.Context, spaceID uuid.UUID) (*core.DomainRecord, error)
	ListByStatus(ctx context.Context, status core.DomainStatus) ([]*core.DomainRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expected core.DomainStatus, upd core.StatusUpdate) (*core.DomainRecord, error)
	Delete(ctx context.Context, id uuid.UUID) (*core.DomainRecord, error)
	Ping(ctx context.Context) error
}
