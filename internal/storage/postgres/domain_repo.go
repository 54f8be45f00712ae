package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/leozw/domain-guardian/internal/core"
)

const (
	uniqueViolation = "23505"

	domainConstraint = "custom_domains_domain_key"
	spaceConstraint  = "custom_domains_space_id_key"
)

const domainColumns = `
        id, space_id, domain, status, dns_verified_at, activated_at,
        disconnected_at, failure_reason, created_at, updated_at`

// DomainRepo stores custom domains in the custom_domains table.
type DomainRepo struct {
	db *DB
}

func NewDomainRepo(db *DB) *DomainRepo {
	return &DomainRepo{db: db}
}

func (r *DomainRepo) Insert(ctx context.Context, rec *core.DomainRecord) error {
	query := `
        INSERT INTO custom_domains (
            id, space_id, domain, status, dns_verified_at, activated_at,
            disconnected_at, failure_reason, created_at, updated_at
        ) VALUES (
            :id, :space_id, :domain, :status, :dns_verified_at, :activated_at,
            :disconnected_at, :failure_reason, :created_at, :updated_at
        )`

	_, err := r.db.NamedExecContext(ctx, query, rec)
	return translateError(err)
}

func (r *DomainRepo) GetByDomain(ctx context.Context, domain string) (*core.DomainRecord, error) {
	return r.getOne(ctx, `SELECT`+domainColumns+` FROM custom_domains WHERE lower(domain) = lower($1)`, domain)
}

func (r *DomainRepo) GetByID(ctx context.Context, id uuid.UUID) (*core.DomainRecord, error) {
	return r.getOne(ctx, `SELECT`+domainColumns+` FROM custom_domains WHERE id = $1`, id)
}

func (r *DomainRepo) GetBySpace(ctx context.Context, spaceID uuid.UUID) (*core.DomainRecord, error) {
	return r.getOne(ctx, `SELECT`+domainColumns+` FROM custom_domains WHERE space_id = $1`, spaceID)
}

func (r *DomainRepo) ListByStatus(ctx context.Context, status core.DomainStatus) ([]*core.DomainRecord, error) {
	records := []*core.DomainRecord{}
	query := `SELECT` + domainColumns + ` FROM custom_domains WHERE status = $1 ORDER BY seq`

	if err := r.db.SelectContext(ctx, &records, query, status); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *DomainRepo) UpdateStatus(ctx context.Context, id uuid.UUID, expected core.DomainStatus, upd core.StatusUpdate) (*core.DomainRecord, error) {
	query := `
        UPDATE custom_domains SET
            status = $3,
            updated_at = $4,
            dns_verified_at = COALESCE($5::timestamptz, dns_verified_at),
            activated_at = COALESCE($6::timestamptz, activated_at),
            disconnected_at = COALESCE($7::timestamptz, disconnected_at),
            failure_reason = NULLIF($8::text, '')
        WHERE id = $1 AND status = $2
        RETURNING` + domainColumns

	var rec core.DomainRecord
	err := r.db.GetContext(ctx, &rec, query,
		id, expected, upd.Status, upd.UpdatedAt,
		upd.DNSVerifiedAt, upd.ActivatedAt, upd.DisconnectedAt,
		upd.FailureReason,
	)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Nothing matched: either the record is gone or its status moved on.
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, core.ErrNotFound
	}
	return nil, fmt.Errorf("%w: expected %s, found %s", core.ErrConflict, expected, current.Status)
}

func (r *DomainRepo) Delete(ctx context.Context, id uuid.UUID) (*core.DomainRecord, error) {
	var rec core.DomainRecord
	query := `DELETE FROM custom_domains WHERE id = $1 RETURNING` + domainColumns

	err := r.db.GetContext(ctx, &rec, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *DomainRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *DomainRepo) getOne(ctx context.Context, query string, arg interface{}) (*core.DomainRecord, error) {
	var rec core.DomainRecord
	err := r.db.GetContext(ctx, &rec, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// translateError maps unique violations onto the registry's duplicate errors.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}

	switch pqErr.Constraint {
	case spaceConstraint:
		return core.ErrDuplicateOwner
	case domainConstraint:
		return core.ErrDuplicateDomain
	default:
		return fmt.Errorf("%w: %s", core.ErrDuplicateDomain, pqErr.Message)
	}
}
