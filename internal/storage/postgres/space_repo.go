package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/leozw/domain-guardian/internal/core"
)

type SpaceRepo struct {
	db *DB
}

func NewSpaceRepo(db *DB) *SpaceRepo {
	return &SpaceRepo{db: db}
}

// GetPublicSpace returns nil when the space does not exist.
func (r *SpaceRepo) GetPublicSpace(ctx context.Context, id uuid.UUID) (*core.SpacePublic, error) {
	var space core.SpacePublic
	query := `
        SELECT id, space_name, slug, logo_url, header_title,
               custom_message, collect_star_rating
        FROM spaces
        WHERE id = $1
    `

	err := r.db.GetContext(ctx, &space, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &space, nil
}
