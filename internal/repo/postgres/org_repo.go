package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/attendance-beacon/internal/domain"
)

type OrgRepo interface {
	FindBySlug(ctx context.Context, slug string) (*domain.Org, error)
}

type OrgRepoImpl struct {
	pool *pgxpool.Pool
}

func NewOrgRepo(pool *pgxpool.Pool) *OrgRepoImpl {
	return &OrgRepoImpl{pool: pool}
}

func (r *OrgRepoImpl) FindBySlug(ctx context.Context, slug string) (*domain.Org, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT id, slug, name, active, api_key_hash, created_at FROM orgs WHERE slug = $1`

	var org domain.Org
	err := r.pool.QueryRow(ctx, query, slug).Scan(&org.ID, &org.Slug, &org.Name, &org.Active, &org.APIKeyHash, &org.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &org, nil
}

var _ OrgRepo = (*OrgRepoImpl)(nil)
