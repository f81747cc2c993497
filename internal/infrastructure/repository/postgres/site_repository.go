package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/foodops/food-agent-api/internal/core/domain"
)

type SiteRepository struct {
	db *sql.DB
}

func NewSiteRepository(db *sql.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

func (r *SiteRepository) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, type, capacity, is_active, created_at, updated_at
FROM sites
WHERE id = $1
`, id)

	var site domain.Site
	if err := row.Scan(&site.ID, &site.Name, &site.Type, &site.Capacity, &site.IsActive, &site.CreatedAt, &site.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSiteNotFound, "get site", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan site: %w", err)
	}
	return &site, nil
}
