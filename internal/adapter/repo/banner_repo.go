package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bannerforge/internal/domain"
)

const defaultListLimit = 50

// BannerRepositoryPG implements domain.BannerRepository backed by PostgreSQL.
type BannerRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBannerRepository creates a new BannerRepositoryPG.
func NewBannerRepository(pool *pgxpool.Pool) *BannerRepositoryPG {
	return &BannerRepositoryPG{pool: pool}
}

// Insert stores exactly one banner record and returns it with the database
// creation timestamp.
func (r *BannerRepositoryPG) Insert(ctx context.Context, banner *domain.Banner) (*domain.Banner, error) {
	metadata, err := json.Marshal(banner.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
INSERT INTO generated_banners (id, project_id, image_key, metadata, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at;
`
	stored := *banner
	row := r.pool.QueryRow(ctx, query, banner.ID, banner.ProjectID, banner.ImageKey, metadata, banner.Status)
	if err := row.Scan(&stored.CreatedAt); err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetForOwner fetches a banner only when its project belongs to ownerID.
func (r *BannerRepositoryPG) GetForOwner(ctx context.Context, id, ownerID string) (*domain.Banner, error) {
	query := `
SELECT b.id, b.project_id, b.image_key, b.metadata, b.status, b.created_at
FROM generated_banners b
JOIN projects p ON p.id = b.project_id
WHERE b.id = $1 AND p.owner_id = $2;
`
	return scanBanner(r.pool.QueryRow(ctx, query, id, ownerID))
}

// UpdateStatus flips the review status keyed by identifier.
func (r *BannerRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.BannerStatus) (*domain.Banner, error) {
	query := `
UPDATE generated_banners
SET status = $2
WHERE id = $1
RETURNING id, project_id, image_key, metadata, status, created_at;
`
	return scanBanner(r.pool.QueryRow(ctx, query, id, status))
}

// ListByOwner returns banners joined against their projects, newest first,
// optionally filtered by project and status.
func (r *BannerRepositoryPG) ListByOwner(ctx context.Context, ownerID string, filter domain.BannerFilter) ([]domain.Banner, error) {
	query := `
SELECT b.id, b.project_id, b.image_key, b.metadata, b.status, b.created_at
FROM generated_banners b
JOIN projects p ON p.id = b.project_id
WHERE p.owner_id = $1`
	args := []any{ownerID}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += fmt.Sprintf(" AND b.project_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND b.status = $%d", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY b.created_at DESC LIMIT $%d;", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var banners []domain.Banner
	for rows.Next() {
		banner, err := scanBanner(rows)
		if err != nil {
			return nil, err
		}
		banners = append(banners, *banner)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return banners, nil
}

func scanBanner(row pgx.Row) (*domain.Banner, error) {
	var banner domain.Banner
	var metadata []byte
	if err := row.Scan(&banner.ID, &banner.ProjectID, &banner.ImageKey, &metadata, &banner.Status, &banner.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &banner.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &banner, nil
}

var _ domain.BannerRepository = (*BannerRepositoryPG)(nil)
