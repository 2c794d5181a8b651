package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bannerforge/internal/domain"
)

// ProjectRepositoryPG implements domain.ProjectRepository backed by PostgreSQL.
type ProjectRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a new ProjectRepositoryPG.
func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepositoryPG {
	return &ProjectRepositoryPG{pool: pool}
}

// Create inserts a new project record and returns it with the database
// creation timestamp.
func (r *ProjectRepositoryPG) Create(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	query := `
INSERT INTO projects (id, owner_id, guideline_key, copy_key, template_key, reference_key)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
RETURNING created_at;
`
	stored := *project
	row := r.pool.QueryRow(ctx, query,
		project.ID,
		project.OwnerID,
		project.GuidelineKey,
		project.CopyKey,
		project.TemplateKey,
		project.ReferenceKey,
	)
	if err := row.Scan(&stored.CreatedAt); err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetByID fetches a project by its identifier.
func (r *ProjectRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	query := `
SELECT id, owner_id, guideline_key, copy_key, template_key, COALESCE(reference_key, ''), created_at
FROM projects
WHERE id = $1;
`
	var project domain.Project
	row := r.pool.QueryRow(ctx, query, id)
	if err := row.Scan(
		&project.ID,
		&project.OwnerID,
		&project.GuidelineKey,
		&project.CopyKey,
		&project.TemplateKey,
		&project.ReferenceKey,
		&project.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

var _ domain.ProjectRepository = (*ProjectRepositoryPG)(nil)
