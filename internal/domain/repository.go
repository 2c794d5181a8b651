package domain

import "context"

// BannerFilter narrows a banner listing. Zero values mean "no filter".
type BannerFilter struct {
	ProjectID string
	Status    BannerStatus
	Limit     int
}

// BannerRepository persists and queries generated banners.
type BannerRepository interface {
	// Insert stores exactly one record and returns it with its creation
	// timestamp filled in.
	Insert(ctx context.Context, banner *Banner) (*Banner, error)
	// GetForOwner fetches a banner only when its project belongs to ownerID;
	// ErrNotFound otherwise.
	GetForOwner(ctx context.Context, id, ownerID string) (*Banner, error)
	UpdateStatus(ctx context.Context, id string, status BannerStatus) (*Banner, error)
	// ListByOwner returns banners joined against their projects, newest first.
	ListByOwner(ctx context.Context, ownerID string, filter BannerFilter) ([]Banner, error)
}

// ProjectRepository persists submission projects.
type ProjectRepository interface {
	Create(ctx context.Context, project *Project) (*Project, error)
	GetByID(ctx context.Context, id string) (*Project, error)
}
