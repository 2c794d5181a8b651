package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"bannerforge/internal/domain"
	"bannerforge/internal/generate"
	"bannerforge/internal/infra"
	"bannerforge/internal/storage"
)

// Runner is the generation pipeline as the HTTP layer sees it.
type Runner interface {
	Run(ctx context.Context, req generate.Request) (*domain.Banner, error)
	InFlight() int
}

// App bundles the dependencies the handlers share.
type App struct {
	Runner   Runner
	Banners  domain.BannerRepository
	Projects domain.ProjectRepository
	Store    storage.ObjectStore
	Logger   infra.Logger
}

// NewApp wires the handler container.
func NewApp(runner Runner, banners domain.BannerRepository, projects domain.ProjectRepository, store storage.ObjectStore, logger infra.Logger) *App {
	return &App{
		Runner:   runner,
		Banners:  banners,
		Projects: projects,
		Store:    store,
		Logger:   logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
