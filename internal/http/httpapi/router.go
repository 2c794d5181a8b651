package httpapi

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"bannerforge/internal/http/handlers"
	"bannerforge/internal/middleware"
)

// NewRouter assembles the HTTP surface. Health is public; everything else
// requires the caller identity header.
func NewRouter(app *handlers.App, logger zerolog.Logger, defaultLocale string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Locale(defaultLocale))

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ClientOwner)

		r.Route("/v1/projects", func(r chi.Router) {
			r.Post("/", app.CreateProject)
			r.Post("/{id}/banners", app.RegenerateBanner)
		})

		r.Route("/v1/banners", func(r chi.Router) {
			r.Get("/", app.ListBanners)
			r.Patch("/{id}", app.UpdateBannerStatus)
			r.Get("/{id}/download", app.DownloadBanner)
		})
	})

	return r
}
