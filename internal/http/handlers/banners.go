package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bannerforge/internal/domain"
	"bannerforge/internal/middleware"
)

// ListBanners returns the caller's banners, newest first, optionally filtered
// by project and review status.
func (a *App) ListBanners(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	filter := domain.BannerFilter{
		ProjectID: r.URL.Query().Get("project_id"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.BannerStatus(raw)
		switch status {
		case domain.StatusGenerated, domain.StatusApproved, domain.StatusRejected:
			filter.Status = status
		default:
			a.error(w, http.StatusBadRequest, "bad_request", "unknown status filter")
			return
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	banners, err := a.Banners.ListByOwner(r.Context(), owner, filter)
	if err != nil {
		a.Logger.Error().Err(err).Msg("banner listing failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list banners")
		return
	}
	if banners == nil {
		banners = []domain.Banner{}
	}

	a.json(w, http.StatusOK, map[string][]domain.Banner{"items": banners})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateBannerStatus records the review decision on a banner the caller owns.
func (a *App) UpdateBannerStatus(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	bannerID := chi.URLParam(r, "id")

	var body updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	status, err := domain.ParseReviewStatus(body.Status)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("status must be %q or %q", domain.StatusApproved, domain.StatusRejected))
		return
	}

	if _, err := a.Banners.GetForOwner(r.Context(), bannerID, owner); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "banner not found")
			return
		}
		a.Logger.Error().Err(err).Str("banner_id", bannerID).Msg("banner lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load banner")
		return
	}

	updated, err := a.Banners.UpdateStatus(r.Context(), bannerID, status)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "banner not found")
			return
		}
		a.Logger.Error().Err(err).Str("banner_id", bannerID).Msg("status update failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update banner")
		return
	}

	a.json(w, http.StatusOK, map[string]*domain.Banner{"banner": updated})
}

// DownloadBanner streams the stored banner image back to its owner.
func (a *App) DownloadBanner(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	bannerID := chi.URLParam(r, "id")

	banner, err := a.Banners.GetForOwner(r.Context(), bannerID, owner)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "banner not found")
			return
		}
		a.Logger.Error().Err(err).Str("banner_id", bannerID).Msg("banner lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load banner")
		return
	}

	data, err := a.Store.Download(r.Context(), banner.ImageKey)
	if err != nil {
		a.Logger.Error().Err(err).Str("key", banner.ImageKey).Msg("image download failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load banner image")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", bannerID+".png"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
