package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bannerforge/internal/domain"
	"bannerforge/internal/generate"
	"bannerforge/internal/middleware"
)

const maxUploadBytes = 32 << 20

type projectResponse struct {
	Project *domain.Project `json:"project"`
	Banner  *domain.Banner  `json:"banner"`
}

// CreateProject accepts the multipart submission (guideline, copy, template,
// optional reference), archives the inputs, records the project and runs the
// generation pipeline for it.
func (a *App) CreateProject(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}

	guideline, _, err := a.formFile(r, "guideline")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "guideline file is required")
		return
	}
	copyText, _, err := a.formFile(r, "copy")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "copy file is required")
		return
	}
	template, templateName, err := a.formFile(r, "template")
	if err != nil {
		// Template is mandatory; rejecting here keeps the violation out of
		// the pipeline.
		a.error(w, http.StatusBadRequest, "bad_request", "template image is required")
		return
	}
	reference, referenceName, err := a.formFile(r, "reference")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		a.error(w, http.StatusBadRequest, "bad_request", "reference image is unreadable")
		return
	}

	projectID := uuid.NewString()
	project := &domain.Project{ID: projectID, OwnerID: owner}

	uploads := []struct {
		key         *string
		name        string
		data        []byte
		contentType string
	}{
		{key: &project.GuidelineKey, name: inputKey(projectID, "guideline", ".txt"), data: guideline, contentType: "text/plain"},
		{key: &project.CopyKey, name: inputKey(projectID, "copy", ".txt"), data: copyText, contentType: "text/plain"},
		{key: &project.TemplateKey, name: inputKey(projectID, "template", extensionOf(templateName)), data: template, contentType: "application/octet-stream"},
	}
	if len(reference) > 0 {
		uploads = append(uploads, struct {
			key         *string
			name        string
			data        []byte
			contentType string
		}{key: &project.ReferenceKey, name: inputKey(projectID, "reference", extensionOf(referenceName)), data: reference, contentType: "application/octet-stream"})
	}
	for _, up := range uploads {
		path, err := a.Store.Upload(r.Context(), up.name, up.data, up.contentType)
		if err != nil {
			a.Logger.Error().Err(err).Str("key", up.name).Msg("input upload failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to archive input files")
			return
		}
		*up.key = path
	}

	created, err := a.Projects.Create(r.Context(), project)
	if err != nil {
		a.Logger.Error().Err(err).Msg("project insert failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record project")
		return
	}

	banner, err := a.Runner.Run(r.Context(), generate.Request{
		ProjectID: created.ID,
		Guideline: guideline,
		Copy:      copyText,
		Template:  template,
		Reference: reference,
	})
	if err != nil {
		a.runError(w, r, err)
		return
	}

	a.json(w, http.StatusCreated, projectResponse{Project: created, Banner: banner})
}

// RegenerateBanner re-runs the pipeline for an existing project from its
// archived input files, producing an additional banner variation.
func (a *App) RegenerateBanner(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerFromContext(r.Context())
	projectID := chi.URLParam(r, "id")
	if projectID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "project id required")
		return
	}

	project, err := a.Projects.GetByID(r.Context(), projectID)
	if err != nil || project.OwnerID != owner {
		a.error(w, http.StatusNotFound, "not_found", "project not found")
		return
	}

	guideline, err := a.Store.Download(r.Context(), project.GuidelineKey)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load archived inputs")
		return
	}
	copyText, err := a.Store.Download(r.Context(), project.CopyKey)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load archived inputs")
		return
	}
	template, err := a.Store.Download(r.Context(), project.TemplateKey)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load archived inputs")
		return
	}
	var reference []byte
	if project.ReferenceKey != "" {
		reference, err = a.Store.Download(r.Context(), project.ReferenceKey)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load archived inputs")
			return
		}
	}

	banner, err := a.Runner.Run(r.Context(), generate.Request{
		ProjectID: project.ID,
		Guideline: guideline,
		Copy:      copyText,
		Template:  template,
		Reference: reference,
	})
	if err != nil {
		a.runError(w, r, err)
		return
	}

	a.json(w, http.StatusCreated, map[string]*domain.Banner{"banner": banner})
}

func (a *App) formFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", http.ErrMissingFile
	}
	return data, header.Filename, nil
}

func inputKey(projectID, kind, ext string) string {
	return fmt.Sprintf("inputs/%s/%s%s", projectID, kind, ext)
}

func extensionOf(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ".png"
	}
	return ext
}
