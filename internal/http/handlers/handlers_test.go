package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"bannerforge/internal/domain"
	"bannerforge/internal/generate"
	"bannerforge/internal/http/handlers"
	"bannerforge/internal/http/httpapi"
)

var pngBytes = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...)

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	inFlight int
	fn       func(ctx context.Context, req generate.Request) (*domain.Banner, error)
}

func (f *fakeRunner) Run(ctx context.Context, req generate.Request) (*domain.Banner, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, req)
	}
	return &domain.Banner{
		ID:        "banner-1",
		ProjectID: req.ProjectID,
		ImageKey:  "banners/" + req.ProjectID + ".png",
		Metadata:  domain.PlaceholderMetadata("a prompt"),
		Status:    domain.StatusGenerated,
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeRunner) InFlight() int { return f.inFlight }

type fakeBannerRepo struct {
	banners map[string]*domain.Banner
	owners  map[string]string
	listFn  func(ownerID string, filter domain.BannerFilter) ([]domain.Banner, error)
}

func newFakeBannerRepo() *fakeBannerRepo {
	return &fakeBannerRepo{
		banners: map[string]*domain.Banner{},
		owners:  map[string]string{},
	}
}

func (f *fakeBannerRepo) Insert(_ context.Context, banner *domain.Banner) (*domain.Banner, error) {
	f.banners[banner.ID] = banner
	return banner, nil
}

func (f *fakeBannerRepo) GetForOwner(_ context.Context, id, ownerID string) (*domain.Banner, error) {
	b, ok := f.banners[id]
	if !ok || f.owners[id] != ownerID {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeBannerRepo) UpdateStatus(_ context.Context, id string, status domain.BannerStatus) (*domain.Banner, error) {
	b, ok := f.banners[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	b.Status = status
	return b, nil
}

func (f *fakeBannerRepo) ListByOwner(_ context.Context, ownerID string, filter domain.BannerFilter) ([]domain.Banner, error) {
	if f.listFn != nil {
		return f.listFn(ownerID, filter)
	}
	var out []domain.Banner
	for id, b := range f.banners {
		if f.owners[id] != ownerID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.ProjectID != "" && b.ProjectID != filter.ProjectID {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

type fakeProjectRepo struct {
	projects map[string]*domain.Project
	createFn func(project *domain.Project) (*domain.Project, error)
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{projects: map[string]*domain.Project{}}
}

func (f *fakeProjectRepo) Create(_ context.Context, project *domain.Project) (*domain.Project, error) {
	if f.createFn != nil {
		return f.createFn(project)
	}
	f.projects[project.ID] = project
	return project, nil
}

func (f *fakeProjectRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return key, nil
}

func (f *fakeStore) Download(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return data, nil
}

func (f *fakeStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fixture struct {
	runner   *fakeRunner
	banners  *fakeBannerRepo
	projects *fakeProjectRepo
	store    *fakeStore
	router   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		runner:   &fakeRunner{},
		banners:  newFakeBannerRepo(),
		projects: newFakeProjectRepo(),
		store:    newFakeStore(),
	}
	app := handlers.NewApp(f.runner, f.banners, f.projects, f.store, zerolog.Nop())
	f.router = httpapi.NewRouter(app, zerolog.Nop(), "en")
	return f
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, data := range files {
		name := field + ".txt"
		if field == "template" || field == "reference" {
			name = field + ".png"
		}
		part, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create part %s: %v", field, err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part %s: %v", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func doRequest(f *fixture, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateProjectSuccess(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, map[string][]byte{
		"guideline": []byte("Use calm blue tones"),
		"copy":      []byte("Save 20% Today"),
		"template":  pngBytes,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-ID", "owner-1")

	rec := doRequest(f, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Project domain.Project `json:"project"`
		Banner  domain.Banner  `json:"banner"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Project.OwnerID != "owner-1" {
		t.Fatalf("owner = %q, want owner-1", resp.Project.OwnerID)
	}
	if resp.Banner.Status != domain.StatusGenerated {
		t.Fatalf("banner status = %q", resp.Banner.Status)
	}
	if f.runner.calls != 1 {
		t.Fatalf("runner calls = %d, want 1", f.runner.calls)
	}
	if !strings.HasPrefix(resp.Project.TemplateKey, "inputs/"+resp.Project.ID+"/") {
		t.Fatalf("template key = %q, want inputs/%s/ prefix", resp.Project.TemplateKey, resp.Project.ID)
	}
	if _, err := f.store.Download(context.Background(), resp.Project.TemplateKey); err != nil {
		t.Fatalf("template not archived: %v", err)
	}
}

func TestCreateProjectMissingTemplate(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, map[string][]byte{
		"guideline": []byte("Use calm blue tones"),
		"copy":      []byte("Save 20% Today"),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-ID", "owner-1")

	rec := doRequest(f, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if f.runner.calls != 0 {
		t.Fatalf("runner called despite missing template")
	}
}

func TestCreateProjectMissingOwner(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, map[string][]byte{
		"guideline": []byte("g"),
		"copy":      []byte("c"),
		"template":  pngBytes,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(f, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateProjectPipelineErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"busy", generate.ErrBusy, http.StatusTooManyRequests, "busy"},
		{"timeout", &generate.StageError{Stage: generate.StageSynthesizing, Err: generate.ErrTimeout}, http.StatusGatewayTimeout, "timeout"},
		{"bad input", &generate.StageError{Stage: generate.StageNormalizing, Err: fmt.Errorf("%w: empty guideline", generate.ErrInputRead)}, http.StatusBadRequest, "bad_input"},
		{"unauthorized", &generate.StageError{Stage: generate.StageSynthesizing, Err: &generate.AnalysisError{Kind: generate.AnalysisUnauthorized}}, http.StatusBadGateway, "provider_unauthorized"},
		{"quota", &generate.StageError{Stage: generate.StageSynthesizing, Err: &generate.AnalysisError{Kind: generate.AnalysisQuotaExceeded}}, http.StatusBadGateway, "provider_quota"},
		{"transport", &generate.StageError{Stage: generate.StageSynthesizing, Err: &generate.AnalysisError{Kind: generate.AnalysisTransport, Err: errors.New("eof")}}, http.StatusBadGateway, "provider_failure"},
		{"persist", &generate.StageError{Stage: generate.StagePersisting, Err: &generate.PersistError{Err: errors.New("insert failed")}}, http.StatusInternalServerError, "internal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.runner.fn = func(context.Context, generate.Request) (*domain.Banner, error) {
				return nil, tc.err
			}

			body, contentType := multipartBody(t, map[string][]byte{
				"guideline": []byte("g"),
				"copy":      []byte("c"),
				"template":  pngBytes,
			})
			req := httptest.NewRequest(http.MethodPost, "/v1/projects", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("X-Owner-ID", "owner-1")

			rec := doRequest(f, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
			var resp map[string]string
			decodeJSON(t, rec, &resp)
			if resp["error"] != tc.wantCode {
				t.Fatalf("error code = %q, want %q", resp["error"], tc.wantCode)
			}
		})
	}
}

func TestCreateProjectLocalizedProviderError(t *testing.T) {
	f := newFixture(t)
	f.runner.fn = func(context.Context, generate.Request) (*domain.Banner, error) {
		return nil, &generate.StageError{
			Stage: generate.StageSynthesizing,
			Err:   &generate.AnalysisError{Kind: generate.AnalysisUnauthorized},
		}
	}

	body, contentType := multipartBody(t, map[string][]byte{
		"guideline": []byte("g"),
		"copy":      []byte("c"),
		"template":  pngBytes,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-ID", "owner-1")
	req.Header.Set("X-Locale", "id")

	rec := doRequest(f, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	if !strings.Contains(resp["message"], "Kredensial") {
		t.Fatalf("message = %q, want Indonesian credential message", resp["message"])
	}
}

func TestRegenerateBanner(t *testing.T) {
	f := newFixture(t)

	ctx := context.Background()
	for key, data := range map[string][]byte{
		"inputs/proj-1/guideline.txt": []byte("Use calm blue tones"),
		"inputs/proj-1/copy.txt":      []byte("Save 20% Today"),
		"inputs/proj-1/template.png":  pngBytes,
	} {
		if _, err := f.store.Upload(ctx, key, data, ""); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	f.projects.projects["proj-1"] = &domain.Project{
		ID:           "proj-1",
		OwnerID:      "owner-1",
		GuidelineKey: "inputs/proj-1/guideline.txt",
		CopyKey:      "inputs/proj-1/copy.txt",
		TemplateKey:  "inputs/proj-1/template.png",
	}

	var got generate.Request
	f.runner.fn = func(_ context.Context, req generate.Request) (*domain.Banner, error) {
		got = req
		return &domain.Banner{ID: "banner-2", ProjectID: req.ProjectID, Status: domain.StatusGenerated}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/proj-1/banners", nil)
	req.Header.Set("X-Owner-ID", "owner-1")

	rec := doRequest(f, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if string(got.Guideline) != "Use calm blue tones" {
		t.Fatalf("guideline = %q", got.Guideline)
	}
	if !bytes.Equal(got.Template, pngBytes) {
		t.Fatalf("template bytes not passed through")
	}
	if got.Reference != nil {
		t.Fatalf("reference should be nil when project has none")
	}
}

func TestRegenerateBannerWrongOwner(t *testing.T) {
	f := newFixture(t)
	f.projects.projects["proj-1"] = &domain.Project{ID: "proj-1", OwnerID: "owner-1"}

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/proj-1/banners", nil)
	req.Header.Set("X-Owner-ID", "owner-2")

	rec := doRequest(f, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if f.runner.calls != 0 {
		t.Fatalf("runner called for foreign project")
	}
}

func TestListBanners(t *testing.T) {
	f := newFixture(t)
	f.banners.banners["b1"] = &domain.Banner{ID: "b1", ProjectID: "proj-1", Status: domain.StatusGenerated}
	f.banners.banners["b2"] = &domain.Banner{ID: "b2", ProjectID: "proj-1", Status: domain.StatusApproved}
	f.banners.owners["b1"] = "owner-1"
	f.banners.owners["b2"] = "owner-1"

	req := httptest.NewRequest(http.MethodGet, "/v1/banners?status=approved", nil)
	req.Header.Set("X-Owner-ID", "owner-1")

	rec := doRequest(f, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Items []domain.Banner `json:"items"`
	}
	decodeJSON(t, rec, &resp)
	if len(resp.Items) != 1 || resp.Items[0].ID != "b2" {
		t.Fatalf("items = %+v, want only b2", resp.Items)
	}
}

func TestListBannersEmptyIsArray(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/banners", nil)
	req.Header.Set("X-Owner-ID", "owner-1")

	rec := doRequest(f, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("body = %s, want empty items array", rec.Body.String())
	}
}

func TestListBannersInvalidStatus(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/banners?status=pending", nil)
	req.Header.Set("X-Owner-ID", "owner-1")

	rec := doRequest(f, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateBannerStatus(t *testing.T) {
	f := newFixture(t)
	f.banners.banners["b1"] = &domain.Banner{ID: "b1", Status: domain.StatusGenerated}
	f.banners.owners["b1"] = "owner-1"

	cases := []struct {
		name       string
		owner      string
		body       string
		wantStatus int
	}{
		{"approve", "owner-1", `{"status":"approved"}`, http.StatusOK},
		{"invalid status", "owner-1", `{"status":"generated"}`, http.StatusBadRequest},
		{"malformed body", "owner-1", `{`, http.StatusBadRequest},
		{"foreign owner", "owner-2", `{"status":"approved"}`, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/v1/banners/b1", strings.NewReader(tc.body))
			req.Header.Set("X-Owner-ID", tc.owner)

			rec := doRequest(f, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}

	if f.banners.banners["b1"].Status != domain.StatusApproved {
		t.Fatalf("banner status = %q, want approved", f.banners.banners["b1"].Status)
	}
}

func TestDownloadBanner(t *testing.T) {
	f := newFixture(t)
	f.banners.banners["b1"] = &domain.Banner{ID: "b1", ImageKey: "banners/proj-1.png"}
	f.banners.owners["b1"] = "owner-1"
	if _, err := f.store.Upload(context.Background(), "banners/proj-1.png", pngBytes, "image/png"); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/banners/b1/download", nil)
	req.Header.Set("X-Owner-ID", "owner-1")

	rec := doRequest(f, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), pngBytes) {
		t.Fatalf("body does not match stored image")
	}
}

func TestDownloadBannerNotFound(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/banners/missing/download", nil)
	req.Header.Set("X-Owner-ID", "owner-1")

	rec := doRequest(f, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.runner.inFlight = 2

	req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)

	rec := doRequest(f, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Status   string `json:"status"`
		InFlight int    `json:"generations_in_flight"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Status != "ok" || resp.InFlight != 2 {
		t.Fatalf("resp = %+v", resp)
	}
}
