package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bannerforge/internal/domain"
	"bannerforge/internal/storage"
)

// Stage identifies the pipeline phase a run is in. Transitions are strictly
// forward; a retry re-enters the same stage.
type Stage string

const (
	StageNormalizing  Stage = "normalizing"
	StageSynthesizing Stage = "synthesizing"
	StageProducing    Stage = "producing"
	StagePersisting   Stage = "persisting"
)

// Analyzer is the multimodal analysis capability: text plus image attachments
// in, a natural-language image-generation prompt out. Idempotent, safe to
// retry.
type Analyzer interface {
	Synthesize(ctx context.Context, in NormalizedInput) (string, error)
}

// Producer is the image-generation capability: a prompt in, decoded image
// bytes out.
type Producer interface {
	Produce(ctx context.Context, prompt string) ([]byte, error)
}

// EmptyPromptPolicy decides what happens when the analysis capability returns
// no usable content.
type EmptyPromptPolicy string

const (
	// PolicyBestEffort substitutes DefaultPrompt so the user's upload work is
	// not lost. The substitution is logged, not surfaced as failure.
	PolicyBestEffort EmptyPromptPolicy = "besteffort"
	// PolicyStrict fails the run with an empty_response analysis error.
	PolicyStrict EmptyPromptPolicy = "strict"
)

// DefaultPrompt is the degraded prompt used under PolicyBestEffort.
const DefaultPrompt = "An advertising banner."

const (
	defaultAnalysisTimeout = 30 * time.Second
	defaultImageTimeout    = 60 * time.Second
	defaultStorageTimeout  = 15 * time.Second
	defaultMaxConcurrent   = 4
	defaultRetryBaseDelay  = 500 * time.Millisecond

	analysisAttempts = 3
	produceAttempts  = 2
)

// Options configures a Pipeline. Analyzer, Producer, Store and Banners are
// required.
type Options struct {
	Analyzer Analyzer
	Producer Producer
	Store    storage.ObjectStore
	Banners  domain.BannerRepository
	Logger   zerolog.Logger

	EmptyPromptPolicy EmptyPromptPolicy

	AnalysisTimeout time.Duration
	ImageTimeout    time.Duration
	StorageTimeout  time.Duration

	// MaxConcurrent bounds simultaneous runs; a saturated pipeline rejects
	// with ErrBusy before consuming any paid external call.
	MaxConcurrent  int
	RetryBaseDelay time.Duration
}

// Pipeline turns one Request into one persisted Banner, running the stages
// normalizing, synthesizing, producing and persisting in fixed order. Runs
// share no mutable state beyond the admission semaphore; each run owns its
// Request and intermediate Result exclusively.
type Pipeline struct {
	analyzer Analyzer
	producer Producer
	store    storage.ObjectStore
	banners  domain.BannerRepository
	logger   zerolog.Logger

	emptyPolicy EmptyPromptPolicy

	analysisTimeout time.Duration
	imageTimeout    time.Duration
	storageTimeout  time.Duration
	retryBaseDelay  time.Duration

	sem      chan struct{}
	inflight atomic.Int32
}

// New validates the options and constructs a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Analyzer == nil {
		return nil, errors.New("generate: analyzer is required")
	}
	if opts.Producer == nil {
		return nil, errors.New("generate: producer is required")
	}
	if opts.Store == nil {
		return nil, errors.New("generate: object store is required")
	}
	if opts.Banners == nil {
		return nil, errors.New("generate: banner repository is required")
	}
	policy := opts.EmptyPromptPolicy
	if policy == "" {
		policy = PolicyBestEffort
	}
	if policy != PolicyBestEffort && policy != PolicyStrict {
		return nil, fmt.Errorf("generate: unknown empty prompt policy %q", policy)
	}
	p := &Pipeline{
		analyzer:        opts.Analyzer,
		producer:        opts.Producer,
		store:           opts.Store,
		banners:         opts.Banners,
		logger:          opts.Logger,
		emptyPolicy:     policy,
		analysisTimeout: durationOrDefault(opts.AnalysisTimeout, defaultAnalysisTimeout),
		imageTimeout:    durationOrDefault(opts.ImageTimeout, defaultImageTimeout),
		storageTimeout:  durationOrDefault(opts.StorageTimeout, defaultStorageTimeout),
		retryBaseDelay:  durationOrDefault(opts.RetryBaseDelay, defaultRetryBaseDelay),
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	p.sem = make(chan struct{}, maxConcurrent)
	return p, nil
}

// InFlight reports how many runs are currently executing. The HTTP layer uses
// it as the caller-visible "in progress" signal.
func (p *Pipeline) InFlight() int {
	return int(p.inflight.Load())
}

// Run executes the whole pipeline for one request and returns the persisted
// banner. A failed run persists nothing and returns a *StageError naming the
// stage that aborted it.
func (p *Pipeline) Run(ctx context.Context, req Request) (*domain.Banner, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, fmt.Errorf("%w: project id is required", ErrInputRead)
	}
	if len(req.Template) == 0 {
		// Caller contract violation; the HTTP layer rejects this before the
		// pipeline, this is the backstop.
		return nil, fmt.Errorf("%w: template image is required", ErrInputRead)
	}

	select {
	case p.sem <- struct{}{}:
	default:
		return nil, ErrBusy
	}
	defer func() { <-p.sem }()
	p.inflight.Add(1)
	defer p.inflight.Add(-1)

	log := p.logger.With().Str("project_id", req.ProjectID).Logger()

	log.Debug().Str("stage", string(StageNormalizing)).Msg("pipeline stage")
	in, err := Normalize(req)
	if err != nil {
		return nil, p.fail(log, StageNormalizing, err)
	}

	log.Debug().Str("stage", string(StageSynthesizing)).Msg("pipeline stage")
	prompt, err := p.synthesize(ctx, log, *in)
	if err != nil {
		return nil, p.fail(log, StageSynthesizing, err)
	}

	log.Debug().Str("stage", string(StageProducing)).Msg("pipeline stage")
	image, err := p.produce(ctx, prompt)
	if err != nil {
		return nil, p.fail(log, StageProducing, err)
	}

	log.Debug().Str("stage", string(StagePersisting)).Msg("pipeline stage")
	banner, err := p.persist(ctx, log, req.ProjectID, Result{
		Prompt:   prompt,
		Image:    image,
		Metadata: domain.PlaceholderMetadata(prompt),
	})
	if err != nil {
		return nil, p.fail(log, StagePersisting, err)
	}

	log.Info().Str("banner_id", banner.ID).Str("image_key", banner.ImageKey).Msg("banner generated")
	return banner, nil
}

func (p *Pipeline) fail(log zerolog.Logger, stage Stage, err error) error {
	log.Error().Err(err).Str("stage", string(stage)).Msg("pipeline run failed")
	return &StageError{Stage: stage, Err: err}
}

// synthesize calls the analysis capability with retries. The call is
// idempotent, so transport failures and timeouts get up to two more attempts
// with doubling backoff; credential and quota failures never retry.
func (p *Pipeline) synthesize(ctx context.Context, log zerolog.Logger, in NormalizedInput) (string, error) {
	var err error
	for attempt := 0; attempt < analysisAttempts; attempt++ {
		if attempt > 0 {
			delay := p.retryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", mapDeadline(ctx.Err())
			}
			log.Warn().Int("attempt", attempt+1).Msg("retrying analysis call")
		}

		var prompt string
		callCtx, cancel := context.WithTimeout(ctx, p.analysisTimeout)
		prompt, err = p.analyzer.Synthesize(callCtx, in)
		cancel()
		if err == nil {
			return prompt, nil
		}
		err = mapDeadline(err)

		var analysisErr *AnalysisError
		if errors.As(err, &analysisErr) && analysisErr.Kind == AnalysisEmptyResponse {
			if p.emptyPolicy == PolicyBestEffort {
				log.Warn().Msg("analysis returned no content, substituting default prompt")
				return DefaultPrompt, nil
			}
			return "", err
		}
		if !retryableAnalysis(err) {
			return "", err
		}
	}
	return "", err
}

func retryableAnalysis(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var analysisErr *AnalysisError
	return errors.As(err, &analysisErr) && analysisErr.Kind == AnalysisTransport
}

// produce calls the image capability, retrying once on transport failure. A
// success response without a decodable payload is a hard error, never
// retried with empty bytes downstream.
func (p *Pipeline) produce(ctx context.Context, prompt string) ([]byte, error) {
	var err error
	for attempt := 0; attempt < produceAttempts; attempt++ {
		var image []byte
		callCtx, cancel := context.WithTimeout(ctx, p.imageTimeout)
		image, err = p.producer.Produce(callCtx, prompt)
		cancel()
		if err == nil {
			if len(image) == 0 {
				return nil, fmt.Errorf("%w: empty payload", ErrImageDecode)
			}
			return image, nil
		}
		err = mapDeadline(err)
		if errors.Is(err, ErrImageDecode) || errors.Is(err, ErrTimeout) {
			return nil, err
		}
	}
	return nil, err
}

// persist uploads the image and inserts the record as a logically atomic
// unit: when the insert fails after a successful upload, the uploaded object
// is removed best-effort so a failed run leaves no partial record behind.
func (p *Pipeline) persist(ctx context.Context, log zerolog.Logger, projectID string, res Result) (*domain.Banner, error) {
	key := objectKey(projectID, time.Now())

	upCtx, cancelUp := context.WithTimeout(ctx, p.storageTimeout)
	path, err := p.store.Upload(upCtx, key, res.Image, "image/png")
	cancelUp()
	if err != nil {
		if err = mapDeadline(err); errors.Is(err, ErrTimeout) {
			return nil, err
		}
		return nil, &UploadError{Key: key, Err: err}
	}

	banner := &domain.Banner{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		ImageKey:  path,
		Metadata:  res.Metadata,
		Status:    domain.StatusGenerated,
	}

	insCtx, cancelIns := context.WithTimeout(ctx, p.storageTimeout)
	inserted, err := p.banners.Insert(insCtx, banner)
	cancelIns()
	if err != nil {
		p.removeOrphan(log, path)
		if err = mapDeadline(err); errors.Is(err, ErrTimeout) {
			return nil, err
		}
		return nil, &PersistError{Err: err}
	}
	return inserted, nil
}

// removeOrphan deletes an uploaded object whose record was never inserted.
// Best effort: the insert failure is what the caller sees either way.
func (p *Pipeline) removeOrphan(log zerolog.Logger, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.storageTimeout)
	defer cancel()
	if err := p.store.Remove(ctx, key); err != nil {
		log.Error().Err(err).Str("image_key", key).Msg("orphan cleanup failed, object left behind")
		return
	}
	log.Warn().Str("image_key", key).Msg("removed orphaned upload after insert failure")
}

// objectKey names the stored image. The uuid suffix disambiguates two runs
// for the same project landing in the same millisecond without a coordination
// step.
func objectKey(projectID string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("banners/%s-%d-%s.png", projectID, now.UnixMilli(), suffix)
}

func mapDeadline(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func durationOrDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
