package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"bannerforge/internal/adapter/repo"
	"bannerforge/internal/generate"
	"bannerforge/internal/http/handlers"
	"bannerforge/internal/http/httpapi"
	"bannerforge/internal/infra"
	"bannerforge/internal/providers/analysis"
	"bannerforge/internal/providers/imagegen"
	"bannerforge/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	var store storage.ObjectStore
	switch cfg.StorageBackend {
	case "s3":
		store, err = storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		store, err = storage.NewFileStore(cfg.StoragePath)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	analyzer, err := analysis.NewClient(analysis.Options{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.AnalysisModel,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize analysis client")
	}
	producer, err := imagegen.NewClient(imagegen.Options{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.ImageModel,
		BaseURL: cfg.OpenAIBaseURL,
		Size:    cfg.ImageSize,
		Quality: cfg.ImageQuality,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize image client")
	}

	banners := repo.NewBannerRepository(dbpool)
	projects := repo.NewProjectRepository(dbpool)

	pipeline, err := generate.New(generate.Options{
		Analyzer:          analyzer,
		Producer:          producer,
		Store:             store,
		Banners:           banners,
		Logger:            logger,
		EmptyPromptPolicy: generate.EmptyPromptPolicy(cfg.AnalysisEmptyPolicy),
		AnalysisTimeout:   cfg.AnalysisTimeout,
		ImageTimeout:      cfg.ImageTimeout,
		StorageTimeout:    cfg.StorageTimeout,
		MaxConcurrent:     cfg.MaxConcurrentRuns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation pipeline")
	}

	app := handlers.NewApp(pipeline, banners, projects, store, logger)
	router := httpapi.NewRouter(app, logger, cfg.DefaultLocale)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
