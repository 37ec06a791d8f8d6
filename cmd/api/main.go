package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"showcase/internal/adapter/repo"
	"showcase/internal/http/handlers"
	"showcase/internal/http/httpapi"
	"showcase/internal/infra"
	"showcase/internal/pipeline"
	"showcase/internal/providers/bgremoval"
	"showcase/internal/providers/falqueue"
	"showcase/internal/providers/model3d"
	"showcase/internal/providers/script"
	"showcase/internal/providers/speech"
	"showcase/internal/providers/tryon"
	"showcase/internal/providers/video"
	"showcase/internal/storage"
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

	store, staticDir, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build object storage")
	}

	queue, err := falqueue.NewClient(falqueue.Options{
		APIKey:  cfg.FalAPIKey,
		BaseURL: cfg.FalBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build fal queue client")
	}
	remover, err := bgremoval.NewPhotoRoom(bgremoval.PhotoRoomOptions{
		APIKey:  cfg.PhotoRoomAPIKey,
		BaseURL: cfg.PhotoRoomBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build background removal client")
	}
	writer, err := script.NewOpenAIWriter(script.OpenAIOptions{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build script writer")
	}
	falVideo := video.NewFal(queue)

	engine, err := pipeline.NewEngine(pipeline.Options{
		Repo:            repo.NewJobRepository(dbpool),
		Store:           store,
		Remover:         remover,
		Writer:          writer,
		Speech:          speech.NewFalSynthesizer(queue),
		Animator:        falVideo,
		Composer:        falVideo,
		Captions:        falVideo,
		Avatar:          falVideo,
		TryOn:           tryon.NewFal(queue),
		Model3D:         model3d.NewFal(queue),
		Logger:          &logger,
		MaxActiveJobs:   cfg.MaxActiveJobs,
		StepTimeout:     cfg.StepTimeout,
		DefaultAvatarID: cfg.DefaultAvatarID,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline engine")
	}

	app := handlers.NewApp(engine, repo.NewJobRepository(dbpool), logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       staticDir,
	})
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

	// Let in-flight jobs finish their terminal writes.
	engine.Close()
	logger.Info().Msg("server stopped")
}

// newStore picks S3 when credentials are configured and falls back to
// local filesystem storage otherwise. For the filesystem store it also
// returns the directory the router must serve under /static/.
func newStore(ctx context.Context, cfg *infra.Config) (storage.Uploader, string, error) {
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		return store, "", err
	}
	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		return nil, "", err
	}
	return store, store.BasePath(), nil
}
