// Package handlers exposes the generation pipelines over HTTP. Handlers
// validate and normalize input synchronously; all vendor work happens in
// the background, so every submission response returns immediately.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"showcase/internal/domain"
	"showcase/internal/pipeline"
)

// Engine is the submission surface the handlers need from the pipeline.
type Engine interface {
	SubmitShortVideo(ctx context.Context, in pipeline.ShortVideoInput) ([]pipeline.LanguageOutcome, error)
	SubmitAvatarVideo(ctx context.Context, in pipeline.AvatarInput) ([]pipeline.LanguageOutcome, error)
	SubmitTryOn(ctx context.Context, in pipeline.TryOnInput) (string, error)
	SubmitProduct3D(ctx context.Context, in pipeline.Product3DInput) (string, error)
}

type App struct {
	Engine   Engine
	Repo     domain.JobRepository
	Log      zerolog.Logger
	validate *validator.Validate
}

func NewApp(engine Engine, repo domain.JobRepository, log zerolog.Logger) *App {
	return &App{
		Engine:   engine,
		Repo:     repo,
		Log:      log,
		validate: validator.New(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}

// fail maps a domain error to an HTTP response.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "job not found")
	case errors.Is(err, domain.ErrDuplicateRequest):
		a.error(w, http.StatusConflict, err.Error())
	default:
		a.Log.Error().Err(err).Msg("handlers: internal error")
		a.error(w, http.StatusInternalServerError, "internal error")
	}
}
