// Package pipeline is the core of the service: for every job type it
// defines an ordered step sequence, runs it on a background task, and
// keeps the job store consistent with real progress. Each checkpoint is
// written only after its stage has fully committed, so the stored job
// always reflects the last completed step and a crash between steps loses
// forward progress, never consistency.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"showcase/internal/domain"
	"showcase/internal/infra"
	"showcase/internal/providers/bgremoval"
	"showcase/internal/providers/model3d"
	"showcase/internal/providers/script"
	"showcase/internal/providers/speech"
	"showcase/internal/providers/tryon"
	"showcase/internal/providers/video"
	"showcase/internal/storage"
)

const defaultStepTimeout = 5 * time.Minute

// Options wires the engine's collaborators. Every field except Logger,
// MaxActiveJobs, StepTimeout and DefaultAvatarID is required.
type Options struct {
	Repo     domain.JobRepository
	Store    storage.Uploader
	Remover  bgremoval.Remover
	Writer   script.Writer
	Speech   speech.Synthesizer
	Animator video.Animator
	Composer video.Composer
	Captions video.Captioner
	Avatar   video.AvatarSynthesizer
	TryOn    tryon.Synthesizer
	Model3D  model3d.Synthesizer

	Logger          *infra.Logger
	MaxActiveJobs   int
	StepTimeout     time.Duration
	DefaultAvatarID string
}

// Engine creates jobs, schedules their background execution, and drives
// each job's step sequence to completion or first failure.
type Engine struct {
	repo     domain.JobRepository
	store    storage.Uploader
	remover  bgremoval.Remover
	writer   script.Writer
	speech   speech.Synthesizer
	animator video.Animator
	composer video.Composer
	captions video.Captioner
	avatar   video.AvatarSynthesizer
	tryon    tryon.Synthesizer
	model3d  model3d.Synthesizer

	logger          infra.Logger
	runner          *Runner
	stepTimeout     time.Duration
	defaultAvatarID string
}

// LanguageOutcome is one entry of a fan-out submission response: either a
// queued job handle or the reason this language could not be queued. One
// language failing never aborts the rest of the batch.
type LanguageOutcome struct {
	Language  string
	RequestID string
	Err       error
}

// NewEngine validates the options and builds an engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Repo == nil {
		return nil, errors.New("pipeline: job repository is required")
	}
	if opts.Store == nil {
		return nil, errors.New("pipeline: storage uploader is required")
	}
	stepTimeout := opts.StepTimeout
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	var logger infra.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Engine{
		repo:            opts.Repo,
		store:           opts.Store,
		remover:         opts.Remover,
		writer:          opts.Writer,
		speech:          opts.Speech,
		animator:        opts.Animator,
		composer:        opts.Composer,
		captions:        opts.Captions,
		avatar:          opts.Avatar,
		tryon:           opts.TryOn,
		model3d:         opts.Model3D,
		logger:          logger,
		runner:          NewRunner(opts.MaxActiveJobs),
		stepTimeout:     stepTimeout,
		defaultAvatarID: opts.DefaultAvatarID,
	}, nil
}

// Close stops accepting new jobs and waits for in-flight pipelines.
func (e *Engine) Close() {
	e.runner.Close()
}

// enqueue creates the job record and schedules its pipeline. The record
// exists and the request id is returned before any background work runs,
// so the caller can start polling immediately.
func (e *Engine) enqueue(ctx context.Context, job *domain.Job, run func(ctx context.Context, requestID string) error) (string, error) {
	job.Status = domain.JobStatusQueued
	job.CurrentStep = domain.StepQueued
	if err := e.repo.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	requestID := job.RequestID
	e.runner.Go(func(taskCtx context.Context) {
		e.execute(taskCtx, requestID, run)
	})
	return requestID, nil
}

// execute drives one job to a terminal state. Collaborator failures and
// panics are contained here: they end as a terminal error record, never
// as a crash or an error in the submitter's context.
func (e *Engine) execute(ctx context.Context, requestID string, run func(ctx context.Context, requestID string) error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error().Str("request_id", requestID).Interface("panic", rec).Msg("pipeline: job panicked")
			e.fail(ctx, requestID, fmt.Errorf("internal error: %v", rec))
		}
	}()

	if err := e.repo.Update(ctx, requestID, domain.StatusPatch(domain.JobStatusProcessing)); err != nil {
		e.logger.Error().Err(err).Str("request_id", requestID).Msg("pipeline: failed to mark job processing")
		return
	}
	if err := run(ctx, requestID); err != nil {
		e.fail(ctx, requestID, err)
		return
	}
	e.logger.Info().Str("request_id", requestID).Msg("pipeline: job done")
}

// fail records the terminal error state. The write must survive engine
// shutdown, so it is detached from the task context's cancellation.
func (e *Engine) fail(ctx context.Context, requestID string, cause error) {
	e.logger.Error().Err(cause).Str("request_id", requestID).Msg("pipeline: job failed")
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.repo.Update(writeCtx, requestID, domain.FailurePatch(cause.Error())); err != nil {
		e.logger.Error().Err(err).Str("request_id", requestID).Msg("pipeline: failed to record job failure")
	}
}

// advance persists a completed step's outputs and checkpoint in one write.
func (e *Engine) advance(ctx context.Context, requestID string, step domain.Step, patch domain.JobUpdate) error {
	patch.CurrentStep = &step
	if err := e.repo.Update(ctx, requestID, patch); err != nil {
		return fmt.Errorf("checkpoint %s: %w", step, err)
	}
	return nil
}

// finish persists the terminal done state together with the result fields.
func (e *Engine) finish(ctx context.Context, requestID string, patch domain.JobUpdate) error {
	status := domain.JobStatusDone
	step := domain.StepDone
	patch.Status = &status
	patch.CurrentStep = &step
	if err := e.repo.Update(ctx, requestID, patch); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	return nil
}

// stepCtx bounds one collaborator call. Expiry is handled exactly like
// any other step failure.
func (e *Engine) stepCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.stepTimeout)
}

func (e *Engine) uploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/png"
	}
	stepCtx, cancel := e.stepCtx(ctx)
	defer cancel()
	url, err := e.store.Upload(stepCtx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}

var englishBase, _ = language.English.Base()

// isEnglish reports whether the canonical language code has an English
// base; English scripts skip the translation step.
func isEnglish(lang string) bool {
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return base == englishBase
}

func newRequestID() string {
	return uuid.NewString()
}
