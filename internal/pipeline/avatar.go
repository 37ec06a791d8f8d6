package pipeline

import (
	"context"
	"fmt"
	"strings"

	"showcase/internal/domain"
)

// AvatarInput is one avatar-video request; each language becomes its own
// job speaking its own script.
type AvatarInput struct {
	Description string
	Languages   []string
	AvatarID    string
}

func (in AvatarInput) validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	if len(in.Languages) == 0 {
		return fmt.Errorf("%w: at least one language is required", domain.ErrInvalidInput)
	}
	for _, lang := range in.Languages {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("%w: empty language code", domain.ErrInvalidInput)
		}
	}
	return nil
}

// SubmitAvatarVideo fans the request out into one job per language with
// settle-all outcomes, like SubmitShortVideo.
func (e *Engine) SubmitAvatarVideo(ctx context.Context, in AvatarInput) ([]LanguageOutcome, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	avatarID := in.AvatarID
	if avatarID == "" {
		avatarID = e.defaultAvatarID
	}
	outcomes := make([]LanguageOutcome, 0, len(in.Languages))
	for _, lang := range in.Languages {
		job := &domain.Job{
			RequestID:   newRequestID(),
			Type:        domain.JobTypeAvatarVideo,
			Language:    lang,
			Description: in.Description,
		}
		perLangLang := lang
		requestID, err := e.enqueue(ctx, job, func(taskCtx context.Context, requestID string) error {
			return e.runAvatarVideo(taskCtx, requestID, in.Description, perLangLang, avatarID)
		})
		if err != nil {
			e.logger.Error().Err(err).Str("language", lang).Msg("pipeline: avatar submission failed")
			outcomes = append(outcomes, LanguageOutcome{Language: lang, Err: err})
			continue
		}
		outcomes = append(outcomes, LanguageOutcome{Language: lang, RequestID: requestID})
	}
	return outcomes, nil
}

func (e *Engine) runAvatarVideo(ctx context.Context, requestID, description, lang, avatarID string) error {
	stepCtx, cancel := e.stepCtx(ctx)
	spoken, err := e.writer.AvatarScript(stepCtx, description, lang)
	cancel()
	if err != nil {
		return fmt.Errorf("generate avatar script: %w", err)
	}
	if err := e.advance(ctx, requestID, domain.StepScriptDone, domain.JobUpdate{}); err != nil {
		return err
	}

	stepCtx, cancel = e.stepCtx(ctx)
	clip, err := e.avatar.SynthesizeAvatar(stepCtx, avatarID, spoken)
	cancel()
	if err != nil {
		return fmt.Errorf("synthesize avatar video: %w", err)
	}
	if err := e.advance(ctx, requestID, domain.StepAvatarVideoDone, domain.JobUpdate{}); err != nil {
		return err
	}

	stepCtx, cancel = e.stepCtx(ctx)
	finalURL, err := e.captions.Caption(stepCtx, clip.URL)
	cancel()
	if err != nil {
		return fmt.Errorf("caption avatar video: %w", err)
	}
	return e.finish(ctx, requestID, domain.JobUpdate{VideoURL: &finalURL})
}
