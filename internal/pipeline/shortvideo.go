package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"showcase/internal/domain"
	"showcase/internal/providers/speech"
)

// ShortVideoInput is one short-form ad request. Exactly one of ImageURL
// and ImageData must be set; each language in Languages becomes its own
// independent job.
type ShortVideoInput struct {
	ImageURL         string
	ImageData        []byte
	ImageContentType string
	Description      string
	Languages        []string
}

func (in ShortVideoInput) validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	if in.ImageURL == "" && len(in.ImageData) == 0 {
		return fmt.Errorf("%w: an image url or image payload is required", domain.ErrInvalidInput)
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

// SubmitShortVideo fans the request out into one job per language and
// returns a settled outcome per language. The error return is reserved
// for invalid input; per-language scheduling failures land in the
// outcomes instead of aborting the batch.
func (e *Engine) SubmitShortVideo(ctx context.Context, in ShortVideoInput) ([]LanguageOutcome, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	outcomes := make([]LanguageOutcome, 0, len(in.Languages))
	for _, lang := range in.Languages {
		job := &domain.Job{
			RequestID:   newRequestID(),
			Type:        domain.JobTypeShortVideo,
			Language:    lang,
			Description: in.Description,
			ImageURL:    in.ImageURL,
		}
		perLang := in
		perLangLang := lang
		requestID, err := e.enqueue(ctx, job, func(taskCtx context.Context, requestID string) error {
			return e.runShortVideo(taskCtx, requestID, perLang, perLangLang)
		})
		if err != nil {
			e.logger.Error().Err(err).Str("language", lang).Msg("pipeline: short video submission failed")
			outcomes = append(outcomes, LanguageOutcome{Language: lang, Err: err})
			continue
		}
		outcomes = append(outcomes, LanguageOutcome{Language: lang, RequestID: requestID})
	}
	return outcomes, nil
}

// runShortVideo executes the short-form step sequence. Every stage reads
// only previously persisted URLs or in-memory outputs of the prior stage,
// so the checkpoint trail always matches committed work.
func (e *Engine) runShortVideo(ctx context.Context, requestID string, in ShortVideoInput, lang string) error {
	// Ensure the input image is addressable before anything consumes it.
	imageURL := in.ImageURL
	if imageURL == "" {
		uploaded, err := e.uploadImage(ctx, in.ImageData, in.ImageContentType)
		if err != nil {
			return err
		}
		imageURL = uploaded
	}
	if err := e.advance(ctx, requestID, domain.StepInputUploaded, domain.JobUpdate{ImageURL: &imageURL}); err != nil {
		return err
	}

	cleanURL, err := e.removeBackground(ctx, imageURL)
	if err != nil {
		return err
	}
	if err := e.advance(ctx, requestID, domain.StepBGRemoved, domain.JobUpdate{CleanImageURL: &cleanURL}); err != nil {
		return err
	}

	scenes, err := e.scenePrompts(ctx, in.Description)
	if err != nil {
		return err
	}
	if err := e.advance(ctx, requestID, domain.StepSceneDone, domain.JobUpdate{}); err != nil {
		return err
	}

	parts, err := e.sceneScripts(ctx, scenes)
	if err != nil {
		return err
	}
	if err := e.advance(ctx, requestID, domain.StepScriptDone, domain.JobUpdate{}); err != nil {
		return err
	}

	if !isEnglish(lang) {
		parts, err = e.translate(ctx, parts, lang)
		if err != nil {
			return err
		}
		if err := e.advance(ctx, requestID, domain.StepTranslateDone, domain.JobUpdate{}); err != nil {
			return err
		}
	}

	clips, err := e.synthesizeSpeech(ctx, parts, lang)
	if err != nil {
		return err
	}
	if err := e.advance(ctx, requestID, domain.StepTTSDone, domain.JobUpdate{}); err != nil {
		return err
	}

	videoURLs, err := e.animateScenes(ctx, cleanURL, scenes, clips)
	if err != nil {
		return err
	}
	if err := e.advance(ctx, requestID, domain.StepClipsDone, domain.JobUpdate{}); err != nil {
		return err
	}

	audioURLs := make([]string, len(clips))
	for i, clip := range clips {
		audioURLs[i] = clip.URL
	}
	stepCtx, cancel := e.stepCtx(ctx)
	finalURL, err := e.composer.Compose(stepCtx, videoURLs, audioURLs)
	cancel()
	if err != nil {
		return fmt.Errorf("compose video: %w", err)
	}
	return e.finish(ctx, requestID, domain.JobUpdate{VideoURL: &finalURL})
}

func (e *Engine) removeBackground(ctx context.Context, imageURL string) (string, error) {
	stepCtx, cancel := e.stepCtx(ctx)
	defer cancel()
	cleaned, err := e.remover.Remove(stepCtx, imageURL)
	if err != nil {
		return "", fmt.Errorf("remove background: %w", err)
	}
	cleanURL, err := e.store.Upload(stepCtx, cleaned, "image/png")
	if err != nil {
		return "", fmt.Errorf("upload clean image: %w", err)
	}
	return cleanURL, nil
}

func (e *Engine) scenePrompts(ctx context.Context, description string) ([]string, error) {
	stepCtx, cancel := e.stepCtx(ctx)
	defer cancel()
	scenes, err := e.writer.ScenePrompts(stepCtx, description)
	if err != nil {
		return nil, fmt.Errorf("generate scene prompts: %w", err)
	}
	if len(scenes) == 0 {
		return nil, errors.New("generate scene prompts: no scenes returned")
	}
	return scenes, nil
}

func (e *Engine) sceneScripts(ctx context.Context, scenes []string) ([]string, error) {
	stepCtx, cancel := e.stepCtx(ctx)
	defer cancel()
	parts, err := e.writer.SceneScripts(stepCtx, scenes)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}
	if len(parts) != len(scenes) {
		return nil, fmt.Errorf("generate script: %d parts for %d scenes", len(parts), len(scenes))
	}
	return parts, nil
}

func (e *Engine) translate(ctx context.Context, parts []string, lang string) ([]string, error) {
	stepCtx, cancel := e.stepCtx(ctx)
	defer cancel()
	translated, err := e.writer.Translate(stepCtx, parts, lang)
	if err != nil {
		return nil, fmt.Errorf("translate script: %w", err)
	}
	if len(translated) != len(parts) {
		return nil, fmt.Errorf("translate script: %d parts in, %d out", len(parts), len(translated))
	}
	return translated, nil
}

func (e *Engine) synthesizeSpeech(ctx context.Context, parts []string, lang string) ([]speech.Clip, error) {
	stepCtx, cancel := e.stepCtx(ctx)
	defer cancel()
	clips, err := e.speech.Synthesize(stepCtx, parts, lang)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	if len(clips) != len(parts) {
		return nil, fmt.Errorf("synthesize speech: %d clips for %d parts", len(clips), len(parts))
	}
	return clips, nil
}

// animateScenes renders one clip per scene, pacing each clip to its
// audio. Scenes animate concurrently; the checkpoint behind this call is
// written only after every clip has committed.
func (e *Engine) animateScenes(ctx context.Context, imageURL string, scenes []string, clips []speech.Clip) ([]string, error) {
	if len(scenes) != len(clips) {
		return nil, fmt.Errorf("animate scenes: %d scenes, %d audio clips", len(scenes), len(clips))
	}
	videoURLs := make([]string, len(scenes))
	errs := make([]error, len(scenes))
	var wg sync.WaitGroup
	for i := range scenes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stepCtx, cancel := e.stepCtx(ctx)
			defer cancel()
			clip, err := e.animator.Animate(stepCtx, imageURL, scenes[i], clips[i].Duration)
			if err != nil {
				errs[i] = fmt.Errorf("animate scene %d: %w", i+1, err)
				return
			}
			videoURLs[i] = clip.URL
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return videoURLs, nil
}
