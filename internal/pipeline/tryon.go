package pipeline

import (
	"context"
	"fmt"
	"strings"

	"showcase/internal/domain"
)

// TryOnInput is one wearable try-on request: a model photo and a garment
// photo, both as raw bytes.
type TryOnInput struct {
	ModelImage       []byte
	GarmentImage     []byte
	ImageContentType string
	Description      string
}

func (in TryOnInput) validate() error {
	if len(in.ModelImage) == 0 {
		return fmt.Errorf("%w: model image is required", domain.ErrInvalidInput)
	}
	if len(in.GarmentImage) == 0 {
		return fmt.Errorf("%w: garment image is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	return nil
}

// SubmitTryOn creates one try-on job and schedules its pipeline.
func (e *Engine) SubmitTryOn(ctx context.Context, in TryOnInput) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	job := &domain.Job{
		RequestID:   newRequestID(),
		Type:        domain.JobTypeWearableTryOn,
		Description: in.Description,
	}
	return e.enqueue(ctx, job, func(taskCtx context.Context, requestID string) error {
		return e.runTryOn(taskCtx, requestID, in)
	})
}

func (e *Engine) runTryOn(ctx context.Context, requestID string, in TryOnInput) error {
	modelURL, err := e.uploadImage(ctx, in.ModelImage, in.ImageContentType)
	if err != nil {
		return fmt.Errorf("upload model image: %w", err)
	}
	garmentURL, err := e.uploadImage(ctx, in.GarmentImage, in.ImageContentType)
	if err != nil {
		return fmt.Errorf("upload garment image: %w", err)
	}
	if err := e.advance(ctx, requestID, domain.StepInputsUploaded, domain.JobUpdate{
		ImageURL:      &garmentURL,
		CleanImageURL: &modelURL,
	}); err != nil {
		return err
	}

	stepCtx, cancel := e.stepCtx(ctx)
	outputs, err := e.tryon.TryOn(stepCtx, modelURL, garmentURL)
	cancel()
	if err != nil {
		return fmt.Errorf("try-on synthesis: %w", err)
	}
	if len(outputs) == 0 {
		return fmt.Errorf("try-on synthesis: no images returned")
	}
	return e.finish(ctx, requestID, domain.JobUpdate{
		VideoURL:        &outputs[0],
		MergedImageURLs: outputs,
	})
}
