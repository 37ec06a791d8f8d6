package pipeline

import (
	"context"
	"fmt"

	"showcase/internal/domain"
)

// Product3DInput is one 3D reconstruction request.
type Product3DInput struct {
	Image            []byte
	ImageContentType string
}

func (in Product3DInput) validate() error {
	if len(in.Image) == 0 {
		return fmt.Errorf("%w: product image is required", domain.ErrInvalidInput)
	}
	return nil
}

// SubmitProduct3D creates one 3D-model job and schedules its pipeline.
func (e *Engine) SubmitProduct3D(ctx context.Context, in Product3DInput) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	job := &domain.Job{
		RequestID:   newRequestID(),
		Type:        domain.JobTypeProduct3D,
		Description: "3D product model",
	}
	return e.enqueue(ctx, job, func(taskCtx context.Context, requestID string) error {
		return e.runProduct3D(taskCtx, requestID, in)
	})
}

func (e *Engine) runProduct3D(ctx context.Context, requestID string, in Product3DInput) error {
	imageURL, err := e.uploadImage(ctx, in.Image, in.ImageContentType)
	if err != nil {
		return fmt.Errorf("upload product image: %w", err)
	}
	if err := e.advance(ctx, requestID, domain.StepInputUploaded, domain.JobUpdate{ImageURL: &imageURL}); err != nil {
		return err
	}

	stepCtx, cancel := e.stepCtx(ctx)
	model, err := e.model3d.Synthesize(stepCtx, imageURL)
	cancel()
	if err != nil {
		return fmt.Errorf("3d synthesis: %w", err)
	}
	return e.finish(ctx, requestID, domain.JobUpdate{
		VideoURL:        &model.MeshURL,
		MergedImageURLs: model.TextureURLs,
	})
}
