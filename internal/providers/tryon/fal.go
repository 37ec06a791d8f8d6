// Package tryon renders a garment onto a model photo.
package tryon

import (
	"context"
	"errors"
	"fmt"

	"showcase/internal/providers/falqueue"
)

// Synthesizer produces one or more try-on images from a model photo and a
// garment photo.
type Synthesizer interface {
	TryOn(ctx context.Context, modelImageURL, garmentImageURL string) ([]string, error)
}

const tryOnApp = "fal-ai/fashn/tryon/v1.5"

// Fal implements Synthesizer on the fashn try-on queue app.
type Fal struct {
	queue *falqueue.Client
}

// NewFal builds the try-on adapter over a shared queue client.
func NewFal(queue *falqueue.Client) *Fal {
	return &Fal{queue: queue}
}

type tryOnInput struct {
	ModelImage       string `json:"model_image"`
	GarmentImage     string `json:"garment_image"`
	Category         string `json:"category"`
	Mode             string `json:"mode"`
	GarmentPhotoType string `json:"garment_photo_type"`
	ModerationLevel  string `json:"moderation_level"`
	Seed             int    `json:"seed"`
	NumSamples       int    `json:"num_samples"`
	SegmentationFree bool   `json:"segmentation_free"`
	OutputFormat     string `json:"output_format"`
}

type tryOnResult struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// TryOn runs one synthesis job and returns every output image URL.
func (f *Fal) TryOn(ctx context.Context, modelImageURL, garmentImageURL string) ([]string, error) {
	input := tryOnInput{
		ModelImage:       modelImageURL,
		GarmentImage:     garmentImageURL,
		Category:         "auto",
		Mode:             "balanced",
		GarmentPhotoType: "auto",
		ModerationLevel:  "permissive",
		Seed:             42,
		NumSamples:       2,
		SegmentationFree: true,
		OutputFormat:     "png",
	}
	var result tryOnResult
	if err := f.queue.Run(ctx, tryOnApp, input, &result); err != nil {
		return nil, fmt.Errorf("tryon: %w", err)
	}
	urls := make([]string, 0, len(result.Images))
	for _, img := range result.Images {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	if len(urls) == 0 {
		return nil, errors.New("tryon: no output images returned")
	}
	return urls, nil
}

var _ Synthesizer = (*Fal)(nil)
