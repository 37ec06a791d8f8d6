// Package model3d reconstructs a textured 3D mesh from a product photo.
package model3d

import (
	"context"
	"errors"
	"fmt"

	"showcase/internal/providers/falqueue"
)

// Model is the synthesized mesh plus its texture assets.
type Model struct {
	MeshURL     string
	TextureURLs []string
}

// Synthesizer produces a 3D model from a single product image.
type Synthesizer interface {
	Synthesize(ctx context.Context, imageURL string) (Model, error)
}

const rodinApp = "fal-ai/hyper3d/rodin"

// Fal implements Synthesizer on the hyper3d rodin queue app.
type Fal struct {
	queue *falqueue.Client
}

// NewFal builds the 3D adapter over a shared queue client.
func NewFal(queue *falqueue.Client) *Fal {
	return &Fal{queue: queue}
}

type rodinInput struct {
	InputImageURLs     []string `json:"input_image_urls"`
	ConditionMode      string   `json:"condition_mode"`
	GeometryFileFormat string   `json:"geometry_file_format"`
	Material           string   `json:"material"`
	Quality            string   `json:"quality"`
	Tier               string   `json:"tier"`
}

type rodinResult struct {
	ModelMesh struct {
		URL string `json:"url"`
	} `json:"model_mesh"`
	Textures []struct {
		URL string `json:"url"`
	} `json:"textures"`
}

// Synthesize runs one mesh reconstruction job.
func (f *Fal) Synthesize(ctx context.Context, imageURL string) (Model, error) {
	input := rodinInput{
		InputImageURLs:     []string{imageURL},
		ConditionMode:      "concat",
		GeometryFileFormat: "glb",
		Material:           "Shaded",
		Quality:            "medium",
		Tier:               "Regular",
	}
	var result rodinResult
	if err := f.queue.Run(ctx, rodinApp, input, &result); err != nil {
		return Model{}, fmt.Errorf("model3d: %w", err)
	}
	if result.ModelMesh.URL == "" {
		return Model{}, errors.New("model3d: no mesh url returned")
	}
	model := Model{MeshURL: result.ModelMesh.URL}
	for _, tex := range result.Textures {
		if tex.URL != "" {
			model.TextureURLs = append(model.TextureURLs, tex.URL)
		}
	}
	return model, nil
}

var _ Synthesizer = (*Fal)(nil)
