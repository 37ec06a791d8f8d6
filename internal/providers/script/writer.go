// Package script generates and translates the text artifacts of a video
// pipeline: cinematic scene prompts, matching voiceover scripts, and
// single-take avatar scripts.
package script

import "context"

// Writer is the contract the pipeline engine needs from the copywriting
// collaborator.
type Writer interface {
	// ScenePrompts writes the visual scene descriptions for a product.
	ScenePrompts(ctx context.Context, description string) ([]string, error)
	// SceneScripts writes one voiceover per scene, same order and
	// cardinality as the input.
	SceneScripts(ctx context.Context, scenes []string) ([]string, error)
	// Translate translates each script part into the target language,
	// preserving order and cardinality.
	Translate(ctx context.Context, parts []string, lang string) ([]string, error)
	// AvatarScript writes a single short spoken-to-camera script in the
	// target language.
	AvatarScript(ctx context.Context, description, lang string) (string, error)
}
