// Package video covers the moving-picture collaborators: animating a
// still image into a clip, stitching clips and audio into a captioned
// final cut, and synthesizing a talking-avatar video.
package video

import (
	"context"
	"errors"
	"fmt"

	"showcase/internal/providers/falqueue"
)

// Clip is one generated video segment.
type Clip struct {
	URL string
}

// Animator generates a video clip from a still image, a scene prompt, and
// a target duration in seconds.
type Animator interface {
	Animate(ctx context.Context, imageURL, prompt string, duration float64) (Clip, error)
}

// Composer merges paired video and audio clips into one video and burns
// captions into it.
type Composer interface {
	Compose(ctx context.Context, videoURLs, audioURLs []string) (string, error)
}

// Captioner burns captions into an already-complete video.
type Captioner interface {
	Caption(ctx context.Context, videoURL string) (string, error)
}

// AvatarSynthesizer renders a given avatar speaking the script.
type AvatarSynthesizer interface {
	SynthesizeAvatar(ctx context.Context, avatarID, script string) (Clip, error)
}

const (
	imageToVideoApp = "fal-ai/kling-video/v2.1/standard/image-to-video"
	composeApp      = "fal-ai/ffmpeg/compose"
	captionApp      = "fal-ai/auto-caption"
	avatarApp       = "veed/avatars/text-to-video"
)

// Fal implements the three video collaborators on fal.ai queue apps.
type Fal struct {
	queue *falqueue.Client
}

// NewFal builds the video adapter over a shared queue client.
func NewFal(queue *falqueue.Client) *Fal {
	return &Fal{queue: queue}
}

type animateInput struct {
	ImageURL string  `json:"image_url"`
	Prompt   string  `json:"prompt"`
	Duration float64 `json:"duration"`
}

type videoResult struct {
	Output struct {
		VideoURL string `json:"video_url"`
	} `json:"output"`
}

// Animate runs one image-to-video job.
func (f *Fal) Animate(ctx context.Context, imageURL, prompt string, duration float64) (Clip, error) {
	var result videoResult
	input := animateInput{ImageURL: imageURL, Prompt: prompt, Duration: duration}
	if err := f.queue.Run(ctx, imageToVideoApp, input, &result); err != nil {
		return Clip{}, fmt.Errorf("video: animate: %w", err)
	}
	if result.Output.VideoURL == "" {
		return Clip{}, errors.New("video: animate: no video url returned")
	}
	return Clip{URL: result.Output.VideoURL}, nil
}

type composeTrack struct {
	Video string `json:"video"`
	Audio string `json:"audio"`
}

type composeInput struct {
	Videos []composeTrack `json:"videos"`
	Format string         `json:"format"`
}

type captionInput struct {
	VideoURL string `json:"video_url"`
}

// Compose pairs each video with its audio track, merges them into one mp4,
// then captions the merged cut. The caller must supply matching track
// counts.
func (f *Fal) Compose(ctx context.Context, videoURLs, audioURLs []string) (string, error) {
	if len(videoURLs) == 0 || len(videoURLs) != len(audioURLs) {
		return "", fmt.Errorf("video: compose: %d video and %d audio tracks", len(videoURLs), len(audioURLs))
	}
	tracks := make([]composeTrack, len(videoURLs))
	for i := range videoURLs {
		tracks[i] = composeTrack{Video: videoURLs[i], Audio: audioURLs[i]}
	}
	var merged videoResult
	if err := f.queue.Run(ctx, composeApp, composeInput{Videos: tracks, Format: "mp4"}, &merged); err != nil {
		return "", fmt.Errorf("video: compose: %w", err)
	}
	if merged.Output.VideoURL == "" {
		return "", errors.New("video: compose: no merged video url returned")
	}
	return f.Caption(ctx, merged.Output.VideoURL)
}

// Caption burns captions into the video and returns the captioned cut.
func (f *Fal) Caption(ctx context.Context, videoURL string) (string, error) {
	var captioned videoResult
	if err := f.queue.Run(ctx, captionApp, captionInput{VideoURL: videoURL}, &captioned); err != nil {
		return "", fmt.Errorf("video: caption: %w", err)
	}
	if captioned.Output.VideoURL == "" {
		return "", errors.New("video: caption: no captioned video url returned")
	}
	return captioned.Output.VideoURL, nil
}

type avatarInput struct {
	AvatarID string `json:"avatar_id"`
	Text     string `json:"text"`
}

type avatarResult struct {
	Video struct {
		URL string `json:"url"`
	} `json:"video"`
	Output struct {
		VideoURL string `json:"video_url"`
	} `json:"output"`
}

// SynthesizeAvatar renders the avatar speaking the script.
func (f *Fal) SynthesizeAvatar(ctx context.Context, avatarID, script string) (Clip, error) {
	var result avatarResult
	if err := f.queue.Run(ctx, avatarApp, avatarInput{AvatarID: avatarID, Text: script}, &result); err != nil {
		return Clip{}, fmt.Errorf("video: avatar: %w", err)
	}
	url := result.Video.URL
	if url == "" {
		url = result.Output.VideoURL
	}
	if url == "" {
		return Clip{}, errors.New("video: avatar: no video url returned")
	}
	return Clip{URL: url}, nil
}

var (
	_ Animator          = (*Fal)(nil)
	_ Composer          = (*Fal)(nil)
	_ Captioner         = (*Fal)(nil)
	_ AvatarSynthesizer = (*Fal)(nil)
)
