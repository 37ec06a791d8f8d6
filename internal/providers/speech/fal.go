// Package speech turns voiceover script parts into audio clips.
package speech

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/language"

	"showcase/internal/providers/falqueue"
)

// Clip is one synthesized audio segment.
type Clip struct {
	URL      string
	Duration float64 // seconds
}

// Synthesizer produces one clip per script part, in order.
type Synthesizer interface {
	Synthesize(ctx context.Context, parts []string, lang string) ([]Clip, error)
}

const (
	ttsApp = "fal-ai/elevenlabs/tts/multilingual-v2"

	defaultVoice = "Rachel"

	// fallbackDuration is assumed when the provider omits the clip
	// length; downstream clips need a duration to pace the video.
	fallbackDuration = 10
)

var voiceTags = []language.Tag{
	language.English,
	language.Hindi,
	language.Chinese,
	language.Japanese,
	language.Korean,
	language.German,
	language.French,
	language.Spanish,
	language.Portuguese,
	language.Italian,
	language.Russian,
}

var voiceByTag = map[language.Tag]string{
	language.English:    "Rachel",
	language.Hindi:      "Ved",
	language.Chinese:    "Yujin",
	language.Japanese:   "Keisuke",
	language.Korean:     "Jin",
	language.German:     "Arnold",
	language.French:     "Charlotte",
	language.Spanish:    "Diego",
	language.Portuguese: "Mateus",
	language.Italian:    "Luca",
	language.Russian:    "Dmitry",
}

var voiceMatcher = language.NewMatcher(voiceTags)

// VoiceFor picks the synthesis voice for a language code. Unknown or
// unparsable codes fall back to the default English voice.
func VoiceFor(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return defaultVoice
	}
	_, index, conf := voiceMatcher.Match(tag)
	if conf == language.No {
		return defaultVoice
	}
	if voice, ok := voiceByTag[voiceTags[index]]; ok {
		return voice
	}
	return defaultVoice
}

// FalSynthesizer implements Synthesizer on the fal.ai elevenlabs queue.
type FalSynthesizer struct {
	queue *falqueue.Client
}

// NewFalSynthesizer builds a synthesizer over a shared queue client.
func NewFalSynthesizer(queue *falqueue.Client) *FalSynthesizer {
	return &FalSynthesizer{queue: queue}
}

type ttsInput struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

type ttsResult struct {
	Output struct {
		AudioURL string  `json:"audio_url"`
		Duration float64 `json:"duration"`
	} `json:"output"`
}

// Synthesize runs one TTS job per part. Parts are processed sequentially
// so clip order matches script order.
func (s *FalSynthesizer) Synthesize(ctx context.Context, parts []string, lang string) ([]Clip, error) {
	if len(parts) == 0 {
		return nil, errors.New("speech: no script parts")
	}
	voice := VoiceFor(lang)
	clips := make([]Clip, 0, len(parts))
	for i, part := range parts {
		var result ttsResult
		input := ttsInput{Text: part, Voice: voice, Language: lang}
		if err := s.queue.Run(ctx, ttsApp, input, &result); err != nil {
			return nil, fmt.Errorf("speech: part %d: %w", i+1, err)
		}
		if result.Output.AudioURL == "" {
			return nil, fmt.Errorf("speech: part %d: no audio url returned", i+1)
		}
		duration := result.Output.Duration
		if duration <= 0 {
			duration = fallbackDuration
		}
		clips = append(clips, Clip{URL: result.Output.AudioURL, Duration: duration})
	}
	return clips, nil
}

var _ Synthesizer = (*FalSynthesizer)(nil)
