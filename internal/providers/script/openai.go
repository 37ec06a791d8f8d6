package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ErrMissingAPIKey indicates the writer was configured without credentials.
var ErrMissingAPIKey = errors.New("script: openai api key is required")

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"
	defaultTimeout = 60 * time.Second

	// sceneCount is the number of scenes (and therefore voiceover parts
	// and video clips) in a short-form ad.
	sceneCount = 3
)

// OpenAIOptions configures the OpenAI-backed writer.
type OpenAIOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIWriter implements Writer on top of the chat completions API.
type OpenAIWriter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIWriter validates the options and builds a writer.
func NewOpenAIWriter(opts OpenAIOptions) (*OpenAIWriter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &OpenAIWriter{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
	}, nil
}

const scenePromptTemplate = `You're a world-class ad director. Based on the product description below, write %d distinct marketing scenes for a 30-second video ad.

Each scene must:
- Be realistic and emotionally resonant
- Showcase one key benefit of the product
- Describe the visual setting in a short, cinematic way
- Be easy to visualize for video generation

Product: %q

Write the %d scenes as a numbered list.`

// ScenePrompts asks for sceneCount numbered scenes and parses them out of
// the completion text.
func (w *OpenAIWriter) ScenePrompts(ctx context.Context, description string) ([]string, error) {
	prompt := fmt.Sprintf(scenePromptTemplate, sceneCount, description, sceneCount)
	text, err := w.complete(ctx, prompt, 0.7)
	if err != nil {
		return nil, fmt.Errorf("script: scene prompts: %w", err)
	}
	scenes := parseNumberedLines(text, sceneCount)
	if len(scenes) == 0 {
		return nil, errors.New("script: scene prompts: empty completion")
	}
	return scenes, nil
}

const sceneScriptTemplate = `You're a world-class short-form copywriter creating viral 30-second video ads.

Write one short voiceover script per scene to match the visuals below.

Each voiceover must:
- Be 2-3 short lines (max ~30 words)
- Hook the viewer instantly in line one
- Match the vibe and action of the scene
- Sound like a real creator talking to the camera
- Avoid buzzwords, cliches, or naming the product

Scenes:
%s

Write the voiceover scripts as a numbered list.`

// SceneScripts asks for one voiceover per scene. The response must cover
// every scene; a short completion is a failure.
func (w *OpenAIWriter) SceneScripts(ctx context.Context, scenes []string) ([]string, error) {
	if len(scenes) == 0 {
		return nil, errors.New("script: scene scripts: no scenes")
	}
	var numbered strings.Builder
	for i, scene := range scenes {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, scene)
	}
	text, err := w.complete(ctx, fmt.Sprintf(sceneScriptTemplate, numbered.String()), 0.7)
	if err != nil {
		return nil, fmt.Errorf("script: scene scripts: %w", err)
	}
	parts := parseNumberedLines(text, len(scenes))
	if len(parts) != len(scenes) {
		return nil, fmt.Errorf("script: scene scripts: got %d parts for %d scenes", len(parts), len(scenes))
	}
	return parts, nil
}

// Translate translates each part individually so cardinality is preserved
// by construction.
func (w *OpenAIWriter) Translate(ctx context.Context, parts []string, lang string) ([]string, error) {
	translated := make([]string, 0, len(parts))
	for _, part := range parts {
		prompt := fmt.Sprintf("Only translate the following sentence into %s. Do not explain anything. Just return the translated sentence:\n\n%q", lang, part)
		text, err := w.complete(ctx, prompt, 0)
		if err != nil {
			return nil, fmt.Errorf("script: translate: %w", err)
		}
		text = strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
		if text == "" {
			return nil, errors.New("script: translate: empty completion")
		}
		translated = append(translated, text)
	}
	return translated, nil
}

const avatarScriptTemplate = `You're a world-class short-form scriptwriter creating viral vertical video scripts for creators and brands.

Write a compelling 10-second script in %s that:
- Sounds like a real person speaking to camera
- Opens with a strong hook or insight
- Aligns with this message or idea: %q
- Limit to 3-4 natural spoken sentences, under 30 words total
- Respond only with the script text in %s, no explanations or extra text.

Script:`

// AvatarScript writes the single spoken script for an avatar video.
func (w *OpenAIWriter) AvatarScript(ctx context.Context, description, lang string) (string, error) {
	text, err := w.complete(ctx, fmt.Sprintf(avatarScriptTemplate, lang, description, lang), 0.7)
	if err != nil {
		return "", fmt.Errorf("script: avatar script: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("script: avatar script: empty completion")
	}
	return text, nil
}

func (w *OpenAIWriter) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	payload := chatRequest{
		Model:       w.model,
		Temperature: temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", w.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	res, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return decoded.Choices[0].Message.Content, nil
}

var (
	listPrefixRe    = regexp.MustCompile(`^\d+[.)]\s*`)
	voiceoverLabels = regexp.MustCompile(`(?i)^(voiceover|scene)\s*[:.]\s*`)
)

// parseNumberedLines extracts up to max entries from a numbered-list
// completion, stripping list markers and "Voiceover:"/"Scene:" labels.
func parseNumberedLines(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = listPrefixRe.ReplaceAllString(line, "")
		line = voiceoverLabels.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}

var _ Writer = (*OpenAIWriter)(nil)
