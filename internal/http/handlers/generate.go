package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"showcase/internal/domain"
	"showcase/internal/pipeline"
)

// maxLanguagesPerRequest caps the fan-out size of one submission.
const maxLanguagesPerRequest = 2

type generateShortRequest struct {
	ImageURL    string   `json:"imageUrl" validate:"omitempty,url"`
	Image       string   `json:"image"`
	Description string   `json:"description" validate:"required"`
	Languages   []string `json:"languages" validate:"required,min=1"`
}

type languageResult struct {
	Language  string `json:"language"`
	Status    string `json:"status"`
	RequestID string `json:"requestId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GenerateShort accepts a short-form video request and queues one job per
// language. The response settles every language: a failure to queue one
// never hides the handles of the others.
func (a *App) GenerateShort(w http.ResponseWriter, r *http.Request) {
	var req generateShortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}
	langs, err := normalizeLanguages(req.Languages)
	if err != nil {
		a.fail(w, err)
		return
	}

	in := pipeline.ShortVideoInput{
		ImageURL:    req.ImageURL,
		Description: req.Description,
		Languages:   langs,
	}
	if req.ImageURL == "" {
		data, contentType, err := decodeImagePayload(req.Image)
		if err != nil {
			a.fail(w, err)
			return
		}
		in.ImageData = data
		in.ImageContentType = contentType
	}

	outcomes, err := a.Engine.SubmitShortVideo(r.Context(), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, languageResults(outcomes))
}

func languageResults(outcomes []pipeline.LanguageOutcome) []languageResult {
	results := make([]languageResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			results = append(results, languageResult{Language: o.Language, Status: "error", Error: o.Err.Error()})
			continue
		}
		results = append(results, languageResult{Language: o.Language, Status: "success", RequestID: o.RequestID})
	}
	return results
}

// normalizeLanguages canonicalizes BCP-47 tags, drops duplicates, and
// enforces the per-request cap.
func normalizeLanguages(langs []string) ([]string, error) {
	if len(langs) > maxLanguagesPerRequest {
		return nil, fmt.Errorf("%w: at most %d languages per request", domain.ErrInvalidInput, maxLanguagesPerRequest)
	}
	out := make([]string, 0, len(langs))
	seen := make(map[string]struct{}, len(langs))
	for _, raw := range langs {
		tag, err := language.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: unsupported language %q", domain.ErrInvalidInput, raw)
		}
		canonical := tag.String()
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one language is required", domain.ErrInvalidInput)
	}
	return out, nil
}

// decodeImagePayload decodes an inline base64 image, with or without a
// data-URI prefix.
func decodeImagePayload(payload string) ([]byte, string, error) {
	if payload == "" {
		return nil, "", fmt.Errorf("%w: an image url or inline image is required", domain.ErrInvalidInput)
	}
	contentType := "image/png"
	if strings.HasPrefix(payload, "data:") {
		meta, rest, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, "", fmt.Errorf("%w: malformed data uri", domain.ErrInvalidInput)
		}
		meta = strings.TrimPrefix(meta, "data:")
		if mime, _, found := strings.Cut(meta, ";"); found && mime != "" {
			contentType = mime
		}
		payload = rest
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: image is not valid base64", domain.ErrInvalidInput)
	}
	return data, contentType, nil
}
