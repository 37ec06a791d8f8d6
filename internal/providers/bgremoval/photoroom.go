// Package bgremoval cuts the background out of a product photo.
package bgremoval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ErrMissingAPIKey indicates the remover was configured without credentials.
var ErrMissingAPIKey = errors.New("bgremoval: api key is required")

// Remover removes the background from the image behind imageURL and
// returns the cleaned image bytes (PNG with transparency).
type Remover interface {
	Remove(ctx context.Context, imageURL string) ([]byte, error)
}

const defaultBaseURL = "https://sdk.photoroom.com/v1"

// PhotoRoomOptions configures the PhotoRoom segmentation client.
type PhotoRoomOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// PhotoRoom implements Remover against the PhotoRoom segment endpoint.
type PhotoRoom struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewPhotoRoom validates the options and builds the client.
func NewPhotoRoom(opts PhotoRoomOptions) (*PhotoRoom, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &PhotoRoom{apiKey: strings.TrimSpace(opts.APIKey), baseURL: baseURL, client: client}, nil
}

// Remove downloads the source image and sends it to the segment endpoint
// as a multipart form.
func (p *PhotoRoom) Remove(ctx context.Context, imageURL string) ([]byte, error) {
	source, err := p.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("image_file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("bgremoval: build form: %w", err)
	}
	if _, err := part.Write(source); err != nil {
		return nil, fmt.Errorf("bgremoval: build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("bgremoval: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/segment", &form)
	if err != nil {
		return nil, fmt.Errorf("bgremoval: build request: %w", err)
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bgremoval: segment request: %w", err)
	}
	defer res.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("bgremoval: read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bgremoval: segment returned status %d", res.StatusCode)
	}
	if len(payload) == 0 {
		return nil, errors.New("bgremoval: segment returned empty image")
	}
	return payload, nil
}

func (p *PhotoRoom) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bgremoval: build download request: %w", err)
	}
	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bgremoval: download source image: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bgremoval: source image returned status %d", res.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("bgremoval: read source image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("bgremoval: source image is empty")
	}
	return data, nil
}

var _ Remover = (*PhotoRoom)(nil)
