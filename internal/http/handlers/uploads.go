package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"showcase/internal/domain"
	"showcase/internal/pipeline"
)

const maxUploadBytes = 20 << 20 // per request

type queuedResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// GenerateWearable accepts a multipart form with a model photo, a garment
// photo and a description, and queues one try-on job.
func (a *App) GenerateWearable(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	modelImage, contentType, err := formFile(r, "modelImage")
	if err != nil {
		a.fail(w, err)
		return
	}
	garmentImage, _, err := formFile(r, "garmentImage")
	if err != nil {
		a.fail(w, err)
		return
	}
	description := strings.TrimSpace(r.FormValue("description"))

	requestID, err := a.Engine.SubmitTryOn(r.Context(), pipeline.TryOnInput{
		ModelImage:       modelImage,
		GarmentImage:     garmentImage,
		ImageContentType: contentType,
		Description:      description,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, queuedResponse{RequestID: requestID, Status: "queued"})
}

// GenerateProduct accepts a multipart form with one product photo and
// queues a 3D reconstruction job.
func (a *App) GenerateProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	image, contentType, err := formFile(r, "image")
	if err != nil {
		a.fail(w, err)
		return
	}

	requestID, err := a.Engine.SubmitProduct3D(r.Context(), pipeline.Product3DInput{
		Image:            image,
		ImageContentType: contentType,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, queuedResponse{RequestID: requestID, Status: "queued"})
}

func formFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%w: missing file %q", domain.ErrInvalidInput, field)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read file %q: %w", field, err)
	}
	if len(data) > maxUploadBytes {
		return nil, "", fmt.Errorf("%w: file %q exceeds the upload limit", domain.ErrInvalidInput, field)
	}
	return data, header.Header.Get("Content-Type"), nil
}
