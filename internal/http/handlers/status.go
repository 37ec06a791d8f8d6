package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"showcase/internal/domain"
)

// jobsListLimit bounds the recent-jobs listing.
const jobsListLimit = 50

type jobSnapshot struct {
	RequestID       string    `json:"requestId"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	CurrentStep     string    `json:"currentStep"`
	Language        string    `json:"language,omitempty"`
	Description     string    `json:"description,omitempty"`
	VideoURL        string    `json:"videoUrl,omitempty"`
	MergedImageURLs []string  `json:"mergedImageUrls,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func snapshotOf(job *domain.Job) jobSnapshot {
	return jobSnapshot{
		RequestID:       job.RequestID,
		Type:            string(job.Type),
		Status:          string(job.Status),
		CurrentStep:     string(job.CurrentStep),
		Language:        job.Language,
		Description:     job.Description,
		VideoURL:        job.VideoURL,
		MergedImageURLs: job.MergedImageURLs,
		Error:           job.ErrorMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

// Status returns the stored snapshot of one job. Unknown ids are a 404; a
// job that failed still answers 200 with status "error".
func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestId")
	job, err := a.Repo.GetByRequestID(r.Context(), requestID)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, snapshotOf(job))
}

// Jobs lists the most recently created jobs.
func (a *App) Jobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Repo.ListRecent(r.Context(), jobsListLimit)
	if err != nil {
		a.fail(w, err)
		return
	}
	snapshots := make([]jobSnapshot, 0, len(jobs))
	for i := range jobs {
		snapshots = append(snapshots, snapshotOf(&jobs[i]))
	}
	a.json(w, http.StatusOK, snapshots)
}
