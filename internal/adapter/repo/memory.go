package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"showcase/internal/domain"
)

// JobRepositoryMemory is an in-memory domain.JobRepository with the same
// duplicate and not-found semantics as the PostgreSQL implementation. It
// backs tests and credential-less development runs.
type JobRepositoryMemory struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

// NewMemoryJobRepository creates an empty in-memory repository.
func NewMemoryJobRepository() *JobRepositoryMemory {
	return &JobRepositoryMemory{jobs: make(map[string]*domain.Job), now: time.Now}
}

// Create inserts a new record, rejecting duplicates.
func (r *JobRepositoryMemory) Create(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.RequestID]; exists {
		return domain.ErrDuplicateRequest
	}
	stored := cloneJob(job)
	now := r.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.jobs[job.RequestID] = stored
	return nil
}

// Update merges the patch into an existing record.
func (r *JobRepositoryMemory) Update(ctx context.Context, requestID string, patch domain.JobUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, exists := r.jobs[requestID]
	if !exists {
		return domain.ErrNotFound
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.CurrentStep != nil {
		job.CurrentStep = *patch.CurrentStep
	}
	if patch.ImageURL != nil {
		job.ImageURL = *patch.ImageURL
	}
	if patch.CleanImageURL != nil {
		job.CleanImageURL = *patch.CleanImageURL
	}
	if patch.VideoURL != nil {
		job.VideoURL = *patch.VideoURL
	}
	if len(patch.MergedImageURLs) > 0 {
		job.MergedImageURLs = append([]string(nil), patch.MergedImageURLs...)
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}
	job.UpdatedAt = r.now()
	return nil
}

// GetByRequestID fetches a copy of the stored job.
func (r *JobRepositoryMemory) GetByRequestID(ctx context.Context, requestID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, exists := r.jobs[requestID]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return cloneJob(job), nil
}

// ListRecent returns the newest jobs first.
func (r *JobRepositoryMemory) ListRecent(ctx context.Context, limit int) ([]domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *cloneJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].RequestID > jobs[j].RequestID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func cloneJob(job *domain.Job) *domain.Job {
	copied := *job
	if job.MergedImageURLs != nil {
		copied.MergedImageURLs = append([]string(nil), job.MergedImageURLs...)
	}
	return &copied
}

var _ domain.JobRepository = (*JobRepositoryMemory)(nil)
