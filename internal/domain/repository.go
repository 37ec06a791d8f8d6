package domain

import "context"

// JobRepository defines persistence for job records. It is the single
// source of truth for status queries; the pipeline engine is its only
// writer after creation.
type JobRepository interface {
	// Create inserts a new record and rejects an already-used request id
	// with ErrDuplicateRequest.
	Create(ctx context.Context, job *Job) error
	// Update merges the patch into an existing record and bumps its
	// updated_at. Unknown request ids yield ErrNotFound.
	Update(ctx context.Context, requestID string, patch JobUpdate) error
	GetByRequestID(ctx context.Context, requestID string) (*Job, error)
	ListRecent(ctx context.Context, limit int) ([]Job, error)
}
