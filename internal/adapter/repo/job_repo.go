package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"showcase/internal/domain"
)

const uniqueViolation = "23505"

// querier is the slice of the pgx pool the repository uses. Narrowing it
// keeps the repository testable without a live database.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobRepositoryPG implements domain.JobRepository on PostgreSQL.
type JobRepositoryPG struct {
	db querier
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{db: pool}
}

// Create inserts a new job record. A reused request id yields
// domain.ErrDuplicateRequest instead of overwriting.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (request_id, type, status, current_step, language, description, image_url, clean_image_url, video_url, merged_image_urls, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err := r.db.Exec(ctx, query,
		job.RequestID,
		job.Type,
		job.Status,
		job.CurrentStep,
		job.Language,
		job.Description,
		job.ImageURL,
		job.CleanImageURL,
		job.VideoURL,
		// A nil slice encodes as SQL NULL, which the NOT NULL column
		// rejects; always insert a real array.
		nonNilStrings(job.MergedImageURLs),
		job.ErrorMessage,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateRequest
		}
		return err
	}
	return nil
}

// Update merges the patch into an existing record and bumps updated_at.
func (r *JobRepositoryPG) Update(ctx context.Context, requestID string, patch domain.JobUpdate) error {
	query := `
UPDATE jobs
SET status = COALESCE($2, status),
    current_step = COALESCE($3, current_step),
    image_url = COALESCE($4, image_url),
    clean_image_url = COALESCE($5, clean_image_url),
    video_url = COALESCE($6, video_url),
    merged_image_urls = COALESCE($7, merged_image_urls),
    error_message = COALESCE($8, error_message),
    updated_at = NOW()
WHERE request_id = $1;
`
	tag, err := r.db.Exec(ctx, query,
		requestID,
		patch.Status,
		patch.CurrentStep,
		patch.ImageURL,
		patch.CleanImageURL,
		patch.VideoURL,
		nullableStrings(patch.MergedImageURLs),
		patch.ErrorMessage,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const jobColumns = `request_id, type, status, current_step, language, description, image_url, clean_image_url, video_url, merged_image_urls, error_message, created_at, updated_at`

// GetByRequestID fetches a job by its request identifier.
func (r *JobRepositoryPG) GetByRequestID(ctx context.Context, requestID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE request_id = $1;`
	row := r.db.QueryRow(ctx, query, requestID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListRecent returns the newest jobs first.
func (r *JobRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC LIMIT $1;`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	if err := row.Scan(
		&job.RequestID,
		&job.Type,
		&job.Status,
		&job.CurrentStep,
		&job.Language,
		&job.Description,
		&job.ImageURL,
		&job.CleanImageURL,
		&job.VideoURL,
		&job.MergedImageURLs,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

// nullableStrings maps an absent slice to NULL so the COALESCE update
// leaves the stored value alone.
func nullableStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
