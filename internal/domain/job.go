package domain

import "time"

// JobType enumerates the supported generation pipelines.
type JobType string

const (
	JobTypeShortVideo    JobType = "short_video"
	JobTypeAvatarVideo   JobType = "avatar_video"
	JobTypeWearableTryOn JobType = "wearable_tryon"
	JobTypeProduct3D     JobType = "product_3d"
)

// JobStatus enumerates the coarse job lifecycle states. Transitions are
// queued -> processing -> done|error; done and error are terminal.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether no further writes may occur for this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// Job tracks one unit of generation work from submission to its terminal
// outcome. RequestID is the sole external handle; Language is set only for
// the per-language video types.
type Job struct {
	RequestID       string
	Type            JobType
	Status          JobStatus
	CurrentStep     Step
	Language        string
	Description     string
	ImageURL        string
	CleanImageURL   string
	VideoURL        string
	MergedImageURLs []string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// JobUpdate is a partial patch applied to an existing job. Nil fields are
// left untouched.
type JobUpdate struct {
	Status          *JobStatus
	CurrentStep     *Step
	ImageURL        *string
	CleanImageURL   *string
	VideoURL        *string
	MergedImageURLs []string
	ErrorMessage    *string
}

// StatusPatch is shorthand for an update that only moves the status.
func StatusPatch(status JobStatus) JobUpdate {
	return JobUpdate{Status: &status}
}

// FailurePatch builds the terminal patch for a failed job. CurrentStep is
// left at the last committed checkpoint so pollers can see how far the job
// got before it failed.
func FailurePatch(msg string) JobUpdate {
	status := JobStatusError
	return JobUpdate{Status: &status, ErrorMessage: &msg}
}
