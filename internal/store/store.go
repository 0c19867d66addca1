package store

import (
	"context"
	"time"

	"github.com/harnessai/orchestrator/internal/model"
)

// NewSubmission carries the fields needed to create a submission record.
// job_id and auth_token are generated by the caller at intake time.
type NewSubmission struct {
	CompanyName string
	CompanyURL  string
	Email       string
	JobID       string
	AuthToken   string
	Status      model.SubmissionStatus
}

// Store defines the persistence interface for the orchestrator.
type Store interface {
	// Submissions
	CreateSubmission(ctx context.Context, sub NewSubmission) (*model.Submission, error)
	GetSubmissionByJobID(ctx context.Context, jobID string) (*model.Submission, error)
	GetSubmissionByToken(ctx context.Context, token string) (*model.Submission, error)
	// TransitionSubmission moves a submission from one status to another,
	// enforcing the state machine. completedAt is set on pipeline-terminal
	// states. It fails if the submission is not currently in `from`.
	TransitionSubmission(ctx context.Context, jobID string, from, to model.SubmissionStatus, completedAt *time.Time) error

	// Profiles
	CreateProfile(ctx context.Context, p *model.Profile) (*model.Profile, error)
	GetProfileBySubmissionID(ctx context.Context, submissionID int64) (*model.Profile, error)

	// Feedback
	CreateFeedback(ctx context.Context, profileID int64, rating int, comment string) (*model.Feedback, error)

	// Profile cache: normalized company URL → job_id of the most recent
	// completed submission. Lookup misses return ("", nil).
	GetCachedJobID(ctx context.Context, companyURL string) (string, error)
	SetCachedJobID(ctx context.Context, companyURL, jobID string, ttl time.Duration) error
	DeleteExpiredCache(ctx context.Context) (int, error)

	// Rate limit counters, fixed window keyed by client IP.
	GetCounter(ctx context.Context, key string) (int, error)
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
