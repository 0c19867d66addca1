package model

import "time"

// SubmissionStatus represents the current state of a submission.
type SubmissionStatus string

const (
	StatusQueued           SubmissionStatus = "queued"
	StatusProcessing       SubmissionStatus = "processing"
	StatusComplete         SubmissionStatus = "complete"
	StatusFailed           SubmissionStatus = "failed"
	StatusInsufficientData SubmissionStatus = "insufficient_data"
	StatusManualReview     SubmissionStatus = "manual_review"
)

// transitions is the legal forward edge set of the submission state machine.
// Terminal states have no outgoing edges.
var transitions = map[SubmissionStatus][]SubmissionStatus{
	StatusQueued:     {StatusProcessing, StatusManualReview},
	StatusProcessing: {StatusComplete, StatusFailed, StatusInsufficientData},
}

// CanTransition reports whether moving a submission from one status to
// another is legal. Statuses only move forward; terminal states never leave.
func CanTransition(from, to SubmissionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automated transition is possible.
func (s SubmissionStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status value.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusComplete,
		StatusFailed, StatusInsufficientData, StatusManualReview:
		return true
	}
	return false
}

// Submission is one intake request. Created once, mutated only through
// status transitions, never deleted. job_id is the polling handle and
// auth_token the capability for reading the finished profile; the pair
// is never reused.
type Submission struct {
	ID          int64            `json:"id"`
	CompanyName string           `json:"company_name"`
	CompanyURL  string           `json:"company_url"`
	Email       string           `json:"email"`
	JobID       string           `json:"job_id"`
	AuthToken   string           `json:"auth_token"`
	Status      SubmissionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// TokenTTL is how long an auth token grants access to a finished profile.
const TokenTTL = 7 * 24 * time.Hour

// TokenExpired reports whether the submission's auth token is past its
// validity window at the given instant.
func (s *Submission) TokenExpired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > TokenTTL
}
