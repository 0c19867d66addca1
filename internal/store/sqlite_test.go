package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harnessai/orchestrator/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestSubmission(jobID, token string) NewSubmission {
	return NewSubmission{
		CompanyName: "Acme Inc",
		CompanyURL:  "https://acme.com",
		Email:       "ops@acme.com",
		JobID:       jobID,
		AuthToken:   token,
		Status:      model.StatusQueued,
	}
}

func TestSQLiteStore_SubmissionRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := s.CreateSubmission(ctx, newTestSubmission("job-1", "tok-1"))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	byJob, err := s.GetSubmissionByJobID(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, byJob)
	assert.Equal(t, "Acme Inc", byJob.CompanyName)
	assert.Equal(t, model.StatusQueued, byJob.Status)
	assert.Nil(t, byJob.CompletedAt)

	byToken, err := s.GetSubmissionByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, byJob.ID, byToken.ID)

	missing, err := s.GetSubmissionByJobID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_TransitionSubmission(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.CreateSubmission(ctx, newTestSubmission("job-1", "tok-1"))
	require.NoError(t, err)

	require.NoError(t, s.TransitionSubmission(ctx, "job-1", model.StatusQueued, model.StatusProcessing, nil))

	now := time.Now().UTC()
	require.NoError(t, s.TransitionSubmission(ctx, "job-1", model.StatusProcessing, model.StatusComplete, &now))

	sub, err := s.GetSubmissionByJobID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, sub.Status)
	require.NotNil(t, sub.CompletedAt)

	// Terminal states do not move again.
	err = s.TransitionSubmission(ctx, "job-1", model.StatusComplete, model.StatusProcessing, nil)
	assert.Error(t, err)
}

func TestSQLiteStore_TransitionSubmission_StaleFrom(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.CreateSubmission(ctx, newTestSubmission("job-1", "tok-1"))
	require.NoError(t, err)
	require.NoError(t, s.TransitionSubmission(ctx, "job-1", model.StatusQueued, model.StatusProcessing, nil))

	// Second worker racing with the same queued->processing claim loses.
	err = s.TransitionSubmission(ctx, "job-1", model.StatusQueued, model.StatusProcessing, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in status")
}

func TestSQLiteStore_ProfileRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	sub, err := s.CreateSubmission(ctx, newTestSubmission("job-1", "tok-1"))
	require.NoError(t, err)

	profile := &model.Profile{
		SubmissionID: sub.ID,
		Payload: model.OperationalProfile{
			CompanyName:            "Acme Inc",
			IndustryClassification: "Manufacturing",
			DataConfidence: model.DataConfidence{
				OverallScore: "High",
				SourcesUsed:  []string{"Website Content", "Technology Stack"},
				// The narrative's claim; must not leak into the column.
				SourcesUnavailable: []string{"Satellite Imagery"},
			},
		},
		SourcesUsed:        []string{"site_scraper", "tech_detector"},
		SourcesUnavailable: []string{"Job Postings"},
		ConfidenceScore:    "High",
		ValidationIssues:   []string{"unverified technology claim: Kubernetes"},
	}

	created, err := s.CreateProfile(ctx, profile)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := s.GetProfileBySubmissionID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme Inc", got.Payload.CompanyName)
	assert.Equal(t, []string{"site_scraper", "tech_detector"}, got.SourcesUsed)
	assert.Equal(t, []string{"Job Postings"}, got.SourcesUnavailable,
		"column carries the scorer's list, not the payload claim")
	assert.Equal(t, []string{"unverified technology claim: Kubernetes"}, got.ValidationIssues)
	assert.Equal(t, "High", got.ConfidenceScore)

	missing, err := s.GetProfileBySubmissionID(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_Feedback(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	sub, err := s.CreateSubmission(ctx, newTestSubmission("job-1", "tok-1"))
	require.NoError(t, err)
	profile, err := s.CreateProfile(ctx, &model.Profile{SubmissionID: sub.ID})
	require.NoError(t, err)

	fb, err := s.CreateFeedback(ctx, profile.ID, 5, "spot on")
	require.NoError(t, err)
	assert.NotZero(t, fb.ID)
	assert.Equal(t, 5, fb.Rating)

	// Rating outside 1..5 violates the check constraint.
	_, err = s.CreateFeedback(ctx, profile.ID, 6, "")
	assert.Error(t, err)
}

func TestSQLiteStore_ProfileCache(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.CreateSubmission(ctx, newTestSubmission("job-1", "tok-1"))
	require.NoError(t, err)

	require.NoError(t, s.SetCachedJobID(ctx, "https://acme.com", "job-1", 24*time.Hour))

	// The cached submission is still queued, so the cache is not served.
	jobID, err := s.GetCachedJobID(ctx, "https://acme.com")
	require.NoError(t, err)
	assert.Empty(t, jobID)

	require.NoError(t, s.TransitionSubmission(ctx, "job-1", model.StatusQueued, model.StatusProcessing, nil))
	now := time.Now().UTC()
	require.NoError(t, s.TransitionSubmission(ctx, "job-1", model.StatusProcessing, model.StatusComplete, &now))

	jobID, err = s.GetCachedJobID(ctx, "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	// An expired entry misses and is swept.
	require.NoError(t, s.SetCachedJobID(ctx, "https://acme.com", "job-1", -time.Minute))
	jobID, err = s.GetCachedJobID(ctx, "https://acme.com")
	require.NoError(t, err)
	assert.Empty(t, jobID)

	n, err := s.DeleteExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_RateLimitCounters(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	count, err := s.GetCounter(ctx, "rate_limit:10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, count)

	for i := 1; i <= 3; i++ {
		count, err = s.IncrementCounter(ctx, "rate_limit:10.0.0.1", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	count, err = s.GetCounter(ctx, "rate_limit:10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Separate keys have separate windows.
	count, err = s.IncrementCounter(ctx, "rate_limit:10.0.0.2", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_RateLimitWindowReset(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	// An already-expired window restarts at 1 on the next increment.
	_, err := s.IncrementCounter(ctx, "rate_limit:10.0.0.1", -time.Minute)
	require.NoError(t, err)

	count, err := s.GetCounter(ctx, "rate_limit:10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = s.IncrementCounter(ctx, "rate_limit:10.0.0.1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
