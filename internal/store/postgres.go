package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/harnessai/orchestrator/internal/db"
	"github.com/harnessai/orchestrator/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_submission_by_job_id": `SELECT id, company_name, company_url, email, job_id, auth_token, status, created_at, completed_at FROM submissions WHERE job_id = $1`,
	"get_submission_by_token":  `SELECT id, company_name, company_url, email, job_id, auth_token, status, created_at, completed_at FROM submissions WHERE auth_token = $1`,
	"get_profile":              `SELECT id, submission_id, profile, sources_used, sources_unavailable, confidence_score, validation_issues, created_at FROM profiles WHERE submission_id = $1`,
	"get_cached_job":           `SELECT c.job_id FROM profile_cache c JOIN submissions s ON s.job_id = c.job_id WHERE c.company_url = $1 AND c.expires_at > now() AND s.status = 'complete'`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id           BIGSERIAL PRIMARY KEY,
	company_name TEXT NOT NULL,
	company_url  TEXT NOT NULL,
	email        TEXT NOT NULL,
	job_id       TEXT UNIQUE NOT NULL,
	auth_token   TEXT UNIQUE NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS profiles (
	id                  BIGSERIAL PRIMARY KEY,
	submission_id       BIGINT NOT NULL REFERENCES submissions(id),
	profile             JSONB NOT NULL,
	sources_used        TEXT[] NOT NULL DEFAULT '{}',
	sources_unavailable TEXT[] NOT NULL DEFAULT '{}',
	confidence_score    TEXT NOT NULL DEFAULT 'Medium',
	validation_issues   TEXT[] NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feedback (
	id         BIGSERIAL PRIMARY KEY,
	profile_id BIGINT NOT NULL REFERENCES profiles(id),
	rating     INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
	comment    TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profile_cache (
	company_url TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL,
	cached_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_limit (
	key               TEXT PRIMARY KEY,
	count             INTEGER NOT NULL DEFAULT 0,
	window_expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_job_id ON submissions(job_id);
CREATE INDEX IF NOT EXISTS idx_submissions_auth_token ON submissions(auth_token);
CREATE INDEX IF NOT EXISTS idx_submissions_company_url ON submissions(company_url);
CREATE INDEX IF NOT EXISTS idx_profiles_submission_id ON profiles(submission_id);
CREATE INDEX IF NOT EXISTS idx_profile_cache_expires_at ON profile_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub NewSubmission) (*model.Submission, error) {
	now := time.Now().UTC()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO submissions (company_name, company_url, email, job_id, auth_token, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		sub.CompanyName, sub.CompanyURL, sub.Email, sub.JobID, sub.AuthToken, string(sub.Status), now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert submission")
	}

	return &model.Submission{
		ID:          id,
		CompanyName: sub.CompanyName,
		CompanyURL:  sub.CompanyURL,
		Email:       sub.Email,
		JobID:       sub.JobID,
		AuthToken:   sub.AuthToken,
		Status:      sub.Status,
		CreatedAt:   now,
	}, nil
}

func (s *PostgresStore) GetSubmissionByJobID(ctx context.Context, jobID string) (*model.Submission, error) {
	return s.getSubmission(ctx,
		`SELECT id, company_name, company_url, email, job_id, auth_token, status, created_at, completed_at
		 FROM submissions WHERE job_id = $1`, jobID)
}

func (s *PostgresStore) GetSubmissionByToken(ctx context.Context, token string) (*model.Submission, error) {
	return s.getSubmission(ctx,
		`SELECT id, company_name, company_url, email, job_id, auth_token, status, created_at, completed_at
		 FROM submissions WHERE auth_token = $1`, token)
}

func (s *PostgresStore) getSubmission(ctx context.Context, query, arg string) (*model.Submission, error) {
	var sub model.Submission
	var status string
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&sub.ID, &sub.CompanyName, &sub.CompanyURL, &sub.Email,
		&sub.JobID, &sub.AuthToken, &status, &sub.CreatedAt, &sub.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get submission")
	}
	sub.Status = model.SubmissionStatus(status)
	return &sub, nil
}

func (s *PostgresStore) TransitionSubmission(ctx context.Context, jobID string, from, to model.SubmissionStatus, completedAt *time.Time) error {
	if !model.CanTransition(from, to) {
		return eris.Errorf("postgres: illegal transition %s -> %s for %s", from, to, jobID)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET status = $1, completed_at = COALESCE($2, completed_at) WHERE job_id = $3 AND status = $4`,
		string(to), completedAt, jobID, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition submission %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: submission %s not in status %s", jobID, from)
	}
	return nil
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	now := time.Now().UTC()

	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal profile payload")
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO profiles (submission_id, profile, sources_used, sources_unavailable, confidence_score, validation_issues, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.SubmissionID, payloadJSON, p.SourcesUsed, p.SourcesUnavailable,
		p.ConfidenceScore, p.ValidationIssues, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert profile for submission %d", p.SubmissionID)
	}

	created := *p
	created.ID = id
	created.CreatedAt = now
	return &created, nil
}

func (s *PostgresStore) GetProfileBySubmissionID(ctx context.Context, submissionID int64) (*model.Profile, error) {
	var p model.Profile
	var payloadJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, submission_id, profile, sources_used, sources_unavailable, confidence_score, validation_issues, created_at
		 FROM profiles WHERE submission_id = $1`,
		submissionID,
	).Scan(&p.ID, &p.SubmissionID, &payloadJSON, &p.SourcesUsed, &p.SourcesUnavailable,
		&p.ConfidenceScore, &p.ValidationIssues, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get profile for submission %d", submissionID)
	}
	if err := json.Unmarshal(payloadJSON, &p.Payload); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal profile payload")
	}
	return &p, nil
}

func (s *PostgresStore) CreateFeedback(ctx context.Context, profileID int64, rating int, comment string) (*model.Feedback, error) {
	now := time.Now().UTC()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO feedback (profile_id, rating, comment, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		profileID, rating, comment, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert feedback for profile %d", profileID)
	}

	return &model.Feedback{
		ID:        id,
		ProfileID: profileID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) GetCachedJobID(ctx context.Context, companyURL string) (string, error) {
	var jobID string
	err := s.pool.QueryRow(ctx,
		`SELECT c.job_id FROM profile_cache c
		 JOIN submissions s ON s.job_id = c.job_id
		 WHERE c.company_url = $1 AND c.expires_at > now() AND s.status = 'complete'`,
		companyURL,
	).Scan(&jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "postgres: get cached job")
	}
	return jobID, nil
}

func (s *PostgresStore) SetCachedJobID(ctx context.Context, companyURL, jobID string, ttl time.Duration) error {
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO profile_cache (company_url, job_id, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (company_url) DO UPDATE SET job_id = $2, cached_at = $3, expires_at = $4`,
		companyURL, jobID, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached job")
}

func (s *PostgresStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM profile_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired cache")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetCounter(ctx context.Context, key string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count FROM rate_limit WHERE key = $1 AND window_expires_at > now()`,
		key,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrap(err, "postgres: get counter")
	}
	return count, nil
}

func (s *PostgresStore) IncrementCounter(ctx context.Context, key string, window time.Duration) (int, error) {
	// Single atomic upsert: a fresh or expired window restarts at 1,
	// otherwise the existing window's count is bumped.
	var count int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rate_limit (key, count, window_expires_at) VALUES ($1, 1, $2)
		 ON CONFLICT (key) DO UPDATE SET
		   count = CASE WHEN rate_limit.window_expires_at <= now() THEN 1 ELSE rate_limit.count + 1 END,
		   window_expires_at = CASE WHEN rate_limit.window_expires_at <= now() THEN $2 ELSE rate_limit.window_expires_at END
		 RETURNING count`,
		key, time.Now().UTC().Add(window),
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: increment counter")
	}
	return count, nil
}
