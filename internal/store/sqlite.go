package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/harnessai/orchestrator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// development and single-node driver; array columns are stored as JSON
// text since SQLite has no native array type.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	company_name TEXT NOT NULL,
	company_url  TEXT NOT NULL,
	email        TEXT NOT NULL,
	job_id       TEXT UNIQUE NOT NULL,
	auth_token   TEXT UNIQUE NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	created_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS profiles (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	submission_id       INTEGER NOT NULL REFERENCES submissions(id),
	profile             TEXT NOT NULL,
	sources_used        TEXT NOT NULL DEFAULT '[]',
	sources_unavailable TEXT NOT NULL DEFAULT '[]',
	confidence_score    TEXT NOT NULL DEFAULT 'Medium',
	validation_issues   TEXT NOT NULL DEFAULT '[]',
	created_at          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id INTEGER NOT NULL REFERENCES profiles(id),
	rating     INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
	comment    TEXT,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS profile_cache (
	company_url TEXT PRIMARY KEY,
	job_id      TEXT NOT NULL,
	cached_at   DATETIME NOT NULL,
	expires_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS rate_limit (
	key               TEXT PRIMARY KEY,
	count             INTEGER NOT NULL DEFAULT 0,
	window_expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_company_url ON submissions(company_url);
CREATE INDEX IF NOT EXISTS idx_profiles_submission_id ON profiles(submission_id);
CREATE INDEX IF NOT EXISTS idx_profile_cache_expires_at ON profile_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub NewSubmission) (*model.Submission, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (company_name, company_url, email, job_id, auth_token, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.CompanyName, sub.CompanyURL, sub.Email, sub.JobID, sub.AuthToken, string(sub.Status), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert submission")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last insert id")
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

func (s *SQLiteStore) GetSubmissionByJobID(ctx context.Context, jobID string) (*model.Submission, error) {
	return s.getSubmission(ctx, "job_id", jobID)
}

func (s *SQLiteStore) GetSubmissionByToken(ctx context.Context, token string) (*model.Submission, error) {
	return s.getSubmission(ctx, "auth_token", token)
}

func (s *SQLiteStore) getSubmission(ctx context.Context, column, arg string) (*model.Submission, error) {
	var sub model.Submission
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_name, company_url, email, job_id, auth_token, status, created_at, completed_at
		 FROM submissions WHERE `+column+` = ?`, arg,
	).Scan(&sub.ID, &sub.CompanyName, &sub.CompanyURL, &sub.Email,
		&sub.JobID, &sub.AuthToken, &status, &sub.CreatedAt, &sub.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get submission")
	}
	sub.Status = model.SubmissionStatus(status)
	return &sub, nil
}

func (s *SQLiteStore) TransitionSubmission(ctx context.Context, jobID string, from, to model.SubmissionStatus, completedAt *time.Time) error {
	if !model.CanTransition(from, to) {
		return eris.Errorf("sqlite: illegal transition %s -> %s for %s", from, to, jobID)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, completed_at = COALESCE(?, completed_at) WHERE job_id = ? AND status = ?`,
		string(to), completedAt, jobID, string(from),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition submission %s", jobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: submission %s not in status %s", jobID, from)
	}
	return nil
}

func (s *SQLiteStore) CreateProfile(ctx context.Context, p *model.Profile) (*model.Profile, error) {
	now := time.Now().UTC()

	payloadJSON, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal profile payload")
	}
	sourcesUsed, _ := json.Marshal(p.SourcesUsed)
	sourcesUnavailable, _ := json.Marshal(p.SourcesUnavailable)
	issues, _ := json.Marshal(p.ValidationIssues)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (submission_id, profile, sources_used, sources_unavailable, confidence_score, validation_issues, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.SubmissionID, string(payloadJSON), string(sourcesUsed), string(sourcesUnavailable),
		p.ConfidenceScore, string(issues), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert profile for submission %d", p.SubmissionID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last insert id")
	}

	created := *p
	created.ID = id
	created.CreatedAt = now
	return &created, nil
}

func (s *SQLiteStore) GetProfileBySubmissionID(ctx context.Context, submissionID int64) (*model.Profile, error) {
	var p model.Profile
	var payloadJSON, sourcesUsed, sourcesUnavailable, issues string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, submission_id, profile, sources_used, sources_unavailable, confidence_score, validation_issues, created_at
		 FROM profiles WHERE submission_id = ?`, submissionID,
	).Scan(&p.ID, &p.SubmissionID, &payloadJSON, &sourcesUsed, &sourcesUnavailable,
		&p.ConfidenceScore, &issues, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get profile for submission %d", submissionID)
	}

	if err := json.Unmarshal([]byte(payloadJSON), &p.Payload); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal profile payload")
	}
	if err := json.Unmarshal([]byte(sourcesUsed), &p.SourcesUsed); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sources used")
	}
	if err := json.Unmarshal([]byte(sourcesUnavailable), &p.SourcesUnavailable); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sources unavailable")
	}
	if err := json.Unmarshal([]byte(issues), &p.ValidationIssues); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal validation issues")
	}
	return &p, nil
}

func (s *SQLiteStore) CreateFeedback(ctx context.Context, profileID int64, rating int, comment string) (*model.Feedback, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (profile_id, rating, comment, created_at) VALUES (?, ?, ?, ?)`,
		profileID, rating, comment, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert feedback for profile %d", profileID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last insert id")
	}

	return &model.Feedback{
		ID:        id,
		ProfileID: profileID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetCachedJobID(ctx context.Context, companyURL string) (string, error) {
	var jobID string
	err := s.db.QueryRowContext(ctx,
		`SELECT c.job_id FROM profile_cache c
		 JOIN submissions s ON s.job_id = c.job_id
		 WHERE c.company_url = ? AND c.expires_at > ? AND s.status = 'complete'`,
		companyURL, time.Now().UTC(),
	).Scan(&jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrap(err, "sqlite: get cached job")
	}
	return jobID, nil
}

func (s *SQLiteStore) SetCachedJobID(ctx context.Context, companyURL, jobID string, ttl time.Duration) error {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profile_cache (company_url, job_id, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (company_url) DO UPDATE SET job_id = excluded.job_id, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		companyURL, jobID, now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached job")
}

func (s *SQLiteStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM profile_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired cache")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) GetCounter(ctx context.Context, key string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM rate_limit WHERE key = ? AND window_expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrap(err, "sqlite: get counter")
	}
	return count, nil
}

func (s *SQLiteStore) IncrementCounter(ctx context.Context, key string, window time.Duration) (int, error) {
	now := time.Now().UTC()

	var count int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO rate_limit (key, count, window_expires_at) VALUES (?, 1, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   count = CASE WHEN rate_limit.window_expires_at <= ? THEN 1 ELSE rate_limit.count + 1 END,
		   window_expires_at = CASE WHEN rate_limit.window_expires_at <= ? THEN excluded.window_expires_at ELSE rate_limit.window_expires_at END
		 RETURNING count`,
		key, now.Add(window), now, now,
	).Scan(&count)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: increment counter")
	}
	return count, nil
}
