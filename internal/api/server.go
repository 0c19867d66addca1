// Package api exposes the orchestrator over HTTP: intake, job status,
// profile retrieval, feedback, and health.
package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harnessai/orchestrator/internal/intake"
	"github.com/harnessai/orchestrator/internal/model"
	"github.com/harnessai/orchestrator/internal/ratelimit"
	"github.com/harnessai/orchestrator/internal/store"
)

// Enqueuer hands accepted submissions to the background worker pool.
type Enqueuer interface {
	Submit(jobID string) bool
}

// Server holds the handler dependencies.
type Server struct {
	store   store.Store
	limiter *ratelimit.Limiter
	queue   Enqueuer
	now     func() time.Time
}

// New creates a Server. queue may be nil in tools that process
// submissions synchronously.
func New(st store.Store, limiter *ratelimit.Limiter, queue Enqueuer) *Server {
	return &Server{store: st, limiter: limiter, queue: queue, now: time.Now}
}

// Router builds the chi router with CORS open to any origin, matching
// the public intake form this API serves.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Post("/intake", s.handleIntake)
	r.Get("/status/{jobID}", s.handleStatus)
	r.Get("/profile/{token}", s.handleProfile)
	r.Post("/profile/{token}/feedback", s.handleFeedback)
	r.Get("/health", s.handleHealth)
	return r
}

type intakeRequest struct {
	CompanyName string `json:"company_name"`
	CompanyURL  string `json:"company_url"`
	Email       string `json:"email"`
}

type intakeResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.CompanyURL = strings.TrimSpace(req.CompanyURL)
	req.Email = strings.TrimSpace(req.Email)
	if req.CompanyName == "" || req.CompanyURL == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "company_name, company_url, and email are required")
		return
	}

	if !s.limiter.Allow(r.Context(), clientIP(r)) {
		respondError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		return
	}

	valid, needsReview, err := intake.ValidateDomain(req.Email, req.CompanyURL)
	if err != nil || !valid {
		respondError(w, http.StatusBadRequest, "Email domain must match the company website domain")
		return
	}

	status := model.StatusQueued
	message := "Profile generation started. You'll receive an email when it's ready."
	if needsReview {
		status = model.StatusManualReview
		message = "Your request has been received and is pending review."
	}

	sub, err := s.store.CreateSubmission(r.Context(), store.NewSubmission{
		CompanyName: req.CompanyName,
		CompanyURL:  intake.NormalizeURL(req.CompanyURL),
		Email:       req.Email,
		JobID:       uuid.NewString(),
		AuthToken:   uuid.NewString(),
		Status:      status,
	})
	if err != nil {
		zap.L().Error("submission create failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create submission")
		return
	}

	if status == model.StatusQueued && s.queue != nil {
		// A full queue is not an intake failure. The submission stays
		// queued and can be picked up by a later run.
		if !s.queue.Submit(sub.JobID) {
			zap.L().Warn("submission not enqueued", zap.String("job_id", sub.JobID))
		}
	}

	respondJSON(w, http.StatusOK, intakeResponse{JobID: sub.JobID, Message: message})
}

type statusResponse struct {
	JobID       string     `json:"job_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sub, err := s.store.GetSubmissionByJobID(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		zap.L().Error("status lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{
		JobID:       sub.JobID,
		Status:      string(sub.Status),
		CreatedAt:   sub.CreatedAt,
		CompletedAt: sub.CompletedAt,
	})
}

type profileResponse struct {
	CompanyName string                   `json:"company_name"`
	Profile     model.OperationalProfile `json:"profile"`
	CreatedAt   time.Time                `json:"created_at"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sub, err := s.store.GetSubmissionByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		zap.L().Error("profile lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if sub.TokenExpired(s.now()) {
		respondError(w, http.StatusGone, "This profile link has expired")
		return
	}
	if sub.Status != model.StatusComplete {
		respondJSON(w, http.StatusAccepted, map[string]string{
			"status":  string(sub.Status),
			"message": "Your profile is still being generated",
		})
		return
	}

	profile, err := s.store.GetProfileBySubmissionID(r.Context(), sub.ID)
	if err != nil {
		zap.L().Error("profile fetch failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}
	if profile == nil {
		respondError(w, http.StatusNotFound, "Profile not found")
		return
	}
	respondJSON(w, http.StatusOK, profileResponse{
		CompanyName: sub.CompanyName,
		Profile:     profile.Payload,
		CreatedAt:   profile.CreatedAt,
	})
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Unknown tokens 404 before any field validation.
	sub, err := s.store.GetSubmissionByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		zap.L().Error("feedback lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "Profile not found")
		return
	}
	profile, err := s.store.GetProfileBySubmissionID(r.Context(), sub.ID)
	if err != nil || profile == nil {
		respondError(w, http.StatusNotFound, "Profile not found")
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		respondError(w, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	if _, err := s.store.CreateFeedback(r.Context(), profile.ID, req.Rating, req.Comment); err != nil {
		zap.L().Error("feedback create failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to record feedback")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Thank you for your feedback"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientIP prefers the first X-Forwarded-For element, the address the
// original client presented to the edge proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}
