package resend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harnessai/orchestrator/internal/resilience"
)

func TestSend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var email Email
		require.NoError(t, json.NewDecoder(r.Body).Decode(&email))
		assert.Equal(t, []string{"ops@acme.com"}, email.To)
		assert.Equal(t, "Your operational profile is ready", email.Subject)
		assert.Contains(t, email.HTML, "profile")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SendResponse{ID: "email_123"})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.Send(context.Background(), Email{
		From:    "reports@harnessai.co",
		To:      []string{"ops@acme.com"},
		Subject: "Your operational profile is ready",
		HTML:    "<p>Your profile is ready.</p>",
	})

	require.NoError(t, err)
	assert.Equal(t, "email_123", resp.ID)
}

func TestSend_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"API key is invalid"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.Send(context.Background(), Email{To: []string{"ops@acme.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 401")
	assert.False(t, resilience.IsTransient(err))
}

func TestSend_ServiceUnavailableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"service unavailable"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Send(context.Background(), Email{To: []string{"ops@acme.com"}})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
