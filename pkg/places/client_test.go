package places

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

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.rating")
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.businessStatus")

		var body textSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Acme Corp acme.com", body.TextQuery)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TextSearchResponse{
			Places: []Place{
				{
					DisplayName:      DisplayName{Text: "Acme Corp"},
					Rating:           4.5,
					UserRatingCount:  127,
					FormattedAddress: "100 Main St, Springfield, IL",
					BusinessStatus:   "OPERATIONAL",
					Types:            []string{"general_contractor"},
					WebsiteURI:       "https://acme.com",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), "Acme Corp acme.com")

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "Acme Corp", resp.Places[0].DisplayName.Text)
	assert.InDelta(t, 4.5, resp.Places[0].Rating, 0.001)
	assert.Equal(t, 127, resp.Places[0].UserRatingCount)
	assert.Equal(t, "OPERATIONAL", resp.Places[0].BusinessStatus)
}

func TestTextSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TextSearchResponse{Places: nil})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), "Nonexistent Corp")
	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestTextSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"status":"PERMISSION_DENIED"}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(context.Background(), "Acme Corp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
	assert.False(t, resilience.IsTransient(err), "auth failures are not retryable")
}

func TestTextSearch_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"status":"INTERNAL"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(context.Background(), "Acme Corp")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
