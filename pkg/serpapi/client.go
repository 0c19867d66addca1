// Package serpapi is a minimal SerpAPI client covering the Google Jobs
// engine used by the hiring activity provider.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/harnessai/orchestrator/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com"

// Client performs SerpAPI search operations.
type Client interface {
	GoogleJobs(ctx context.Context, query string) (*JobsResponse, error)
}

// JobsResponse is the Google Jobs engine response.
type JobsResponse struct {
	JobsResults []JobResult `json:"jobs_results"`
}

// JobResult is a single job posting from the Google Jobs engine.
type JobResult struct {
	Title              string             `json:"title"`
	CompanyName        string             `json:"company_name"`
	Location           string             `json:"location"`
	Description        string             `json:"description"`
	Via                string             `json:"via"`
	DetectedExtensions DetectedExtensions `json:"detected_extensions"`
}

// DetectedExtensions holds metadata SerpAPI extracts from the listing.
type DetectedExtensions struct {
	PostedAt     string `json:"posted_at"`
	ScheduleType string `json:"schedule_type"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SerpAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GoogleJobs(ctx context.Context, query string) (*JobsResponse, error) {
	params := url.Values{}
	params.Set("engine", "google_jobs")
	params.Set("q", query)
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result JobsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}

	return &result, nil
}
