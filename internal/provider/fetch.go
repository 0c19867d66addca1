package provider

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 512 * 1024

// Fetcher performs polite HTTP GETs against company sites. Requests are
// throttled per host so repeated submissions for the same company never
// hammer a target.
type Fetcher struct {
	client    *http.Client
	userAgent string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perHost  rate.Limit
	burst    int
}

// FetchOptions configures a Fetcher.
type FetchOptions struct {
	Timeout   time.Duration
	UserAgent string
	// PerHostRate is requests per second against a single host.
	PerHostRate float64
	Burst       int
}

// NewFetcher creates a Fetcher with per-host throttling.
func NewFetcher(opts FetchOptions) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; HarnessAI/1.0; +https://harnessai.co)"
	}
	if opts.PerHostRate == 0 {
		opts.PerHostRate = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 4
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
		userAgent: opts.UserAgent,
		limiters:  make(map[string]*rate.Limiter),
		perHost:   rate.Limit(opts.PerHostRate),
		burst:     opts.Burst,
	}
}

func (f *Fetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.perHost, f.burst)
		f.limiters[host] = lim
	}
	return lim
}

// Get fetches a URL and returns the body, capped at maxBodyBytes.
func (f *Fetcher) Get(ctx context.Context, targetURL string) ([]byte, int, error) {
	if err := f.limiterFor(targetURL).Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "fetch: get")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "fetch: read body")
	}
	return body, resp.StatusCode, nil
}

// GetFull fetches a URL and returns body, response headers, and status.
// Used by the technology detector, which fingerprints both.
func (f *Fetcher) GetFull(ctx context.Context, targetURL string) ([]byte, http.Header, int, error) {
	if err := f.limiterFor(targetURL).Wait(ctx); err != nil {
		return nil, nil, 0, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, nil, 0, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, 0, eris.Wrap(err, "fetch: get")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.Header, resp.StatusCode, eris.Wrap(err, "fetch: read body")
	}
	return body, resp.Header, resp.StatusCode, nil
}
