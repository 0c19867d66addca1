package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harnessai/orchestrator/internal/model"
)

func testFetcher() *Fetcher {
	return NewFetcher(FetchOptions{PerHostRate: 1000, Burst: 1000})
}

const homepageHTML = `<!DOCTYPE html>
<html>
<head>
<title>Acme Manufacturing | Precision Parts</title>
<meta name="description" content="Precision manufacturing in Indianapolis since 1987">
</head>
<body>
<nav>
<a href="/about">About Us</a>
<a href="/services">Services</a>
<a href="/team">Our Team</a>
<a href="/contact">Contact</a>
</nav>
<main>
<p>Acme Manufacturing serves Indiana and Illinois with precision CNC machining.
We operate two facilities in Indianapolis and Carmel with over 80 employees
delivering aerospace and automotive components on schedule. Our quality
program is certified and our turnaround times lead the region.</p>
</main>
<a href="/products">Products</a>
<a href="https://external.example.com/partner">Partner</a>
</body>
</html>`

func TestSiteScraper_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(homepageHTML))
		case "/about":
			_, _ = w.Write([]byte(`<html><body><main>Founded in 1987, Acme has grown into a trusted regional manufacturer.</main></body></html>`))
		case "/services":
			_, _ = w.Write([]byte(`<html><body><article>CNC machining, fabrication, and finishing services.</article></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewSiteScraper(testFetcher())
	result, err := s.Collect(context.Background(), Subject{CompanyURL: srv.URL})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, model.SourceSiteScraper, result.Source)
	assert.Equal(t, model.OutcomeOK, result.Outcome)

	facts := result.Site
	require.NotNil(t, facts)
	assert.Equal(t, "Acme Manufacturing | Precision Parts", facts.Title)
	assert.Equal(t, "Precision manufacturing in Indianapolis since 1987", facts.MetaDescription)
	assert.False(t, facts.IsSPA)
	assert.Contains(t, facts.NavigationItems, "About Us")
	assert.Contains(t, facts.NavigationItems, "Services")
	assert.GreaterOrEqual(t, facts.InternalLinksCount, 5)
	assert.Contains(t, facts.AboutContent, "Founded in 1987")
	assert.Contains(t, facts.ServicesContent, "CNC machining")
	assert.Empty(t, facts.TeamContent) // /team 404s
	assert.Contains(t, facts.LocationMentions, "Indianapolis")
	assert.Contains(t, facts.LocationMentions, "Illinois")
}

func TestSiteScraper_SPADetection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>App</title></head><body><div id="root"></div><script src="/bundle.js"></script></body></html>`))
	}))
	defer srv.Close()

	s := NewSiteScraper(testFetcher())
	result, err := s.Collect(context.Background(), Subject{CompanyURL: srv.URL})
	require.NoError(t, err)
	assert.True(t, result.Site.IsSPA)
}

func TestSiteScraper_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSiteScraper(testFetcher())
	_, err := s.Collect(context.Background(), Subject{CompanyURL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error: 403")
}

func TestSiteScraper_VisibleTextCap(t *testing.T) {
	long := strings.Repeat("precision manufacturing services ", 500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>" + long + "</p></body></html>"))
	}))
	defer srv.Close()

	s := NewSiteScraper(testFetcher())
	result, err := s.Collect(context.Background(), Subject{CompanyURL: srv.URL})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Site.VisibleText), visibleTextLimit)
}

func TestStripHTML(t *testing.T) {
	html := `<html><head><script>var x = 1;</script><style>body{}</style></head>
<body><p>Hello &amp; welcome</p></body></html>`
	text := stripHTML(html)
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "body{}")
	assert.Contains(t, text, "Hello & welcome")
}
