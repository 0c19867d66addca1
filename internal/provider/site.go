package provider

import (
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/harnessai/orchestrator/internal/model"
)

const (
	visibleTextLimit = 5000
	subpageTextLimit = 3000
	spaTextThreshold = 200
	maxNavItems      = 20
)

var (
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaDescRe = regexp.MustCompile(`(?is)<meta[^>]+name=["']description["'][^>]+content=["']([^"']*)["']`)
	navBlockRe = regexp.MustCompile(`(?is)<nav[^>]*>(.*?)</nav>`)
	anchorRe   = regexp.MustCompile(`(?is)<a[^>]+href=["']([^"']+)["'][^>]*>(.*?)</a>`)
	mainRe     = regexp.MustCompile(`(?is)<main[^>]*>(.*?)</main>`)
	articleRe  = regexp.MustCompile(`(?is)<article[^>]*>(.*?)</article>`)
	tagRe      = regexp.MustCompile(`<[^>]+>`)
	spaceRe    = regexp.MustCompile(`[ \t]+`)
	newlineRe  = regexp.MustCompile(`\n{3,}`)
)

// Link-text keywords that identify the key subpages worth scraping.
var (
	aboutKeywords    = []string{"about", "about-us", "who-we-are"}
	servicesKeywords = []string{"service", "what-we-do", "solutions", "offerings"}
	teamKeywords     = []string{"team", "people", "staff", "our-team"}
)

// locationPatterns are region markers counted as location mentions.
var locationPatterns = []string{
	"indiana", "indianapolis", "carmel", "fishers", "noblesville",
	"bloomington", "fort wayne", "south bend", "evansville",
	"chicago", "ohio", "kentucky", "michigan", "illinois",
}

// SiteScraper fetches the company site and extracts business signals
// from the homepage and key subpages.
type SiteScraper struct {
	fetcher *Fetcher
}

// NewSiteScraper creates a SiteScraper backed by the shared fetcher.
func NewSiteScraper(f *Fetcher) *SiteScraper {
	return &SiteScraper{fetcher: f}
}

func (s *SiteScraper) Name() string { return model.SourceSiteScraper }

// Collect scrapes the homepage, picks out about/services/team subpages,
// and fetches those concurrently.
func (s *SiteScraper) Collect(ctx context.Context, subject Subject) (model.ProviderResult, error) {
	body, status, err := s.fetcher.Get(ctx, subject.CompanyURL)
	if err != nil {
		return model.ProviderResult{}, err
	}
	if status >= 400 {
		return model.ProviderResult{}, eris.Errorf("site_scraper: HTTP error: %d", status)
	}

	html := string(body)
	facts := &model.SiteFacts{
		URL:             subject.CompanyURL,
		Title:           firstMatch(titleRe, html),
		MetaDescription: firstMatch(metaDescRe, html),
	}

	text := stripHTML(html)
	if len(text) < spaTextThreshold {
		facts.IsSPA = true
	}
	facts.VisibleText = truncate(text, visibleTextLimit)
	facts.NavigationItems = extractNavItems(html)

	base, err := url.Parse(subject.CompanyURL)
	if err != nil {
		return model.ProviderResult{}, eris.Wrap(err, "site_scraper: parse base URL")
	}

	internal, keyPages := classifyLinks(base, html)
	facts.InternalLinksCount = len(internal)
	facts.LocationMentions = findLocationMentions(facts.VisibleText)

	s.fetchKeyPages(ctx, keyPages, facts)

	return model.ProviderResult{
		Source:  model.SourceSiteScraper,
		Outcome: model.OutcomeOK,
		Success: true,
		Site:    facts,
	}, nil
}

// fetchKeyPages pulls the about/services/team subpages concurrently.
// Subpage failures are ignored; the homepage facts stand alone.
func (s *SiteScraper) fetchKeyPages(ctx context.Context, keyPages map[string]string, facts *model.SiteFacts) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for page, pageURL := range keyPages {
		g.Go(func() error {
			content := s.fetchPageContent(gctx, pageURL)
			if content == "" {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			switch page {
			case "about":
				facts.AboutContent = content
			case "services":
				facts.ServicesContent = content
			case "team":
				facts.TeamContent = content
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *SiteScraper) fetchPageContent(ctx context.Context, pageURL string) string {
	body, status, err := s.fetcher.Get(ctx, pageURL)
	if err != nil || status >= 400 {
		return ""
	}
	html := string(body)

	// Prefer main or article content over the whole page.
	content := firstMatch(mainRe, html)
	if content == "" {
		content = firstMatch(articleRe, html)
	}
	if content == "" {
		content = html
	}
	return truncate(stripHTML(content), subpageTextLimit)
}

// classifyLinks walks every anchor, collecting same-host links and the
// first about/services/team candidates.
func classifyLinks(base *url.URL, html string) (internal map[string]struct{}, keyPages map[string]string) {
	internal = make(map[string]struct{})
	keyPages = make(map[string]string)

	for _, m := range anchorRe.FindAllStringSubmatch(html, -1) {
		href := m[1]
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		full := base.ResolveReference(ref)
		if full.Host != base.Host {
			continue
		}
		internal[full.String()] = struct{}{}

		linkText := strings.ToLower(stripHTML(m[2]))
		hrefLower := strings.ToLower(href)
		switch {
		case matchesAny(hrefLower, linkText, aboutKeywords):
			keyPages["about"] = full.String()
		case matchesAny(hrefLower, linkText, servicesKeywords):
			keyPages["services"] = full.String()
		case matchesAny(hrefLower, linkText, teamKeywords):
			keyPages["team"] = full.String()
		}
	}
	return internal, keyPages
}

func matchesAny(href, text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(href, kw) || strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// extractNavItems collects link labels from <nav> blocks, deduplicated
// and capped.
func extractNavItems(html string) []string {
	seen := make(map[string]struct{})
	var items []string
	for _, nav := range navBlockRe.FindAllStringSubmatch(html, -1) {
		for _, link := range anchorRe.FindAllStringSubmatch(nav[1], -1) {
			text := strings.TrimSpace(stripHTML(link[2]))
			if text == "" || len(text) >= 50 {
				continue
			}
			if _, ok := seen[text]; ok {
				continue
			}
			seen[text] = struct{}{}
			items = append(items, text)
			if len(items) == maxNavItems {
				return items
			}
		}
	}
	return items
}

func findLocationMentions(text string) []string {
	lower := strings.ToLower(text)
	var mentions []string
	for _, pattern := range locationPatterns {
		if strings.Contains(lower, pattern) {
			mentions = append(mentions, titleCase(pattern))
		}
	}
	sort.Strings(mentions)
	return mentions
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func firstMatch(re *regexp.Regexp, html string) string {
	m := re.FindStringSubmatch(html)
	if len(m) > 1 {
		return strings.TrimSpace(stripHTML(m[1]))
	}
	return ""
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// stripHTML removes scripts/styles, strips tags, decodes entities, and
// collapses whitespace.
func stripHTML(html string) string {
	for _, tag := range []string{"script", "style", "noscript"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	html = spaceRe.ReplaceAllString(html, " ")
	html = newlineRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}
