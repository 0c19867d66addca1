package provider

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/harnessai/orchestrator/internal/model"
)

// headerSig and metaSig match a header or meta tag by name, and
// optionally require a substring of its value. An empty value matches
// presence alone.
type headerSig struct {
	name  string
	value string
}

type metaSig struct {
	name  string
	value string
}

// techSignature is a Wappalyzer-style fingerprint for one technology.
type techSignature struct {
	headers []headerSig
	html    []string
	meta    []metaSig
}

const (
	headerMatchWeight = 30
	htmlMatchWeight   = 25
	metaMatchWeight   = 30
	detectThreshold   = 25
	maxEvidence       = 3
)

// techSignatures is the fingerprint table, keyed by technology name.
var techSignatures = map[string]techSignature{
	// CMS
	"WordPress": {
		headers: []headerSig{{"x-powered-by", "wordpress"}},
		html:    []string{"/wp-content/", "/wp-includes/", "wp-json"},
		meta:    []metaSig{{"generator", "wordpress"}},
	},
	"Shopify": {
		headers: []headerSig{{"x-shopify-stage", ""}},
		html:    []string{"cdn.shopify.com", "shopify.com/s/"},
	},
	"Squarespace": {
		html: []string{"squarespace.com", "static.squarespace.com"},
		meta: []metaSig{{"generator", "squarespace"}},
	},
	"Wix": {
		html: []string{"wix.com", "parastorage.com", "_wixCIDX"},
		meta: []metaSig{{"generator", "wix"}},
	},
	"Webflow": {
		html: []string{"webflow.com", "wf-cdn"},
		meta: []metaSig{{"generator", "webflow"}},
	},
	"Drupal": {
		html:    []string{"/sites/default/files/", "drupal.js"},
		meta:    []metaSig{{"generator", "drupal"}},
		headers: []headerSig{{"x-drupal-cache", ""}, {"x-generator", "drupal"}},
	},
	"HubSpot CMS": {
		html: []string{"hs-scripts.com", "hubspot.com", "hbspt.forms"},
	},

	// JavaScript frameworks
	"React": {
		html: []string{"react", "_reactRootContainer", "data-reactroot"},
	},
	"Vue.js": {
		html: []string{"vue.js", "vuejs", "data-v-"},
	},
	"Angular": {
		html: []string{"ng-version", "angular.js", "ng-app"},
	},
	"Next.js": {
		html: []string{"_next/static", "__NEXT_DATA__"},
	},
	"Gatsby": {
		html: []string{"/gatsby-", "__gatsby"},
	},

	// Analytics
	"Google Analytics (GA4)": {
		html: []string{"gtag/js", "googletagmanager.com", "google-analytics.com/g/"},
	},
	"Google Analytics (Universal)": {
		html: []string{"google-analytics.com/analytics.js", "ga('create'"},
	},
	"Mixpanel": {
		html: []string{"mixpanel.com", "mixpanel.init"},
	},
	"Segment": {
		html: []string{"segment.com/analytics.js", "analytics.load"},
	},
	"Hotjar": {
		html: []string{"hotjar.com", "static.hotjar.com"},
	},
	"Facebook Pixel": {
		html: []string{"connect.facebook.net", "fbq("},
	},
	"LinkedIn Insight": {
		html: []string{"snap.licdn.com", "_linkedin_partner_id"},
	},

	// Payment
	"Stripe": {
		html: []string{"js.stripe.com", "stripe.com/v3"},
	},
	"PayPal": {
		html: []string{"paypal.com/sdk", "paypalobjects.com"},
	},
	"Square": {
		html: []string{"squareup.com", "square.js"},
	},

	// CDN
	"Cloudflare": {
		headers: []headerSig{{"cf-ray", ""}, {"server", "cloudflare"}},
		html:    []string{"cloudflare.com"},
	},
	"AWS CloudFront": {
		headers: []headerSig{{"x-amz-cf-id", ""}, {"x-amz-cf-pop", ""}},
	},
	"Fastly": {
		headers: []headerSig{{"x-served-by", "cache"}, {"via", "varnish"}},
	},
	"Akamai": {
		headers: []headerSig{{"x-akamai-transformed", ""}},
	},

	// Marketing/CRM
	"Mailchimp": {
		html: []string{"mailchimp.com", "mc.us", "chimpstatic.com"},
	},
	"HubSpot": {
		html: []string{"hubspot.com", "hs-scripts.com", "hbspt"},
	},
	"Salesforce": {
		html: []string{"force.com", "salesforce.com", "pardot.com"},
	},
	"Intercom": {
		html: []string{"intercom.io", "widget.intercom.io"},
	},
	"Drift": {
		html: []string{"drift.com", "js.driftt.com"},
	},
	"Zendesk": {
		html: []string{"zendesk.com", "zdassets.com"},
	},

	// Hosting
	"Vercel": {
		headers: []headerSig{{"x-vercel-id", ""}, {"server", "vercel"}},
	},
	"Netlify": {
		headers: []headerSig{{"x-nf-request-id", ""}, {"server", "netlify"}},
	},
	"Heroku": {
		headers: []headerSig{{"via", "heroku"}, {"x-runtime", ""}},
	},
	"AWS": {
		headers: []headerSig{{"x-amzn-requestid", ""}, {"server", "amazons3"}},
	},

	// Security
	"reCAPTCHA": {
		html: []string{"google.com/recaptcha", "grecaptcha"},
	},
	"hCaptcha": {
		html: []string{"hcaptcha.com"},
	},
	"Sucuri": {
		headers: []headerSig{{"x-sucuri-id", ""}},
	},

	// E-commerce
	"WooCommerce": {
		html: []string{"woocommerce", "wc-add-to-cart"},
	},
	"Magento": {
		html:    []string{"/static/frontend/", "mage/cookies"},
		headers: []headerSig{{"x-magento-vary", ""}},
	},
	"BigCommerce": {
		html: []string{"bigcommerce.com", "cdn11.bigcommerce.com"},
	},

	// Libraries
	"jQuery": {
		html: []string{"jquery.js", "jquery.min.js", "code.jquery.com"},
	},
	"Bootstrap": {
		html: []string{"bootstrap.min.css", "bootstrap.min.js"},
	},
	"Tailwind CSS": {
		html: []string{"tailwindcss", "tailwind.min.css"},
	},
	"Font Awesome": {
		html: []string{"fontawesome", "font-awesome"},
	},
	"Google Fonts": {
		html: []string{"fonts.googleapis.com", "fonts.gstatic.com"},
	},
	"Google Tag Manager": {
		html: []string{"googletagmanager.com/gtm.js"},
	},
}

var (
	metaNameFirstRe    = regexp.MustCompile(`(?i)<meta[^>]+name=["']([^"']+)["'][^>]+content=["']([^"']*)["']`)
	metaContentFirstRe = regexp.MustCompile(`(?i)<meta[^>]+content=["']([^"']*)["'][^>]+name=["']([^"']+)["']`)
)

// TechDetector fingerprints the technologies running the company site
// from response headers, HTML source, and meta tags.
type TechDetector struct {
	fetcher *Fetcher
}

// NewTechDetector creates a TechDetector backed by the shared fetcher.
func NewTechDetector(f *Fetcher) *TechDetector {
	return &TechDetector{fetcher: f}
}

func (t *TechDetector) Name() string { return model.SourceTechDetector }

func (t *TechDetector) Collect(ctx context.Context, subject Subject) (model.ProviderResult, error) {
	body, headers, status, err := t.fetcher.GetFull(ctx, subject.CompanyURL)
	if err != nil {
		return model.ProviderResult{}, err
	}
	if status >= 400 {
		return model.ProviderResult{}, eris.Errorf("tech_detector: HTTP error: %d", status)
	}

	html := string(body)
	metaTags := extractMetaTags(html)

	var detected []model.TechDetection
	for name, sig := range techSignatures {
		if d, ok := checkSignature(name, sig, headers, html, metaTags); ok {
			detected = append(detected, d)
		}
	}

	// Strongest signals first; name breaks ties for stable output.
	sort.Slice(detected, func(i, j int) bool {
		if detected[i].Confidence != detected[j].Confidence {
			return detected[i].Confidence > detected[j].Confidence
		}
		return detected[i].Name < detected[j].Name
	})

	return model.ProviderResult{
		Source:  model.SourceTechDetector,
		Outcome: model.OutcomeOK,
		Success: true,
		Tech: &model.TechFacts{
			URL:      subject.CompanyURL,
			Detected: detected,
		},
	}, nil
}

// checkSignature scores one technology against the page. Each matching
// header or meta tag adds 30, each HTML pattern 25; a technology is
// reported at 25 or more, capped at 100.
func checkSignature(name string, sig techSignature, headers http.Header, html string, metaTags map[string]string) (model.TechDetection, bool) {
	confidence := 0
	var evidence []string

	for _, h := range sig.headers {
		got := headers.Get(h.name)
		if got == "" {
			continue
		}
		if h.value == "" || strings.Contains(strings.ToLower(got), h.value) {
			confidence += headerMatchWeight
			evidence = append(evidence, "header:"+h.name)
		}
	}

	htmlLower := strings.ToLower(html)
	for _, pattern := range sig.html {
		if strings.Contains(htmlLower, strings.ToLower(pattern)) {
			confidence += htmlMatchWeight
			evidence = append(evidence, "html:"+truncate(pattern, 30))
		}
	}

	for _, m := range sig.meta {
		got, ok := metaTags[m.name]
		if !ok {
			continue
		}
		if m.value == "" || strings.Contains(strings.ToLower(got), m.value) {
			confidence += metaMatchWeight
			evidence = append(evidence, "meta:"+m.name)
		}
	}

	if confidence < detectThreshold {
		return model.TechDetection{}, false
	}
	if confidence > 100 {
		confidence = 100
	}
	if len(evidence) > maxEvidence {
		evidence = evidence[:maxEvidence]
	}
	return model.TechDetection{Name: name, Confidence: confidence, Evidence: evidence}, true
}

// extractMetaTags maps meta tag names to contents, handling both
// attribute orders.
func extractMetaTags(html string) map[string]string {
	tags := make(map[string]string)
	for _, m := range metaNameFirstRe.FindAllStringSubmatch(html, -1) {
		tags[strings.ToLower(m[1])] = m[2]
	}
	for _, m := range metaContentFirstRe.FindAllStringSubmatch(html, -1) {
		tags[strings.ToLower(m[2])] = m[1]
	}
	return tags
}
