// Package intake validates submissions before they enter the pipeline:
// URL normalization and email domain ownership checks.
package intake

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// genericProviders is the fixed list of consumer webmail domains. A
// submitter on one of these cannot prove domain ownership, so the
// submission is valid but routed to manual review.
var genericProviders = map[string]struct{}{
	"gmail.com":      {},
	"yahoo.com":      {},
	"outlook.com":    {},
	"hotmail.com":    {},
	"aol.com":        {},
	"icloud.com":     {},
	"protonmail.com": {},
	"mail.com":       {},
}

// NormalizeURL defaults the scheme to https and strips any trailing slash.
// Cache keys and stored company URLs always use the normalized form.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

// ExtractDomain returns the lowercased host of a URL with any www. prefix
// removed.
func ExtractDomain(raw string) (string, error) {
	parsed, err := url.Parse(NormalizeURL(raw))
	if err != nil {
		return "", eris.Wrapf(err, "intake: parse url %q", raw)
	}
	domain := strings.ToLower(parsed.Hostname())
	if domain == "" {
		return "", eris.Errorf("intake: no host in url %q", raw)
	}
	return strings.TrimPrefix(domain, "www."), nil
}

// ValidateDomain checks that the submitter's email domain matches the
// claimed company URL. It returns (valid, needsReview):
//
//	(true, false)  email domain matches, or is a subdomain relation either way
//	(true, true)   email is from a generic consumer provider
//	(false, false) domains are unrelated
func ValidateDomain(email, companyURL string) (bool, bool, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false, false, eris.Errorf("intake: malformed email %q", email)
	}
	emailDomain := strings.ToLower(email[at+1:])

	urlDomain, err := ExtractDomain(companyURL)
	if err != nil {
		return false, false, err
	}

	if _, generic := genericProviders[emailDomain]; generic {
		return true, true, nil
	}

	if emailDomain == urlDomain {
		return true, false, nil
	}
	// Subdomain relation in either direction, e.g. mail.acme.com vs acme.com.
	if strings.HasSuffix(emailDomain, "."+urlDomain) || strings.HasSuffix(urlDomain, "."+emailDomain) {
		return true, false, nil
	}

	return false, false, nil
}
