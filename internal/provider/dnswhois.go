package provider

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/harnessai/orchestrator/internal/model"
)

// emailProviderMarkers maps MX-record substrings to named email
// providers, checked in order.
var emailProviderMarkers = []struct {
	marker   string
	provider string
}{
	{"google", "Google Workspace"},
	{"googlemail", "Google Workspace"},
	{"outlook", "Microsoft 365"},
	{"microsoft", "Microsoft 365"},
	{"zoho", "Zoho Mail"},
	{"protonmail", "ProtonMail"},
	{"mimecast", "Mimecast"},
	{"barracuda", "Barracuda"},
}

// DNSWhois looks up DNS posture and domain registration facts for the
// company domain.
type DNSWhois struct {
	resolver *net.Resolver
	whois    whoisFunc
}

// whoisFunc performs a raw WHOIS query for a domain. Swappable in tests.
type whoisFunc func(ctx context.Context, domain string) (string, error)

// NewDNSWhois creates a DNSWhois provider using the system resolver and
// a port-43 WHOIS client.
func NewDNSWhois() *DNSWhois {
	return &DNSWhois{
		resolver: net.DefaultResolver,
		whois:    queryWhois,
	}
}

func (d *DNSWhois) Name() string { return model.SourceDNSWhois }

// Collect runs the DNS and WHOIS lookups concurrently. Partial failure
// is tolerated: the provider succeeds if either side returned anything.
func (d *DNSWhois) Collect(ctx context.Context, subject Subject) (model.ProviderResult, error) {
	facts := &model.DNSWhoisFacts{Domain: subject.Domain}

	var dnsOK, whoisOK bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dnsOK = d.lookupDNS(gctx, subject.Domain, &facts.DNS)
		return nil
	})
	g.Go(func() error {
		whoisOK = d.lookupWhois(gctx, subject.Domain, &facts.Whois)
		return nil
	})
	_ = g.Wait()

	if !dnsOK && !whoisOK {
		return model.ProviderResult{}, eris.Errorf("dns_whois: no records found for %s", subject.Domain)
	}

	return model.ProviderResult{
		Source:   model.SourceDNSWhois,
		Outcome:  model.OutcomeOK,
		Success:  true,
		DNSWhois: facts,
	}, nil
}

func (d *DNSWhois) lookupDNS(ctx context.Context, domain string, facts *model.DNSFacts) bool {
	found := false

	if mxs, err := d.resolver.LookupMX(ctx, domain); err == nil && len(mxs) > 0 {
		found = true
		for _, mx := range mxs {
			facts.MXRecords = append(facts.MXRecords, strings.TrimSuffix(mx.Host, "."))
		}
		facts.EmailProvider = classifyEmailProvider(facts.MXRecords)
	}

	if txts, err := d.resolver.LookupTXT(ctx, domain); err == nil {
		for _, txt := range txts {
			found = true
			facts.TXTRecords = append(facts.TXTRecords, truncate(txt, 200))
			if strings.Contains(txt, "v=spf1") {
				facts.HasSPF = true
			}
		}
	}

	if dmarcs, err := d.resolver.LookupTXT(ctx, "_dmarc."+domain); err == nil {
		for _, txt := range dmarcs {
			if strings.Contains(txt, "v=DMARC1") {
				facts.HasDMARC = true
				break
			}
		}
	}

	if nss, err := d.resolver.LookupNS(ctx, domain); err == nil && len(nss) > 0 {
		found = true
		for _, ns := range nss {
			facts.Nameservers = append(facts.Nameservers, strings.TrimSuffix(ns.Host, "."))
		}
	}

	return found
}

func (d *DNSWhois) lookupWhois(ctx context.Context, domain string, facts *model.WhoisFacts) bool {
	raw, err := d.whois(ctx, domain)
	if err != nil {
		return false
	}
	parseWhois(raw, facts)
	return facts.Registrar != "" || facts.CreationDate != ""
}

func classifyEmailProvider(mxRecords []string) string {
	joined := strings.ToLower(strings.Join(mxRecords, " "))
	for _, m := range emailProviderMarkers {
		if strings.Contains(joined, m.marker) {
			return m.provider
		}
	}
	return "Custom/Other"
}

// parseWhois pulls registrar and lifecycle dates out of a raw WHOIS
// response. Field labels vary by registry; the common .com/.org forms
// are covered.
func parseWhois(raw string, facts *model.WhoisFacts) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch key {
		case "registrar":
			if facts.Registrar == "" {
				facts.Registrar = value
			}
		case "creation date", "created", "registered on":
			if facts.CreationDate == "" {
				facts.CreationDate = value
				facts.DomainAgeYears = domainAge(value)
			}
		case "registry expiry date", "expiration date", "expiry date":
			if facts.ExpirationDate == "" {
				facts.ExpirationDate = value
			}
		}
	}
}

func domainAge(creation string) int {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, creation); err == nil {
			return time.Now().Year() - t.Year()
		}
	}
	return 0
}

// queryWhois resolves the registry WHOIS server through IANA, then
// queries it over port 43.
func queryWhois(ctx context.Context, domain string) (string, error) {
	ianaResp, err := rawWhoisQuery(ctx, "whois.iana.org:43", domain)
	if err != nil {
		return "", err
	}

	server := ""
	for _, line := range strings.Split(ianaResp, "\n") {
		if after, found := strings.CutPrefix(strings.TrimSpace(line), "refer:"); found {
			server = strings.TrimSpace(after)
			break
		}
	}
	if server == "" {
		return ianaResp, nil
	}

	return rawWhoisQuery(ctx, server+":43", domain)
}

func rawWhoisQuery(ctx context.Context, server, domain string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", server)
	if err != nil {
		return "", eris.Wrapf(err, "dns_whois: dial %s", server)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	}

	if _, err := conn.Write([]byte(domain + "\r\n")); err != nil {
		return "", eris.Wrap(err, "dns_whois: write query")
	}

	raw, err := io.ReadAll(io.LimitReader(conn, 64*1024))
	if err != nil {
		return "", eris.Wrap(err, "dns_whois: read response")
	}
	return string(raw), nil
}
