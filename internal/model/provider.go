package model

// Outcome tags how a provider call finished. Failure is a value the
// fan-out coordinator aggregates, never a propagated error.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// Provider source names. These appear in aggregated datasets, scorer
// output, and synthesis prompts, so they are fixed identifiers.
const (
	SourceSiteScraper    = "site_scraper"
	SourceTechDetector   = "tech_detector"
	SourceDNSWhois       = "dns_whois"
	SourceGoogleBusiness = "google_business"
	SourceJobScanner     = "job_scanner"
)

// ProviderResult is the uniform envelope every provider returns. Exactly
// one of the payload pointers is set, matching Source, and only when
// Success is true. Error is present iff Success is false.
type ProviderResult struct {
	Source  string  `json:"source"`
	Outcome Outcome `json:"outcome"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`

	Site     *SiteFacts     `json:"site,omitempty"`
	Tech     *TechFacts     `json:"tech,omitempty"`
	DNSWhois *DNSWhoisFacts `json:"dns_whois,omitempty"`
	Business *BusinessFacts `json:"business,omitempty"`
	Jobs     *JobFacts      `json:"jobs,omitempty"`
}

// FailedResult builds a failure envelope for a provider.
func FailedResult(source string, outcome Outcome, errMsg string) ProviderResult {
	return ProviderResult{
		Source:  source,
		Outcome: outcome,
		Success: false,
		Error:   errMsg,
	}
}

// SiteFacts is what the website scraper extracted from the company site.
type SiteFacts struct {
	URL                string   `json:"url"`
	Title              string   `json:"title,omitempty"`
	MetaDescription    string   `json:"meta_description,omitempty"`
	VisibleText        string   `json:"visible_text,omitempty"`
	NavigationItems    []string `json:"navigation_items,omitempty"`
	InternalLinksCount int      `json:"internal_links_count"`
	AboutContent       string   `json:"about_content,omitempty"`
	ServicesContent    string   `json:"services_content,omitempty"`
	TeamContent        string   `json:"team_content,omitempty"`
	LocationMentions   []string `json:"location_mentions,omitempty"`
	IsSPA              bool     `json:"is_spa"`
}

// TechDetection is one technology identified on the company site.
type TechDetection struct {
	Name       string   `json:"name"`
	Confidence int      `json:"confidence"`
	Evidence   []string `json:"evidence,omitempty"`
}

// TechFacts holds the technology detector's findings.
type TechFacts struct {
	URL      string          `json:"url"`
	Detected []TechDetection `json:"detected"`
}

// Names returns the detected technology names.
func (t *TechFacts) Names() []string {
	names := make([]string, 0, len(t.Detected))
	for _, d := range t.Detected {
		names = append(names, d.Name)
	}
	return names
}

// DNSFacts holds DNS lookup results for the company domain.
type DNSFacts struct {
	MXRecords     []string `json:"mx_records,omitempty"`
	TXTRecords    []string `json:"txt_records,omitempty"`
	Nameservers   []string `json:"nameservers,omitempty"`
	EmailProvider string   `json:"email_provider,omitempty"`
	HasSPF        bool     `json:"has_spf"`
	HasDMARC      bool     `json:"has_dmarc"`
}

// WhoisFacts holds registration facts for the company domain.
type WhoisFacts struct {
	Registrar      string `json:"registrar,omitempty"`
	CreationDate   string `json:"creation_date,omitempty"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	DomainAgeYears int    `json:"domain_age_years,omitempty"`
}

// DNSWhoisFacts combines both lookups for the dns_whois provider.
type DNSWhoisFacts struct {
	Domain string     `json:"domain"`
	DNS    DNSFacts   `json:"dns"`
	Whois  WhoisFacts `json:"whois"`
}

// BusinessFacts holds the business-listing provider's findings.
type BusinessFacts struct {
	PlaceID          string   `json:"place_id,omitempty"`
	Name             string   `json:"name,omitempty"`
	Rating           float64  `json:"rating,omitempty"`
	ReviewCount      int      `json:"review_count,omitempty"`
	BusinessCategory string   `json:"business_category,omitempty"`
	Address          string   `json:"address,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Website          string   `json:"website,omitempty"`
	Hours            []string `json:"hours,omitempty"`
}

// JobPosting is a single open position found for the company.
type JobPosting struct {
	Title    string `json:"title"`
	Company  string `json:"company,omitempty"`
	Location string `json:"location,omitempty"`
	Posted   string `json:"posted,omitempty"`
}

// JobFacts holds the hiring-signal provider's findings.
type JobFacts struct {
	TotalPositions  int          `json:"total_positions"`
	JobTitles       []string     `json:"job_titles,omitempty"`
	Departments     []string     `json:"departments,omitempty"`
	SeniorityLevels []string     `json:"seniority_levels,omitempty"`
	RecentPostings  []JobPosting `json:"recent_postings,omitempty"`
}

// AggregatedDataset maps provider source name to its result. The fan-out
// coordinator always produces one entry per configured provider, even
// when every provider fails.
type AggregatedDataset map[string]ProviderResult

// Get returns the result for a source and whether it succeeded.
func (d AggregatedDataset) Get(source string) (ProviderResult, bool) {
	r, ok := d[source]
	return r, ok && r.Success
}
