// Package scorer decides whether an aggregated dataset carries enough
// signal to synthesize a meaningful profile.
package scorer

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/harnessai/orchestrator/internal/model"
)

// Source display names as they appear in delivered profiles.
const (
	DisplayWebsite  = "Website Content"
	DisplayTech     = "Technology Stack"
	DisplayDNS      = "DNS Records"
	DisplayWhois    = "Domain WHOIS"
	DisplayBusiness = "Google Business Profile"
	DisplayJobs     = "Job Postings"
)

// Weights assigns sufficiency points per signal. Job postings
// contribute to the source list but never to the score: hiring data is
// nice to have, not load-bearing.
type Weights struct {
	Site      int `yaml:"site"`
	Tech      int `yaml:"tech"`
	MX        int `yaml:"mx"`
	Registrar int `yaml:"registrar"`
	Rating    int `yaml:"rating"`
	Threshold int `yaml:"threshold"`
}

// DefaultWeights returns the standard weight table. The site scrape
// counts double; everything else is a single point, with sufficiency at
// three points.
func DefaultWeights() Weights {
	return Weights{
		Site:      2,
		Tech:      1,
		MX:        1,
		Registrar: 1,
		Rating:    1,
		Threshold: 3,
	}
}

// LoadWeights reads a weight table from a YAML file. Zero-valued fields
// fall back to the defaults.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, eris.Wrapf(err, "scorer: read weights %s", path)
	}

	w := DefaultWeights()
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, eris.Wrapf(err, "scorer: parse weights %s", path)
	}
	return w, nil
}

// Assessment is the scorer's verdict on a dataset.
type Assessment struct {
	Sufficient bool
	Score      int
	// SourcesUsed holds display names of signals that contributed.
	SourcesUsed []string
	// SourcesUnavailable holds display names of signals that did not.
	SourcesUnavailable []string
}

// Scorer scores aggregated datasets against a weight table.
type Scorer struct {
	weights Weights
}

// New creates a Scorer.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Assess walks the dataset and tallies sufficiency points. A source
// counts only when its payload actually carries the load-bearing
// signal, not merely because the provider returned.
func (s *Scorer) Assess(dataset model.AggregatedDataset) Assessment {
	var a Assessment

	use := func(name string, points int) {
		a.SourcesUsed = append(a.SourcesUsed, name)
		a.Score += points
	}
	miss := func(name string) {
		a.SourcesUnavailable = append(a.SourcesUnavailable, name)
	}

	if r, ok := dataset.Get(model.SourceSiteScraper); ok && r.Site != nil {
		use(DisplayWebsite, s.weights.Site)
	} else {
		miss(DisplayWebsite)
	}

	if r, ok := dataset.Get(model.SourceTechDetector); ok && r.Tech != nil && len(r.Tech.Detected) > 0 {
		use(DisplayTech, s.weights.Tech)
	} else {
		miss(DisplayTech)
	}

	if r, ok := dataset.Get(model.SourceDNSWhois); ok && r.DNSWhois != nil {
		if len(r.DNSWhois.DNS.MXRecords) > 0 {
			use(DisplayDNS, s.weights.MX)
		} else {
			miss(DisplayDNS)
		}
		if r.DNSWhois.Whois.Registrar != "" {
			use(DisplayWhois, s.weights.Registrar)
		} else {
			miss(DisplayWhois)
		}
	} else {
		miss(DisplayDNS)
		miss(DisplayWhois)
	}

	if r, ok := dataset.Get(model.SourceGoogleBusiness); ok && r.Business != nil && r.Business.Rating > 0 {
		use(DisplayBusiness, s.weights.Rating)
	} else {
		miss(DisplayBusiness)
	}

	if r, ok := dataset.Get(model.SourceJobScanner); ok && r.Jobs != nil && r.Jobs.TotalPositions > 0 {
		use(DisplayJobs, 0)
	} else {
		miss(DisplayJobs)
	}

	a.Sufficient = a.Score >= s.weights.Threshold
	return a
}
