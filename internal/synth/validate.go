package synth

import (
	"fmt"
	"strings"

	"github.com/harnessai/orchestrator/internal/model"
)

// Validate cross-checks the generated profile against the collected
// dataset and reports fabrication signals. Issues are advisory; the
// profile is still delivered with the annotations attached.
func Validate(profile *model.OperationalProfile, dataset model.AggregatedDataset) []string {
	var issues []string

	// Every technology the profile names must come from the detector.
	if tech, ok := dataset.Get(model.SourceTechDetector); ok && tech.Tech != nil {
		known := make(map[string]struct{}, len(tech.Tech.Detected))
		for _, d := range tech.Tech.Detected {
			known[d.Name] = struct{}{}
		}
		for _, name := range profile.OperationalSnapshot.DetectedTechnologies {
			if _, ok := known[name]; !ok {
				issues = append(issues, fmt.Sprintf("Technology '%s' not found in detector output", name))
			}
		}
	}

	// Reputation claims need business data behind them, unless the text
	// itself admits the data is missing.
	if _, ok := dataset.Get(model.SourceGoogleBusiness); !ok {
		reputation := strings.ToLower(profile.MarketPosition.PublicReputation)
		claimsRating := strings.Contains(reputation, "stars") || strings.Contains(reputation, "rating")
		admitsMissing := strings.Contains(reputation, "no data") || strings.Contains(reputation, "unavailable")
		if claimsRating && !admitsMissing {
			issues = append(issues, "Profile claims review data but Google Business data was unavailable")
		}
	}

	return issues
}
