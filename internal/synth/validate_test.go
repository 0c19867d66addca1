package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harnessai/orchestrator/internal/model"
)

func techDataset(names ...string) model.AggregatedDataset {
	detected := make([]model.TechDetection, len(names))
	for i, n := range names {
		detected[i] = model.TechDetection{Name: n, Confidence: 50}
	}
	return model.AggregatedDataset{
		model.SourceTechDetector: {
			Source: model.SourceTechDetector, Outcome: model.OutcomeOK, Success: true,
			Tech: &model.TechFacts{Detected: detected},
		},
	}
}

func TestValidate_TechClaimsMatchDetector(t *testing.T) {
	profile := &model.OperationalProfile{}
	profile.OperationalSnapshot.DetectedTechnologies = []string{"WordPress", "Cloudflare"}

	issues := Validate(profile, techDataset("WordPress", "Cloudflare", "jQuery"))
	assert.Empty(t, issues)
}

func TestValidate_UnknownTechFlagged(t *testing.T) {
	profile := &model.OperationalProfile{}
	profile.OperationalSnapshot.DetectedTechnologies = []string{"WordPress", "Kubernetes", "Terraform"}

	issues := Validate(profile, techDataset("WordPress"))
	assert.Len(t, issues, 2)
	assert.Contains(t, issues[0], "Kubernetes")
	assert.Contains(t, issues[1], "Terraform")
}

func TestValidate_NoDetectorDataSkipsTechCheck(t *testing.T) {
	profile := &model.OperationalProfile{}
	profile.OperationalSnapshot.DetectedTechnologies = []string{"Anything"}

	issues := Validate(profile, model.AggregatedDataset{})
	assert.Empty(t, issues)
}

func TestValidate_RatingClaimWithoutBusinessData(t *testing.T) {
	profile := &model.OperationalProfile{}
	profile.MarketPosition.PublicReputation = "The company holds a 4.8 star rating with customers."

	issues := Validate(profile, model.AggregatedDataset{})
	assert.Len(t, issues, 1)
	assert.Contains(t, issues[0], "review data")
}

func TestValidate_RatingClaimAdmittingMissingDataPasses(t *testing.T) {
	profile := &model.OperationalProfile{}
	profile.MarketPosition.PublicReputation = "Rating data unavailable for this business."

	issues := Validate(profile, model.AggregatedDataset{})
	assert.Empty(t, issues)
}

func TestValidate_RatingClaimWithBusinessDataPasses(t *testing.T) {
	profile := &model.OperationalProfile{}
	profile.MarketPosition.PublicReputation = "4.6 rating across 89 reviews."

	dataset := model.AggregatedDataset{
		model.SourceGoogleBusiness: {
			Source: model.SourceGoogleBusiness, Outcome: model.OutcomeOK, Success: true,
			Business: &model.BusinessFacts{Rating: 4.6},
		},
	}
	assert.Empty(t, Validate(profile, dataset))
}
