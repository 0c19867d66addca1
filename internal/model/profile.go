package model

import "time"

// OperationalProfile is the structured narrative the synthesizer produces.
// Field names match the JSON schema embedded in the synthesis prompt.
type OperationalProfile struct {
	CompanyName            string              `json:"company_name"`
	IndustryClassification string              `json:"industry_classification"`
	Location               string              `json:"location"`
	EstimatedSize          string              `json:"estimated_size"`
	OperationalSnapshot    OperationalSnapshot `json:"operational_snapshot"`
	MarketPosition         MarketPosition      `json:"market_position"`
	StrategicObservations  []string            `json:"strategic_observations"`
	IdentifiedGaps         []string            `json:"identified_gaps"`
	DataConfidence         DataConfidence      `json:"data_confidence"`
}

// OperationalSnapshot assesses the company's technology posture.
type OperationalSnapshot struct {
	TechnologyPosture     string   `json:"technology_posture"`
	DigitalMaturity       string   `json:"digital_maturity"`
	DetectedTechnologies  []string `json:"detected_technologies"`
	InfrastructureSignals string   `json:"infrastructure_signals"`
}

// MarketPosition assesses the company's standing from public signals.
type MarketPosition struct {
	BusinessCategory   string `json:"business_category"`
	PublicReputation   string `json:"public_reputation"`
	CompetitiveSignals string `json:"competitive_signals"`
	GrowthIndicators   string `json:"growth_indicators"`
}

// DataConfidence reports how well-grounded the profile is.
type DataConfidence struct {
	OverallScore       string   `json:"overall_score"`
	SourcesUsed        []string `json:"sources_used"`
	SourcesUnavailable []string `json:"sources_unavailable"`
	Freshness          string   `json:"freshness"`
}

// Profile is the persisted record of a synthesized profile. Created at
// most once per submission and immutable afterward. ValidationIssues
// carries anti-fabrication diagnostics; they are advisory and never
// block persistence.
type Profile struct {
	ID           int64              `json:"id"`
	SubmissionID int64              `json:"submission_id"`
	Payload      OperationalProfile `json:"payload"`
	SourcesUsed  []string           `json:"sources_used"`
	// SourcesUnavailable comes from the sufficiency scorer, not from the
	// payload's data_confidence block. The narrative's own claim is never
	// trusted for this column.
	SourcesUnavailable []string  `json:"sources_unavailable,omitempty"`
	ConfidenceScore    string    `json:"confidence_score"`
	ValidationIssues   []string  `json:"validation_issues,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Feedback is a submitter's rating of a delivered profile.
type Feedback struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profile_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
