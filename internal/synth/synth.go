// Package synth turns an aggregated dataset into an operational profile
// through the Anthropic API, with retry and anti-fabrication checks.
package synth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harnessai/orchestrator/internal/model"
	"github.com/harnessai/orchestrator/internal/resilience"
	"github.com/harnessai/orchestrator/pkg/anthropic"
)

const systemPrompt = `You are an operational intelligence analyst. You receive raw data collected from public sources about a business. Your job is to produce a structured operational profile that demonstrates analytical depth and insight.

You must return ONLY valid JSON matching the schema below. No preamble, no markdown, no explanation outside the JSON.

Your analysis should:
- Draw non-obvious inferences from the data (e.g., MX records showing Google Workspace suggests cloud-forward operations; job postings for specific roles suggest strategic priorities)
- Identify operational strengths visible in the data
- Identify potential blind spots or areas where data suggests vulnerability
- Compare against general industry baselines where possible
- Be specific and grounded - never fabricate data points
- Note where confidence is low due to limited data

Profile JSON Schema:
{
  "company_name": "string",
  "industry_classification": "string",
  "location": "string",
  "estimated_size": "string (e.g., '10-50 employees', 'Solo operator', '50-200 employees')",
  "operational_snapshot": {
    "technology_posture": "string (2-3 sentence assessment of their technology stack and what it implies)",
    "digital_maturity": "string (1-10 rating with one-sentence justification)",
    "detected_technologies": ["array of strings"],
    "infrastructure_signals": "string (what DNS/hosting/email setup implies about operational sophistication)"
  },
  "market_position": {
    "business_category": "string",
    "public_reputation": "string (review data summary and what it implies)",
    "competitive_signals": "string (2-3 sentences on what the data suggests about their competitive position)",
    "growth_indicators": "string (hiring activity, web presence expansion, etc.)"
  },
  "strategic_observations": [
    "string (3-5 non-obvious observations drawn from the data, each 1-2 sentences)"
  ],
  "identified_gaps": [
    "string (2-3 areas where deeper analysis would reveal important insights, framed as opportunities not criticisms)"
  ],
  "data_confidence": {
    "overall_score": "string (High/Medium/Low)",
    "sources_used": ["array of source names"],
    "sources_unavailable": ["array of source names that returned no data"],
    "freshness": "string (e.g., 'Data collected February 2026')"
  }
}`

// Config holds synthesis parameters.
type Config struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	Retry       resilience.RetryConfig
}

// DefaultConfig returns the standard synthesis parameters.
func DefaultConfig() Config {
	return Config{
		Model:       "claude-sonnet-4-5-20250929",
		MaxTokens:   2500,
		Temperature: 0.3,
		Retry:       resilience.DefaultRetryConfig(),
	}
}

// Result is a synthesized profile plus validation diagnostics.
type Result struct {
	Profile          model.OperationalProfile
	ValidationIssues []string
	Usage            anthropic.TokenUsage
}

// Synthesizer generates operational profiles from aggregated datasets.
type Synthesizer struct {
	client anthropic.Client
	cfg    Config

	// now is swappable in tests for a stable freshness date.
	now func() time.Time
}

// New creates a Synthesizer.
func New(client anthropic.Client, cfg Config) *Synthesizer {
	if cfg.Model == "" {
		cfg = DefaultConfig()
	}
	return &Synthesizer{client: client, cfg: cfg, now: time.Now}
}

// Model returns the configured model ID, for cost attribution.
func (s *Synthesizer) Model() string {
	return s.cfg.Model
}

// Generate produces a profile for the company from the dataset. The
// model call and the JSON parse are retried together: a malformed
// response costs an attempt just like an API failure. Validation issues
// never fail generation; they annotate it.
func (s *Synthesizer) Generate(ctx context.Context, companyName string, dataset model.AggregatedDataset) (*Result, error) {
	if s.client == nil {
		return nil, eris.New("synth: Anthropic API key not configured")
	}

	userMessage, err := s.buildUserMessage(companyName, dataset)
	if err != nil {
		return nil, err
	}

	retryCfg := s.cfg.Retry
	retryCfg.ShouldRetry = func(error) bool { return true }
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "generate profile")

	result, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*Result, error) {
		temp := s.cfg.Temperature
		resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       s.cfg.Model,
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: &temp,
			System:      []anthropic.SystemBlock{{Text: systemPrompt}},
			Messages:    []anthropic.Message{{Role: "user", Content: userMessage}},
		})
		if err != nil {
			return nil, err
		}

		var profile model.OperationalProfile
		if err := json.Unmarshal([]byte(stripFences(resp.Text())), &profile); err != nil {
			return nil, eris.Wrap(err, "synth: parse profile JSON")
		}

		return &Result{Profile: profile, Usage: resp.Usage}, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "synth: generate profile")
	}

	result.ValidationIssues = Validate(&result.Profile, dataset)
	if len(result.ValidationIssues) > 0 {
		zap.L().Warn("profile validation issues",
			zap.String("company", companyName),
			zap.Strings("issues", result.ValidationIssues))
	}

	return result, nil
}

func (s *Synthesizer) buildUserMessage(companyName string, dataset model.AggregatedDataset) (string, error) {
	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "synth: marshal dataset")
	}

	var b strings.Builder
	b.WriteString("Analyze this business data for ")
	b.WriteString(companyName)
	b.WriteString(" and generate an operational profile.\n\nRaw Data Collected:\n\n")
	b.Write(data)
	b.WriteString("\n\nCurrent date: ")
	b.WriteString(s.now().Format("January 2006"))
	b.WriteString("\n\nGenerate the operational profile JSON now.")
	return b.String(), nil
}

// stripFences unwraps a markdown code fence if the model added one
// despite instructions.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
	} else {
		return text
	}

	if end := strings.Index(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}
