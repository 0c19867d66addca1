package provider

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/harnessai/orchestrator/internal/model"
	"github.com/harnessai/orchestrator/pkg/serpapi"
)

const (
	maxJobsExamined = 10
	maxRecentJobs   = 5
)

// departmentKeywords maps title substrings to the hiring department.
var departmentKeywords = []struct {
	department string
	keywords   []string
}{
	{"Engineering", []string{"engineer", "developer", "software", "tech", "devops", "sre"}},
	{"Sales", []string{"sales", "account", "business development"}},
	{"Marketing", []string{"marketing", "content", "brand", "seo", "growth"}},
	{"Human Resources", []string{"hr", "human resources", "recruiter", "people"}},
	{"Finance", []string{"finance", "accounting", "controller", "cfo"}},
	{"Operations", []string{"operations", "ops", "logistics", "supply"}},
	{"Product", []string{"product", "pm", "product manager"}},
	{"Design", []string{"design", "ux", "ui", "creative"}},
	{"Customer Success", []string{"customer", "support", "success"}},
}

// seniorityKeywords maps title substrings to a seniority band, checked
// in order. Titles matching nothing are mid-level.
var seniorityKeywords = []struct {
	level    string
	keywords []string
}{
	{"Intern", []string{"intern", "internship"}},
	{"Junior", []string{"junior", "entry", "associate", "jr"}},
	{"Senior", []string{"senior", "sr", "lead", "principal"}},
	{"Manager", []string{"manager", "director", "head of"}},
	{"Executive", []string{"vp", "vice president", "chief", "cto", "ceo", "cfo"}},
}

// JobScanner surveys the company's open positions through the Google
// Jobs search engine.
type JobScanner struct {
	client serpapi.Client
}

// NewJobScanner creates a JobScanner over a SerpAPI client.
func NewJobScanner(client serpapi.Client) *JobScanner {
	return &JobScanner{client: client}
}

func (j *JobScanner) Name() string { return model.SourceJobScanner }

// Collect searches for the company's postings and infers department and
// seniority structure from the titles. Zero postings is still a
// success: silence is a hiring signal too.
func (j *JobScanner) Collect(ctx context.Context, subject Subject) (model.ProviderResult, error) {
	if j.client == nil {
		return model.ProviderResult{}, eris.New("job_scanner: SerpAPI key not configured")
	}

	resp, err := j.client.GoogleJobs(ctx, subject.CompanyName+" jobs")
	if err != nil {
		return model.ProviderResult{}, err
	}

	facts := &model.JobFacts{TotalPositions: len(resp.JobsResults)}

	departments := make(map[string]struct{})
	seniority := make(map[string]struct{})

	jobs := resp.JobsResults
	if len(jobs) > maxJobsExamined {
		jobs = jobs[:maxJobsExamined]
	}
	for _, job := range jobs {
		facts.JobTitles = append(facts.JobTitles, job.Title)

		titleLower := strings.ToLower(job.Title)
		if dept := inferDepartment(titleLower); dept != "" {
			departments[dept] = struct{}{}
		}
		seniority[inferSeniority(titleLower)] = struct{}{}

		if len(facts.RecentPostings) < maxRecentJobs {
			facts.RecentPostings = append(facts.RecentPostings, model.JobPosting{
				Title:    job.Title,
				Company:  job.CompanyName,
				Location: job.Location,
				Posted:   job.DetectedExtensions.PostedAt,
			})
		}
	}

	facts.Departments = sortedKeys(departments)
	facts.SeniorityLevels = sortedKeys(seniority)

	return model.ProviderResult{
		Source:  model.SourceJobScanner,
		Outcome: model.OutcomeOK,
		Success: true,
		Jobs:    facts,
	}, nil
}

func inferDepartment(title string) string {
	for _, d := range departmentKeywords {
		for _, kw := range d.keywords {
			if strings.Contains(title, kw) {
				return d.department
			}
		}
	}
	return ""
}

func inferSeniority(title string) string {
	for _, s := range seniorityKeywords {
		for _, kw := range s.keywords {
			if strings.Contains(title, kw) {
				return s.level
			}
		}
	}
	return "Mid-level"
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
