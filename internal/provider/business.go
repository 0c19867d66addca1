package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/harnessai/orchestrator/internal/model"
	"github.com/harnessai/orchestrator/pkg/places"
)

// BusinessLookup finds the company's public listing through the Google
// Places API.
type BusinessLookup struct {
	client places.Client
}

// NewBusinessLookup creates a BusinessLookup over a Places client.
func NewBusinessLookup(client places.Client) *BusinessLookup {
	return &BusinessLookup{client: client}
}

func (b *BusinessLookup) Name() string { return model.SourceGoogleBusiness }

// Collect text-searches for the company and takes the top match.
func (b *BusinessLookup) Collect(ctx context.Context, subject Subject) (model.ProviderResult, error) {
	if b.client == nil {
		return model.ProviderResult{}, eris.New("google_business: Places API key not configured")
	}

	// Including the domain disambiguates similarly named businesses.
	resp, err := b.client.TextSearch(ctx, subject.CompanyName+" "+subject.Domain)
	if err != nil {
		return model.ProviderResult{}, err
	}
	if len(resp.Places) == 0 {
		return model.ProviderResult{}, eris.Errorf("google_business: no results found for %s", subject.CompanyName)
	}

	place := resp.Places[0]
	facts := &model.BusinessFacts{
		Name:        place.DisplayName.Text,
		Rating:      place.Rating,
		ReviewCount: place.UserRatingCount,
		Address:     place.FormattedAddress,
		Phone:       place.NationalPhoneNumber,
		Website:     place.WebsiteURI,
	}
	if len(place.Types) > 0 {
		facts.BusinessCategory = place.Types[0]
	}

	return model.ProviderResult{
		Source:   model.SourceGoogleBusiness,
		Outcome:  model.OutcomeOK,
		Success:  true,
		Business: facts,
	}, nil
}
