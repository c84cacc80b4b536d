package entity

import "time"

// DataSource records how the identity fields of an enrichment were obtained.
type DataSource string

const (
	DataSourceSkipped         DataSource = "skipped_invalid"
	DataSourcePatternMatch    DataSource = "pattern_match"
	DataSourceWebScraped      DataSource = "web_scraped"
	DataSourceScrapedVerified DataSource = "web_scraped_verified"
)

// TeamMember is a person listed on a company team page.
type TeamMember struct {
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
	Email    string `json:"email,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
}

// CompanyProfile aggregates what the website crawl found about a company.
type CompanyProfile struct {
	Name         string            `json:"name,omitempty"`
	Website      string            `json:"website,omitempty"`
	Description  string            `json:"description,omitempty"`
	Size         string            `json:"size,omitempty"`
	Location     string            `json:"location,omitempty"`
	FoundedYear  string            `json:"founded_year,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Technologies []string          `json:"technologies,omitempty"`
	SocialLinks  map[string]string `json:"social_links,omitempty"`
	TeamMembers  []TeamMember      `json:"team_members,omitempty"`
}

// EnrichmentResult extends a validation with identity and company data.
type EnrichmentResult struct {
	ValidationResult

	FirstName   *string         `json:"first_name"`
	LastName    *string         `json:"last_name"`
	FullName    *string         `json:"full_name"`
	JobTitle    *string         `json:"job_title"`
	LinkedInURL *string         `json:"linkedin_url"`
	Company     *CompanyProfile `json:"company,omitempty"`
	DataSource  DataSource      `json:"data_source"`
	Confidence  float64         `json:"confidence"`
	EnrichedAt  time.Time       `json:"enriched_at"`
}

// StringPtr returns nil for empty strings and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
