// Package crunchbase defines the core types shared across the miner's subsystems.
package crunchbase

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
)

// SourceName tags every record submitted to the analytics backend.
const SourceName = "crunchbase"

// RawRecord is one undecoded dataset item produced by the scraping actor.
// No key is guaranteed to be present.
type RawRecord map[string]any

// Company is the normalized, flat company record. Every field is optional.
// The num_* counters are derived from the corresponding lists at serialization
// time and cannot be set independently.
type Company struct {
	// identity
	Name             *string     `json:"name"`
	Description      *string     `json:"description"`
	Permalink        *string     `json:"permalink"`
	Website          *string     `json:"website"`
	IPOStatus        *string     `json:"ipo_status"`
	CompanyType      *string     `json:"company_type"`
	FoundedOn        *civil.Date `json:"founded_on"`
	Categories       []string    `json:"categories"`
	LegalName        *string     `json:"legal_name"`
	NumEmployeesEnum *string     `json:"num_employees_enum"`
	RankOrgCompany   *int64      `json:"rank_org_company"`

	// location
	LocationCity    *string `json:"location_city"`
	LocationRegion  *string `json:"location_region"`
	LocationCountry *string `json:"location_country"`

	// financial
	FundingRounds   []FundingRound `json:"funding_rounds"`
	TotalFundingUSD *int64         `json:"total_funding_usd"`
	LastFundingType *string        `json:"last_funding_type"`
	LastFundingAt   *civil.Date    `json:"last_funding_at"`
	Investors       []Investor     `json:"investors"`

	// acquisitions
	Acquirer  *Acquirer  `json:"acquirer"`
	Acquirees []Acquiree `json:"acquirees"`

	// provider statistics
	Technologies             []Technology `json:"technologies"`
	BuiltWithNumTechnologies *int64       `json:"builtwith_num_technologies"`
	ApptopiaTotalApps        *int64       `json:"apptopia_total_apps"`
	ApptopiaTotalDownloads   *int64       `json:"apptopia_total_downloads"`
	Email                    *string      `json:"email"`
	Phone                    *string      `json:"phone"`
	Contacts                 []Person     `json:"contacts"`
	NumPatents               *int64       `json:"num_patents"`
	NumTrademarks            *int64       `json:"num_trademarks"`
	PopularTrademarkClass    *string      `json:"popular_trademark_class"`
	SemrushRank              *int64       `json:"semrush_rank"`
	SemrushVisitsLastMonth   *int64       `json:"semrush_visits_last_month"`
	SemrushVisitsMoMPct      *float64     `json:"semrush_visits_mom_pct"`
	SifteryNumProducts       *int64       `json:"siftery_num_products"`

	// relationships
	SimilarCompanies []SimilarCompany `json:"similar_companies"`
	Employees        []Person         `json:"employees"`
	Events           []Event          `json:"events"`
	Activities       []Activity       `json:"activities"`
	CountryData      []WebsiteTraffic `json:"country_data"`

	// free text and metadata
	SocialMedia   map[string]string `json:"social_media"`
	GrowthInsight *string           `json:"growth_insight"`
}

// NumFundingRounds reports the number of extracted funding rounds.
func (c Company) NumFundingRounds() int { return len(c.FundingRounds) }

// NumInvestors reports the number of extracted investors.
func (c Company) NumInvestors() int { return len(c.Investors) }

// NumAcquirees reports the number of extracted acquisitions made by the company.
func (c Company) NumAcquirees() int { return len(c.Acquirees) }

// NumSimilarCompanies reports the number of extracted similar companies.
func (c Company) NumSimilarCompanies() int { return len(c.SimilarCompanies) }

// NumEmployees reports the number of extracted featured employees.
func (c Company) NumEmployees() int { return len(c.Employees) }

// NumEventAppearances reports the number of extracted event appearances.
func (c Company) NumEventAppearances() int { return len(c.Events) }

// NumActivity reports the number of extracted timeline activities.
func (c Company) NumActivity() int { return len(c.Activities) }

// NumCountryData reports the number of extracted website traffic rows.
func (c Company) NumCountryData() int { return len(c.CountryData) }

// NumTechnologies reports the number of extracted technologies.
func (c Company) NumTechnologies() int { return len(c.Technologies) }

// NumContacts reports the number of extracted contacts.
func (c Company) NumContacts() int { return len(c.Contacts) }

// NumContactEmails reports how many contacts carry an email address.
func (c Company) NumContactEmails() int {
	n := 0
	for _, p := range c.Contacts {
		if p.Email != nil && *p.Email != "" {
			n++
		}
	}
	return n
}

// NumContactPhones reports how many contacts carry a phone number.
func (c Company) NumContactPhones() int {
	n := 0
	for _, p := range c.Contacts {
		if p.Phone != nil && *p.Phone != "" {
			n++
		}
	}
	return n
}

// MarshalJSON serializes the record together with its derived counters.
func (c Company) MarshalJSON() ([]byte, error) {
	type plain Company
	out := struct {
		plain
		NumFundingRounds    int `json:"num_funding_rounds"`
		NumInvestors        int `json:"num_investors"`
		NumAcquirees        int `json:"num_acquirees"`
		NumSimilarCompanies int `json:"num_similar_companies"`
		NumEmployees        int `json:"num_employees"`
		NumEventAppearances int `json:"num_event_appearances"`
		NumActivity         int `json:"num_activity"`
		NumCountryData      int `json:"num_country_data"`
		NumTechnologies     int `json:"num_technologies"`
		NumContact          int `json:"num_contact"`
		NumContactEmail     int `json:"num_contact_email"`
		NumContactPhone     int `json:"num_contact_phone"`
	}{
		plain:               plain(c),
		NumFundingRounds:    c.NumFundingRounds(),
		NumInvestors:        c.NumInvestors(),
		NumAcquirees:        c.NumAcquirees(),
		NumSimilarCompanies: c.NumSimilarCompanies(),
		NumEmployees:        c.NumEmployees(),
		NumEventAppearances: c.NumEventAppearances(),
		NumActivity:         c.NumActivity(),
		NumCountryData:      c.NumCountryData(),
		NumTechnologies:     c.NumTechnologies(),
		NumContact:          c.NumContacts(),
		NumContactEmail:     c.NumContactEmails(),
		NumContactPhone:     c.NumContactPhones(),
	}
	return json.Marshal(out)
}

// FundingRound describes one funding round of the company.
type FundingRound struct {
	Name           *string     `json:"name"`
	Permalink      *string     `json:"permalink"`
	AnnouncedOn    *civil.Date `json:"announced_on"`
	MoneyRaisedUSD *int64      `json:"money_raised_usd"`
	NumInvestors   *int64      `json:"num_investors"`
	LeadInvestors  []Investor  `json:"lead_investors"`
}

// Investor is an organization or person that invested in the company.
type Investor struct {
	Name            *string  `json:"name"`
	InvestmentTitle *string  `json:"investment_title"`
	Permalink       *string  `json:"permalink"`
	Partners        []Person `json:"partners"`
}

// Person is an employee, contact or investment partner.
type Person struct {
	Name      *string     `json:"name"`
	Title     *string     `json:"title"`
	JobTitles []string    `json:"job_titles"`
	Permalink *string     `json:"permalink"`
	Email     *string     `json:"email"`
	StartDate *civil.Date `json:"start_date"`
	Phone     *string     `json:"phone"`
	LinkedIn  *string     `json:"linkedin"`
}

// Technology is one entry of the company's detected web technology stack.
type Technology struct {
	Name              *string `json:"name"`
	Category          *string `json:"category"`
	NumOfCompanyUsing *int64  `json:"num_of_company_using"`
}

// Acquisition describes one acquisition transaction.
type Acquisition struct {
	Title     *string     `json:"title"`
	Permalink *string     `json:"permalink"`
	PriceUSD  *int64      `json:"price_usd"`
	Date      *civil.Date `json:"date"`
}

// Acquirer is the organization that acquired the company.
type Acquirer struct {
	Name        *string      `json:"name"`
	Permalink   *string      `json:"permalink"`
	Acquisition *Acquisition `json:"acquisition"`
}

// Acquiree is an organization acquired by the company.
type Acquiree struct {
	Name        *string      `json:"name"`
	Permalink   *string      `json:"permalink"`
	Acquisition *Acquisition `json:"acquisition"`
}

// SimilarCompany is a competitor or peer listed on the profile.
type SimilarCompany struct {
	Name        *string `json:"name"`
	Permalink   *string `json:"permalink"`
	Description *string `json:"description"`
}

// Event is an event the company appeared at.
type Event struct {
	Name            *string `json:"name"`
	Permalink       *string `json:"permalink"`
	InteractionType *string `json:"interaction_type"`
}

// Activity is one entry of the profile's news timeline.
type Activity struct {
	Title        *string     `json:"title"`
	ActivityType *string     `json:"activity_type"`
	Author       *string     `json:"author"`
	Publisher    *string     `json:"publisher"`
	Date         *civil.Date `json:"date"`
	URL          *string     `json:"url"`
}

// WebsiteTraffic is the per-country website traffic breakdown.
type WebsiteTraffic struct {
	Location   *string  `json:"location"`
	VisitsPct  *float64 `json:"visits_pct"`
	Rank       *int64   `json:"rank"`
	RankMoMPct *float64 `json:"rank_mom_pct"`
}

// CompaniesRequest is the inbound batch of companies to mine.
type CompaniesRequest struct {
	TaskID    int64                          `json:"task_id"`
	Companies map[string]map[string][]string `json:"companies"`
}

// Submission is one normalized record forwarded to the analytics backend.
type Submission struct {
	SourceName string  `json:"source_name"`
	CompanyID  string  `json:"company_id"`
	RawData    Company `json:"raw_data"`
}

// ErrorInfo describes why a company could not be mined.
type ErrorInfo struct {
	ErrorType        string `json:"error_type"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TaskReport is sent to the analytics backend once a batch finished.
type TaskReport struct {
	TaskID int64                `json:"task_id"`
	Errors map[string]ErrorInfo `json:"errors,omitempty"`
}

// TaskRecord summarizes one processed batch for the task ledger.
type TaskRecord struct {
	TaskID     int64
	BatchID    string
	Requested  int
	Delivered  int
	Errors     map[string]ErrorInfo
	StartedAt  time.Time
	FinishedAt time.Time
}

// DiscoveryRequest asks to resolve one company name.
type DiscoveryRequest struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
}

// DiscoveryResponse holds the resolved profile handles of one company.
type DiscoveryResponse struct {
	Handles []string `json:"handles"`
}

// FinalDiscoveryResponse is returned by the discovery endpoints.
type FinalDiscoveryResponse struct {
	Identifiers map[string]DiscoveryResponse `json:"identifiers"`
	Validity    time.Time                    `json:"validity"`
}
