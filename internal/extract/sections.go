package extract

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
)

func extractIdentity(r *reader, root Node, c *crunchbase.Company) error {
	c.Name = r.str(root, "identifier.value")
	c.Permalink = r.str(root, "identifier.permalink")
	c.Description = r.str(root, "short_description")
	c.Website = r.str(root, "website.value")
	c.IPOStatus = r.str(root, "ipo_status")
	c.CompanyType = r.str(root, "overview_company_fields.company_type")
	c.FoundedOn = r.date(root, "overview_fields_extended.founded_on.value")
	c.LegalName = r.str(root, "overview_fields_extended.legal_name")
	c.NumEmployeesEnum = r.str(root, "num_employees_enum")
	c.RankOrgCompany = r.int(root, "rank_org_company")

	const categoriesPath = "overview_fields_extended.categories"
	items, err := r.values(root, categoriesPath)
	if err != nil {
		return err
	}
	categories := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		var name string
		switch v := item.(type) {
		case string:
			name = v
		default:
			obj, ok := asObject(v)
			if !ok {
				r.fail(fmt.Sprintf("%s[%d]", categoriesPath, i), fmt.Errorf("%w: %T", errNotObject, v))
				continue
			}
			value := r.str(Node(obj), "value")
			if value == nil {
				continue
			}
			name = *value
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		categories = append(categories, name)
	}
	c.Categories = categories
	return nil
}

func extractLocation(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "location_identifiers")
	if err != nil {
		return err
	}
	var city, region, country *string
	for _, item := range items {
		kind := r.str(item, "location_type")
		value := r.str(item, "value")
		if kind == nil || value == nil {
			continue
		}
		switch strings.ToLower(*kind) {
		case "city":
			city = firstSet(city, value)
		case "region":
			region = firstSet(region, value)
		case "country":
			country = firstSet(country, value)
		}
	}
	c.LocationCity, c.LocationRegion, c.LocationCountry = city, region, country
	return nil
}

func extractFinancial(r *reader, root Node, c *crunchbase.Company) error {
	c.TotalFundingUSD = r.int(root, "funding_total.value_usd")
	c.LastFundingType = r.str(root, "last_funding_type")
	c.LastFundingAt = r.date(root, "funding_rounds_summary.last_funding_at")
	return nil
}

func extractFundingRounds(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "funding_rounds_list")
	if err != nil {
		return err
	}
	rounds := make([]crunchbase.FundingRound, 0, len(items))
	for _, item := range items {
		if !item.Has("identifier") {
			continue
		}
		rounds = append(rounds, crunchbase.FundingRound{
			Name:           r.str(item, "identifier.value"),
			Permalink:      r.str(item, "identifier.permalink"),
			AnnouncedOn:    r.date(item, "announced_on"),
			MoneyRaisedUSD: r.int(item, "money_raised.value_usd"),
			NumInvestors:   r.int(item, "num_investors"),
			LeadInvestors:  leadInvestors(r, item),
		})
	}
	c.FundingRounds = rounds
	return nil
}

// leadInvestors keeps only entries that carry a lead investor block.
func leadInvestors(r *reader, round Node) []crunchbase.Investor {
	items := r.list(round, "lead_investors")
	out := make([]crunchbase.Investor, 0, len(items))
	for _, item := range items {
		if !item.Has("lead_investor_identifier") {
			continue
		}
		out = append(out, crunchbase.Investor{
			Name:            r.str(item, "lead_investor_identifier.value"),
			Permalink:       r.str(item, "lead_investor_identifier.permalink"),
			InvestmentTitle: r.str(item, "investment_identifier.value"),
			Partners:        []crunchbase.Person{},
		})
	}
	return out
}

func extractInvestors(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "investors_list")
	if err != nil {
		return err
	}
	investors := make([]crunchbase.Investor, 0, len(items))
	for _, item := range items {
		if !item.Has("investor_identifier") {
			continue
		}
		investors = append(investors, crunchbase.Investor{
			Name:            r.str(item, "investor_identifier.value"),
			Permalink:       r.str(item, "investor_identifier.permalink"),
			InvestmentTitle: r.str(item, "investment_identifier.value"),
			Partners:        partners(r, item),
		})
	}
	c.Investors = investors
	return nil
}

func partners(r *reader, investor Node) []crunchbase.Person {
	items := r.list(investor, "partner_identifiers")
	out := make([]crunchbase.Person, 0, len(items))
	for _, item := range items {
		if !item.Has("value") {
			continue
		}
		out = append(out, crunchbase.Person{
			Name:      r.str(item, "value"),
			Permalink: r.str(item, "permalink"),
		})
	}
	return out
}

func extractAcquisitions(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "acquisitions_list")
	if err != nil {
		return err
	}
	acquirees := make([]crunchbase.Acquiree, 0, len(items))
	for _, item := range items {
		if !item.Has("acquiree_identifier") {
			continue
		}
		acquirees = append(acquirees, crunchbase.Acquiree{
			Name:        r.str(item, "acquiree_identifier.value"),
			Permalink:   r.str(item, "acquiree_identifier.permalink"),
			Acquisition: acquisition(r, item, "identifier"),
		})
	}

	var acquirer *crunchbase.Acquirer
	if by, ok := r.object(root, "acquired_by_fields"); ok && by.Has("acquirer_identifier") {
		acquirer = &crunchbase.Acquirer{
			Name:        r.str(by, "acquirer_identifier.value"),
			Permalink:   r.str(by, "acquirer_identifier.permalink"),
			Acquisition: acquisition(r, by, "acquisition_identifier"),
		}
	}

	c.Acquirees = acquirees
	c.Acquirer = acquirer
	return nil
}

// acquisition reads the transaction details next to an acquirer or acquiree.
// It returns nil when none of them are present.
func acquisition(r *reader, n Node, identifier string) *crunchbase.Acquisition {
	a := crunchbase.Acquisition{
		Title:     r.str(n, identifier+".value"),
		Permalink: r.str(n, identifier+".permalink"),
		PriceUSD:  r.int(n, "price.value_usd"),
		Date:      r.date(n, "announced_on.value"),
	}
	if a.Title == nil && a.Permalink == nil && a.PriceUSD == nil && a.Date == nil {
		return nil
	}
	return &a
}

func extractSimilarCompanies(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "org_similarity_list")
	if err != nil {
		return err
	}
	similar := make([]crunchbase.SimilarCompany, 0, len(items))
	for _, item := range items {
		if !item.Has("similarity_target_identifier") {
			continue
		}
		similar = append(similar, crunchbase.SimilarCompany{
			Name:        r.str(item, "similarity_target_identifier.value"),
			Permalink:   r.str(item, "similarity_target_identifier.permalink"),
			Description: r.str(item, "short_description"),
		})
	}
	c.SimilarCompanies = similar
	return nil
}

func extractEmployees(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "current_employees_featured_order_field")
	if err != nil {
		return err
	}
	employees := make([]crunchbase.Person, 0, len(items))
	for _, item := range items {
		if !item.Has("person_identifier") {
			continue
		}
		employees = append(employees, crunchbase.Person{
			Name:      r.str(item, "person_identifier.value"),
			Permalink: r.str(item, "person_identifier.permalink"),
			Title:     r.str(item, "title"),
			StartDate: r.date(item, "started_on.value"),
			Email:     r.str(item, "contact.email"),
			Phone:     r.str(item, "contact.phone"),
			LinkedIn:  r.str(item, "linkedin.value"),
		})
	}
	c.Employees = employees
	return nil
}

func extractEvents(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "event_appearances_list")
	if err != nil {
		return err
	}
	events := make([]crunchbase.Event, 0, len(items))
	for _, item := range items {
		if !item.Has("event_identifier") {
			continue
		}
		events = append(events, crunchbase.Event{
			Name:            r.str(item, "event_identifier.value"),
			Permalink:       r.str(item, "event_identifier.permalink"),
			InteractionType: r.str(item, "appearance_type"),
		})
	}
	c.Events = events
	return nil
}

func extractActivities(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "overview_timeline.entities")
	if err != nil {
		return err
	}
	activities := make([]crunchbase.Activity, 0, len(items))
	for _, item := range items {
		props, ok := r.object(item, "properties")
		if !ok {
			continue
		}
		activities = append(activities, crunchbase.Activity{
			Title:        r.str(props, "title"),
			ActivityType: r.str(props, "activity_type"),
			Author:       r.str(props, "author"),
			Publisher:    r.str(props, "publisher"),
			Date:         r.date(props, "activity_date"),
			URL:          r.str(props, "url.value"),
		})
	}
	c.Activities = activities
	return nil
}

func extractWebsiteTraffic(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "semrush_location_list")
	if err != nil {
		return err
	}
	traffic := make([]crunchbase.WebsiteTraffic, 0, len(items))
	for _, item := range items {
		if !item.Has("location_identifier") {
			continue
		}
		traffic = append(traffic, crunchbase.WebsiteTraffic{
			Location:   r.str(item, "location_identifier.value"),
			VisitsPct:  r.float(item, "visits_pct"),
			Rank:       r.int(item, "rank"),
			RankMoMPct: r.float(item, "rank_mom_pct"),
		})
	}
	c.CountryData = traffic
	return nil
}

func extractTechnologies(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "builtwith_tech")
	if err != nil {
		return err
	}
	technologies := make([]crunchbase.Technology, 0, len(items))
	for _, item := range items {
		if !item.Has("identifier") {
			continue
		}
		technologies = append(technologies, crunchbase.Technology{
			Name:              r.str(item, "identifier.value"),
			Category:          r.str(item, "tech_category"),
			NumOfCompanyUsing: r.int(item, "num_companies_using"),
		})
	}
	c.Technologies = technologies
	return nil
}

func extractContacts(r *reader, root Node, c *crunchbase.Company) error {
	items, err := r.rootList(root, "contacts")
	if err != nil {
		return err
	}
	contacts := make([]crunchbase.Person, 0, len(items))
	for _, item := range items {
		if !item.Has("name") {
			continue
		}
		contacts = append(contacts, crunchbase.Person{
			Name:      r.str(item, "name"),
			JobTitles: r.strs(item, "job_titles"),
			Email:     r.str(item, "email"),
			Phone:     r.str(item, "phone"),
			LinkedIn:  r.str(item, "linkedin.value"),
		})
	}
	c.Contacts = contacts
	return nil
}

func extractStatistics(r *reader, root Node, c *crunchbase.Company) error {
	c.BuiltWithNumTechnologies = r.int(root, "technology_highlights.builtwith_num_technologies_used")
	c.ApptopiaTotalApps = r.int(root, "apptopia_summary.apptopia_total_apps")
	c.ApptopiaTotalDownloads = r.int(root, "apptopia_summary.apptopia_total_downloads")
	c.Email = r.str(root, "contact_fields.contact_email")
	c.Phone = r.str(root, "contact_fields.phone_number")
	c.NumPatents = r.int(root, "ipqwery_summary.ipqwery_num_patent_granted")
	c.NumTrademarks = r.int(root, "ipqwery_summary.ipqwery_num_trademark_registered")
	c.PopularTrademarkClass = r.str(root, "ipqwery_summary.ipqwery_popular_trademark_class")
	c.SemrushRank = r.int(root, "semrush_summary.semrush_global_rank")
	c.SemrushVisitsLastMonth = r.int(root, "semrush_summary.semrush_visits_latest_month")
	c.SemrushVisitsMoMPct = r.float(root, "semrush_rank_headline.semrush_visits_mom_pct")
	c.SifteryNumProducts = r.int(root, "siftery_summary.siftery_num_products")
	return nil
}

func extractMetadata(r *reader, root Node, c *crunchbase.Company) error {
	c.GrowthInsight = r.str(root, "growth_insight_description.value")

	v, ok := root.Lookup("social_fields")
	if !ok {
		return nil
	}
	fields, ok := asObject(v)
	if !ok {
		return fmt.Errorf("social_fields: %w: %T", errNotObject, v)
	}
	social := make(map[string]string, len(fields))
	for platform, raw := range fields {
		switch link := raw.(type) {
		case nil:
		case string:
			social[platform] = link
		default:
			obj, ok := asObject(link)
			if !ok {
				r.fail("social_fields."+platform, fmt.Errorf("%w: %T", errNotObject, link))
				continue
			}
			value, ok := obj["value"].(string)
			if !ok {
				if obj["value"] != nil {
					r.fail("social_fields."+platform+".value", fmt.Errorf("%w: %T", errNotString, obj["value"]))
				}
				continue
			}
			social[platform] = value
		}
	}
	c.SocialMedia = social
	return nil
}

func firstSet(current, candidate *string) *string {
	if current != nil {
		return current
	}
	return candidate
}
