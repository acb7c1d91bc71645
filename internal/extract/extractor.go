// Package extract turns raw crunchbase actor payloads into normalized company records.
package extract

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
)

var errNilRecord = errors.New("raw record is nil")

// section extracts one group of fields into the company. A returned error
// fails only that section.
type section struct {
	name  string
	apply func(r *reader, root Node, c *crunchbase.Company) error
}

var sections = []section{
	{name: "identity", apply: extractIdentity},
	{name: "location", apply: extractLocation},
	{name: "financial", apply: extractFinancial},
	{name: "funding_rounds", apply: extractFundingRounds},
	{name: "investors", apply: extractInvestors},
	{name: "acquisitions", apply: extractAcquisitions},
	{name: "similar_companies", apply: extractSimilarCompanies},
	{name: "employees", apply: extractEmployees},
	{name: "events", apply: extractEvents},
	{name: "activities", apply: extractActivities},
	{name: "website_traffic", apply: extractWebsiteTraffic},
	{name: "technologies", apply: extractTechnologies},
	{name: "contacts", apply: extractContacts},
	{name: "statistics", apply: extractStatistics},
	{name: "metadata", apply: extractMetadata},
}

// SectionNames lists the top sections in extraction order.
func SectionNames() []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.name
	}
	return names
}

// Extractor normalizes raw records. It holds no per-record state and is safe
// for concurrent use.
type Extractor struct {
	logger *zap.Logger
}

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract builds one Company from one raw record. Each section is extracted
// independently. When a section fails or a present leaf cannot be read, the
// partially populated Company is returned together with a
// *PartialExtractionError; the error never means the record is unusable.
func (e *Extractor) Extract(raw crunchbase.RawRecord) (crunchbase.Company, error) {
	var company crunchbase.Company
	report := &PartialExtractionError{SectionErrors: map[string]error{}}

	if raw == nil {
		for _, s := range sections {
			report.FailedSections = append(report.FailedSections, s.name)
			report.SectionErrors[s.name] = errNilRecord
		}
		e.logger.Warn("raw record is nil, returning empty company")
		return company, report
	}

	root := Node(raw)
	for _, s := range sections {
		r := &reader{section: s.name}
		if err := runSection(s, r, root, &company); err != nil {
			report.FailedSections = append(report.FailedSections, s.name)
			report.SectionErrors[s.name] = err
			e.logger.Warn("section extraction failed",
				zap.String("section", s.name),
				zap.Error(err),
			)
		}
		for _, issue := range r.issues {
			e.logger.Warn("field dropped",
				zap.String("section", issue.Section),
				zap.String("path", issue.Path),
				zap.Error(issue.Err),
			)
		}
		report.Issues = append(report.Issues, r.issues...)
	}

	if report.empty() {
		return company, nil
	}
	return company, report
}

func runSection(s section, r *reader, root Node, c *crunchbase.Company) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return s.apply(r, root, c)
}
