package extract

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/crunchbase-miner/internal/crunchbase"
)

// FieldIssue records one leaf that was present but could not be read.
type FieldIssue struct {
	Section string
	Path    string
	Err     error
}

func (i FieldIssue) String() string {
	return fmt.Sprintf("%s.%s: %v", i.Section, i.Path, i.Err)
}

// PartialExtractionError reports a record that was only partially normalized.
// The Company returned alongside it holds everything that could be read.
type PartialExtractionError struct {
	FailedSections []string
	SectionErrors  map[string]error
	Issues         []FieldIssue
}

// SectionsFailed is the number of top sections that could not be extracted.
func (e *PartialExtractionError) SectionsFailed() int {
	return len(e.FailedSections)
}

func (e *PartialExtractionError) Error() string {
	var b strings.Builder
	b.WriteString("partial extraction:")
	if n := len(e.FailedSections); n > 0 {
		fmt.Fprintf(&b, " %d section(s) failed [%s]", n, strings.Join(e.FailedSections, ", "))
	}
	if n := len(e.Issues); n > 0 {
		fmt.Fprintf(&b, " %d field issue(s)", n)
	}
	return b.String()
}

// Is lets errors.Is(err, crunchbase.ErrExtraction) match.
func (e *PartialExtractionError) Is(target error) bool {
	return target == crunchbase.ErrExtraction
}

func (e *PartialExtractionError) empty() bool {
	return len(e.FailedSections) == 0 && len(e.Issues) == 0
}
