package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxLocationLength = 50

type aboutField int

const (
	fieldEmployees aboutField = iota
	fieldFounded
	fieldLocation
)

type aboutRule struct {
	field   aboutField
	pattern *regexp.Regexp
}

// Evaluated in order against lower-cased page text; the first rule that
// matches a field sets it.
var aboutRules = []aboutRule{
	{field: fieldEmployees, pattern: regexp.MustCompile(`(\d+[\+\-]?)\s*employees?`)},
	{field: fieldEmployees, pattern: regexp.MustCompile(`team\s+of\s+(\d+)`)},
	{field: fieldEmployees, pattern: regexp.MustCompile(`(\d+)\s+team\s+members?`)},
	{field: fieldEmployees, pattern: regexp.MustCompile(`(\d+)\s+people`)},

	{field: fieldFounded, pattern: regexp.MustCompile(`founded\s+(?:in\s+)?(\d{4})`)},
	{field: fieldFounded, pattern: regexp.MustCompile(`since\s+(\d{4})`)},
	{field: fieldFounded, pattern: regexp.MustCompile(`established\s+(?:in\s+)?(\d{4})`)},

	{field: fieldLocation, pattern: regexp.MustCompile(`headquartered?\s+in\s+([^.]+)`)},
	{field: fieldLocation, pattern: regexp.MustCompile(`based\s+in\s+([^.]+)`)},
	{field: fieldLocation, pattern: regexp.MustCompile(`located?\s+in\s+([^.]+)`)},
}

// About holds the company facts found on an about page.
type About struct {
	EmployeeCount string
	FoundedYear   string
	Location      string
}

// ParseAbout scans the page text for headcount, founding year and location.
func ParseAbout(doc *goquery.Document) About {
	text := strings.ToLower(doc.Text())

	var a About
	for _, rule := range aboutRules {
		target := a.field(rule.field)
		if *target != "" {
			continue
		}
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value := strings.TrimSpace(m[1])
		if rule.field == fieldLocation {
			value = strings.TrimSpace(truncateRunes(value, maxLocationLength))
		}
		*target = value
	}
	return a
}

func (a *About) field(f aboutField) *string {
	switch f {
	case fieldEmployees:
		return &a.EmployeeCount
	case fieldFounded:
		return &a.FoundedYear
	default:
		return &a.Location
	}
}
