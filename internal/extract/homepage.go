// Package extract pulls company facts out of fetched HTML pages.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MarkupLimit is how many characters of homepage markup are kept for fingerprinting.
const MarkupLimit = 5000

type socialRule struct {
	platform string
	pattern  *regexp.Regexp
}

// Evaluated in order; the first match per platform wins.
var socialRules = []socialRule{
	{platform: "linkedin", pattern: regexp.MustCompile(`linkedin\.com/company/([^/\s"]+)`)},
	{platform: "twitter", pattern: regexp.MustCompile(`twitter\.com/([^/\s"]+)`)},
	{platform: "facebook", pattern: regexp.MustCompile(`facebook\.com/([^/\s"]+)`)},
	{platform: "github", pattern: regexp.MustCompile(`github\.com/([^/\s"]+)`)},
}

// Homepage holds what the landing page reveals.
type Homepage struct {
	CompanyName string
	Description string
	SocialLinks map[string]string
	// Markup is the leading slice of raw HTML used by Technologies.
	Markup string
}

// ParseHomepage reads the title, meta description and social profile links.
func ParseHomepage(doc *goquery.Document, markup string) Homepage {
	h := Homepage{
		CompanyName: companyNameFromTitle(doc.Find("title").First().Text()),
		Description: strings.TrimSpace(doc.Find(`meta[name="description"]`).First().AttrOr("content", "")),
		SocialLinks: socialLinks(markup),
		Markup:      truncateRunes(markup, MarkupLimit),
	}
	return h
}

// companyNameFromTitle keeps the part of the title before the first "|", then before the first "-".
func companyNameFromTitle(title string) string {
	name, _, _ := strings.Cut(title, "|")
	name, _, _ = strings.Cut(name, "-")
	return strings.TrimSpace(name)
}

func socialLinks(markup string) map[string]string {
	links := make(map[string]string)
	for _, rule := range socialRules {
		if match := rule.pattern.FindString(markup); match != "" {
			links[rule.platform] = "https://" + match
		}
	}
	return links
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
