package extract

import "regexp"

const maxTechnologies = 10

type signature struct {
	name    string
	pattern *regexp.Regexp
}

// Reported in declaration order.
var signatures = []signature{
	{name: "WordPress", pattern: regexp.MustCompile(`(?i)wp-content|wordpress`)},
	{name: "Shopify", pattern: regexp.MustCompile(`(?i)cdn\.shopify\.com|Shopify\.`)},
	{name: "Wix", pattern: regexp.MustCompile(`(?i)wixsite\.com|wix\.com`)},
	{name: "Squarespace", pattern: regexp.MustCompile(`(?i)squarespace\.com`)},
	{name: "React", pattern: regexp.MustCompile(`(?i)react|__REACT`)},
	{name: "Vue.js", pattern: regexp.MustCompile(`(?i)vue\.js|__VUE`)},
	{name: "Angular", pattern: regexp.MustCompile(`(?i)ng-version|angular`)},
	{name: "Next.js", pattern: regexp.MustCompile(`(?i)__NEXT_DATA__`)},
	{name: "Google Analytics", pattern: regexp.MustCompile(`(?i)google-analytics\.com|gtag\(|ga\(`)},
	{name: "Google Tag Manager", pattern: regexp.MustCompile(`(?i)googletagmanager\.com`)},
	{name: "Segment", pattern: regexp.MustCompile(`(?i)segment\.com|analytics\.js`)},
	{name: "Mixpanel", pattern: regexp.MustCompile(`(?i)mixpanel\.com`)},
	{name: "HubSpot", pattern: regexp.MustCompile(`(?i)hubspot\.com|hs-scripts`)},
	{name: "Intercom", pattern: regexp.MustCompile(`(?i)intercom\.io`)},
	{name: "Drift", pattern: regexp.MustCompile(`(?i)drift\.com`)},
	{name: "Stripe", pattern: regexp.MustCompile(`(?i)stripe\.com`)},
	{name: "PayPal", pattern: regexp.MustCompile(`(?i)paypal\.com`)},
}

// Technologies fingerprints markup, returning at most ten names.
func Technologies(markup string) []string {
	var found []string
	for _, sig := range signatures {
		if len(found) == maxTechnologies {
			break
		}
		if sig.pattern.MatchString(markup) {
			found = append(found, sig.name)
		}
	}
	return found
}
