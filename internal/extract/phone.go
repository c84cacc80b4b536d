package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nyaruka/phonenumbers"
)

// Phone returns the first tel: link on the page that parses as a valid number,
// formatted as E.164. Numbers without a country code are read in region.
func Phone(doc *goquery.Document, region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	var phone string
	doc.Find(`a[href^="tel:"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		raw := strings.TrimPrefix(a.AttrOr("href", ""), "tel:")
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
		phone = normalizePhone(raw, region)
		return phone == ""
	})
	return phone
}

func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
