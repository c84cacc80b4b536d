// Package enrich derives people and company details for an email address.
package enrich

import (
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	confidenceFullName  = 0.6
	confidenceOneToken  = 0.4
	confidenceLocalPart = 0.3
)

// Identity is the person guessed from an address local part.
type Identity struct {
	FirstName  string
	LastName   string
	FullName   string
	Confidence float64
}

// DeriveIdentity splits local parts such as "jane.doe" or "j_doe" into title-cased
// name tokens. A local part without separators becomes the first and full name.
func DeriveIdentity(local string) Identity {
	caser := cases.Title(language.Und)
	local = strings.TrimSpace(local)
	if local == "" {
		return Identity{}
	}

	if !strings.ContainsAny(local, "._-") {
		name := titleWord(caser, local)
		return Identity{FirstName: name, FullName: name, Confidence: confidenceLocalPart}
	}

	tokens := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(tokens) == 0 {
		return Identity{}
	}
	for i, tok := range tokens {
		tokens[i] = titleWord(caser, tok)
	}

	id := Identity{
		FirstName:  tokens[0],
		FullName:   strings.Join(tokens, " "),
		Confidence: confidenceOneToken,
	}
	if len(tokens) > 1 {
		id.LastName = tokens[len(tokens)-1]
		id.Confidence = confidenceFullName
	}
	return id
}

// titleWord title-cases tok and also capitalises the letter after an
// apostrophe, so "o'brien" becomes "O'Brien".
func titleWord(caser cases.Caser, tok string) string {
	runes := []rune(caser.String(tok))
	for i := 1; i < len(runes); i++ {
		if runes[i-1] == '\'' {
			runes[i] = unicode.ToUpper(runes[i])
		}
	}
	return string(runes)
}

// CompanyNameFromDomain turns the registrable label of domain into a display
// name: "mail.unknown-co.example" becomes "Unknown Co".
func CompanyNameFromDomain(domain string) string {
	domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return ""
	}

	label := domain
	if registrable, err := publicsuffix.EffectiveTLDPlusOne(domain); err == nil {
		suffix, _ := publicsuffix.PublicSuffix(registrable)
		label = strings.TrimSuffix(registrable, "."+suffix)
	} else if first, _, ok := strings.Cut(domain, "."); ok {
		label = first
	}

	label = strings.Join(strings.Fields(strings.ReplaceAll(label, "-", " ")), " ")
	return cases.Title(language.Und).String(label)
}
