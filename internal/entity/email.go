package entity

import (
	"strings"

	"golang.org/x/net/idna"
)

// EmailAddress is a normalized address split into its parts.
type EmailAddress struct {
	Raw    string
	Local  string
	Domain string
	// ASCIIDomain is the IDNA lookup form used for DNS and SMTP.
	ASCIIDomain string
}

// ParseEmailAddress trims and lower-cases raw, then splits it at the last "@".
// Addresses without "@" keep the whole string as Local and an empty Domain.
func ParseEmailAddress(raw string) EmailAddress {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	addr := EmailAddress{Raw: normalized, Local: normalized}

	at := strings.LastIndex(normalized, "@")
	if at < 0 {
		return addr
	}
	addr.Local = normalized[:at]
	addr.Domain = normalized[at+1:]
	addr.ASCIIDomain = addr.Domain
	if ascii, err := idna.Lookup.ToASCII(addr.Domain); err == nil && ascii != "" {
		addr.ASCIIDomain = ascii
	}
	return addr
}

// String returns the normalized address.
func (a EmailAddress) String() string {
	return a.Raw
}
