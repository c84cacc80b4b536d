package enrich

import (
	"strings"

	"github.com/octobees/mailprobe/internal/entity"
)

const (
	confidenceExactMatch = 0.95
	confidenceFuzzyMatch = 0.8
)

// Match is what a team listing confirmed about the address owner.
type Match struct {
	// Verified is set when a member lists the exact address.
	Verified   bool
	FirstName  string
	LastName   string
	FullName   string
	JobTitle   string
	LinkedIn   string
	Confidence float64
}

// MatchMember looks for the address owner among members. A member listing the
// same email wins outright. Otherwise a member whose name contains firstName as
// a token is a fuzzy hit; when several qualify the last one is used.
func MatchMember(email, firstName string, members []entity.TeamMember) (Match, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	firstName = strings.ToLower(strings.TrimSpace(firstName))

	var (
		fuzzy Match
		found bool
	)
	for _, m := range members {
		if m.Email != "" && strings.ToLower(strings.TrimSpace(m.Email)) == email {
			return exactMatch(m), true
		}
		if firstName == "" || m.Name == "" {
			continue
		}
		for _, tok := range strings.Fields(strings.ToLower(m.Name)) {
			if tok == firstName {
				fuzzy = Match{JobTitle: m.Title, LinkedIn: m.LinkedIn, Confidence: confidenceFuzzyMatch}
				found = true
				break
			}
		}
	}
	return fuzzy, found
}

func exactMatch(m entity.TeamMember) Match {
	match := Match{
		Verified:   true,
		FullName:   strings.TrimSpace(m.Name),
		JobTitle:   m.Title,
		LinkedIn:   m.LinkedIn,
		Confidence: confidenceExactMatch,
	}
	if tokens := strings.Fields(match.FullName); len(tokens) > 0 {
		match.FirstName = tokens[0]
		if len(tokens) > 1 {
			match.LastName = tokens[len(tokens)-1]
		}
	}
	return match
}
