package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/octobees/mailprobe/internal/entity"
)

const maxMembersPerSelector = 20

var memberSelectors = []string{
	".team-member",
	".staff-member",
	".person",
	"article.team",
	`div[class*="team"]`,
	`div[class*="staff"]`,
}

var (
	nameClass  = regexp.MustCompile(`name|title`)
	titleClass = regexp.MustCompile(`title|role|position`)
)

// ParseTeam collects people listed in team containers. Members without a name
// are dropped; a member matched by several selectors is kept once.
func ParseTeam(doc *goquery.Document) []entity.TeamMember {
	var (
		members []entity.TeamMember
		seen    = make(map[entity.TeamMember]struct{})
	)
	for _, selector := range memberSelectors {
		containers := doc.Find(selector)
		if containers.Length() > maxMembersPerSelector {
			containers = containers.Slice(0, maxMembersPerSelector)
		}
		containers.Each(func(_ int, s *goquery.Selection) {
			m, ok := parseMember(s)
			if !ok {
				return
			}
			if _, dup := seen[m]; dup {
				return
			}
			seen[m] = struct{}{}
			members = append(members, m)
		})
	}
	return members
}

func parseMember(s *goquery.Selection) (entity.TeamMember, bool) {
	var m entity.TeamMember

	if tag := firstWithClass(s.Find("h2, h3, h4, h5, span"), nameClass); tag != nil {
		m.Name = strings.TrimSpace(tag.Text())
	}
	if tag := firstWithClass(s.Find("p, span, div"), titleClass); tag != nil {
		m.Title = strings.TrimSpace(tag.Text())
	}
	if href, ok := s.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
		addr := strings.TrimPrefix(href, "mailto:")
		addr, _, _ = strings.Cut(addr, "?")
		m.Email = strings.TrimSpace(addr)
	}
	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if strings.Contains(href, "linkedin.com") {
			m.LinkedIn = href
			return false
		}
		return true
	})

	return m, m.Name != ""
}

// firstWithClass returns the first element, in document order, that has a
// class token matching pattern.
func firstWithClass(sel *goquery.Selection, pattern *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	sel.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		for _, class := range strings.Fields(el.AttrOr("class", "")) {
			if pattern.MatchString(class) {
				found = el
				return false
			}
		}
		return true
	})
	return found
}
