package enrich

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/octobees/mailprobe/internal/entity"
	"github.com/octobees/mailprobe/internal/extract"
)

const (
	DefaultMaxPages    = 4
	DefaultPhoneRegion = "US"
)

type pageKind int

const (
	pageHome pageKind = iota
	pageAbout
	pageTeam
	pageContact
	pageCareers
)

type page struct {
	path string
	kind pageKind
}

// Fetched in order until the page budget runs out.
var crawlPlan = []page{
	{path: "", kind: pageHome},
	{path: "about", kind: pageAbout},
	{path: "about-us", kind: pageAbout},
	{path: "team", kind: pageTeam},
	{path: "our-team", kind: pageTeam},
	{path: "people", kind: pageTeam},
	{path: "contact", kind: pageContact},
	{path: "careers", kind: pageCareers},
}

// Fetcher downloads a page body. ok is false for any failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body string, ok bool)
}

// WebsiteEnricher crawls a company site and folds what it finds into a profile.
type WebsiteEnricher struct {
	fetcher  Fetcher
	maxPages int
	region   string
	log      logrus.FieldLogger
}

// Option configures a WebsiteEnricher.
type Option func(*WebsiteEnricher)

// WithMaxPages limits how many entries of the crawl plan are visited.
func WithMaxPages(n int) Option {
	return func(e *WebsiteEnricher) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// WithPhoneRegion sets the region used for numbers without a country code.
func WithPhoneRegion(region string) Option {
	return func(e *WebsiteEnricher) {
		if region = strings.TrimSpace(region); region != "" {
			e.region = strings.ToUpper(region)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *WebsiteEnricher) {
		if log != nil {
			e.log = log
		}
	}
}

// NewWebsiteEnricher builds an enricher on top of fetcher.
func NewWebsiteEnricher(fetcher Fetcher, opts ...Option) *WebsiteEnricher {
	e := &WebsiteEnricher{
		fetcher:  fetcher,
		maxPages: DefaultMaxPages,
		region:   DefaultPhoneRegion,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich visits the planned pages of https://domain sequentially. A field set by
// one page kind is never overwritten by another kind, while a later page of the
// same kind replaces the fields it found. Team members from every team page are
// collected. Pages that fail to load or parse are skipped.
func (e *WebsiteEnricher) Enrich(ctx context.Context, domain string) *entity.CompanyProfile {
	base := "https://" + domain
	profile := &entity.CompanyProfile{
		Website:     base,
		SocialLinks: map[string]string{},
	}

	plan := crawlPlan
	if e.maxPages < len(plan) {
		plan = plan[:e.maxPages]
	}

	var markup string
	merge := fieldMerger{owners: make(map[*string]pageKind)}
	for _, p := range plan {
		url := base
		if p.path != "" {
			url = base + "/" + p.path
		}
		log := e.log.WithFields(logrus.Fields{"domain": domain, "url": url})

		body, ok := e.fetcher.Fetch(ctx, url)
		if !ok {
			log.Debug("page skipped")
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			log.WithError(err).Debug("page not parsable")
			continue
		}

		switch p.kind {
		case pageHome:
			home := extract.ParseHomepage(doc, body)
			merge.set(&profile.Name, home.CompanyName, p.kind)
			merge.set(&profile.Description, home.Description, p.kind)
			for platform, link := range home.SocialLinks {
				if _, exists := profile.SocialLinks[platform]; !exists {
					profile.SocialLinks[platform] = link
				}
			}
			if markup == "" {
				markup = home.Markup
			}
			merge.set(&profile.Phone, extract.Phone(doc, e.region), p.kind)
		case pageAbout:
			about := extract.ParseAbout(doc)
			merge.set(&profile.Size, about.EmployeeCount, p.kind)
			merge.set(&profile.FoundedYear, about.FoundedYear, p.kind)
			merge.set(&profile.Location, about.Location, p.kind)
		case pageTeam:
			profile.TeamMembers = append(profile.TeamMembers, extract.ParseTeam(doc)...)
		case pageContact:
			merge.set(&profile.Phone, extract.Phone(doc, e.region), p.kind)
		case pageCareers:
		}
	}

	if markup != "" {
		profile.Technologies = extract.Technologies(markup)
	}
	e.log.WithFields(logrus.Fields{
		"domain":  domain,
		"company": profile.Name,
		"members": len(profile.TeamMembers),
	}).Debug("website enriched")
	return profile
}

// fieldMerger remembers which page kind filled each profile field.
type fieldMerger struct {
	owners map[*string]pageKind
}

func (m fieldMerger) set(dst *string, value string, kind pageKind) {
	if value == "" {
		return
	}
	if owner, ok := m.owners[dst]; ok && owner != kind {
		return
	}
	*dst = value
	m.owners[dst] = kind
}
