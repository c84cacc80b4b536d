package mx

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

// Lookuper performs the raw MX query for a domain.
type Lookuper interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// DNSClient queries a single nameserver directly instead of the system resolver.
type DNSClient struct {
	server string
	client *dns.Client
}

// NewDNSClient targets server ("host" or "host:port", port 53 by default).
func NewDNSClient(server string, timeout time.Duration) *DNSClient {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSClient{
		server: server,
		client: &dns.Client{Timeout: timeout},
	}
}

// LookupMX returns the MX answers for domain. NXDOMAIN is reported as a
// not-found *net.DNSError so callers can treat both backends alike.
func (c *DNSClient) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	m.RecursionDesired = true

	resp, _, err := c.client.ExchangeContext(ctx, m, c.server)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s for %s", c.server, domain)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, &net.DNSError{Err: "no such host", Name: domain, Server: c.server, IsNotFound: true}
	default:
		return nil, errors.Errorf("query %s for %s: rcode %s", c.server, domain, dns.RcodeToString[resp.Rcode])
	}

	var records []*net.MX
	for _, ans := range resp.Answer {
		if rr, ok := ans.(*dns.MX); ok {
			records = append(records, &net.MX{Host: rr.Mx, Pref: rr.Preference})
		}
	}
	return records, nil
}

// PreferredHost picks the record with the lowest preference and strips the
// trailing dot. Null MX records (".") yield an empty host.
func PreferredHost(records []*net.MX) string {
	var best *net.MX
	for _, r := range records {
		if r == nil {
			continue
		}
		if best == nil || r.Pref < best.Pref {
			best = r
		}
	}
	if best == nil {
		return ""
	}
	return strings.TrimSuffix(best.Host, ".")
}
