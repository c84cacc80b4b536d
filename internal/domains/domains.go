// Package domains classifies mail domains as disposable or consumer providers.
package domains

import (
	_ "embed"
	"strings"
)

//go:embed disposable.txt
var rawDisposable string

//go:embed free_providers.txt
var rawFreeProviders string

// Lists holds the domain sets used during validation and enrichment.
type Lists struct {
	disposable map[string]struct{}
	free       map[string]struct{}
}

// Default returns the lists shipped with the binary.
func Default() *Lists {
	return New(parseList(rawDisposable), parseList(rawFreeProviders))
}

// New builds lists from explicit domain slices.
func New(disposable, free []string) *Lists {
	return &Lists{disposable: toSet(disposable), free: toSet(free)}
}

// IsDisposable reports whether domain belongs to a throwaway mailbox provider.
func (l *Lists) IsDisposable(domain string) bool {
	_, ok := l.disposable[strings.ToLower(domain)]
	return ok
}

// IsFreeProvider reports whether domain is a consumer mailbox provider.
func (l *Lists) IsFreeProvider(domain string) bool {
	_, ok := l.free[strings.ToLower(domain)]
	return ok
}

func parseList(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			out = append(out, line)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}
