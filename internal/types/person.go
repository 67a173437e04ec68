// Package types provides type definitions for the records, candidates and
// events shared across the police terminal.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// Domain is a category of scraped data with its own selector set.
type Domain string

// Domains recognised by the scanner.
const (
	DomainLocation  Domain = "location"
	DomainProgress  Domain = "progress"
	DomainAvatar    Domain = "avatar"
	DomainStatement Domain = "statement"
	DomainNews      Domain = "news"
)

// AllDomains lists every domain in a stable order.
var AllDomains = []Domain{DomainLocation, DomainProgress, DomainAvatar, DomainStatement, DomainNews}

// ParseDomain converts user input into a Domain.
func ParseDomain(s string) (Domain, error) {
	for _, d := range AllDomains {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown domain: %q", s)
}

// Position places a map marker, in percent of the map surface.
type Position struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// PersonRecord is one canonical person produced by a refresh pass.
type PersonRecord struct {
	Name      string    `json:"name"`
	Value     string    `json:"value,omitempty"`    // location text, or news body
	Progress  *int      `json:"progress,omitempty"` // progress domain only, [-100, 100]
	Avatar    string    `json:"avatar"`
	Statement string    `json:"statement"`
	Position  *Position `json:"position,omitempty"` // location domain only
}

// DomainValue returns the progress number when set, otherwise the text value.
func (r PersonRecord) DomainValue() any {
	if r.Progress != nil {
		return *r.Progress
	}
	return r.Value
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
