// Package selectors holds the ordered structural patterns used to find
// person data inside arbitrary markup.
package selectors

import (
	"strings"

	"github.com/jonathan/police-terminal/internal/types"
)

// Kind describes how a selector carries the person name.
type Kind int

const (
	// ClassPrefix matches a class token "<prefix><name>".
	ClassPrefix Kind = iota
	// ClassWrapped matches a class token "<prefix><name><suffix>".
	ClassWrapped
	// Attribute matches an element carrying Attr; the name comes from the
	// domain's name attribute.
	Attribute
)

// Selector is one pattern of a domain's selector set.
type Selector struct {
	Query  string // CSS query used to locate candidate elements
	Kind   Kind
	Prefix string
	Suffix string
	Attr   string
}

// Set is the ordered selector list of one domain.
type Set struct {
	Domain    types.Domain
	Selectors []Selector
	NameAttr  string // fallback attribute holding the name
	ValueAttr string // attribute holding the value when text is empty
}

// personSet builds the five-pattern set shared by the person domains.
func personSet(domain types.Domain) Set {
	d := string(domain)
	return Set{
		Domain: domain,
		Selectors: []Selector{
			{Query: `[class*="person-` + d + `-"]`, Kind: ClassPrefix, Prefix: "person-" + d + "-"},
			{Query: `[class*="` + d + `-person-"]`, Kind: ClassPrefix, Prefix: d + "-person-"},
			{Query: `[class*="person` + d + `-"]`, Kind: ClassPrefix, Prefix: "person" + d + "-"},
			{Query: `[class^="person-"][class*="-` + d + `"]`, Kind: ClassWrapped, Prefix: "person-", Suffix: "-" + d},
			{Query: `[data-` + d + `]`, Kind: Attribute, Attr: "data-" + d},
		},
		NameAttr:  "data-person",
		ValueAttr: "data-" + d,
	}
}

var sets = map[types.Domain]Set{
	types.DomainLocation:  personSet(types.DomainLocation),
	types.DomainAvatar:    personSet(types.DomainAvatar),
	types.DomainProgress:  personSet(types.DomainProgress),
	types.DomainStatement: personSet(types.DomainStatement),
	types.DomainNews: {
		Domain: types.DomainNews,
		Selectors: []Selector{
			{Query: `[class*="news-item-"]`, Kind: ClassPrefix, Prefix: "news-item-"},
			{Query: `[class*="item-news-"]`, Kind: ClassPrefix, Prefix: "item-news-"},
			{Query: `[class*="newsitem-"]`, Kind: ClassPrefix, Prefix: "newsitem-"},
			{Query: `[data-news]`, Kind: Attribute, Attr: "data-news"},
		},
		NameAttr:  "data-headline",
		ValueAttr: "data-news",
	},
}

// For returns the selector set of a domain. Unknown domains get an empty set.
func For(domain types.Domain) Set {
	set, ok := sets[domain]
	if !ok {
		return Set{Domain: domain}
	}
	// copy so callers cannot reorder the shared slice
	set.Selectors = append([]Selector(nil), set.Selectors...)
	return set
}

// Query joins every selector of the set into one CSS selector group.
func (s Set) Query() string {
	queries := make([]string, 0, len(s.Selectors))
	for _, sel := range s.Selectors {
		queries = append(queries, sel.Query)
	}
	return strings.Join(queries, ", ")
}

// ExtractName derives a person name from an element's class attribute,
// falling back to the name attribute value. Class patterns are tried in
// priority order; the first pattern matching any class token wins.
func (s Set) ExtractName(classAttr, nameAttrValue string) string {
	tokens := strings.Fields(classAttr)
	for _, sel := range s.Selectors {
		for _, tok := range tokens {
			if name := sel.nameFrom(tok); name != "" {
				return name
			}
		}
	}
	return strings.TrimSpace(nameAttrValue)
}

// nameFrom strips the selector's fixed parts from a class token.
func (sel Selector) nameFrom(token string) string {
	switch sel.Kind {
	case ClassPrefix:
		if strings.HasPrefix(token, sel.Prefix) {
			return strings.TrimPrefix(token, sel.Prefix)
		}
	case ClassWrapped:
		if len(token) > len(sel.Prefix)+len(sel.Suffix) &&
			strings.HasPrefix(token, sel.Prefix) && strings.HasSuffix(token, sel.Suffix) {
			return token[len(sel.Prefix) : len(token)-len(sel.Suffix)]
		}
	}
	return ""
}
