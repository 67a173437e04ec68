package scanner

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/police-terminal/internal/selectors"
	"github.com/jonathan/police-terminal/internal/types"
)

// maxPotentialTextLength bounds the text of elements reported as possible
// but unrecognised data.
const maxPotentialTextLength = 50

// SelectorCount is the number of elements one selector matched.
type SelectorCount struct {
	Selector string `json:"selector"`
	Count    int    `json:"count"`
}

// Element describes one element seen by the diagnostics pass.
type Element struct {
	Name     string       `json:"name,omitempty"`
	Text     string       `json:"text"`
	Tag      string       `json:"tag"`
	Class    string       `json:"class"`
	Origin   types.Origin `json:"origin"`
	Fragment int          `json:"fragment"`
}

// Report summarises how a domain's selectors behave on a set of fragments.
type Report struct {
	Domain     types.Domain    `json:"domain"`
	Matched    []Element       `json:"matched"`
	BySelector []SelectorCount `json:"by_selector"`
	Potential  []Element       `json:"potential"`
	Errors     []string        `json:"errors,omitempty"`
}

// Diagnose reports per-selector match counts, every matched element, and
// elements that look like domain data but match no selector.
func Diagnose(fragments []types.Fragment, domain types.Domain) Report {
	set := selectors.For(domain)
	report := Report{Domain: domain}
	counts := make([]int, len(set.Selectors))

	for _, f := range fragments {
		if strings.TrimSpace(f.HTML) == "" {
			continue
		}
		doc, err := parse(f)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}

		for i, sel := range set.Selectors {
			counts[i] += doc.Find(sel.Query).Length()
		}

		query := set.Query()
		if query == "" {
			continue
		}
		matched := doc.Find(query)
		matched.Each(func(_ int, s *goquery.Selection) {
			class := s.AttrOr("class", "")
			report.Matched = append(report.Matched, Element{
				Name:     set.ExtractName(class, s.AttrOr(set.NameAttr, "")),
				Text:     Normalize(s.Text()),
				Tag:      goquery.NodeName(s),
				Class:    class,
				Origin:   f.Origin,
				Fragment: f.Index,
			})
		})

		doc.Find("[class]").Not(query).Each(func(_ int, s *goquery.Selection) {
			class := s.AttrOr("class", "")
			if !looksLikeData(class, domain) {
				return
			}
			text := Normalize(s.Text())
			if text == "" || utf8.RuneCountInString(text) >= maxPotentialTextLength {
				return
			}
			report.Potential = append(report.Potential, Element{
				Text:     text,
				Tag:      goquery.NodeName(s),
				Class:    class,
				Origin:   f.Origin,
				Fragment: f.Index,
			})
		})
	}

	for i, sel := range set.Selectors {
		if counts[i] > 0 {
			report.BySelector = append(report.BySelector, SelectorCount{Selector: sel.Query, Count: counts[i]})
		}
	}
	return report
}

func looksLikeData(class string, domain types.Domain) bool {
	lower := strings.ToLower(class)
	return strings.Contains(lower, string(domain)) || strings.Contains(lower, "person")
}
