// Package scanner extracts raw person candidates from HTML fragments.
// It works on a private parse of the fragment text, so the same code serves
// the live page and historical chat messages.
package scanner

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jonathan/police-terminal/internal/selectors"
	"github.com/jonathan/police-terminal/internal/types"
)

// ScanError represents a fragment that could not be parsed.
type ScanError struct {
	Origin   types.Origin
	Fragment int
	Cause    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan error: %s fragment %d: %v", e.Origin, e.Fragment, e.Cause)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

var strict = bluemonday.StrictPolicy()

// Scan returns the candidates of one domain found in an HTML fragment.
// A fragment without matches yields an empty result and a nil error.
func Scan(fragment string, domain types.Domain) ([]types.RawCandidate, error) {
	return ScanFragment(types.Fragment{Origin: types.OriginLive, HTML: fragment}, domain)
}

// ScanFragment is Scan with the fragment's origin recorded on each candidate.
func ScanFragment(fragment types.Fragment, domain types.Domain) ([]types.RawCandidate, error) {
	set := selectors.For(domain)
	if len(set.Selectors) == 0 || strings.TrimSpace(fragment.HTML) == "" {
		return nil, nil
	}

	doc, err := parse(fragment)
	if err != nil {
		return nil, err
	}

	var candidates []types.RawCandidate
	// A selector group yields each element once, in document order.
	doc.Find(set.Query()).Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		nameAttr, _ := s.Attr(set.NameAttr)
		name := set.ExtractName(class, nameAttr)
		if name == "" {
			return
		}

		text := Normalize(s.Text())
		c := types.RawCandidate{
			Domain:   domain,
			Name:     name,
			Text:     text,
			Origin:   fragment.Origin,
			Fragment: fragment.Index,
			Selector: matchedSelector(s, set),
		}

		if domain == types.DomainAvatar {
			c.Src = strings.TrimSpace(s.AttrOr("src", ""))
			c.DataAvatar = SanitizeAttr(s.AttrOr("data-avatar", ""))
			c.Value = firstNonEmpty(c.Src, c.DataAvatar, c.Text)
		} else {
			c.Value = firstNonEmpty(text, SanitizeAttr(s.AttrOr(set.ValueAttr, "")))
		}

		candidates = append(candidates, c)
	})

	return candidates, nil
}

// ScanAll scans every fragment for every domain. Candidates are ordered by
// fragment first, so scan order is preserved within each domain. Fragments
// that fail to parse are skipped and reported through the returned error.
func ScanAll(fragments []types.Fragment, domains ...types.Domain) ([]types.RawCandidate, error) {
	var (
		all  []types.RawCandidate
		errs []error
	)
	for _, f := range fragments {
		for _, d := range domains {
			found, err := ScanFragment(f, d)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			all = append(all, found...)
		}
	}
	return all, errors.Join(errs...)
}

// Contains reports whether the fragment holds at least one named candidate
// for the domain.
func Contains(fragment string, domain types.Domain) bool {
	found, err := Scan(fragment, domain)
	return err == nil && len(found) > 0
}

// Normalize collapses whitespace in element text. The text is already
// entity-decoded, so a literal "<" is kept as written.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SanitizeAttr strips markup smuggled into an attribute value and collapses
// whitespace.
func SanitizeAttr(s string) string {
	if s == "" {
		return ""
	}
	return Normalize(html.UnescapeString(strict.Sanitize(s)))
}

func parse(fragment types.Fragment) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment.HTML))
	if err != nil {
		return nil, &ScanError{Origin: fragment.Origin, Fragment: fragment.Index, Cause: err}
	}
	return doc, nil
}

func matchedSelector(s *goquery.Selection, set selectors.Set) string {
	for _, sel := range set.Selectors {
		if s.Is(sel.Query) {
			return sel.Query
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
