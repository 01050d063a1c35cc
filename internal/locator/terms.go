package locator

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/0xbhavyaalag/EcoSphere/internal/domain"
)

// SearchTerms builds the ordered office queries for an area, most specific first.
// Terms that differ only in case or accents are dropped after their first use.
func SearchTerms(area domain.AdminArea) []string {
	city := strings.TrimSpace(area.City)
	state := strings.TrimSpace(area.State)

	var terms []string
	if city != "" {
		terms = append(terms,
			city+" municipal corporation",
			city+" municipal office",
			city+" city corporation",
			city+" municipality",
			"municipal corporation "+city,
			city+" waste management",
			city+" sanitation department",
		)
	}
	if state != "" {
		terms = append(terms, state+" municipal office")
		if city == "" {
			terms = append(terms, state+" municipal corporation")
		}
	}

	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		key := foldTerm(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// foldTerm lowercases, strips diacritics and collapses whitespace.
func foldTerm(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.ToLower(s),
	)
	return strings.Join(strings.Fields(s), " ")
}
