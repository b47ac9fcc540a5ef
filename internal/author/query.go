// Package author matches author-name filters against document authors.
package author

import (
	"strings"

	"github.com/matsen/mendeley/internal/reference"
)

// Query is a parsed author filter.
type Query struct {
	First string // may be empty for surname-only queries
	Last  string
}

// ParseQuery parses an author filter.
//
// Supported formats:
//   - "Vaswani"         → last="Vaswani"
//   - "Ashish Vaswani"  → first="Ashish", last="Vaswani"
//   - "Vaswani, Ashish" → first="Ashish", last="Vaswani"
//   - "King Jr, Martin" → generational suffixes stay on the surname
func ParseQuery(input string) Query {
	first, last := reference.SplitName(input)
	return Query{First: first, Last: last}
}

// ParseQueries parses each non-empty filter.
func ParseQueries(inputs []string) []Query {
	out := make([]Query, 0, len(inputs))
	for _, in := range inputs {
		if q := ParseQuery(in); !q.IsEmpty() {
			out = append(out, q)
		}
	}
	return out
}

// IsEmpty reports whether the query has no surname.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Last) == ""
}

// Matches checks the query against one author.
//
// The surname must match after normalization, so case, diacritics and
// punctuation are ignored ("Gödel" matches "Godel", "O'Brien" matches
// "OBrien"). A first name, when given, must be a prefix of the author's,
// which lets "Ash Vaswani" match "Ashish Vaswani" while "Vas" never matches
// "Vaswani".
func (q Query) Matches(a reference.Author) bool {
	if q.IsEmpty() || (reference.Author{Last: q.Last}).Surname() != a.Surname() {
		return false
	}
	if q.First == "" {
		return true
	}
	return strings.HasPrefix(reference.NormalizeText(a.First), reference.NormalizeText(q.First))
}

// MatchesAny checks if the query matches any author in the list.
func (q Query) MatchesAny(authors []reference.Author) bool {
	for _, a := range authors {
		if q.Matches(a) {
			return true
		}
	}
	return false
}

// AllMatch reports whether every query matches at least one author.
func AllMatch(queries []Query, authors []reference.Author) bool {
	for _, q := range queries {
		if !q.MatchesAny(authors) {
			return false
		}
	}
	return true
}
