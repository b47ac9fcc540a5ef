// Package reference defines the domain types shared by the library index and
// the reference matcher: citations, authors, bibliographic keys, and
// external identifiers.
package reference

// Citation is a bibliographic reference taken from a paper's reference list.
// Authors are free-form names ("Ashish Vaswani", "Vaswani, A.", "Vaswani").
type Citation struct {
	Title       string            `json:"title"`
	Authors     []string          `json:"authors,omitempty"`
	Year        int               `json:"year,omitempty"` // 0 if unknown
	Identifiers map[string]string `json:"identifiers,omitempty"`
}

// Surnames returns the normalized surnames of the citation's authors.
func (c Citation) Surnames() []string {
	out := make([]string, 0, len(c.Authors))
	for _, a := range c.Authors {
		if s := SurnameOf(a); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FirstSurname returns the normalized surname of the first author, or "".
func (c Citation) FirstSurname() string {
	for _, a := range c.Authors {
		if s := SurnameOf(a); s != "" {
			return s
		}
	}
	return ""
}

// Key returns the citation's normalized bibliographic key.
func (c Citation) Key() string {
	return Key(c.Title, c.FirstSurname(), c.Year)
}
