// Package export renders library documents and citations as BibTeX and
// reads BibTeX back into citations.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/matsen/mendeley/internal/mendeley"
	"github.com/matsen/mendeley/internal/reference"
)

// Entry is one BibTeX entry. Field names are lower case.
type Entry struct {
	Type   string
	Key    string
	Fields map[string]string
}

// fieldOrder is the output order of known fields; others follow sorted.
var fieldOrder = []string{
	"author", "title", "journal", "booktitle", "publisher", "year", "month",
	"volume", "number", "pages", "doi", "eprint", "archiveprefix", "pmid",
	"isbn", "issn", "url", "keywords", "abstract",
}

// verbatimFields are written without LaTeX escaping.
var verbatimFields = map[string]bool{
	"doi": true, "url": true, "eprint": true, "archiveprefix": true,
	"pmid": true, "isbn": true, "issn": true,
}

// entryTypes maps Mendeley document types to BibTeX entry types.
var entryTypes = map[string]string{
	"journal":                "article",
	"magazine_article":       "article",
	"newspaper_article":      "article",
	"conference_proceedings": "inproceedings",
	"book":                   "book",
	"book_section":           "incollection",
	"encyclopedia_article":   "incollection",
	"thesis":                 "phdthesis",
	"report":                 "techreport",
	"working_paper":          "unpublished",
	"patent":                 "patent",
	"web_page":               "misc",
	"computer_program":       "misc",
	"generic":                "misc",
}

// BibTeX renders the entry.
func (e Entry) BibTeX() string {
	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", e.Type, e.Key)
	for _, name := range e.fieldNames() {
		value := e.Fields[name]
		if !verbatimFields[name] && name != "author" {
			value = escapeLatex(value)
		}
		fmt.Fprintf(&b, "  %s = {%s},\n", name, value)
	}
	b.WriteString("}\n")
	return b.String()
}

func (e Entry) fieldNames() []string {
	known := make(map[string]bool, len(fieldOrder))
	var names []string
	for _, name := range fieldOrder {
		known[name] = true
		if e.Fields[name] != "" {
			names = append(names, name)
		}
	}
	var rest []string
	for name, value := range e.Fields {
		if !known[name] && value != "" {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// FromDocument builds an entry from a library document.
func FromDocument(doc *mendeley.Document) Entry {
	entryType := determineEntryType(doc.Type, doc.Source)
	f := map[string]string{
		"author":    formatAuthors(doc.Authors),
		"title":     doc.Title,
		"abstract":  doc.Abstract,
		"volume":    doc.Raw.String("volume"),
		"number":    doc.Raw.String("issue"),
		"pages":     doc.Raw.String("pages"),
		"publisher": doc.Raw.String("publisher"),
		"keywords":  strings.Join(doc.Tags, ", "),
	}
	if doc.Year > 0 {
		f["year"] = strconv.Itoa(doc.Year)
	}
	if doc.Source != "" {
		if entryType == "inproceedings" || entryType == "incollection" {
			f["booktitle"] = doc.Source
		} else {
			f["journal"] = doc.Source
		}
	}
	if sites := doc.Raw.Strings("websites"); len(sites) > 0 {
		f["url"] = sites[0]
	}
	addIdentifiers(f, doc.Identifiers)

	surname := ""
	if len(doc.Authors) > 0 {
		surname = doc.Authors[0].Last
	}
	return Entry{Type: entryType, Key: CitationKey(surname, doc.Year, doc.Title), Fields: f}
}

// FromCitation builds an entry from a citation, such as one missing from
// the library.
func FromCitation(c reference.Citation) Entry {
	authors := make([]reference.Author, 0, len(c.Authors))
	for _, name := range c.Authors {
		if a := reference.ParseAuthor(name); a.Last != "" {
			authors = append(authors, a)
		}
	}
	f := map[string]string{
		"author": formatAuthors(authors),
		"title":  c.Title,
	}
	if c.Year > 0 {
		f["year"] = strconv.Itoa(c.Year)
	}
	addIdentifiers(f, c.Identifiers)

	surname := ""
	if len(authors) > 0 {
		surname = authors[0].Last
	}
	return Entry{Type: "article", Key: CitationKey(surname, c.Year, c.Title), Fields: f}
}

func addIdentifiers(f map[string]string, ids map[string]string) {
	for scheme, value := range ids {
		scheme, value = reference.NormalizeIdentifier(scheme, value)
		if value == "" {
			continue
		}
		switch scheme {
		case reference.SchemeDOI:
			f["doi"] = value
		case reference.SchemeArXiv:
			f["eprint"] = value
			f["archiveprefix"] = "arXiv"
		case reference.SchemePMID, reference.SchemeISBN, reference.SchemeISSN:
			f[scheme] = value
		}
	}
}

// ToBibTeXList renders entries separated by blank lines, making keys
// unique within the list.
func ToBibTeXList(entries []Entry) string {
	taken := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e.Key = GenerateUniqueKey(taken, e.Key)
		taken[e.Key] = true
		out = append(out, e.BibTeX())
	}
	return strings.Join(out, "\n")
}

// titleStopwords are skipped when picking the title word of a key.
var titleStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "on": true, "of": true, "in": true,
	"for": true, "and": true, "to": true, "with": true,
}

// CitationKey builds a key like "Vaswani2017attention" from the first
// author's surname, the year and the first significant title word.
func CitationKey(surname string, year int, title string) string {
	var b strings.Builder
	name := reference.NormalizeSurname(surname)
	if name != "" {
		r := []rune(name)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	if year > 0 {
		b.WriteString(strconv.Itoa(year))
	}
	for _, word := range strings.Fields(reference.NormalizeTitle(title)) {
		if !titleStopwords[word] {
			b.WriteString(word)
			break
		}
	}
	if b.Len() == 0 {
		return "ref"
	}
	return b.String()
}

// GenerateUniqueKey returns a key that doesn't conflict with taken.
// If the base key exists, appends -2, -3, etc.
func GenerateUniqueKey(taken map[string]bool, base string) string {
	if !taken[base] {
		return base
	}
	// Start at 2: base is taken, so the first duplicate becomes base-2
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// determineEntryType returns the BibTeX entry type for a Mendeley document
// type, falling back to venue heuristics.
func determineEntryType(docType, venue string) string {
	if t, ok := entryTypes[docType]; ok {
		return t
	}

	v := strings.ToLower(venue)
	if strings.Contains(v, "proceedings") ||
		strings.Contains(v, "conference") ||
		strings.Contains(v, "workshop") ||
		strings.Contains(v, "symposium") {
		return "inproceedings"
	}
	return "article"
}

// formatAuthors formats authors in BibTeX style: "Last, First and Last, First"
func formatAuthors(authors []reference.Author) string {
	formatted := make([]string, 0, len(authors))
	for _, a := range authors {
		last := escapeLatex(a.Last)
		if a.First != "" {
			formatted = append(formatted, fmt.Sprintf("%s, %s", last, escapeLatex(a.First)))
		} else {
			formatted = append(formatted, last)
		}
	}
	return strings.Join(formatted, " and ")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
