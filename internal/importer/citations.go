// Package importer loads citation lists to match against the library from
// JSON, JSONL, BibTeX or PDF files.
package importer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matsen/mendeley/internal/export"
	"github.com/matsen/mendeley/internal/pdf"
	"github.com/matsen/mendeley/internal/reference"
)

// FlexibleString can unmarshal from either string or number JSON values.
type FlexibleString string

func (f *FlexibleString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleString(n.String())
		return nil
	}

	return fmt.Errorf("cannot unmarshal %s into FlexibleString", string(data))
}

func (f FlexibleString) String() string {
	return string(f)
}

// flexibleAuthor accepts "Ashish Vaswani", {"first":..,"last":..} or
// {"name":..}. Structured names are flattened to "Last, First" so multi-word
// surnames survive the later split.
type flexibleAuthor string

func (a *flexibleAuthor) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = flexibleAuthor(strings.TrimSpace(s))
		return nil
	}

	var obj struct {
		First string `json:"first"`
		Last  string `json:"last"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("cannot unmarshal %s into author", string(data))
	}
	switch {
	case obj.Last != "" && strings.TrimSpace(obj.First) != "":
		*a = flexibleAuthor(strings.TrimSpace(obj.Last) + ", " + strings.TrimSpace(obj.First))
	case obj.Last != "":
		*a = flexibleAuthor(strings.TrimSpace(obj.Last))
	default:
		*a = flexibleAuthor(strings.TrimSpace(obj.Name))
	}
	return nil
}

// CitationEntry is one citation as written in a JSON or JSONL citation list.
type CitationEntry struct {
	Title       string            `json:"title"`
	Authors     []flexibleAuthor  `json:"authors"`
	Year        FlexibleString    `json:"year"`
	DOI         string            `json:"doi"`
	PMID        FlexibleString    `json:"pmid"`
	ArXiv       string            `json:"arxiv"`
	Identifiers map[string]string `json:"identifiers"`
}

// Citation converts the entry. It fails when the entry has neither a title
// nor an identifier, or when the year is not a number.
func (e CitationEntry) Citation() (reference.Citation, error) {
	c := reference.Citation{Title: strings.TrimSpace(e.Title)}

	for _, a := range e.Authors {
		if a != "" {
			c.Authors = append(c.Authors, string(a))
		}
	}

	if y := strings.TrimSpace(e.Year.String()); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return reference.Citation{}, fmt.Errorf("invalid year: %s", y)
		}
		c.Year = year
	}

	ids := make(map[string]string)
	for scheme, value := range e.Identifiers {
		scheme = reference.NormalizeScheme(scheme)
		if scheme != "" && strings.TrimSpace(value) != "" {
			ids[scheme] = strings.TrimSpace(value)
		}
	}
	if e.DOI != "" {
		ids[reference.SchemeDOI] = e.DOI
	}
	if e.PMID != "" {
		ids[reference.SchemePMID] = e.PMID.String()
	}
	if e.ArXiv != "" {
		ids[reference.SchemeArXiv] = e.ArXiv
	}
	if len(ids) > 0 {
		c.Identifiers = ids
	}

	if c.Title == "" && len(c.Identifiers) == 0 {
		return reference.Citation{}, fmt.Errorf("missing required field 'title' (and no identifiers)")
	}
	return c, nil
}

// ParseCitationsJSON parses a JSON array of citations, an object with a
// "references" array, or one citation per line (JSONL). Entries that fail
// to convert are reported in the error slice and skipped.
func ParseCitationsJSON(data []byte) ([]reference.Citation, []error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var entries []CitationEntry
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, []error{fmt.Errorf("parsing citations JSON: %w", err)}
		}
	case '{':
		var doc struct {
			References *[]CitationEntry `json:"references"`
		}
		if !json.Valid(trimmed) {
			return parseCitationLines(trimmed)
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, []error{fmt.Errorf("parsing citations JSON: %w", err)}
		}
		if doc.References != nil {
			entries = *doc.References
			break
		}
		var single CitationEntry
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, []error{fmt.Errorf("parsing citations JSON: %w", err)}
		}
		entries = []CitationEntry{single}
	default:
		return nil, []error{fmt.Errorf("parsing citations JSON: expected array or object")}
	}

	return convertEntries(entries, "entry")
}

// parseCitationLines handles JSONL input, one citation object per line.
func parseCitationLines(data []byte) ([]reference.Citation, []error) {
	var cites []reference.Citation
	var errs []error

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry CitationEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}
		c, err := entry.Citation()
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}
		cites = append(cites, c)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("reading citations: %w", err))
	}
	return cites, errs
}

func convertEntries(entries []CitationEntry, label string) ([]reference.Citation, []error) {
	var cites []reference.Citation
	var errs []error
	for i, entry := range entries {
		c, err := entry.Citation()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %d: %w", label, i+1, err))
			continue
		}
		cites = append(cites, c)
	}
	return cites, errs
}

// ParseCitationsBibTeX parses BibTeX entries into citations. Entries with
// neither title nor identifiers are reported and skipped.
func ParseCitationsBibTeX(data []byte) ([]reference.Citation, []error) {
	entries, err := export.ParseBibTeX(bytes.NewReader(data))
	if err != nil {
		return nil, []error{err}
	}

	var cites []reference.Citation
	var errs []error
	for _, e := range entries {
		c := e.Citation()
		if c.Title == "" && len(c.Identifiers) == 0 {
			errs = append(errs, fmt.Errorf("entry %s: missing required field 'title' (and no identifiers)", e.Key))
			continue
		}
		cites = append(cites, c)
	}
	return cites, errs
}

// CitationFromPDF builds a citation from a PDF's DOI and title guess.
func CitationFromPDF(path string) (reference.Citation, error) {
	doi, err := pdf.ExtractDOI(path)
	if err != nil {
		return reference.Citation{}, fmt.Errorf("reading %s: %w", path, err)
	}
	title, err := pdf.ExtractTitle(path)
	if err != nil {
		return reference.Citation{}, fmt.Errorf("reading %s: %w", path, err)
	}

	c := reference.Citation{Title: title}
	if doi != "" {
		c.Identifiers = map[string]string{reference.SchemeDOI: doi}
	}
	if c.Title == "" && c.Identifiers == nil {
		return reference.Citation{}, fmt.Errorf("%s: no DOI or title found", path)
	}
	return c, nil
}

// LoadCitations reads citations from path, choosing the parser by file
// extension: .bib, .pdf, or JSON/JSONL otherwise.
func LoadCitations(path string) ([]reference.Citation, []error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		c, err := CitationFromPDF(path)
		if err != nil {
			return nil, []error{err}
		}
		return []reference.Citation{c}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("reading %s: %w", path, err)}
	}

	if strings.EqualFold(filepath.Ext(path), ".bib") {
		return ParseCitationsBibTeX(data)
	}
	return ParseCitationsJSON(data)
}
