package export

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/matsen/mendeley/internal/reference"
)

// ParseBibTeX reads every entry in r. @comment, @preamble and @string
// blocks are skipped; string macros are not expanded.
func ParseBibTeX(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading BibTeX: %w", err)
	}
	p := &bibParser{src: []rune(string(data))}
	return p.entries()
}

// ParseBibTeXFileEntries reads every entry in a .bib file.
func ParseBibTeXFileEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseBibTeX(f)
}

type bibParser struct {
	src []rune
	pos int
}

func (p *bibParser) entries() ([]Entry, error) {
	var out []Entry
	for {
		if !p.skipTo('@') {
			return out, nil
		}
		start := p.line()
		p.pos++ // '@'
		typ := strings.ToLower(p.word())
		p.skipSpace()
		if p.eof() {
			return out, nil
		}
		open := p.src[p.pos]
		if open != '{' && open != '(' {
			continue // stray '@' in free text
		}
		closer := '}'
		if open == '(' {
			closer = ')'
		}
		p.pos++

		switch typ {
		case "comment", "preamble", "string":
			if !p.skipBalanced(closer) {
				return nil, fmt.Errorf("line %d: unterminated @%s", start, typ)
			}
			continue
		}

		e, err := p.entry(typ, closer)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", start, err)
		}
		out = append(out, e)
	}
}

func (p *bibParser) entry(typ string, closer rune) (Entry, error) {
	e := Entry{Type: typ, Fields: make(map[string]string)}

	keyStart := p.pos
	for !p.eof() && p.src[p.pos] != ',' && p.src[p.pos] != closer {
		p.pos++
	}
	if p.eof() {
		return e, fmt.Errorf("unterminated @%s entry", typ)
	}
	e.Key = strings.TrimSpace(string(p.src[keyStart:p.pos]))

	for {
		p.skipSpace()
		for !p.eof() && p.src[p.pos] == ',' {
			p.pos++
			p.skipSpace()
		}
		if p.eof() {
			return e, fmt.Errorf("entry %q: unterminated", e.Key)
		}
		if p.src[p.pos] == closer {
			p.pos++
			return e, nil
		}

		name := strings.ToLower(p.word())
		if name == "" {
			return e, fmt.Errorf("entry %q: expected field name at %q", e.Key, p.context())
		}
		p.skipSpace()
		if p.eof() || p.src[p.pos] != '=' {
			return e, fmt.Errorf("entry %q: expected '=' after %s", e.Key, name)
		}
		p.pos++

		value, err := p.value(closer)
		if err != nil {
			return e, fmt.Errorf("entry %q field %s: %w", e.Key, name, err)
		}
		e.Fields[name] = cleanValue(value)
	}
}

// value reads a field value: braced or quoted parts and bare words joined
// by '#'.
func (p *bibParser) value(closer rune) (string, error) {
	var b strings.Builder
	for {
		p.skipSpace()
		if p.eof() {
			return "", fmt.Errorf("unexpected end of input")
		}
		switch c := p.src[p.pos]; c {
		case '{':
			p.pos++
			start := p.pos
			if !p.skipBalanced('}') {
				return "", fmt.Errorf("unbalanced braces")
			}
			b.WriteString(string(p.src[start : p.pos-1]))
		case '"':
			p.pos++
			start := p.pos
			depth := 0
			for !p.eof() && (p.src[p.pos] != '"' || depth > 0) {
				switch p.src[p.pos] {
				case '{':
					depth++
				case '}':
					depth--
				}
				p.pos++
			}
			if p.eof() {
				return "", fmt.Errorf("unterminated quoted value")
			}
			b.WriteString(string(p.src[start:p.pos]))
			p.pos++
		default:
			start := p.pos
			for !p.eof() && p.src[p.pos] != ',' && p.src[p.pos] != closer && p.src[p.pos] != '#' && !unicode.IsSpace(p.src[p.pos]) {
				p.pos++
			}
			b.WriteString(string(p.src[start:p.pos]))
		}

		p.skipSpace()
		if !p.eof() && p.src[p.pos] == '#' {
			p.pos++
			continue
		}
		return b.String(), nil
	}
}

func (p *bibParser) eof() bool { return p.pos >= len(p.src) }

func (p *bibParser) skipTo(r rune) bool {
	for !p.eof() && p.src[p.pos] != r {
		p.pos++
	}
	return !p.eof()
}

func (p *bibParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

// skipBalanced advances past the closer matching an already consumed
// opener, honoring nested braces.
func (p *bibParser) skipBalanced(closer rune) bool {
	depth := 0
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch {
		case c == closer && depth == 0:
			return true
		case c == '{':
			depth++
		case c == '}':
			depth--
		}
	}
	return false
}

func (p *bibParser) word() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' && c != '-' && c != ':' && c != '.' {
			break
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *bibParser) line() int {
	n := 1
	for _, c := range p.src[:p.pos] {
		if c == '\n' {
			n++
		}
	}
	return n
}

func (p *bibParser) context() string {
	end := min(p.pos+20, len(p.src))
	return string(p.src[p.pos:end])
}

// latexUnescaper undoes the escapes escapeLatex produces and strips
// protective braces.
var latexUnescaper = strings.NewReplacer(
	`\textbackslash{}`, `\`,
	`\textasciitilde{}`, "~",
	`\textasciicircum{}`, "^",
	`\&`, "&",
	`\%`, "%",
	`\$`, "$",
	`\#`, "#",
	`\_`, "_",
	`\{`, "{",
	`\}`, "}",
	"{", "",
	"}", "",
)

// cleanValue unescapes LaTeX, drops grouping braces and collapses
// whitespace.
func cleanValue(s string) string {
	return strings.Join(strings.Fields(latexUnescaper.Replace(s)), " ")
}

// Citation converts the entry into a citation for matching.
func (e Entry) Citation() reference.Citation {
	c := reference.Citation{Title: e.Fields["title"]}

	if authors := e.Fields["author"]; authors != "" {
		c.Authors = splitAuthors(authors)
	}
	if y, err := strconv.Atoi(strings.TrimSpace(e.Fields["year"])); err == nil {
		c.Year = y
	}

	ids := make(map[string]string)
	if doi := e.Fields["doi"]; doi != "" {
		ids[reference.SchemeDOI] = doi
	}
	if pmid := e.Fields["pmid"]; pmid != "" {
		ids[reference.SchemePMID] = pmid
	}
	if eprint := e.Fields["eprint"]; eprint != "" && strings.EqualFold(e.Fields["archiveprefix"], "arxiv") {
		ids[reference.SchemeArXiv] = eprint
	}
	for _, scheme := range []string{reference.SchemeISBN, reference.SchemeISSN} {
		if v := e.Fields[scheme]; v != "" {
			ids[scheme] = v
		}
	}
	if len(ids) > 0 {
		c.Identifiers = ids
	}
	return c
}

// splitAuthors splits a BibTeX author list on the "and" keyword.
func splitAuthors(s string) []string {
	var out []string
	fields := strings.Fields(s)
	var cur []string
	for _, f := range fields {
		if strings.EqualFold(f, "and") {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, " "))
			}
			cur = nil
			continue
		}
		cur = append(cur, f)
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// BibTeXIndex indexes existing BibTeX entries for deduplication.
type BibTeXIndex struct {
	// Keys maps citation keys to true for existence check
	Keys map[string]bool
	// DOIs maps normalized DOI values to citation keys
	DOIs map[string]string
}

// NewBibTeXIndex creates an empty BibTeX index.
func NewBibTeXIndex() *BibTeXIndex {
	return &BibTeXIndex{
		Keys: make(map[string]bool),
		DOIs: make(map[string]string),
	}
}

// Add records an entry.
func (idx *BibTeXIndex) Add(e Entry) {
	idx.Keys[e.Key] = true
	if doi := reference.NormalizeDOI(e.Fields["doi"]); doi != "" {
		idx.DOIs[doi] = e.Key
	}
}

// HasEntry returns true if the entry already exists (by DOI or key).
// DOI is the primary match; citation key is the fallback if no DOI.
func (idx *BibTeXIndex) HasEntry(key, doi string) bool {
	if doi != "" {
		if _, exists := idx.DOIs[reference.NormalizeDOI(doi)]; exists {
			return true
		}
	}
	return idx.Keys[key]
}

// ParseBibTeXFile builds an index from an existing .bib file.
// Returns an empty index if the file doesn't exist.
func ParseBibTeXFile(path string) (*BibTeXIndex, error) {
	idx := NewBibTeXIndex()
	entries, err := ParseBibTeXFileEntries(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, err
	}
	for _, e := range entries {
		idx.Add(e)
	}
	return idx, nil
}

// AppendToBibFile appends BibTeX content to a file.
func AppendToBibFile(path, content string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	// Ensure we start on a new line
	_, err = file.WriteString("\n" + content)
	return err
}

// AppendCitations appends citations to the .bib file at path, skipping any
// whose DOI or generated key is already present. Keys of appended entries
// are made unique against the file. It returns how many were added and
// skipped.
func AppendCitations(path string, cites []reference.Citation) (added, skipped int, err error) {
	idx, err := ParseBibTeXFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	var fresh []Entry
	for _, c := range cites {
		e := FromCitation(c)
		if idx.HasEntry(e.Key, e.Fields["doi"]) {
			skipped++
			continue
		}
		e.Key = GenerateUniqueKey(idx.Keys, e.Key)
		idx.Add(e)
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0, skipped, nil
	}

	if err := AppendToBibFile(path, ToBibTeXList(fresh)); err != nil {
		return 0, skipped, fmt.Errorf("appending to %s: %w", path, err)
	}
	return len(fresh), skipped, nil
}
