// Package match decides which citations of a reference list are already in
// the user's library.
//
// A citation matches by identifier (DOI, PMID, arXiv id, ...) with full
// confidence, or else by a fuzzy comparison of title and authors against
// candidates that share its bibliographic key or first-author surname.
// Matching reads only the index and never touches the network.
package match

import (
	"sort"

	"github.com/matsen/mendeley/internal/mendeley"
	"github.com/matsen/mendeley/internal/reference"
)

// MatchedOn records how a result was decided.
type MatchedOn string

const (
	MatchedIdentifier MatchedOn = "identifier"
	MatchedFuzzy      MatchedOn = "fuzzy_title_author"
	MatchedNone       MatchedOn = "none"
)

const (
	DefaultThreshold    = 0.7
	DefaultTitleWeight  = 0.7
	DefaultAuthorWeight = 0.3

	// maxFuzzyConfidence keeps fuzzy scores below an identifier match.
	maxFuzzyConfidence = 0.99
)

// Index is the read side of the library the matcher needs.
// *library.Index implements it.
type Index interface {
	FindByKey(key string) []*mendeley.Document
	FindByIdentifier(scheme, value string) []*mendeley.Document
	FindByAuthor(surname string) []*mendeley.Document
}

// Options tune fuzzy matching. Zero fields take the defaults. A negative
// Threshold means 0: every candidate sharing a surname is accepted.
type Options struct {
	Threshold    float64
	TitleWeight  float64
	AuthorWeight float64
}

// DefaultOptions returns the default threshold and weights.
func DefaultOptions() Options {
	return Options{
		Threshold:    DefaultThreshold,
		TitleWeight:  DefaultTitleWeight,
		AuthorWeight: DefaultAuthorWeight,
	}
}

// Result is the outcome for one citation. DocumentID is empty when nothing
// matched; Document is a convenience pointer into the index it came from.
type Result struct {
	Citation   reference.Citation `json:"citation"`
	DocumentID string             `json:"document_id,omitempty"`
	Document   *mendeley.Document `json:"-"`
	Confidence float64            `json:"confidence"`
	MatchedOn  MatchedOn          `json:"matched_on"`
}

// Found reports whether the citation matched a document.
func (r Result) Found() bool {
	return r.MatchedOn != MatchedNone && r.DocumentID != ""
}

// Matcher matches citations against an index.
type Matcher struct {
	opts Options
}

// New creates a matcher.
func New(opts Options) *Matcher {
	def := DefaultOptions()
	switch {
	case opts.Threshold < 0:
		opts.Threshold = 0
	case opts.Threshold == 0:
		opts.Threshold = def.Threshold
	}
	if opts.TitleWeight <= 0 && opts.AuthorWeight <= 0 {
		opts.TitleWeight, opts.AuthorWeight = def.TitleWeight, def.AuthorWeight
	}
	if opts.TitleWeight < 0 {
		opts.TitleWeight = 0
	}
	if opts.AuthorWeight < 0 {
		opts.AuthorWeight = 0
	}
	return &Matcher{opts: opts}
}

// Options returns the effective options.
func (m *Matcher) Options() Options {
	return m.opts
}

// Match finds the library document for c, if any.
func (m *Matcher) Match(c reference.Citation, idx Index) Result {
	if doc := matchIdentifier(c, idx); doc != nil {
		return Result{Citation: c, DocumentID: doc.ID, Document: doc, Confidence: 1.0, MatchedOn: MatchedIdentifier}
	}

	var best *mendeley.Document
	bestScore := 0.0
	for _, doc := range candidates(c, idx) {
		score, ok := m.score(c, doc)
		if !ok {
			continue
		}
		// Candidates arrive sorted by id, so strict > keeps the lowest id on ties.
		if best == nil || score > bestScore {
			best, bestScore = doc, score
		}
	}

	if best == nil || bestScore < m.opts.Threshold {
		return Result{Citation: c, MatchedOn: MatchedNone}
	}
	if bestScore > maxFuzzyConfidence {
		bestScore = maxFuzzyConfidence
	}
	return Result{Citation: c, DocumentID: best.ID, Document: best, Confidence: bestScore, MatchedOn: MatchedFuzzy}
}

// MatchAll matches every citation. Results are in input order.
func (m *Matcher) MatchAll(citations []reference.Citation, idx Index) []Result {
	out := make([]Result, len(citations))
	for i, c := range citations {
		out[i] = m.Match(c, idx)
	}
	return out
}

// matchIdentifier returns the lowest-id document sharing any identifier.
// Schemes are tried in sorted order so the outcome does not depend on map
// iteration.
func matchIdentifier(c reference.Citation, idx Index) *mendeley.Document {
	schemes := make([]string, 0, len(c.Identifiers))
	for s := range c.Identifiers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)

	for _, s := range schemes {
		if docs := idx.FindByIdentifier(s, c.Identifiers[s]); len(docs) > 0 {
			return docs[0]
		}
	}
	return nil
}

// candidates returns documents sharing c's key, or failing that its
// first-author surname (and year, when both are known).
func candidates(c reference.Citation, idx Index) []*mendeley.Document {
	if docs := idx.FindByKey(c.Key()); len(docs) > 0 {
		return docs
	}
	surname := c.FirstSurname()
	if surname == "" {
		return nil
	}
	var out []*mendeley.Document
	for _, doc := range idx.FindByAuthor(surname) {
		if c.Year > 0 && doc.Year > 0 && c.Year != doc.Year {
			continue
		}
		out = append(out, doc)
	}
	return out
}

// score combines title similarity and author overlap. ok is false when the
// author lists share no surname.
func (m *Matcher) score(c reference.Citation, doc *mendeley.Document) (float64, bool) {
	overlap := AuthorOverlap(c.Surnames(), doc.Surnames())
	if overlap == 0 {
		return 0, false
	}
	sim := TitleSimilarity(c.Title, doc.Title)
	total := m.opts.TitleWeight + m.opts.AuthorWeight
	return (m.opts.TitleWeight*sim + m.opts.AuthorWeight*overlap) / total, true
}

// AuthorOverlap returns the fraction of distinct citation surnames found
// among the document surnames.
func AuthorOverlap(citation, document []string) float64 {
	want := make(map[string]bool, len(citation))
	for _, s := range citation {
		if s != "" {
			want[s] = true
		}
	}
	if len(want) == 0 {
		return 0
	}
	have := make(map[string]bool, len(document))
	for _, s := range document {
		have[s] = true
	}
	shared := 0
	for s := range want {
		if have[s] {
			shared++
		}
	}
	return float64(shared) / float64(len(want))
}

// TitleSimilarity returns 1 - distance/maxLen over normalized titles. Two
// empty titles are not evidence of a match and score 0.
func TitleSimilarity(a, b string) float64 {
	ra := []rune(reference.NormalizeTitle(a))
	rb := []rune(reference.NormalizeTitle(b))
	n := max(len(ra), len(rb))
	if n == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(n)
}
