package export

import (
	"strings"
	"testing"

	"github.com/matsen/mendeley/internal/mendeley"
	"github.com/matsen/mendeley/internal/reference"
)

func bindDoc(t *testing.T, raw mendeley.RawRecord) *mendeley.Document {
	t.Helper()
	doc, err := mendeley.NewBinder(nil).Document(raw)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestFromDocument_JournalArticle(t *testing.T) {
	doc := bindDoc(t, mendeley.RawRecord{
		"id":    "d1",
		"type":  "journal",
		"title": "Deep Residual Learning for Image Recognition",
		"authors": []any{
			map[string]any{"first_name": "Kaiming", "last_name": "He"},
			map[string]any{"first_name": "Xiangyu", "last_name": "Zhang"},
		},
		"year":        2016,
		"source":      "IEEE TPAMI",
		"volume":      "38",
		"issue":       "1",
		"pages":       "1-12",
		"abstract":    "Deeper networks are harder to train.",
		"identifiers": map[string]any{"doi": "https://doi.org/10.1109/X", "arxiv": "1512.03385v1"},
		"websites":    []any{"https://example.org/resnet"},
	})

	got := FromDocument(doc).BibTeX()

	for _, want := range []string{
		"@article{He2016deep,\n",
		"  author = {He, Kaiming and Zhang, Xiangyu},\n",
		"  title = {Deep Residual Learning for Image Recognition},\n",
		"  journal = {IEEE TPAMI},\n",
		"  year = {2016},\n",
		"  volume = {38},\n",
		"  number = {1},\n",
		"  pages = {1-12},\n",
		"  doi = {10.1109/x},\n",
		"  eprint = {1512.03385},\n",
		"  archiveprefix = {arXiv},\n",
		"  url = {https://example.org/resnet},\n",
		"  abstract = {Deeper networks are harder to train.},\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("BibTeX() missing %q, got:\n%s", want, got)
		}
	}
	if !strings.HasSuffix(got, "}\n") {
		t.Errorf("BibTeX() should end with }, got:\n%s", got)
	}
	if strings.Index(got, "author =") > strings.Index(got, "title =") {
		t.Error("author should precede title")
	}
}

func TestFromDocument_ConferenceUsesBooktitle(t *testing.T) {
	doc := bindDoc(t, mendeley.RawRecord{
		"id":     "d1",
		"type":   "conference_proceedings",
		"title":  "Attention Is All You Need",
		"source": "Advances in Neural Information Processing Systems",
		"year":   2017,
	})
	got := FromDocument(doc).BibTeX()
	if !strings.HasPrefix(got, "@inproceedings{2017attention,") {
		t.Errorf("unexpected header:\n%s", got)
	}
	if !strings.Contains(got, "booktitle = {Advances in Neural Information Processing Systems}") {
		t.Errorf("missing booktitle:\n%s", got)
	}
	if strings.Contains(got, "author =") {
		t.Errorf("empty author field written:\n%s", got)
	}
}

func TestDetermineEntryType(t *testing.T) {
	tests := []struct {
		docType, venue, want string
	}{
		{"journal", "Nature", "article"},
		{"book", "", "book"},
		{"book_section", "", "incollection"},
		{"thesis", "", "phdthesis"},
		{"generic", "", "misc"},
		{"", "Proceedings of ICML", "inproceedings"},
		{"", "Workshop on Things", "inproceedings"},
		{"unknown_type", "arXiv", "article"},
	}
	for _, tt := range tests {
		if got := determineEntryType(tt.docType, tt.venue); got != tt.want {
			t.Errorf("determineEntryType(%q, %q) = %q, want %q", tt.docType, tt.venue, got, tt.want)
		}
	}
}

func TestFromCitation(t *testing.T) {
	c := reference.Citation{
		Title:       "Attention Is All You Need",
		Authors:     []string{"Ashish Vaswani", "Shazeer, Noam"},
		Year:        2017,
		Identifiers: map[string]string{"pubmed": "123"},
	}
	got := FromCitation(c).BibTeX()
	for _, want := range []string{
		"@article{Vaswani2017attention,",
		"author = {Vaswani, Ashish and Shazeer, Noam}",
		"year = {2017}",
		"pmid = {123}",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestCitationKey(t *testing.T) {
	tests := []struct {
		surname string
		year    int
		title   string
		want    string
	}{
		{"Vaswani", 2017, "Attention Is All You Need", "Vaswani2017attention"},
		{"O'Brien", 2001, "The Theory of Things", "Obrien2001theory"},
		{"Gödel", 1931, "On formally undecidable propositions", "Godel1931formally"},
		{"", 0, "", "ref"},
		{"Smith", 0, "", "Smith"},
	}
	for _, tt := range tests {
		if got := CitationKey(tt.surname, tt.year, tt.title); got != tt.want {
			t.Errorf("CitationKey(%q, %d, %q) = %q, want %q", tt.surname, tt.year, tt.title, got, tt.want)
		}
	}
}

func TestToBibTeXList_UniqueKeys(t *testing.T) {
	e := FromCitation(reference.Citation{Title: "Same", Authors: []string{"Smith"}, Year: 2020})
	got := ToBibTeXList([]Entry{e, e, e})
	for _, key := range []string{"{Smith2020same,", "{Smith2020same-2,", "{Smith2020same-3,"} {
		if !strings.Contains(got, key) {
			t.Errorf("missing key %s in:\n%s", key, got)
		}
	}
	if ToBibTeXList(nil) != "" {
		t.Error("empty list should render as empty string")
	}
}

func TestEscapeLatex(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"Plain", "Plain"},
		{"R&D", `R\&D`},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{"{x}", `\{x\}`},
		{`a\b`, `a\textbackslash{}b`},
		{"~^", `\textasciitilde{}\textasciicircum{}`},
	}
	for _, tt := range tests {
		if got := escapeLatex(tt.input); got != tt.want {
			t.Errorf("escapeLatex(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
