package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/mendeley/internal/reference"
)

const sampleBib = `% references of the paper
@comment{ignored, entirely}
@string{nips = "NeurIPS"}

@inproceedings{vaswani2017,
  author = {Vaswani, Ashish and Shazeer, Noam and Parmar, Niki},
  title  = {Attention Is {All} You Need},
  booktitle = nips,
  year   = 2017,
  eprint = {1706.03762},
  archivePrefix = {arXiv}
}

@Article{he2016,
  author = "He, Kaiming and Zhang, Xiangyu",
  title = "Deep Residual Learning for {Image} Recognition",
  journal = "Proc. " # "CVPR",
  year = "2016",
  doi = {10.1109/CVPR.2016.90},
}

@misc(empty)
`

func TestParseBibTeX(t *testing.T) {
	entries, err := ParseBibTeX(strings.NewReader(sampleBib))
	if err != nil {
		t.Fatalf("ParseBibTeX() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	v := entries[0]
	if v.Type != "inproceedings" || v.Key != "vaswani2017" {
		t.Errorf("first entry = %s/%s", v.Type, v.Key)
	}
	if v.Fields["title"] != "Attention Is All You Need" {
		t.Errorf("title = %q", v.Fields["title"])
	}
	if v.Fields["booktitle"] != "nips" {
		t.Errorf("macro should be kept verbatim, got %q", v.Fields["booktitle"])
	}
	if v.Fields["year"] != "2017" || v.Fields["archiveprefix"] != "arXiv" {
		t.Errorf("fields = %v", v.Fields)
	}

	h := entries[1]
	if h.Type != "article" || h.Fields["journal"] != "Proc. CVPR" {
		t.Errorf("second entry = %s, journal %q", h.Type, h.Fields["journal"])
	}
	if h.Fields["title"] != "Deep Residual Learning for Image Recognition" {
		t.Errorf("quoted title = %q", h.Fields["title"])
	}

	if entries[2].Key != "empty" || len(entries[2].Fields) != 0 {
		t.Errorf("third entry = %+v", entries[2])
	}
}

func TestParseBibTeX_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated entry", "@article{key, title = {x}"},
		{"unbalanced braces", "@article{key, title = {x\n"},
		{"missing equals", "@article{key, title {x}}"},
		{"unterminated quote", `@article{key, title = "x}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBibTeX(strings.NewReader(tt.input)); err == nil {
				t.Errorf("ParseBibTeX(%q) should fail", tt.input)
			}
		})
	}
}

func TestEntryCitation(t *testing.T) {
	entries, err := ParseBibTeX(strings.NewReader(sampleBib))
	if err != nil {
		t.Fatal(err)
	}

	v := entries[0].Citation()
	if v.Title != "Attention Is All You Need" || v.Year != 2017 {
		t.Errorf("citation = %+v", v)
	}
	if len(v.Authors) != 3 || v.Authors[0] != "Vaswani, Ashish" {
		t.Errorf("authors = %q", v.Authors)
	}
	if v.Identifiers[reference.SchemeArXiv] != "1706.03762" {
		t.Errorf("identifiers = %v", v.Identifiers)
	}
	if got := v.Key(); got != "attention is all you need|vaswani|2017" {
		t.Errorf("Key() = %q", got)
	}

	h := entries[1].Citation()
	if h.Identifiers[reference.SchemeDOI] != "10.1109/CVPR.2016.90" {
		t.Errorf("doi = %v", h.Identifiers)
	}
}

func TestRoundTrip_ExportThenParse(t *testing.T) {
	c := reference.Citation{
		Title:       "Bits & Pieces: 100% {Braced} Results",
		Authors:     []string{"Ada Lovelace", "Charles Babbage"},
		Year:        1843,
		Identifiers: map[string]string{"doi": "10.1/x"},
	}
	entries, err := ParseBibTeX(strings.NewReader(FromCitation(c).BibTeX()))
	if err != nil {
		t.Fatalf("parsing exported entry: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	back := entries[0].Citation()
	if back.Title != c.Title {
		t.Errorf("title = %q, want %q", back.Title, c.Title)
	}
	if back.Key() != c.Key() {
		t.Errorf("key = %q, want %q", back.Key(), c.Key())
	}
	if back.Identifiers["doi"] != "10.1/x" {
		t.Errorf("doi = %v", back.Identifiers)
	}
}

func TestParseBibTeXFile_Index(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.bib")
	if err := os.WriteFile(path, []byte(sampleBib), 0o644); err != nil {
		t.Fatal(err)
	}

	idx, err := ParseBibTeXFile(path)
	if err != nil {
		t.Fatalf("ParseBibTeXFile() error = %v", err)
	}
	if !idx.HasEntry("vaswani2017", "") {
		t.Error("key lookup failed")
	}
	if !idx.HasEntry("other-key", "https://doi.org/10.1109/cvpr.2016.90") {
		t.Error("DOI lookup should normalize")
	}
	if idx.HasEntry("missing", "10.9/none") {
		t.Error("unexpected match")
	}

	empty, err := ParseBibTeXFile(filepath.Join(t.TempDir(), "none.bib"))
	if err != nil || len(empty.Keys) != 0 {
		t.Errorf("missing file = %v, %v; want empty index", empty, err)
	}
}

func TestAppendToBibFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bib")
	e := FromCitation(reference.Citation{Title: "One", Authors: []string{"A"}})
	if err := AppendToBibFile(path, e.BibTeX()); err != nil {
		t.Fatal(err)
	}
	if err := AppendToBibFile(path, e.BibTeX()); err != nil {
		t.Fatal(err)
	}
	entries, err := ParseBibTeXFileEntries(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestAppendCitations_SkipsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.bib")
	first := []reference.Citation{
		{Title: "Attention Is All You Need", Authors: []string{"Vaswani"}, Year: 2017, Identifiers: map[string]string{"doi": "10.1/x"}},
		{Title: "Deep Residual Learning", Authors: []string{"Kaiming He"}, Year: 2016},
	}
	added, skipped, err := AppendCitations(path, first)
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 || skipped != 0 {
		t.Errorf("first append: added=%d skipped=%d, want 2, 0", added, skipped)
	}

	second := []reference.Citation{
		{Title: "A different title", Identifiers: map[string]string{"doi": "https://doi.org/10.1/X"}},
		{Title: "Deep Residual Learning", Authors: []string{"He, Kaiming"}, Year: 2016},
		{Title: "Batch Normalization", Authors: []string{"Ioffe"}, Year: 2015},
	}
	added, skipped, err = AppendCitations(path, second)
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 || skipped != 2 {
		t.Errorf("second append: added=%d skipped=%d, want 1, 2", added, skipped)
	}

	entries, err := ParseBibTeXFileEntries(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[2].Key != "Ioffe2015batch" {
		t.Errorf("third key = %q, want Ioffe2015batch", entries[2].Key)
	}
}
