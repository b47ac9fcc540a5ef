package library

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/matsen/mendeley/internal/mendeley"
)

func TestNewRow(t *testing.T) {
	doc := bindDoc(t, mendeley.RawRecord{
		"id":    "d1",
		"title": "Attention Is All You Need",
		"authors": []any{
			map[string]any{"first_name": "Ashish", "last_name": "Vaswani"},
			map[string]any{"last_name": "Shazeer"},
		},
		"year":          2017,
		"identifiers":   map[string]any{"doi": "10.1/x", "arxiv": "1706.03762"},
		"tags":          []any{"nlp", "transformers"},
		"file_attached": true,
		"created":       "2024-05-01T10:00:00Z",
	})

	row := NewRow(doc)
	if row.Authors != "Vaswani, Ashish; Shazeer" {
		t.Errorf("Authors = %q", row.Authors)
	}
	if row.Identifiers != "arxiv:1706.03762; doi:10.1/x" {
		t.Errorf("Identifiers = %q", row.Identifiers)
	}
	if row.DOI != "10.1/x" || row.Tags != "nlp; transformers" || !row.FileAttached {
		t.Errorf("row = %+v", row)
	}
	if row.Created != "2024-05-01T10:00:00Z" || row.LastModified != "" {
		t.Errorf("timestamps = %q, %q", row.Created, row.LastModified)
	}
	if got := len(row.Values()); got != len(Columns) {
		t.Errorf("Values() has %d cells, want %d", got, len(Columns))
	}
}

func TestWriteCSV(t *testing.T) {
	idx := New()
	for _, raw := range []mendeley.RawRecord{
		{"id": "d2", "title": "Commas, quotes \"and\" more"},
		{"id": "d1", "title": "Plain", "year": 2020},
	} {
		if err := idx.Upsert(bindDoc(t, raw)); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := idx.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d lines, want header + 2", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(Columns, ",") {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "d1" || records[1][3] != "2020" {
		t.Errorf("first row = %v", records[1])
	}
	if records[2][1] != `Commas, quotes "and" more` {
		t.Errorf("quoted title = %q", records[2][1])
	}
}
