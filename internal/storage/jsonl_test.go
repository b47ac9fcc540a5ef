package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/mendeley/internal/mendeley"
)

func TestReadRecords_NonExistentFile(t *testing.T) {
	records, err := ReadRecords(filepath.Join(t.TempDir(), "missing.jsonl"))
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("ReadRecords() returned %d records, want 0", len(records))
	}
}

func TestReadRecords_SkipsEmptyLinesAndKeepsNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.jsonl")
	content := `{"id":"d1","year":2017,"reader_count":12345678901}

{"id":"d2","title":"Second"}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ReadRecords() returned %d records, want 2", len(records))
	}
	if got := records[0]["reader_count"]; got != json.Number("12345678901") {
		t.Errorf("reader_count = %#v, want json.Number", got)
	}
	if records[0].Int("year") != 2017 {
		t.Errorf("year = %d, want 2017", records[0].Int("year"))
	}
}

func TestReadRecords_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":\"d1\"}\n{not json}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := ReadRecords(path)
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("ReadRecords() error = %v, want error naming line 2", err)
	}
}

func TestWriteRecords_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "library.jsonl")
	records := []mendeley.RawRecord{
		{
			"id":          "d1",
			"title":       "Attention Is All You Need",
			"authors":     []any{map[string]any{"first_name": "Ashish", "last_name": "Vaswani"}},
			"year":        json.Number("2017"),
			"identifiers": map[string]any{"arxiv": "1706.03762"},
			"custom":      map[string]any{"nested": []any{"a", "b"}},
		},
		{"id": "d2"},
	}

	if err := WriteRecords(path, records); err != nil {
		t.Fatalf("WriteRecords() error = %v", err)
	}
	got, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}

	doc, err := mendeley.NewBinder(nil).Document(got[0])
	if err != nil {
		t.Fatalf("binding round-tripped record: %v", err)
	}
	if doc.Year != 2017 || doc.FirstAuthorSurname() != "vaswani" || doc.Identifiers["arxiv"] != "1706.03762" {
		t.Errorf("round-tripped document = %+v", doc)
	}
	if nested := got[0].Object("custom")["nested"].([]any); len(nested) != 2 {
		t.Errorf("nested field lost: %v", got[0]["custom"])
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestWriteRecords_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.jsonl")
	if err := WriteRecords(path, []mendeley.RawRecord{{"id": "a"}, {"id": "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := WriteRecords(path, []mendeley.RawRecord{{"id": "c"}}); err != nil {
		t.Fatal(err)
	}

	got, err := ReadRecords(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].String("id") != "c" {
		t.Errorf("ReadRecords() = %v, want only c", got)
	}
}

func TestAppendRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.jsonl")
	for _, id := range []string{"a", "b"} {
		if err := AppendRecord(path, mendeley.RawRecord{"id": id}); err != nil {
			t.Fatalf("AppendRecord(%s) error = %v", id, err)
		}
	}

	got, err := ReadRecords(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].String("id") != "b" {
		t.Errorf("ReadRecords() = %v", got)
	}
}
