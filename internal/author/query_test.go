package author

import (
	"testing"

	"github.com/matsen/mendeley/internal/reference"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Query
	}{
		{"single word is surname", "Vaswani", Query{Last: "Vaswani"}},
		{"First Last", "Ashish Vaswani", Query{First: "Ashish", Last: "Vaswani"}},
		{"middle initial stays with first", "Noam M Shazeer", Query{First: "Noam M", Last: "Shazeer"}},
		{"Last, First", "Vaswani, Ashish", Query{First: "Ashish", Last: "Vaswani"}},
		{"suffix stays on surname", "Martin Luther King Jr", Query{First: "Martin Luther", Last: "King Jr"}},
		{"whitespace", "  Parmar  ", Query{Last: "Parmar"}},
		{"empty", "", Query{}},
		{"whitespace only", "   ", Query{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuery(tt.input)
			if got != tt.want {
				t.Errorf("ParseQuery(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseQueries_SkipsEmpty(t *testing.T) {
	got := ParseQueries([]string{"Vaswani", " ", "Uszkoreit, Jakob"})
	if len(got) != 2 {
		t.Fatalf("ParseQueries() returned %d queries, want 2", len(got))
	}
	if got[1].Last != "Uszkoreit" {
		t.Errorf("second query last = %q, want Uszkoreit", got[1].Last)
	}
}

func TestQueryMatches(t *testing.T) {
	tests := []struct {
		name   string
		query  Query
		author reference.Author
		want   bool
	}{
		{"surname only", Query{Last: "Vaswani"}, reference.Author{First: "Ashish", Last: "Vaswani"}, true},
		{"case insensitive", Query{Last: "vaswani"}, reference.Author{First: "Ashish", Last: "Vaswani"}, true},
		{"diacritics folded", Query{Last: "Godel"}, reference.Author{First: "Kurt", Last: "Gödel"}, true},
		{"punctuation ignored", Query{Last: "OBrien"}, reference.Author{First: "Flann", Last: "O'Brien"}, true},
		{"surname is not a prefix match", Query{Last: "Vas"}, reference.Author{Last: "Vaswani"}, false},
		{"first name prefix", Query{First: "Ash", Last: "Vaswani"}, reference.Author{First: "Ashish", Last: "Vaswani"}, true},
		{"first name mismatch", Query{First: "Noam", Last: "Vaswani"}, reference.Author{First: "Ashish", Last: "Vaswani"}, false},
		{"suffix ignored on author", Query{Last: "King"}, reference.Author{First: "Martin", Last: "King Jr"}, true},
		{"empty query never matches", Query{}, reference.Author{Last: "Vaswani"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Matches(tt.author); got != tt.want {
				t.Errorf("Query%+v.Matches(%+v) = %v, want %v", tt.query, tt.author, got, tt.want)
			}
		})
	}
}

func TestAllMatch(t *testing.T) {
	authors := []reference.Author{
		{First: "Ashish", Last: "Vaswani"},
		{First: "Noam", Last: "Shazeer"},
		{First: "Niki", Last: "Parmar"},
	}

	tests := []struct {
		name    string
		queries []Query
		want    bool
	}{
		{"both match", []Query{{Last: "Vaswani"}, {Last: "Parmar"}}, true},
		{"one missing", []Query{{Last: "Vaswani"}, {Last: "Hinton"}}, false},
		{"no queries matches all", nil, true},
		{"first name narrows", []Query{ParseQuery("Noam Shazeer")}, true},
		{"wrong first name", []Query{ParseQuery("Niki Shazeer")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllMatch(tt.queries, authors); got != tt.want {
				t.Errorf("AllMatch(%+v) = %v, want %v", tt.queries, got, tt.want)
			}
		})
	}
}
