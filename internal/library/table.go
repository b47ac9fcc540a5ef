package library

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/mendeley/internal/mendeley"
)

// Columns is the header of the tabular projection.
var Columns = []string{
	"id", "title", "authors", "year", "type", "source",
	"doi", "identifiers", "tags", "file_attached", "created", "last_modified",
}

// Row is one document in tabular form.
type Row struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Authors      string `json:"authors"`
	Year         int    `json:"year,omitempty"`
	Type         string `json:"type,omitempty"`
	Source       string `json:"source,omitempty"`
	DOI          string `json:"doi,omitempty"`
	Identifiers  string `json:"identifiers,omitempty"`
	Tags         string `json:"tags,omitempty"`
	FileAttached bool   `json:"file_attached"`
	Created      string `json:"created,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// NewRow projects a document onto a Row. Multi-valued fields are joined
// with "; ".
func NewRow(d *mendeley.Document) Row {
	authors := make([]string, 0, len(d.Authors))
	for _, a := range d.Authors {
		if a.First != "" {
			authors = append(authors, a.Last+", "+a.First)
		} else {
			authors = append(authors, a.Last)
		}
	}

	ids := make([]string, 0, len(d.Identifiers))
	for scheme, value := range d.Identifiers {
		ids = append(ids, scheme+":"+value)
	}
	sort.Strings(ids)

	return Row{
		ID:           d.ID,
		Title:        d.Title,
		Authors:      strings.Join(authors, "; "),
		Year:         d.Year,
		Type:         d.Type,
		Source:       d.Source,
		DOI:          d.DOI(),
		Identifiers:  strings.Join(ids, "; "),
		Tags:         strings.Join(d.Tags, "; "),
		FileAttached: d.FileAttached,
		Created:      formatTime(d.Created),
		LastModified: formatTime(d.LastModified),
	}
}

// Values returns the row's cells in Columns order.
func (r Row) Values() []string {
	year := ""
	if r.Year > 0 {
		year = strconv.Itoa(r.Year)
	}
	return []string{
		r.ID, r.Title, r.Authors, year, r.Type, r.Source,
		r.DOI, r.Identifiers, r.Tags, strconv.FormatBool(r.FileAttached), r.Created, r.LastModified,
	}
}

// Rows returns one row per document, ordered by id.
func (x *Index) Rows() []Row {
	docs := x.Documents()
	rows := make([]Row, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, NewRow(d))
	}
	return rows
}

// WriteCSV writes the tabular projection with a header line.
func (x *Index) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range x.Rows() {
		if err := cw.Write(row.Values()); err != nil {
			return fmt.Errorf("writing row %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
