package library

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matsen/mendeley/internal/errs"
	"github.com/matsen/mendeley/internal/mendeley"
)

type staticTokens struct{}

func (staticTokens) AccessToken(context.Context) (string, error) { return "tok", nil }
func (staticTokens) Invalidate(string)                           {}

// newLibraryServer serves pages of document records. Records are given per
// page as raw JSON objects.
func newLibraryServer(t *testing.T, pages [][]string) *mendeley.Client {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := 0
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		if page >= len(pages) {
			http.Error(w, `{"message":"bad page"}`, http.StatusBadRequest)
			return
		}
		if page+1 < len(pages) {
			w.Header().Set("Link", fmt.Sprintf(`<%s/documents?page=%d>; rel="next"`, srv.URL, page+1))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "["+strings.Join(pages[page], ",")+"]")
	}))
	t.Cleanup(srv.Close)

	session := mendeley.NewSession(staticTokens{},
		mendeley.WithBaseURL(srv.URL),
		mendeley.WithHTTPClient(srv.Client()),
		mendeley.WithRateLimit(0),
	)
	return mendeley.NewClient(session)
}

func TestSync_IndexesEveryPage(t *testing.T) {
	client := newLibraryServer(t, [][]string{
		{`{"id":"d1","title":"Attention Is All You Need","authors":[{"last_name":"Vaswani"}],"year":2017}`, `{"id":"d2","title":"BERT"}`},
		{`{"id":"d3","title":"GPT","identifiers":{"doi":"10.1/x"}}`},
	})

	idx, err := Sync(context.Background(), client, mendeley.ListOptions{View: mendeley.ViewBib})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if idx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", idx.Len())
	}
	if got := idx.FindByIdentifier("doi", "10.1/x"); len(got) != 1 || got[0].ID != "d3" {
		t.Errorf("FindByIdentifier() = %v", got)
	}
	doc, _ := idx.Get("d1")
	if doc.View != mendeley.ViewBib {
		t.Errorf("View = %q, want %q", doc.View, mendeley.ViewBib)
	}
}

func TestSync_SchemaErrorAborts(t *testing.T) {
	client := newLibraryServer(t, [][]string{
		{`{"id":"d1","title":"ok"}`, `{"title":"no id"}`},
	})

	_, err := Sync(context.Background(), client, mendeley.ListOptions{})
	if !errs.IsSchema(err) {
		t.Fatalf("Sync() error = %v, want schema error", err)
	}
}

func TestSync_PageErrorPropagates(t *testing.T) {
	client := newLibraryServer(t, [][]string{
		{`{"id":"d1"}`},
	})
	// The server rejects pages past the last one.
	pager := client.Session.FetchAll("/documents", map[string][]string{"page": {"5"}}, mendeley.MediaTypeDocument)

	_, err := Build(context.Background(), pager, client.Binder)
	if !errs.IsRequest(err) {
		t.Fatalf("Build() error = %v, want request error", err)
	}
}

func TestFromRecords_RoundTripsThroughRecords(t *testing.T) {
	records := []mendeley.RawRecord{
		{"id": "b", "title": "Second", "reader_count": 3},
		{"id": "a", "title": "First"},
	}
	idx, err := FromRecords(records, mendeley.NewBinder(nil))
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}

	out := idx.Records()
	if len(out) != 2 || out[0].String("id") != "a" {
		t.Fatalf("Records() = %v", out)
	}
	if out[1]["reader_count"] != 3 {
		t.Errorf("unmapped field lost: %v", out[1])
	}

	if _, err := FromRecords([]mendeley.RawRecord{{"title": "x"}}, mendeley.NewBinder(nil)); !errs.IsSchema(err) {
		t.Errorf("FromRecords() error = %v, want schema error", err)
	}
}
