package mendeley

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultPageLimit is the largest page size the API accepts.
const DefaultPageLimit = 500

// linkRegex matches Link header entries: <url>; rel="type".
var linkRegex = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// ParseNextLink extracts the "next" URL from a Link header.
// Returns empty string if no next link is found.
func ParseNextLink(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}

	for _, part := range strings.Split(linkHeader, ",") {
		matches := linkRegex.FindStringSubmatch(strings.TrimSpace(part))
		if len(matches) == 3 && matches[2] == "next" {
			return matches[1]
		}
	}

	return ""
}

// Pager is a lazy, forward-only sequence of records spanning every page of a
// list endpoint. A page is requested only when the consumer has used up the
// previous one. Use it like bufio.Scanner:
//
//	p := session.FetchAll("/documents", params, accept)
//	for p.Next(ctx) {
//		rec := p.Record()
//	}
//	if err := p.Err(); err != nil { ... }
//
// A failure while fetching a later page stops the sequence and is reported
// by Err; records already yielded stay valid. To start over, call FetchAll
// again. Iteration stops when a next link points back at a page already
// fetched.
type Pager struct {
	session *Session
	path    string
	params  url.Values
	accept  string

	next    string
	visited map[string]bool
	started bool
	done    bool
	buf     []RawRecord
	cur     RawRecord
	err     error
	pages   int
	total   int
}

// FetchAll returns a Pager over path. No request is made until Next.
func (s *Session) FetchAll(path string, params url.Values, accept string) *Pager {
	return &Pager{
		session: s,
		path:    path,
		params:  params,
		accept:  accept,
		total:   -1,
	}
}

// Next advances to the next record, fetching a page if needed.
func (p *Pager) Next(ctx context.Context) bool {
	for len(p.buf) == 0 {
		if p.err != nil || p.done {
			return false
		}
		if p.started && p.next == "" {
			p.done = true
			return false
		}
		if err := p.fetch(ctx); err != nil {
			p.err = err
			return false
		}
	}

	p.cur, p.buf = p.buf[0], p.buf[1:]
	return true
}

// Record returns the current record.
func (p *Pager) Record() RawRecord {
	return p.cur
}

// Err returns the error that stopped iteration, if any.
func (p *Pager) Err() error {
	return p.err
}

// Pages returns the number of pages fetched so far.
func (p *Pager) Pages() int {
	return p.pages
}

// TotalCount returns the server-reported total from the Mendeley-Count
// header, or -1 if unknown.
func (p *Pager) TotalCount() int {
	return p.total
}

// Drain consumes the remaining records.
func (p *Pager) Drain(ctx context.Context) ([]RawRecord, error) {
	var out []RawRecord
	for p.Next(ctx) {
		out = append(out, p.Record())
	}
	return out, p.Err()
}

func (p *Pager) fetch(ctx context.Context) error {
	req := Request{Method: http.MethodGet, Accept: p.accept}
	if p.started {
		req.Path = p.next
	} else {
		req.Path = p.path
		req.Params = p.params
	}
	current, err := p.session.resolve(req.Path, req.Params)
	if err != nil {
		return err
	}
	if p.visited == nil {
		p.visited = make(map[string]bool)
	}
	p.visited[current] = true

	resp, err := p.session.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("fetching page %d of %s: %w", p.pages+1, p.path, err)
	}
	recs, err := resp.Records()
	if err != nil {
		return fmt.Errorf("page %d of %s: %w", p.pages+1, p.path, err)
	}

	p.started = true
	p.pages++
	p.buf = recs
	p.next = ParseNextLink(resp.Header.Get("Link"))
	if p.next != "" {
		if target, err := p.session.resolve(p.next, nil); err != nil || p.visited[target] {
			p.session.logger.Warn("pagination link revisits a fetched page, stopping",
				zap.String("path", p.path), zap.String("next", p.next), zap.Int("pages", p.pages))
			p.next = ""
		}
	}
	if n, err := strconv.Atoi(resp.Header.Get("Mendeley-Count")); err == nil {
		p.total = n
	}
	return nil
}
