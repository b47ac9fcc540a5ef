package mendeley

import (
	"context"
	"fmt"
	"net/url"

	"github.com/matsen/mendeley/internal/errs"
	"github.com/matsen/mendeley/internal/reference"
)

// catalogSchemes are the identifier query parameters the catalog accepts.
var catalogSchemes = map[string]bool{
	reference.SchemeDOI:    true,
	reference.SchemePMID:   true,
	reference.SchemeArXiv:  true,
	reference.SchemeISBN:   true,
	reference.SchemeISSN:   true,
	reference.SchemeScopus: true,
}

// LookupCatalog finds a catalog document by external identifier. Catalog
// documents are not part of the user's library.
func (c *Client) LookupCatalog(ctx context.Context, scheme, value, view string) (*Document, error) {
	scheme = reference.NormalizeScheme(scheme)
	if !catalogSchemes[scheme] {
		return nil, fmt.Errorf("%w: unsupported catalog identifier %q", errs.ErrRequest, scheme)
	}

	params := url.Values{scheme: {value}}
	if view != "" {
		params.Set("view", view)
	}
	resp, err := c.Session.Get(ctx, "/catalog", params, MediaTypeDocument)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup %s:%s: %w", scheme, value, err)
	}
	recs, err := resp.Records()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no catalog document for %s:%s", errs.ErrNotFound, scheme, value)
	}
	return c.Binder.WithView(view).Document(recs[0])
}
