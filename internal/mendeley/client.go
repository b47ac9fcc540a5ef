// Package mendeley is a client for the Mendeley reference-management API.
//
// A Session performs authenticated HTTP with retry and token refresh, a
// Pager walks paginated list endpoints lazily, and a Binder turns raw
// records into Documents whose attachments and annotations load on demand.
// Client bundles the three and exposes the endpoints.
package mendeley

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Client is the explicit context shared by all operations. Build one per
// user and pass it where needed; there is no package-level default.
type Client struct {
	Session   *Session
	Binder    *Binder
	pageLimit int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPageLimit sets the page size for list endpoints.
func WithPageLimit(n int) ClientOption {
	return func(c *Client) {
		if n > 0 && n <= DefaultPageLimit {
			c.pageLimit = n
		}
	}
}

// WithBinder replaces the default binder.
func WithBinder(b *Binder) ClientOption {
	return func(c *Client) {
		c.Binder = b
	}
}

// NewClient creates a client over session.
func NewClient(session *Session, opts ...ClientOption) *Client {
	c := &Client{
		Session:   session,
		pageLimit: DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Binder == nil {
		c.Binder = NewBinder(session)
	}
	return c
}

// ListOptions filter and order the documents list.
type ListOptions struct {
	View          string
	Sort          string // created, last_modified or title
	Order         string // asc or desc
	FolderID      string
	GroupID       string
	ModifiedSince time.Time
	DeletedSince  time.Time
}

func (o ListOptions) params(limit int) url.Values {
	p := url.Values{"limit": {strconv.Itoa(limit)}}
	if o.View != "" {
		p.Set("view", o.View)
	}
	if o.Sort != "" {
		p.Set("sort", o.Sort)
	}
	if o.Order != "" {
		p.Set("order", o.Order)
	}
	if o.FolderID != "" {
		p.Set("folder_id", o.FolderID)
	}
	if o.GroupID != "" {
		p.Set("group_id", o.GroupID)
	}
	if !o.ModifiedSince.IsZero() {
		p.Set("modified_since", o.ModifiedSince.UTC().Format(time.RFC3339))
	}
	if !o.DeletedSince.IsZero() {
		p.Set("deleted_since", o.DeletedSince.UTC().Format(time.RFC3339))
	}
	return p
}

// DocumentsPager returns a lazy sequence over the user's documents.
func (c *Client) DocumentsPager(opts ListOptions) *Pager {
	return c.Session.FetchAll("/documents", opts.params(c.pageLimit), MediaTypeDocument)
}

// TrashPager returns a lazy sequence over documents in the trash.
func (c *Client) TrashPager(opts ListOptions) *Pager {
	return c.Session.FetchAll("/trash", opts.params(c.pageLimit), MediaTypeDocument)
}

// Documents fetches and binds every document matching opts.
func (c *Client) Documents(ctx context.Context, opts ListOptions) ([]*Document, error) {
	raws, err := c.DocumentsPager(opts).Drain(ctx)
	if err != nil {
		return nil, err
	}
	return c.Binder.WithView(opts.View).Documents(raws)
}

// GetDocument fetches one document by id.
func (c *Client) GetDocument(ctx context.Context, id, view string) (*Document, error) {
	var params url.Values
	if view != "" {
		params = url.Values{"view": {view}}
	}
	resp, err := c.Session.Get(ctx, "/documents/"+url.PathEscape(id), params, MediaTypeDocument)
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return c.bindOneDocument(resp, view)
}

// DocumentInput is the writable subset of a document.
type DocumentInput struct {
	Title       string            `json:"title,omitempty"`
	Type        string            `json:"type,omitempty"`
	Authors     []PersonInput     `json:"authors,omitempty"`
	Year        int               `json:"year,omitempty"`
	Source      string            `json:"source,omitempty"`
	Abstract    string            `json:"abstract,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
}

// PersonInput is an author in a write request.
type PersonInput struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name"`
}

// CreateDocument adds a document to the library. Title and type are
// required by the service.
func (c *Client) CreateDocument(ctx context.Context, in DocumentInput) (*Document, error) {
	if in.Type == "" {
		in.Type = "journal"
	}
	resp, err := c.Session.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/documents",
		Body:        in,
		ContentType: MediaTypeDocument,
		Accept:      MediaTypeDocument,
	})
	if err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	return c.bindOneDocument(resp, "")
}

// UpdateDocument patches the given fields of a document.
func (c *Client) UpdateDocument(ctx context.Context, id string, fields map[string]any) (*Document, error) {
	resp, err := c.Session.Do(ctx, Request{
		Method:      http.MethodPatch,
		Path:        "/documents/" + url.PathEscape(id),
		Body:        fields,
		ContentType: MediaTypeDocument,
		Accept:      MediaTypeDocument,
	})
	if err != nil {
		return nil, fmt.Errorf("updating document %s: %w", id, err)
	}
	return c.bindOneDocument(resp, "")
}

// TrashDocument moves a document to the trash.
func (c *Client) TrashDocument(ctx context.Context, id string) error {
	_, err := c.Session.Do(ctx, Request{Method: http.MethodPost, Path: "/documents/" + url.PathEscape(id) + "/trash"})
	if err != nil {
		return fmt.Errorf("trashing document %s: %w", id, err)
	}
	return nil
}

// AttachFile uploads content as a file named name and links it to the
// document with id docID.
func (c *Client) AttachFile(ctx context.Context, docID, name string, content io.Reader) (*File, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	docURL, err := c.Session.resolve("/documents/"+url.PathEscape(docID), nil)
	if err != nil {
		return nil, err
	}
	header := uploadHeader(name)
	header.Set("Link", "<"+docURL+`>; rel="document"`)

	resp, err := c.Session.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/files",
		RawBody:     data,
		ContentType: uploadContentType(name),
		Accept:      MediaTypeFile,
		Header:      header,
	})
	if err != nil {
		return nil, fmt.Errorf("attaching %s to document %s: %w", name, docID, err)
	}
	var raw RawRecord
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}
	return c.Binder.File(raw)
}

// CreateDocumentFromFile uploads a file and lets the service extract a new
// document's metadata from it.
func (c *Client) CreateDocumentFromFile(ctx context.Context, name string, content io.Reader) (*Document, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	resp, err := c.Session.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/documents",
		RawBody:     data,
		ContentType: uploadContentType(name),
		Accept:      MediaTypeDocument,
		Header:      uploadHeader(name),
	})
	if err != nil {
		return nil, fmt.Errorf("creating document from %s: %w", name, err)
	}
	return c.bindOneDocument(resp, "")
}

func uploadHeader(name string) http.Header {
	h := http.Header{}
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(name)}))
	return h
}

func uploadContentType(name string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if ct == "" {
		return "application/pdf"
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// Folders fetches every folder.
func (c *Client) Folders(ctx context.Context) ([]*Folder, error) {
	params := url.Values{"limit": {strconv.Itoa(c.pageLimit)}}
	raws, err := c.Session.FetchAll("/folders", params, MediaTypeFolder).Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	folders := make([]*Folder, 0, len(raws))
	for _, raw := range raws {
		f, err := c.Binder.Folder(raw)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, nil
}

// CreateFolder creates a folder, nested under parentID when non-empty.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	body := map[string]string{"name": name}
	if parentID != "" {
		body["parent_id"] = parentID
	}
	resp, err := c.Session.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/folders",
		Body:        body,
		ContentType: MediaTypeFolder,
		Accept:      MediaTypeFolder,
	})
	if err != nil {
		return nil, fmt.Errorf("creating folder %q: %w", name, err)
	}
	var raw RawRecord
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}
	return c.Binder.Folder(raw)
}

// Me fetches the profile of the authorized user.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	resp, err := c.Session.Get(ctx, "/profiles/me", nil, MediaTypeProfile)
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	var raw RawRecord
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}
	return c.Binder.Profile(raw)
}

func (c *Client) bindOneDocument(resp *Response, view string) (*Document, error) {
	var raw RawRecord
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}
	return c.Binder.WithView(view).Document(raw)
}
