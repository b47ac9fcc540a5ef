package mendeley

import (
	"bytes"
	"fmt"

	"github.com/matsen/mendeley/internal/errs"
	"github.com/matsen/mendeley/internal/pdf"
	"github.com/matsen/mendeley/internal/reference"
)

// Kind selects the type a raw record is bound to.
type Kind string

const (
	KindDocument   Kind = "document"
	KindFile       Kind = "file"
	KindAnnotation Kind = "annotation"
	KindFolder     Kind = "folder"
	KindProfile    Kind = "profile"
)

// TextExtractor turns a downloaded file into plain text.
type TextExtractor func(data []byte) (string, error)

// Binder converts raw records into typed objects. Binding is pure: it never
// performs network I/O. Documents keep a reference to the binder so their
// lazy members can reach the session later.
type Binder struct {
	session *Session
	extract TextExtractor
	view    string
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithTextExtractor replaces the PDF text extractor.
func WithTextExtractor(fn TextExtractor) BinderOption {
	return func(b *Binder) {
		b.extract = fn
	}
}

// NewBinder creates a binder. session may be nil for offline use; lazy
// members of documents bound that way return an error.
func NewBinder(session *Session, opts ...BinderOption) *Binder {
	b := &Binder{
		session: session,
		extract: extractPDFText,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithView returns a binder that records view on each document it binds.
func (b *Binder) WithView(view string) *Binder {
	nb := *b
	nb.view = view
	return &nb
}

// Bind converts raw according to kind.
func (b *Binder) Bind(raw RawRecord, kind Kind) (any, error) {
	switch kind {
	case KindDocument:
		return b.Document(raw)
	case KindFile:
		return b.File(raw)
	case KindAnnotation:
		return b.Annotation(raw)
	case KindFolder:
		return b.Folder(raw)
	case KindProfile:
		return b.Profile(raw)
	default:
		return nil, fmt.Errorf("%w: unknown record kind %q", errs.ErrSchema, kind)
	}
}

// Document binds a document record. Only a missing id is an error; other
// missing or mistyped fields are left at their zero value.
func (b *Binder) Document(raw RawRecord) (*Document, error) {
	id, err := raw.requireID(KindDocument)
	if err != nil {
		return nil, err
	}
	raw = raw.Clone()

	return &Document{
		ID:           id,
		Title:        raw.String("title"),
		Authors:      bindAuthors(raw["authors"]),
		Year:         raw.Int("year"),
		Identifiers:  bindIdentifiers(raw.StringMap("identifiers")),
		Type:         raw.String("type"),
		Source:       raw.String("source"),
		Abstract:     raw.String("abstract"),
		Tags:         raw.Strings("tags"),
		Keywords:     raw.Strings("keywords"),
		Created:      raw.Time("created"),
		LastModified: raw.Time("last_modified"),
		FileAttached: raw.Bool("file_attached"),
		GroupID:      raw.String("group_id"),
		ProfileID:    raw.String("profile_id"),
		View:         b.view,
		Raw:          raw,
		binder:       b,
	}, nil
}

// Documents binds each record, stopping at the first schema error.
func (b *Binder) Documents(raws []RawRecord) ([]*Document, error) {
	docs := make([]*Document, 0, len(raws))
	for i, raw := range raws {
		doc, err := b.Document(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// File binds a file record.
func (b *Binder) File(raw RawRecord) (*File, error) {
	id, err := raw.requireID(KindFile)
	if err != nil {
		return nil, err
	}
	raw = raw.Clone()
	return &File{
		ID:         id,
		DocumentID: raw.String("document_id"),
		FileName:   raw.String("file_name"),
		MimeType:   raw.String("mime_type"),
		Size:       raw.Int64("size"),
		FileHash:   raw.String("filehash"),
		Created:    raw.Time("created"),
		Raw:        raw,
	}, nil
}

// Annotation binds an annotation record.
func (b *Binder) Annotation(raw RawRecord) (*Annotation, error) {
	id, err := raw.requireID(KindAnnotation)
	if err != nil {
		return nil, err
	}
	raw = raw.Clone()
	return &Annotation{
		ID:           id,
		DocumentID:   raw.String("document_id"),
		Type:         raw.String("type"),
		Text:         raw.String("text"),
		PrivacyLevel: raw.String("privacy_level"),
		Created:      raw.Time("created"),
		LastModified: raw.Time("last_modified"),
		Raw:          raw,
	}, nil
}

// Folder binds a folder record.
func (b *Binder) Folder(raw RawRecord) (*Folder, error) {
	id, err := raw.requireID(KindFolder)
	if err != nil {
		return nil, err
	}
	raw = raw.Clone()
	return &Folder{
		ID:       id,
		Name:     raw.String("name"),
		ParentID: raw.String("parent_id"),
		GroupID:  raw.String("group_id"),
		Created:  raw.Time("created"),
		Raw:      raw,
	}, nil
}

// Profile binds a profile record.
func (b *Binder) Profile(raw RawRecord) (*Profile, error) {
	id, err := raw.requireID(KindProfile)
	if err != nil {
		return nil, err
	}
	raw = raw.Clone()
	return &Profile{
		ID:             id,
		FirstName:      raw.String("first_name"),
		LastName:       raw.String("last_name"),
		DisplayName:    raw.String("display_name"),
		Email:          raw.String("email"),
		Link:           raw.String("link"),
		AcademicStatus: raw.String("academic_status"),
		Discipline:     raw.Object("discipline").String("name"),
		Raw:            raw,
	}, nil
}

// bindAuthors accepts Mendeley's {first_name, last_name} objects and, for
// records from other sources, plain name strings.
func bindAuthors(v any) []reference.Author {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	authors := make([]reference.Author, 0, len(list))
	for _, item := range list {
		switch a := item.(type) {
		case map[string]any:
			rec := RawRecord(a)
			author := reference.Author{First: rec.String("first_name"), Last: rec.String("last_name")}
			if author.Last == "" && author.First == "" {
				continue
			}
			authors = append(authors, author)
		case string:
			if a != "" {
				authors = append(authors, reference.ParseAuthor(a))
			}
		}
	}
	return authors
}

// bindIdentifiers canonicalizes scheme names, keeping the raw values.
func bindIdentifiers(ids map[string]string) map[string]string {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]string, len(ids))
	for scheme, value := range ids {
		out[reference.NormalizeScheme(scheme)] = value
	}
	return out
}

func schemaError(kind Kind, field string) error {
	return &errs.SchemaError{Kind: string(kind), Field: field}
}

func extractPDFText(data []byte) (string, error) {
	return pdf.ExtractTextReader(bytes.NewReader(data), int64(len(data)), 0)
}
