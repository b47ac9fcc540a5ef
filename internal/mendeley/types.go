package mendeley

import (
	"sync"
	"time"

	"github.com/matsen/mendeley/internal/reference"
)

// Media types used by the API for request and response bodies.
const (
	MediaTypeDocument   = "application/vnd.mendeley-document.1+json"
	MediaTypeFolder     = "application/vnd.mendeley-folder.1+json"
	MediaTypeFile       = "application/vnd.mendeley-file.1+json"
	MediaTypeAnnotation = "application/vnd.mendeley-annotation.1+json"
	MediaTypeProfile    = "application/vnd.mendeley-profiles.1+json"
)

// Document views accepted by the documents endpoints.
const (
	ViewBib     = "bib"
	ViewClient  = "client"
	ViewTags    = "tags"
	ViewPatent  = "patent"
	ViewAll     = "all"
	ViewDeleted = "deleted"
)

// Document is a library entry. The mapped fields are fixed at binding time;
// Raw keeps the complete record, including fields not mapped here.
//
// Files, FullText and Annotations are fetched on first use through the
// session the document was bound with, then cached.
type Document struct {
	ID           string
	Title        string
	Authors      []reference.Author
	Year         int
	Identifiers  map[string]string
	Type         string
	Source       string // journal, conference or other venue
	Abstract     string
	Tags         []string
	Keywords     []string
	Created      time.Time
	LastModified time.Time
	FileAttached bool
	GroupID      string
	ProfileID    string
	View         string // view the record was requested with, if any
	Raw          RawRecord

	binder *Binder

	mu          sync.Mutex
	files       []*File
	filesOK     bool
	fullText    string
	fullTextOK  bool
	annotations []*Annotation
	annotOK     bool
}

// FirstAuthorSurname returns the normalized surname of the first author.
func (d *Document) FirstAuthorSurname() string {
	if len(d.Authors) == 0 {
		return ""
	}
	return d.Authors[0].Surname()
}

// Surnames returns the normalized surnames of all authors.
func (d *Document) Surnames() []string {
	out := make([]string, 0, len(d.Authors))
	for _, a := range d.Authors {
		if s := a.Surname(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Key returns the document's normalized bibliographic key.
func (d *Document) Key() string {
	return reference.Key(d.Title, d.FirstAuthorSurname(), d.Year)
}

// DOI returns the document's DOI identifier, if any.
func (d *Document) DOI() string {
	return d.Identifiers[reference.SchemeDOI]
}

// File is a file attached to a document.
type File struct {
	ID         string
	DocumentID string
	FileName   string
	MimeType   string
	Size       int64
	FileHash   string
	Created    time.Time
	Raw        RawRecord
}

// IsPDF reports whether the file is a PDF.
func (f *File) IsPDF() bool {
	return f.MimeType == "application/pdf"
}

// Annotation is a note or highlight on a document.
type Annotation struct {
	ID           string
	DocumentID   string
	Type         string // note, highlight, sticky_note, ...
	Text         string
	PrivacyLevel string
	Created      time.Time
	LastModified time.Time
	Raw          RawRecord
}

// Folder is a user-defined collection of documents.
type Folder struct {
	ID       string
	Name     string
	ParentID string
	GroupID  string
	Created  time.Time
	Raw      RawRecord
}

// Profile is a Mendeley user profile.
type Profile struct {
	ID             string
	FirstName      string
	LastName       string
	DisplayName    string
	Email          string
	Link           string
	AcademicStatus string
	Discipline     string
	Raw            RawRecord
}
