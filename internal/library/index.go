// Package library holds the in-memory index of a user's documents.
//
// An Index is keyed by document id with secondary lookups by normalized
// bibliographic key, external identifier and first-author surname. Every
// write keeps the secondary lookups consistent with the primary map.
package library

import (
	"fmt"
	"sort"
	"sync"

	"github.com/matsen/mendeley/internal/errs"
	"github.com/matsen/mendeley/internal/mendeley"
	"github.com/matsen/mendeley/internal/reference"
)

// Index is a concurrency-safe document index. Reads may run in parallel;
// writes are serialized.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*entry

	byKey        map[string]idSet
	byIdentifier map[string]idSet
	byAuthor     map[string]idSet
}

// entry remembers the secondary keys a document was filed under, so an
// update can remove exactly those.
type entry struct {
	doc         *mendeley.Document
	key         string
	identifiers []string
	surname     string
}

type idSet map[string]struct{}

// New returns an empty index.
func New() *Index {
	return &Index{
		entries:      make(map[string]*entry),
		byKey:        make(map[string]idSet),
		byIdentifier: make(map[string]idSet),
		byAuthor:     make(map[string]idSet),
	}
}

// Len returns the number of documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Get returns the document with the given id.
func (x *Index) Get(id string) (*mendeley.Document, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[id]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// FindByKey returns the documents filed under a normalized bibliographic
// key, ordered by id.
func (x *Index) FindByKey(key string) []*mendeley.Document {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byKey[key])
}

// FindByIdentifier returns the documents carrying the identifier, ordered
// by id. The scheme and value are normalized first.
func (x *Index) FindByIdentifier(scheme, value string) []*mendeley.Document {
	k := reference.IdentifierKey(scheme, value)
	if k == "" {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byIdentifier[k])
}

// FindByAuthor returns the documents whose first author has the given
// surname, ordered by id.
func (x *Index) FindByAuthor(surname string) []*mendeley.Document {
	s := (reference.Author{Last: surname}).Surname()
	if s == "" {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collect(x.byAuthor[s])
}

// Documents returns every document ordered by id.
func (x *Index) Documents() []*mendeley.Document {
	x.mu.RLock()
	defer x.mu.RUnlock()
	docs := make([]*mendeley.Document, 0, len(x.entries))
	for _, e := range x.entries {
		docs = append(docs, e.doc)
	}
	sortByID(docs)
	return docs
}

// Upsert inserts doc or replaces the document with the same id. Secondary
// entries from the replaced version are removed before the new ones are
// added, so repeating an Upsert leaves the index unchanged.
func (x *Index) Upsert(doc *mendeley.Document) error {
	if doc == nil || doc.ID == "" {
		return &errs.SchemaError{Kind: string(mendeley.KindDocument), Field: "id"}
	}
	e := newEntry(doc)

	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.entries[doc.ID]; ok {
		x.unfile(old)
	}
	x.entries[doc.ID] = e
	x.file(e)
	return nil
}

// Remove deletes the document with the given id. It reports whether a
// document was removed.
func (x *Index) Remove(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	old, ok := x.entries[id]
	if !ok {
		return false
	}
	x.unfile(old)
	delete(x.entries, id)
	return true
}

// Stats summarizes the secondary lookups.
type Stats struct {
	Documents   int `json:"documents"`
	Keys        int `json:"keys"`
	Identifiers int `json:"identifiers"`
	Authors     int `json:"authors"`
	SharedKeys  int `json:"shared_keys"` // keys filed under more than one document
}

// Stats returns counts for each lookup.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := Stats{
		Documents:   len(x.entries),
		Keys:        len(x.byKey),
		Identifiers: len(x.byIdentifier),
		Authors:     len(x.byAuthor),
	}
	for _, ids := range x.byKey {
		if len(ids) > 1 {
			s.SharedKeys++
		}
	}
	return s
}

func newEntry(doc *mendeley.Document) *entry {
	e := &entry{
		doc:     doc,
		key:     doc.Key(),
		surname: doc.FirstAuthorSurname(),
	}
	seen := make(map[string]bool)
	for scheme, value := range doc.Identifiers {
		if k := reference.IdentifierKey(scheme, value); k != "" && !seen[k] {
			seen[k] = true
			e.identifiers = append(e.identifiers, k)
		}
	}
	sort.Strings(e.identifiers)
	return e
}

func (x *Index) file(e *entry) {
	add(x.byKey, e.key, e.doc.ID)
	for _, k := range e.identifiers {
		add(x.byIdentifier, k, e.doc.ID)
	}
	if e.surname != "" {
		add(x.byAuthor, e.surname, e.doc.ID)
	}
}

func (x *Index) unfile(e *entry) {
	del(x.byKey, e.key, e.doc.ID)
	for _, k := range e.identifiers {
		del(x.byIdentifier, k, e.doc.ID)
	}
	if e.surname != "" {
		del(x.byAuthor, e.surname, e.doc.ID)
	}
}

func (x *Index) collect(ids idSet) []*mendeley.Document {
	if len(ids) == 0 {
		return nil
	}
	docs := make([]*mendeley.Document, 0, len(ids))
	for id := range ids {
		if e, ok := x.entries[id]; ok {
			docs = append(docs, e.doc)
		}
	}
	sortByID(docs)
	return docs
}

func add(m map[string]idSet, k, id string) {
	set, ok := m[k]
	if !ok {
		set = make(idSet)
		m[k] = set
	}
	set[id] = struct{}{}
}

func del(m map[string]idSet, k, id string) {
	set, ok := m[k]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, k)
	}
}

func sortByID(docs []*mendeley.Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

// String implements fmt.Stringer for log output.
func (s Stats) String() string {
	return fmt.Sprintf("%d documents, %d keys (%d shared), %d identifiers, %d authors",
		s.Documents, s.Keys, s.SharedKeys, s.Identifiers, s.Authors)
}
