package mendeley

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/mendeley/internal/errs"
	"github.com/matsen/mendeley/internal/reference"
)

func decodeRecord(t *testing.T, s string) RawRecord {
	t.Helper()
	resp := &Response{Body: []byte(s)}
	var rec RawRecord
	require.NoError(t, resp.Decode(&rec))
	return rec
}

func TestBinder_Document(t *testing.T) {
	raw := decodeRecord(t, `{
		"id": "d1",
		"title": "Attention Is All You Need",
		"type": "conference_proceedings",
		"authors": [
			{"first_name": "Ashish", "last_name": "Vaswani"},
			{"first_name": "Noam", "last_name": "Shazeer"}
		],
		"year": 2017,
		"identifiers": {"doi": "10.48550/arXiv.1706.03762", "pubmed": "123"},
		"tags": ["transformers"],
		"created": "2024-01-02T03:04:05.000Z",
		"file_attached": true,
		"reader_count": 98765
	}`)

	doc, err := NewBinder(nil).WithView(ViewBib).Document(raw)
	require.NoError(t, err)

	assert.Equal(t, "d1", doc.ID)
	assert.Equal(t, "Attention Is All You Need", doc.Title)
	assert.Equal(t, []reference.Author{{First: "Ashish", Last: "Vaswani"}, {First: "Noam", Last: "Shazeer"}}, doc.Authors)
	assert.Equal(t, 2017, doc.Year)
	assert.Equal(t, "123", doc.Identifiers["pmid"])
	assert.Equal(t, "10.48550/arXiv.1706.03762", doc.Identifiers["doi"])
	assert.Equal(t, []string{"transformers"}, doc.Tags)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), doc.Created.UTC())
	assert.True(t, doc.FileAttached)
	assert.Equal(t, ViewBib, doc.View)

	// Fields the binder does not model stay reachable.
	assert.Equal(t, json.Number("98765"), doc.Raw["reader_count"])
	assert.Equal(t, "vaswani", doc.FirstAuthorSurname())
	assert.Equal(t, "attention is all you need|vaswani|2017", doc.Key())
}

func TestBinder_MissingIDIsSchemaError(t *testing.T) {
	b := NewBinder(nil)
	raw := RawRecord{"title": "No id"}

	for _, kind := range []Kind{KindDocument, KindFile, KindAnnotation, KindFolder, KindProfile} {
		t.Run(string(kind), func(t *testing.T) {
			_, err := b.Bind(raw, kind)
			require.Error(t, err)
			assert.True(t, errs.IsSchema(err))

			var schemaErr *errs.SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, string(kind), schemaErr.Kind)
			assert.Equal(t, "id", schemaErr.Field)
		})
	}
}

func TestBinder_UnknownKind(t *testing.T) {
	_, err := NewBinder(nil).Bind(RawRecord{"id": "x"}, Kind("group"))
	assert.True(t, errs.IsSchema(err))
}

func TestBinder_MistypedFieldsAreZero(t *testing.T) {
	raw := RawRecord{
		"id":          "d2",
		"title":       []any{"not", "a", "string"},
		"year":        "2019",
		"authors":     "Smith, J.",
		"identifiers": "doi:10.1/x",
		"created":     "yesterday",
	}
	doc, err := NewBinder(nil).Document(raw)
	require.NoError(t, err)
	assert.Empty(t, doc.Title)
	assert.Equal(t, 2019, doc.Year)
	assert.Nil(t, doc.Authors)
	assert.Nil(t, doc.Identifiers)
	assert.True(t, doc.Created.IsZero())
}

func TestBinder_StringAuthors(t *testing.T) {
	raw := RawRecord{"id": "d3", "authors": []any{"Smith, Jane", "John Doe", ""}}
	doc, err := NewBinder(nil).Document(raw)
	require.NoError(t, err)
	require.Len(t, doc.Authors, 2)
	assert.Equal(t, "Smith", doc.Authors[0].Last)
	assert.Equal(t, "Doe", doc.Authors[1].Last)
}

func TestBinder_RawIsIndependentCopy(t *testing.T) {
	raw := RawRecord{"id": "d4", "tags": []any{"a"}, "extra": map[string]any{"k": "v"}}
	doc, err := NewBinder(nil).Document(raw)
	require.NoError(t, err)

	raw["extra"].(map[string]any)["k"] = "changed"
	raw["tags"].([]any)[0] = "b"
	assert.Equal(t, "v", doc.Raw.Object("extra").String("k"))
	assert.Equal(t, []string{"a"}, doc.Tags)
}

func TestBinder_Documents(t *testing.T) {
	b := NewBinder(nil)
	docs, err := b.Documents([]RawRecord{{"id": "a"}, {"id": "b"}})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = b.Documents([]RawRecord{{"id": "a"}, {"title": "missing"}})
	assert.True(t, errs.IsSchema(err))
	assert.Contains(t, err.Error(), "record 1")
}

func TestBinder_OtherKinds(t *testing.T) {
	b := NewBinder(nil)

	f, err := b.File(RawRecord{"id": "f1", "document_id": "d1", "file_name": "paper.pdf", "mime_type": "application/pdf", "size": json.Number("2048")})
	require.NoError(t, err)
	assert.Equal(t, int64(2048), f.Size)
	assert.True(t, f.IsPDF())

	a, err := b.Annotation(RawRecord{"id": "a1", "document_id": "d1", "type": "note", "text": "key result"})
	require.NoError(t, err)
	assert.Equal(t, "key result", a.Text)

	folder, err := b.Folder(RawRecord{"id": "fo1", "name": "To read", "parent_id": "root"})
	require.NoError(t, err)
	assert.Equal(t, "To read", folder.Name)
	assert.Equal(t, "root", folder.ParentID)

	p, err := b.Profile(RawRecord{"id": "p1", "display_name": "A. Researcher", "discipline": map[string]any{"name": "Computer Science"}})
	require.NoError(t, err)
	assert.Equal(t, "A. Researcher", p.DisplayName)
	assert.Equal(t, "Computer Science", p.Discipline)
}
