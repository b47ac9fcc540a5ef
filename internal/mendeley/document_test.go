package mendeley

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/mendeley/internal/errs"
)

// documentServer serves one document with two files and an annotation,
// counting requests per endpoint.
type documentServer struct {
	fileLists   atomic.Int32
	downloads   atomic.Int32
	annotations atomic.Int32
	noFiles     bool
}

func (s *documentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/files":
		s.fileLists.Add(1)
		if s.noFiles {
			writeJSON(w, 200, `[]`)
			return
		}
		writeJSON(w, 200, `[
			{"id":"f-txt","document_id":"d1","file_name":"notes.txt","mime_type":"text/plain"},
			{"id":"f-pdf","document_id":"d1","file_name":"paper.pdf","mime_type":"application/pdf"}
		]`)
	case "/files/f-pdf":
		s.downloads.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-fake"))
	case "/annotations":
		s.annotations.Add(1)
		writeJSON(w, 200, `[{"id":"a1","document_id":"d1","type":"highlight","text":"important"}]`)
	default:
		http.NotFound(w, r)
	}
}

func newDocumentEnv(t *testing.T, srv *documentServer, extract TextExtractor) (*testEnv, *Document) {
	t.Helper()
	env := newTestEnv(t, srv)
	binder := NewBinder(env.session(), WithTextExtractor(extract))
	doc, err := binder.Document(RawRecord{"id": "d1", "title": "Paper"})
	require.NoError(t, err)
	return env, doc
}

func TestDocument_FilesMemoized(t *testing.T) {
	srv := &documentServer{}
	_, doc := newDocumentEnv(t, srv, nil)
	ctx := context.Background()

	files, err := doc.Files(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "notes.txt", files[0].FileName)

	again, err := doc.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, files, again)
	assert.Equal(t, int32(1), srv.fileLists.Load())
}

func TestDocument_FullTextPrefersPDFAndMemoizes(t *testing.T) {
	srv := &documentServer{}
	var extracted atomic.Int32
	_, doc := newDocumentEnv(t, srv, func(data []byte) (string, error) {
		extracted.Add(1)
		assert.Equal(t, "%PDF-fake", string(data))
		return "full text of the paper", nil
	})
	ctx := context.Background()

	text, err := doc.FullText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "full text of the paper", text)

	text, err = doc.FullText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "full text of the paper", text)

	assert.Equal(t, int32(1), srv.fileLists.Load())
	assert.Equal(t, int32(1), srv.downloads.Load())
	assert.Equal(t, int32(1), extracted.Load())
}

func TestDocument_FullTextFailureIsNotCached(t *testing.T) {
	srv := &documentServer{}
	var calls atomic.Int32
	_, doc := newDocumentEnv(t, srv, func([]byte) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("corrupt")
		}
		return "ok", nil
	})
	ctx := context.Background()

	_, err := doc.FullText(ctx)
	require.Error(t, err)

	text, err := doc.FullText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), srv.downloads.Load())
}

func TestDocument_FullTextWithoutFiles(t *testing.T) {
	srv := &documentServer{noFiles: true}
	_, doc := newDocumentEnv(t, srv, nil)

	_, err := doc.FullText(context.Background())
	assert.True(t, errs.IsNotFound(err))
}

func TestDocument_AnnotationsMemoized(t *testing.T) {
	srv := &documentServer{}
	_, doc := newDocumentEnv(t, srv, nil)
	ctx := context.Background()

	anns, err := doc.Annotations(ctx)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, "important", anns[0].Text)

	_, err = doc.Annotations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.annotations.Load())
}

func TestDocument_DetachedLazyMembers(t *testing.T) {
	doc, err := NewBinder(nil).Document(RawRecord{"id": "offline"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = doc.Files(ctx)
	assert.ErrorIs(t, err, ErrDetached)
	_, err = doc.FullText(ctx)
	assert.ErrorIs(t, err, ErrDetached)
	_, err = doc.Annotations(ctx)
	assert.ErrorIs(t, err, ErrDetached)
}
