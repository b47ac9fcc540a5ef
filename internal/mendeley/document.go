package mendeley

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/matsen/mendeley/internal/errs"
)

// ErrDetached is returned by lazy members of a document bound without a
// session, such as one loaded from a local snapshot.
var ErrDetached = errors.New("document is not attached to a session")

// Files returns the document's attached files, fetching them on first use.
func (d *Document) Files(ctx context.Context) ([]*File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filesOK {
		return d.files, nil
	}
	b, err := d.attached()
	if err != nil {
		return nil, err
	}

	params := url.Values{"document_id": {d.ID}}
	raws, err := b.session.FetchAll("/files", params, MediaTypeFile).Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", d.ID, err)
	}
	files := make([]*File, 0, len(raws))
	for _, raw := range raws {
		f, err := b.File(raw)
		if err != nil {
			return nil, fmt.Errorf("files of %s: %w", d.ID, err)
		}
		files = append(files, f)
	}

	d.files, d.filesOK = files, true
	return files, nil
}

// FullText returns the plain text of the document's first PDF attachment,
// downloading and extracting it on first use.
func (d *Document) FullText(ctx context.Context) (string, error) {
	files, err := d.Files(ctx)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fullTextOK {
		return d.fullText, nil
	}
	b, err := d.attached()
	if err != nil {
		return "", err
	}

	file := pickTextFile(files)
	if file == nil {
		return "", fmt.Errorf("%w: document %s has no attached files", errs.ErrNotFound, d.ID)
	}

	resp, err := b.session.Do(ctx, Request{Method: http.MethodGet, Path: "/files/" + url.PathEscape(file.ID)})
	if err != nil {
		return "", fmt.Errorf("downloading file %s: %w", file.ID, err)
	}
	text, err := b.extract(resp.Body)
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", file.FileName, err)
	}

	d.fullText, d.fullTextOK = text, true
	return text, nil
}

// Annotations returns the document's annotations, fetching them on first use.
func (d *Document) Annotations(ctx context.Context) ([]*Annotation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.annotOK {
		return d.annotations, nil
	}
	b, err := d.attached()
	if err != nil {
		return nil, err
	}

	params := url.Values{"document_id": {d.ID}, "limit": {fmt.Sprint(DefaultPageLimit)}}
	raws, err := b.session.FetchAll("/annotations", params, MediaTypeAnnotation).Drain(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing annotations of %s: %w", d.ID, err)
	}
	annotations := make([]*Annotation, 0, len(raws))
	for _, raw := range raws {
		a, err := b.Annotation(raw)
		if err != nil {
			return nil, fmt.Errorf("annotations of %s: %w", d.ID, err)
		}
		annotations = append(annotations, a)
	}

	d.annotations, d.annotOK = annotations, true
	return annotations, nil
}

func (d *Document) attached() (*Binder, error) {
	if d.binder == nil || d.binder.session == nil {
		return nil, fmt.Errorf("%w: %s", ErrDetached, d.ID)
	}
	return d.binder, nil
}

// pickTextFile prefers the first PDF, falling back to the first file.
func pickTextFile(files []*File) *File {
	for _, f := range files {
		if f.IsPDF() {
			return f
		}
	}
	if len(files) > 0 {
		return files[0]
	}
	return nil
}
