// Package pdf extracts plain text, DOIs and titles from PDF files.
package pdf

import (
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MetadataPages is how many leading pages are scanned for a DOI or title.
const MetadataPages = 3

// ExtractTextReader extracts text from the first maxPages pages of a PDF.
// maxPages <= 0 means all pages. Pages that fail to decode are skipped.
func ExtractTextReader(r io.ReaderAt, size int64, maxPages int) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", err
	}
	return pagesText(reader, maxPages), nil
}

// ExtractText extracts text from the first maxPages pages of a PDF file.
func ExtractText(filePath string, maxPages int) (string, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return pagesText(reader, maxPages), nil
}

func pagesText(r *pdf.Reader, maxPages int) string {
	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	var builder strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String()
}
