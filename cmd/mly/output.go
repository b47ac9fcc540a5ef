package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/matsen/mendeley/internal/mendeley"
	"github.com/matsen/mendeley/internal/reference"
)

// Constants for output formatting.
const (
	DefaultListLimit = 50 // Default limit for search/list commands

	ListTitleMaxLen   = 60 // Used in list and search output
	MatchTitleMaxLen  = 50 // Used in the match report
	DetailWrapWidth   = 60 // Wrap width for detail views
	AbstractWrapWidth = 68
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	_ = logger.Sync()
	os.Exit(code)
}

// exitWithErr reports err with a prefix and exits with the code for its
// class.
func exitWithErr(prefix string, err error) {
	exitWithError(exitCodeFor(err), "%s: %v", prefix, err)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// DocumentSummary is the JSON shape of a document in list and search output.
type DocumentSummary struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Authors     []string          `json:"authors,omitempty"`
	Year        int               `json:"year,omitempty"`
	Type        string            `json:"type,omitempty"`
	Source      string            `json:"source,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
}

func summarize(d *mendeley.Document) DocumentSummary {
	s := DocumentSummary{
		ID:          d.ID,
		Title:       d.Title,
		Year:        d.Year,
		Type:        d.Type,
		Source:      d.Source,
		Identifiers: d.Identifiers,
	}
	for _, a := range d.Authors {
		s.Authors = append(s.Authors, a.FullName())
	}
	return s
}

// printDocumentLines prints one line per document for list and search.
func printDocumentLines(docs []*mendeley.Document) {
	for _, d := range docs {
		fmt.Printf("%-38s %s (%s)\n", d.ID, truncateString(d.Title, ListTitleMaxLen), yearString(d.Year))
	}
}

// printDocumentDetail prints one document for the get command.
func printDocumentDetail(d *mendeley.Document) {
	fmt.Println(d.ID)
	fmt.Println(strings.Repeat("═", 70))
	fmt.Println()

	fmt.Printf("Title:    %s\n", wrapText(d.Title, DetailWrapWidth, "          "))
	if len(d.Authors) > 0 {
		fmt.Printf("Authors:  %s\n", wrapText(formatAuthors(d.Authors), DetailWrapWidth, "          "))
	}
	if d.Source != "" {
		fmt.Printf("Source:   %s\n", d.Source)
	}
	fmt.Printf("Year:     %s\n", yearString(d.Year))
	if d.Type != "" {
		fmt.Printf("Type:     %s\n", d.Type)
	}
	for _, scheme := range sortedKeys(d.Identifiers) {
		fmt.Printf("%-9s %s\n", strings.ToUpper(scheme)+":", d.Identifiers[scheme])
	}
	if len(d.Tags) > 0 {
		fmt.Printf("Tags:     %s\n", strings.Join(d.Tags, ", "))
	}

	if d.Abstract != "" {
		fmt.Println()
		fmt.Println("Abstract:")
		fmt.Printf("  %s\n", wrapText(d.Abstract, AbstractWrapWidth, "  "))
	}
}

// truncateString truncates a string to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// wrapText wraps text to the specified width with indentation on subsequent lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	var currentLine strings.Builder
	for _, word := range strings.Fields(text) {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= width {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return strings.Join(lines, "\n"+indent)
}

// formatAuthors joins author names with commas.
func formatAuthors(authors []reference.Author) string {
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.FullName()
	}
	return strings.Join(names, ", ")
}

// formatCitationAuthors returns "First et al." for long author lists.
func formatCitationAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1, 2:
		return strings.Join(authors, ", ")
	default:
		return authors[0] + " et al."
	}
}

func yearString(y int) string {
	if y == 0 {
		return "n.d."
	}
	return fmt.Sprintf("%d", y)
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
