package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/mendeley/internal/author"
	"github.com/matsen/mendeley/internal/config"
	"github.com/matsen/mendeley/internal/export"
	"github.com/matsen/mendeley/internal/library"
	"github.com/matsen/mendeley/internal/mendeley"
	"github.com/matsen/mendeley/internal/storage"
)

var (
	syncView     string
	syncFolderID string

	listAuthors []string
	listLimit   int

	getRemote bool

	searchAuthors  []string
	searchTitle    string
	searchTag      string
	searchYearFrom int
	searchYearTo   int
	searchType     string
	searchLimit    int

	exportFormat string
	exportOutput string
)

func init() {
	librarySyncCmd.Flags().StringVar(&syncView, "view", mendeley.ViewAll, "Document view to request (bib, client, tags, patent, all)")
	librarySyncCmd.Flags().StringVar(&syncFolderID, "folder", "", "Only sync documents in this folder")

	libraryListCmd.Flags().StringArrayVarP(&listAuthors, "author", "a", nil, "Filter by author (\"Last\", \"First Last\" or \"Last, First\"); repeatable, all must match")
	libraryListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum results to return (0 = all)")

	libraryGetCmd.Flags().BoolVar(&getRemote, "remote", false, "Fetch the document from the API instead of the snapshot")

	librarySearchCmd.Flags().StringArrayVarP(&searchAuthors, "author", "a", nil, "Author name prefix; repeatable")
	librarySearchCmd.Flags().StringVar(&searchTitle, "title", "", "Search within titles")
	librarySearchCmd.Flags().StringVar(&searchTag, "tag", "", "Search within tags")
	librarySearchCmd.Flags().IntVar(&searchYearFrom, "year-from", 0, "Earliest publication year")
	librarySearchCmd.Flags().IntVar(&searchYearTo, "year-to", 0, "Latest publication year")
	librarySearchCmd.Flags().StringVar(&searchType, "type", "", "Document type (journal, book, ...)")
	librarySearchCmd.Flags().IntVar(&searchLimit, "limit", DefaultListLimit, "Maximum results to return (0 = all)")

	libraryExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Output format: csv, json, jsonl or bibtex")
	libraryExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")

	libraryCmd.AddCommand(librarySyncCmd, libraryListCmd, libraryGetCmd, librarySearchCmd, libraryExportCmd)
	rootCmd.AddCommand(libraryCmd)
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Sync and query the user's library",
}

// SyncResponse is the response for library sync.
type SyncResponse struct {
	Status   string        `json:"status"`
	Path     string        `json:"path"`
	Database string        `json:"database"`
	Stats    library.Stats `json:"stats"`
}

var librarySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the library and write the local snapshot",
	Long: `Download every document in the user's library, index it, and write the
JSONL snapshot plus the SQLite search database.

A record that cannot be bound (for example one without an id) aborts the
sync and leaves the previous snapshot untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		client := mustClient(cfg)

		idx, err := library.Sync(cmd.Context(), client,
			mendeley.ListOptions{View: syncView, FolderID: syncFolderID},
			library.WithLogger(logger.Named("library")))
		if err != nil {
			exitWithErr("syncing library", err)
		}

		path := config.LibraryPath(cfg.DataDir)
		if err := storage.WriteRecords(path, idx.Records()); err != nil {
			exitWithError(ExitError, "writing snapshot: %v", err)
		}

		if err := config.EnsureDir(config.CachePath(cfg.DataDir)); err != nil {
			exitWithError(ExitError, "%v", err)
		}
		dbPath := config.DBPath(cfg.DataDir)
		db, err := storage.OpenDB(dbPath)
		if err != nil {
			exitWithError(ExitError, "opening database: %v", err)
		}
		defer db.Close()
		if _, err := db.Rebuild(idx.Documents()); err != nil {
			exitWithError(ExitError, "rebuilding database: %v", err)
		}

		stats := idx.Stats()
		if humanOutput {
			outputHuman("Synced %s\n  snapshot: %s\n", stats, path)
			return nil
		}
		return outputJSON(SyncResponse{Status: "synced", Path: path, Database: dbPath, Stats: stats})
	},
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents in the local snapshot",
	Long: `List documents in the local snapshot, ordered by id.

Examples:
  mly library list
  mly library list --author Vaswani --limit 10
  mly library list -a "Vaswani, Ashish" -a Shazeer`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		idx := mustSnapshot(cfg)

		queries := author.ParseQueries(listAuthors)
		var docs []*mendeley.Document
		for _, d := range idx.Documents() {
			if !author.AllMatch(queries, d.Authors) {
				continue
			}
			docs = append(docs, d)
			if listLimit > 0 && len(docs) >= listLimit {
				break
			}
		}

		if humanOutput {
			if len(docs) == 0 {
				outputHuman("No documents found\n")
				return nil
			}
			printDocumentLines(docs)
			return nil
		}
		out := make([]DocumentSummary, 0, len(docs))
		for _, d := range docs {
			out = append(out, summarize(d))
		}
		return outputJSON(out)
	},
}

var libraryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		id := args[0]

		var doc *mendeley.Document
		if getRemote {
			var err error
			doc, err = mustClient(cfg).GetDocument(cmd.Context(), id, mendeley.ViewAll)
			if err != nil {
				exitWithErr("getting document", err)
			}
		} else {
			var ok bool
			doc, ok = mustSnapshot(cfg).Get(id)
			if !ok {
				exitWithError(ExitError, "document not found: %s", id)
			}
		}

		if humanOutput {
			printDocumentDetail(doc)
			return nil
		}
		return outputJSON(doc.Raw)
	},
}

var librarySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over the local snapshot",
	Long: `Search titles, abstracts, authors and tags in the SQLite snapshot.

Examples:
  mly library search attention
  mly library search --author vaswani --year-from 2017
  mly library search "neural machine translation" --type journal`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		db := mustOpenDB(cfg)
		defer db.Close()

		filters := storage.SearchFilters{
			Authors:  searchAuthors,
			Title:    searchTitle,
			Tag:      searchTag,
			YearFrom: searchYearFrom,
			YearTo:   searchYearTo,
			Type:     searchType,
		}
		if len(args) == 1 {
			filters.Keyword = args[0]
		}

		records, err := db.SearchWithFilters(filters, searchLimit)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		docs, err := mendeley.NewBinder(nil).Documents(records)
		if err != nil {
			exitWithErr("reading search results", err)
		}

		if humanOutput {
			if len(docs) == 0 {
				outputHuman("No documents found\n")
				return nil
			}
			printDocumentLines(docs)
			return nil
		}
		out := make([]DocumentSummary, 0, len(docs))
		for _, d := range docs {
			out = append(out, summarize(d))
		}
		return outputJSON(out)
	},
}

var libraryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the snapshot as CSV, JSON, JSONL or BibTeX",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		idx := mustSnapshot(cfg)

		var w io.Writer = os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				exitWithError(ExitError, "creating %s: %v", exportOutput, err)
			}
			defer f.Close()
			w = f
		}

		if err := writeExport(w, idx, exportFormat); err != nil {
			exitWithError(ExitError, "exporting: %v", err)
		}
		if exportOutput != "" && !humanOutput {
			return outputJSON(StatusResponse{Status: "exported", Path: exportOutput, Count: idx.Len()})
		}
		return nil
	},
}

// writeExport writes idx to w in the named format.
func writeExport(w io.Writer, idx *library.Index, format string) error {
	switch format {
	case "csv":
		return idx.WriteCSV(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(idx.Rows())
	case "jsonl":
		enc := json.NewEncoder(w)
		for _, rec := range idx.Records() {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	case "bibtex", "bib":
		docs := idx.Documents()
		entries := make([]export.Entry, len(docs))
		for i, d := range docs {
			entries[i] = export.FromDocument(d)
		}
		_, err := io.WriteString(w, export.ToBibTeXList(entries))
		return err
	default:
		return fmt.Errorf("unknown format %q (want csv, json, jsonl or bibtex)", format)
	}
}
