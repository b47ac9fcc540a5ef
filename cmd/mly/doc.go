package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/mendeley/internal/errs"
	"github.com/matsen/mendeley/internal/mendeley"
)

var deletedSince string

func init() {
	docDeletedCmd.Flags().StringVar(&deletedSince, "since", "", "Only documents deleted after this RFC 3339 time")
	docCmd.AddCommand(docFilesCmd, docFullTextCmd, docAnnotationsCmd, docAttachCmd, docDeletedCmd)
	rootCmd.AddCommand(docCmd)
}

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Work with a document's attachments, full text or annotations",
}

// FullTextResponse is the response for doc fulltext.
type FullTextResponse struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// FileSummary is the JSON shape of an attached file.
type FileSummary struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// AnnotationSummary is the JSON shape of an annotation.
type AnnotationSummary struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

var docFilesCmd = &cobra.Command{
	Use:   "files <id>",
	Short: "List files attached to a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := mustRemoteDocument(cmd, args[0])
		files, err := doc.Files(cmd.Context())
		if err != nil {
			exitWithErr("listing files", err)
		}

		if humanOutput {
			for _, f := range files {
				outputHuman("%s  %-20s %8d  %s\n", f.ID, f.MimeType, f.Size, f.FileName)
			}
			return nil
		}
		out := make([]FileSummary, 0, len(files))
		for _, f := range files {
			out = append(out, FileSummary{ID: f.ID, FileName: f.FileName, MimeType: f.MimeType, Size: f.Size})
		}
		return outputJSON(out)
	},
}

var docFullTextCmd = &cobra.Command{
	Use:   "fulltext <id>",
	Short: "Print the text of a document's attached PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := mustRemoteDocument(cmd, args[0])
		text, err := doc.FullText(cmd.Context())
		if err != nil {
			if errs.IsNotFound(err) {
				exitWithError(ExitError, "%v", err)
			}
			exitWithErr("fetching full text", err)
		}

		if humanOutput {
			outputHuman("%s\n", text)
			return nil
		}
		return outputJSON(FullTextResponse{ID: doc.ID, Text: text})
	},
}

var docAnnotationsCmd = &cobra.Command{
	Use:   "annotations <id>",
	Short: "List a document's notes and highlights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := mustRemoteDocument(cmd, args[0])
		annotations, err := doc.Annotations(cmd.Context())
		if err != nil {
			exitWithErr("fetching annotations", err)
		}

		if humanOutput {
			if len(annotations) == 0 {
				outputHuman("No annotations\n")
				return nil
			}
			for _, a := range annotations {
				outputHuman("[%s] %s\n", a.Type, wrapText(a.Text, AbstractWrapWidth, "  "))
			}
			return nil
		}
		out := make([]AnnotationSummary, 0, len(annotations))
		for _, a := range annotations {
			out = append(out, AnnotationSummary{ID: a.ID, Type: a.Type, Text: a.Text})
		}
		return outputJSON(out)
	},
}

var docAttachCmd = &cobra.Command{
	Use:   "attach <id> <file.pdf>",
	Short: "Upload a local file and attach it to a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			exitWithError(ExitError, "opening %s: %v", args[1], err)
		}
		defer f.Close()

		cfg := mustLoadConfig()
		file, err := mustClient(cfg).AttachFile(cmd.Context(), args[0], args[1], f)
		if err != nil {
			exitWithErr("attaching file", err)
		}

		if humanOutput {
			outputHuman("Attached %s to %s (file %s)\n", file.FileName, args[0], file.ID)
			return nil
		}
		return outputJSON(FileSummary{ID: file.ID, FileName: file.FileName, MimeType: file.MimeType, Size: file.Size})
	},
}

var docDeletedCmd = &cobra.Command{
	Use:   "deleted",
	Short: "List ids of documents deleted from the library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var since time.Time
		if deletedSince != "" {
			t, err := time.Parse(time.RFC3339, deletedSince)
			if err != nil {
				exitWithError(ExitError, "invalid --since %q: want RFC 3339, e.g. 2025-06-01T00:00:00Z", deletedSince)
			}
			since = t
		}

		cfg := mustLoadConfig()
		ids, err := mustClient(cfg).DeletedDocuments(cmd.Context(), since, "")
		if err != nil {
			exitWithErr("listing deleted documents", err)
		}

		if humanOutput {
			for _, id := range ids {
				outputHuman("%s\n", id)
			}
			return nil
		}
		return outputJSON(ids)
	},
}

// mustRemoteDocument fetches a document through a live client so its lazy
// members can load.
func mustRemoteDocument(cmd *cobra.Command, id string) *mendeley.Document {
	cfg := mustLoadConfig()
	doc, err := mustClient(cfg).GetDocument(cmd.Context(), id, "")
	if err != nil {
		exitWithErr("getting document", err)
	}
	return doc
}
