package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/mendeley/internal/mendeley"
)

var catalogView string

func init() {
	catalogCmd.Flags().StringVar(&catalogView, "view", mendeley.ViewBib, "Catalog view (bib, client, stats, all)")
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog <scheme> <value>",
	Short: "Look up a catalog document by external identifier",
	Long: `Look up a document in the Mendeley catalog by identifier. Catalog
documents are shared metadata, not part of the user's library.

Schemes: doi, pmid, arxiv, isbn, issn, scopus

Examples:
  mly catalog doi 10.48550/arXiv.1706.03762
  mly catalog arxiv 1706.03762`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		doc, err := mustClient(cfg).LookupCatalog(cmd.Context(), args[0], args[1], catalogView)
		if err != nil {
			exitWithErr("catalog lookup", err)
		}

		if humanOutput {
			printDocumentDetail(doc)
			return nil
		}
		return outputJSON(doc.Raw)
	},
}
