package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/mendeley/internal/config"
	"github.com/matsen/mendeley/internal/export"
	"github.com/matsen/mendeley/internal/importer"
	"github.com/matsen/mendeley/internal/library"
	"github.com/matsen/mendeley/internal/match"
	"github.com/matsen/mendeley/internal/mendeley"
	"github.com/matsen/mendeley/internal/reference"
)

var (
	matchThreshold  float64
	matchOffline    bool
	matchMissingBib string
	matchPDFs       []string
	matchStrict     bool
)

func init() {
	matchCmd.Flags().Float64Var(&matchThreshold, "threshold", 0, "Minimum fuzzy confidence; negative accepts any shared-surname candidate (default from config, else 0.7)")
	matchCmd.Flags().BoolVar(&matchOffline, "offline", false, "Match against the local snapshot instead of syncing first")
	matchCmd.Flags().StringVar(&matchMissingBib, "missing-bib", "", "Append unmatched citations to this .bib file")
	matchCmd.Flags().StringArrayVar(&matchPDFs, "pdf", nil, "Derive a citation from a local PDF's DOI and title; repeatable")
	matchCmd.Flags().BoolVar(&matchStrict, "strict", false, "Fail if any citation in the input cannot be parsed")
	rootCmd.AddCommand(matchCmd)
}

// MatchResponse is the response for the match command.
type MatchResponse struct {
	Results     []match.Result `json:"results"`
	Report      match.Report   `json:"report"`
	ParseErrors []string       `json:"parse_errors,omitempty"`
	MissingBib  *BibAppend     `json:"missing_bib,omitempty"`
}

// BibAppend reports what --missing-bib wrote.
type BibAppend struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Skipped int    `json:"skipped"`
}

var matchCmd = &cobra.Command{
	Use:   "match [citations.json|citations.jsonl|refs.bib ...]",
	Short: "Match a citation list against the library",
	Long: `Match citations against the user's library.

Each citation is matched by external identifier (DOI, PMID, arXiv, ...)
first, then by comparing its title and authors with library documents that
share its bibliographic key or first-author surname. Results keep the input
order.

Citation files may be a JSON array, an object with a "references" array,
JSONL, or BibTeX. --pdf adds a citation read from a local PDF.

Examples:
  mly match refs.bib
  mly match citations.json --offline --threshold 0.8
  mly match refs.json --missing-bib to-import.bib
  mly match --pdf paper.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && len(matchPDFs) == 0 {
			exitWithError(ExitError, "no citations given: pass citation files or --pdf")
		}
		cfg := mustLoadConfig()

		cites, parseErrs := loadCitations(args, matchPDFs)
		if len(parseErrs) > 0 && matchStrict {
			exitWithError(ExitDataError, "%d citations could not be parsed; first: %v", len(parseErrs), parseErrs[0])
		}
		for _, err := range parseErrs {
			logger.Warn("skipping citation", zap.Error(err))
		}

		var idx *library.Index
		if matchOffline {
			idx = mustSnapshot(cfg)
		} else {
			var err error
			idx, err = library.Sync(cmd.Context(), mustClient(cfg),
				mendeley.ListOptions{View: mendeley.ViewBib},
				library.WithLogger(logger.Named("library")))
			if err != nil {
				exitWithErr("syncing library", err)
			}
		}

		matcher := match.New(matchOptions(cfg))
		results := matcher.MatchAll(cites, idx)
		report := match.Summarize(results)

		resp := MatchResponse{Results: results, Report: report}
		for _, err := range parseErrs {
			resp.ParseErrors = append(resp.ParseErrors, err.Error())
		}

		if matchMissingBib != "" && len(report.MissingRefs) > 0 {
			added, skipped, err := export.AppendCitations(matchMissingBib, report.MissingRefs)
			if err != nil {
				exitWithError(ExitError, "writing missing citations: %v", err)
			}
			resp.MissingBib = &BibAppend{Path: matchMissingBib, Added: added, Skipped: skipped}
		}

		if humanOutput {
			printMatchReport(resp)
			return nil
		}
		return outputJSON(resp)
	},
}

// matchOptions layers the --threshold flag over the configured options.
func matchOptions(cfg *config.GlobalConfig) match.Options {
	opts := match.Options{
		Threshold:    cfg.Match.Threshold,
		TitleWeight:  cfg.Match.TitleWeight,
		AuthorWeight: cfg.Match.AuthorWeight,
	}
	if matchThreshold != 0 {
		opts.Threshold = matchThreshold
	}
	return opts
}

// loadCitations reads every file and PDF in order. Errors for individual
// entries are collected, not fatal.
func loadCitations(files, pdfs []string) ([]reference.Citation, []error) {
	var cites []reference.Citation
	var errs []error
	for _, path := range files {
		c, e := importer.LoadCitations(path)
		cites = append(cites, c...)
		for _, err := range e {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	for _, path := range pdfs {
		c, err := importer.CitationFromPDF(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cites = append(cites, c)
	}
	return cites, errs
}

func printMatchReport(resp MatchResponse) {
	for i, r := range resp.Results {
		c := r.Citation
		status := "missing"
		if r.Found() {
			status = fmt.Sprintf("%.2f %s", r.Confidence, r.DocumentID)
		}
		fmt.Printf("%3d. [%s] %s\n", i+1, status, truncateString(c.Title, MatchTitleMaxLen))
		if authors := formatCitationAuthors(c.Authors); authors != "" || c.Year > 0 {
			fmt.Printf("     %s (%s) via %s\n", authors, yearString(c.Year), r.MatchedOn)
		}
	}

	rep := resp.Report
	fmt.Printf("\n%d citations: %d matched (%d by identifier, %d fuzzy), %d missing\n",
		rep.Total, rep.Matched, rep.ByIdentifier, rep.ByFuzzy, rep.Missing)
	if n := len(resp.ParseErrors); n > 0 {
		fmt.Printf("%d citations skipped (unparseable, see stderr)\n", n)
	}
	if b := resp.MissingBib; b != nil {
		fmt.Printf("Appended %d missing citations to %s (%d already present)\n", b.Added, b.Path, b.Skipped)
	}
}
