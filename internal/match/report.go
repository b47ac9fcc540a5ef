package match

import "github.com/matsen/mendeley/internal/reference"

// Report summarizes a batch of results.
type Report struct {
	Total        int                  `json:"total"`
	Matched      int                  `json:"matched"`
	ByIdentifier int                  `json:"by_identifier"`
	ByFuzzy      int                  `json:"by_fuzzy"`
	Missing      int                  `json:"missing"`
	MissingRefs  []reference.Citation `json:"missing_refs,omitempty"`
}

// Summarize counts results by outcome and collects the unmatched
// citations in input order.
func Summarize(results []Result) Report {
	r := Report{Total: len(results)}
	for _, res := range results {
		switch res.MatchedOn {
		case MatchedIdentifier:
			r.Matched++
			r.ByIdentifier++
		case MatchedFuzzy:
			r.Matched++
			r.ByFuzzy++
		default:
			r.Missing++
			r.MissingRefs = append(r.MissingRefs, res.Citation)
		}
	}
	return r
}
