package reference

import (
	"strings"
)

// Identifier schemes understood by the index and the catalog endpoint.
const (
	SchemeDOI    = "doi"
	SchemePMID   = "pmid"
	SchemeArXiv  = "arxiv"
	SchemeISBN   = "isbn"
	SchemeISSN   = "issn"
	SchemeScopus = "scopus"
)

// schemeAliases maps alternative spellings onto canonical scheme names.
var schemeAliases = map[string]string{
	"pubmed":   SchemePMID,
	"pmid":     SchemePMID,
	"arxiv_id": SchemeArXiv,
	"arxiv":    SchemeArXiv,
	"doi":      SchemeDOI,
	"isbn":     SchemeISBN,
	"issn":     SchemeISSN,
	"scopus":   SchemeScopus,
}

// NormalizeScheme lower-cases a scheme name and resolves aliases.
func NormalizeScheme(scheme string) string {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if canon, ok := schemeAliases[scheme]; ok {
		return canon
	}
	return scheme
}

// NormalizeDOI normalizes a DOI to a consistent format for comparison.
// It removes common URL prefixes (https://doi.org/, DOI:) and converts to lowercase.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			lower = strings.TrimSpace(lower[len(prefix):])
			break
		}
	}
	return lower
}

// NormalizeIdentifier returns the canonical scheme and value for an
// identifier pair. Empty values yield an empty value.
func NormalizeIdentifier(scheme, value string) (string, string) {
	scheme = NormalizeScheme(scheme)
	value = strings.TrimSpace(value)
	if value == "" {
		return scheme, ""
	}

	switch scheme {
	case SchemeDOI:
		value = NormalizeDOI(value)
	case SchemeArXiv:
		value = strings.ToLower(value)
		value = strings.TrimPrefix(value, "arxiv:")
		value = strings.TrimPrefix(value, "https://arxiv.org/abs/")
		value = trimArXivVersion(value)
	case SchemeISBN, SchemeISSN:
		value = strings.ToLower(strings.NewReplacer("-", "", " ", "").Replace(value))
	default:
		value = strings.ToLower(value)
	}
	return scheme, value
}

// IdentifierKey returns "scheme:value" for indexing, or "" when the value is
// empty after normalization.
func IdentifierKey(scheme, value string) string {
	scheme, value = NormalizeIdentifier(scheme, value)
	if value == "" || scheme == "" {
		return ""
	}
	return scheme + ":" + value
}

// ParseIdentifier parses "DOI:10.1038/x", "pmid:123" or a bare DOI into a
// scheme and value. ok is false when no scheme can be determined.
func ParseIdentifier(s string) (scheme, value string, ok bool) {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, ":"); idx > 0 {
		prefix := NormalizeScheme(s[:idx])
		if _, known := schemeAliases[prefix]; known {
			return prefix, strings.TrimSpace(s[idx+1:]), true
		}
	}
	if strings.HasPrefix(NormalizeDOI(s), "10.") {
		return SchemeDOI, NormalizeDOI(s), true
	}
	return "", s, false
}

// trimArXivVersion drops a trailing "v2"-style version suffix.
func trimArXivVersion(id string) string {
	idx := strings.LastIndex(id, "v")
	if idx <= 0 || idx == len(id)-1 {
		return id
	}
	for _, r := range id[idx+1:] {
		if r < '0' || r > '9' {
			return id
		}
	}
	return id[:idx]
}
