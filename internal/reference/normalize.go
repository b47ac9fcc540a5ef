package reference

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// KeySeparator joins the fields of a bibliographic key.
const KeySeparator = "|"

// foldDiacritics returns a fresh transformer that strips combining marks
// ("é" -> "e"). Transformers are stateful, so one is built per call.
func foldDiacritics() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeText lower-cases s, folds diacritics, turns dashes, slashes and
// underscores into spaces, drops all other punctuation and collapses
// whitespace.
func NormalizeText(s string) string {
	folded, _, err := transform.String(foldDiacritics(), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || unicode.Is(unicode.Pd, r) || r == '/' || r == '_':
			space = true
		}
	}
	return b.String()
}

// NormalizeTitle normalizes a title for key construction and similarity.
func NormalizeTitle(title string) string {
	return NormalizeText(title)
}

// NormalizeSurname normalizes a surname with all separators removed, so
// "O'Brien" and "OBrien" compare equal.
func NormalizeSurname(last string) string {
	return strings.ReplaceAll(NormalizeText(last), " ", "")
}

// Key builds the normalized bibliographic key: title, first-author surname
// and year joined by KeySeparator. A zero year leaves the last field empty.
func Key(title, firstSurname string, year int) string {
	y := ""
	if year > 0 {
		y = strconv.Itoa(year)
	}
	return NormalizeTitle(title) + KeySeparator + NormalizeSurname(firstSurname) + KeySeparator + y
}
