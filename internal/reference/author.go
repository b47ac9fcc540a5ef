package reference

import (
	"regexp"
	"strings"
)

// Author represents a document author.
type Author struct {
	First string `json:"first"` // First/given name(s)
	Last  string `json:"last"`  // Last/family name
}

// Common name suffixes to keep with the last name.
var nameSuffixes = map[string]bool{
	"jr":   true,
	"jr.":  true,
	"sr":   true,
	"sr.":  true,
	"ii":   true,
	"iii":  true,
	"iv":   true,
	"phd":  true,
	"ph.d": true,
	"md":   true,
	"m.d":  true,
}

// Lower-case surname particles that stay attached to the surname when a name
// is written "First van der Last".
var surnameParticles = map[string]bool{
	"van": true,
	"von": true,
	"de":  true,
	"der": true,
	"den": true,
	"di":  true,
	"da":  true,
	"du":  true,
	"la":  true,
	"le":  true,
	"del": true,
	"dos": true,
	"ter": true,
	"ten": true,
}

var (
	etAlRe     = regexp.MustCompile(`(?i)(?:^|[,\s]+)et\.?\s*al\.?$`)
	initialsRe = regexp.MustCompile(`^(?:\p{Lu}\.?){1,3}$`)
)

// Surname returns the normalized last name used for matching.
func (a Author) Surname() string {
	return surnameKey(a.Last)
}

// FullName returns "First Last", or just the last name.
func (a Author) FullName() string {
	if a.First != "" {
		return a.First + " " + a.Last
	}
	return a.Last
}

// SplitName splits a free-form author name into first and last name.
// "Last, First" is honored; otherwise the last word is the surname, with
// trailing suffixes (Jr, III, PhD) and leading lower-case particles (van,
// von, de) kept attached to it. A trailing "et al." is dropped, and
// Vancouver-style "Vaswani AN" treats the final initials as the given name.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(etAlRe.ReplaceAllString(strings.TrimSpace(name), ""))
	if name == "" {
		return "", ""
	}

	if idx := strings.Index(name, ","); idx > 0 {
		return strings.TrimSpace(name[idx+1:]), strings.TrimSpace(name[:idx])
	}

	parts := strings.Fields(name)
	if len(parts) == 1 {
		return "", parts[0]
	}

	final := parts[len(parts)-1]
	isSuffix := nameSuffixes[strings.ToLower(final)]
	if !isSuffix && initialsRe.MatchString(final) && !initialsRe.MatchString(parts[0]) {
		return final, strings.Join(parts[:len(parts)-1], " ")
	}

	start := len(parts) - 1
	if isSuffix && len(parts) > 2 {
		start--
	}
	for start > 1 && surnameParticles[parts[start-1]] {
		start--
	}
	return strings.Join(parts[:start], " "), strings.Join(parts[start:], " ")
}

// ParseAuthor converts a free-form name into an Author.
func ParseAuthor(name string) Author {
	first, last := SplitName(name)
	return Author{First: first, Last: last}
}

// SurnameOf returns the normalized surname of a free-form name, ignoring any
// generational suffix.
func SurnameOf(name string) string {
	_, last := SplitName(name)
	return surnameKey(last)
}

func surnameKey(last string) string {
	if fields := strings.Fields(last); len(fields) > 1 && nameSuffixes[strings.ToLower(fields[len(fields)-1])] {
		last = strings.Join(fields[:len(fields)-1], " ")
	}
	return NormalizeSurname(last)
}
