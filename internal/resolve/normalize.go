package resolve

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var multiSpaceRe = regexp.MustCompile(`\s+`)

var punctuationReplacer = strings.NewReplacer(
	"&", " AND ",
	".", " ",
	",", " ",
	"-", " ",
)

// Normalizer canonicalizes contractor names into comparison keys.
// The key is never persisted or displayed.
type Normalizer struct {
	stopWords     map[string]bool
	locationWords []string
}

// NewNormalizer creates a Normalizer from a vocabulary.
func NewNormalizer(v Vocabulary) *Normalizer {
	loc := make([]string, 0, len(v.LocationWords))
	for _, w := range v.LocationWords {
		if w = strings.ToUpper(strings.TrimSpace(w)); w != "" {
			loc = append(loc, w)
		}
	}
	sort.SliceStable(loc, func(i, j int) bool { return len(loc[i]) > len(loc[j]) })

	return &Normalizer{
		stopWords:     wordSet(v.StopWords),
		locationWords: loc,
	}
}

var defaultNormalizer = NewNormalizer(DefaultVocabulary())

// NormalizeName normalizes name with the default vocabulary.
func NormalizeName(name string) string {
	return defaultNormalizer.Normalize(name)
}

// Normalize standardizes a contractor name for matching by:
//  1. Folding accented letters to ASCII and converting to uppercase
//  2. Replacing "&" with "AND" and ". , -" with spaces
//  3. Collapsing whitespace
//  4. Removing stop words (INC, CORP, CONSTRUCTION, AND, ...)
//
// If every word is a stop word the cleaned form from step 3 is returned,
// so the result is empty only for blank input.
func (n *Normalizer) Normalize(name string) string {
	cleaned := n.clean(name)
	if cleaned == "" {
		return ""
	}

	words := strings.Fields(cleaned)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !n.stopWords[w] {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return cleaned
	}
	return strings.Join(kept, " ")
}

// NormalizeLocation uppercases a place name and strips administrative words
// such as "PROVINCE OF" and "BARANGAY".
func (n *Normalizer) NormalizeLocation(place string) string {
	s := n.clean(place)
	if s == "" {
		return ""
	}
	padded := " " + s + " "
	for _, w := range n.locationWords {
		padded = strings.ReplaceAll(padded, " "+w+" ", " ")
	}
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(padded, " "))
}

// IsStopWord reports whether the uppercase word w is a stop word.
func (n *Normalizer) IsStopWord(w string) bool {
	return n.stopWords[strings.ToUpper(w)]
}

// clean applies folding, uppercasing, punctuation replacement and whitespace collapse.
func (n *Normalizer) clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = foldAccents(strings.ToUpper(s))
	s = punctuationReplacer.Replace(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// foldAccents builds a fresh chain per call; transform.Chain keeps state.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
