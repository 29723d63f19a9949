package resolve

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Vocabulary holds the word lists that drive normalization and validity checks.
type Vocabulary struct {
	// StopWords are removed from names before comparison.
	StopWords []string `yaml:"stop_words"`
	// GenericWords are words that cannot form a contractor name on their own.
	// StopWords are always treated as generic too.
	GenericWords []string `yaml:"generic_words"`
	// LeakageMarkers indicate structured-data fragments leaking into a name field.
	LeakageMarkers []string `yaml:"leakage_markers"`
	// LocationWords are stripped from delivery areas and project locations.
	LocationWords []string `yaml:"location_words"`
}

var defaultStopWords = []string{
	"INC", "CORP", "CORPORATION", "CO", "COMPANY", "LTD", "LIMITED",
	"CONSTRUCTION", "TRADING", "ENTERPRISES", "ENTERPRISE", "BUILDERS",
	"CONTRACTOR", "CONTRACTORS", "SERVICES", "DEVELOPMENT", "GENERAL",
	"AND", "THE", "OF", "FOR",
}

var defaultGenericWords = []string{
	"SUPPLY", "SUPPLIES", "TRUCKING", "INCORPORATED", "BUILDER",
}

var defaultLeakageMarkers = []string{
	`", "`, "nameAbbreviation", "logoUrl", "{", "}",
}

// Longer phrases first so "PROVINCE OF" is removed before "PROVINCE".
var defaultLocationWords = []string{
	"PROVINCE OF", "CITY OF", "MUNICIPALITY OF", "PROVINCE", "BARANGAY",
}

// DefaultVocabulary returns the built-in word lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		StopWords:      append([]string(nil), defaultStopWords...),
		GenericWords:   append([]string(nil), defaultGenericWords...),
		LeakageMarkers: append([]string(nil), defaultLeakageMarkers...),
		LocationWords:  append([]string(nil), defaultLocationWords...),
	}
}

// LoadVocabulary reads a YAML vocabulary file and merges it onto the defaults.
// Lists in the file extend the built-in lists; duplicates are ignored.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, eris.Wrapf(err, "resolve: read vocabulary %s", path)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary parses YAML vocabulary data and merges it onto the defaults.
func ParseVocabulary(data []byte) (Vocabulary, error) {
	var extra Vocabulary
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return Vocabulary{}, eris.Wrap(err, "resolve: parse vocabulary")
	}
	return DefaultVocabulary().Merge(extra), nil
}

// Merge returns a copy of v extended with the words in other.
func (v Vocabulary) Merge(other Vocabulary) Vocabulary {
	return Vocabulary{
		StopWords:      mergeWords(v.StopWords, other.StopWords, true),
		GenericWords:   mergeWords(v.GenericWords, other.GenericWords, true),
		LeakageMarkers: mergeWords(v.LeakageMarkers, other.LeakageMarkers, false),
		LocationWords:  mergeWords(v.LocationWords, other.LocationWords, true),
	}
}

func mergeWords(base, extra []string, upper bool) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, w := range list {
			w = strings.TrimSpace(w)
			if upper {
				w = strings.ToUpper(w)
			}
			if w == "" || seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func wordSet(lists ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, list := range lists {
		for _, w := range list {
			set[strings.ToUpper(strings.TrimSpace(w))] = true
		}
	}
	return set
}
