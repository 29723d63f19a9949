package resolve

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMinFragmentLength is the shortest multi-word JV part or truncated
// former-name fragment that is kept.
const DefaultMinFragmentLength = 10

// minFormerLength is the shortest former name that is kept, however it is
// delimited.
const minFormerLength = 4

// Candidate is one atomic contractor name extracted from a raw source string.
type Candidate struct {
	Name        string   `json:"name"`
	FormerNames []string `json:"former_names,omitempty"`
}

// Rejection records a fragment the splitter dropped and why.
type Rejection struct {
	Fragment string `json:"fragment"`
	Reason   string `json:"reason"`
}

// Rejection reasons.
const (
	ReasonEmpty    = "empty"
	ReasonLeakage  = "structured_data_leakage"
	ReasonGeneric  = "generic_words_only"
	ReasonTooShort = "too_short"
)

// Decomposition is the result of splitting one raw contractor string.
type Decomposition struct {
	Input           string      `json:"input"`
	Candidates      []Candidate `json:"candidates"`
	JointVenture    bool        `json:"joint_venture"`
	FormerAnnotated bool        `json:"former_annotated"`
	Rejected        []Rejection `json:"rejected,omitempty"`
}

// Names returns the candidate names in emission order.
func (d Decomposition) Names() []string {
	out := make([]string, len(d.Candidates))
	for i, c := range d.Candidates {
		out[i] = c.Name
	}
	return out
}

var (
	// Tolerates a missing "(" or ")" around the annotation; feeds are often truncated.
	formerRe      = regexp.MustCompile(`(?i)^(.+?)\s*(\()?\s*\b(?:FORMERLY|FORMER|PREVIOUSLY|PREV)\b[\s:]*(.*)$`)
	parenRe       = regexp.MustCompile(`\s*\([^)]*\)`)
	openParenRe   = regexp.MustCompile(`\s*\([^)]*$`)
	jvTokenRe     = regexp.MustCompile(`(?i)\b(?:JOINT\s+VENTURE|JV)\b`)
	leadingPunct  = regexp.MustCompile(`^[\s:;,.]+`)
	trailingPunct = regexp.MustCompile(`[\s:;,)]+$`)
)

// Splitter decomposes joint-venture and former-name annotated strings into
// atomic contractor names.
type Splitter struct {
	norm           *Normalizer
	generic        map[string]bool
	leakageMarkers []string
	minFragment    int
}

// NewSplitter creates a Splitter from a vocabulary. minFragment <= 0 uses
// DefaultMinFragmentLength.
func NewSplitter(v Vocabulary, minFragment int) *Splitter {
	if minFragment <= 0 {
		minFragment = DefaultMinFragmentLength
	}
	return &Splitter{
		norm:           NewNormalizer(v),
		generic:        wordSet(v.StopWords, v.GenericWords),
		leakageMarkers: append([]string(nil), v.LeakageMarkers...),
		minFragment:    minFragment,
	}
}

// Split decomposes raw into candidate names. Rules, first match wins:
//  1. A FORMERLY/FORMER/PREVIOUSLY/PREV annotation splits the string into a
//     current name and a former name.
//  2. Parenthetical content without a keyword is dropped.
//  3. A "/" in the remaining current name splits it into JV parts. "&" and
//     "AND" are never delimiters.
//
// Every candidate passes the validity filter. When an indicator is present but
// nothing survives, the result has no candidates; callers must not fall back
// to the raw string.
func (s *Splitter) Split(raw string) Decomposition {
	in := strings.TrimSpace(raw)
	d := Decomposition{Input: in}
	if in == "" {
		d.Rejected = append(d.Rejected, Rejection{Fragment: raw, Reason: ReasonEmpty})
		return d
	}

	current := in
	var former string
	formerTruncated := false
	formerOwner := 0

	if m := formerRe.FindStringSubmatch(in); m != nil {
		d.FormerAnnotated = true
		current = strings.TrimSpace(m[1])
		formerOwner = strings.Count(current, "/")

		tail := m[3]
		closed := false
		if idx := strings.Index(tail, ")"); idx >= 0 {
			closed = true
			if rest := strings.TrimSpace(tail[idx+1:]); rest != "" {
				current = current + " " + rest
			}
			tail = tail[:idx]
		}
		former = leadingPunct.ReplaceAllString(tail, "")
		former = strings.TrimSpace(trailingPunct.ReplaceAllString(former, ""))
		formerTruncated = m[2] != "" && !closed
	}

	current = stripParentheticals(current)

	formerIdx := -1
	if strings.Contains(current, "/") {
		d.JointVenture = true
		for i, part := range strings.Split(current, "/") {
			part = jvTokenRe.ReplaceAllString(part, "")
			part = stripParentheticals(multiSpaceRe.ReplaceAllString(part, " "))
			if reason, ok := s.validate(part, true); !ok {
				d.Rejected = append(d.Rejected, Rejection{Fragment: part, Reason: reason})
				continue
			}
			if i == formerOwner {
				formerIdx = len(d.Candidates)
			}
			d.Candidates = append(d.Candidates, Candidate{Name: part})
		}
	} else {
		if reason, ok := s.validate(current, false); ok {
			formerIdx = 0
			d.Candidates = append(d.Candidates, Candidate{Name: current})
		} else {
			d.Rejected = append(d.Rejected, Rejection{Fragment: current, Reason: reason})
		}
	}

	if former != "" {
		reason, ok := s.validate(former, formerTruncated)
		if ok && utf8.RuneCountInString(former) < minFormerLength {
			reason, ok = ReasonTooShort, false
		}
		switch {
		case !ok:
			d.Rejected = append(d.Rejected, Rejection{Fragment: former, Reason: reason})
		case formerIdx >= 0 && strings.EqualFold(d.Candidates[formerIdx].Name, former):
			// "X (FORMERLY X)" carries no extra identity.
		default:
			if formerIdx >= 0 {
				d.Candidates[formerIdx].FormerNames = append(d.Candidates[formerIdx].FormerNames, former)
			}
			d.Candidates = append(d.Candidates, Candidate{Name: former})
		}
	}

	return d
}

// Valid reports whether name would be accepted as a standalone contractor name.
func (s *Splitter) Valid(name string) bool {
	return s.Check(name) == ""
}

// Check returns the rejection reason for name as a standalone contractor
// name, or "" when it is valid.
func (s *Splitter) Check(name string) string {
	reason, _ := s.validate(strings.TrimSpace(name), false)
	return reason
}

// validate applies the validity filter. Fragments (JV parts and truncated
// former names) must also meet the minimum length unless they are a single
// non-generic word.
func (s *Splitter) validate(name string, fragment bool) (string, bool) {
	if name == "" {
		return ReasonEmpty, false
	}
	for _, marker := range s.leakageMarkers {
		if marker != "" && strings.Contains(name, marker) {
			return ReasonLeakage, false
		}
	}

	tokens := strings.Fields(s.norm.clean(name))
	if len(tokens) == 0 {
		return ReasonEmpty, false
	}
	allGeneric := true
	for _, t := range tokens {
		if !s.generic[t] {
			allGeneric = false
			break
		}
	}
	if allGeneric {
		return ReasonGeneric, false
	}

	if fragment && len(tokens) > 1 && utf8.RuneCountInString(name) < s.minFragment {
		return ReasonTooShort, false
	}
	return "", true
}

func stripParentheticals(s string) string {
	if !strings.ContainsAny(s, "()") {
		return strings.TrimSpace(s)
	}
	s = parenRe.ReplaceAllString(s, "")
	s = openParenRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ")", "")
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}
