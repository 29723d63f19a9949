// Package registry maintains the unified contractor registry: one record per
// real-world contractor, tagged with the source systems that have produced it.
package registry

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Source identifies an upstream system that produces contractor names.
type Source string

// Known sources.
const (
	SourceFlood    Source = "flood"
	SourceDIME     Source = "dime"
	SourcePhilGEPS Source = "philgeps"
)

// AllSources lists every source in sync order.
var AllSources = []Source{SourceFlood, SourceDIME, SourcePhilGEPS}

// ParseSource parses a source name.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	if src.flag() == 0 {
		return "", eris.Errorf("registry: unknown source %q", s)
	}
	return src, nil
}

func (s Source) flag() SourceFlags {
	switch s {
	case SourceFlood:
		return FlagFlood
	case SourceDIME:
		return FlagDIME
	case SourcePhilGEPS:
		return FlagPhilGEPS
	default:
		return 0
	}
}

// SourceFlags is the set of sources that produced a matching name.
// Flags only accumulate.
type SourceFlags uint8

// Flag bits.
const (
	FlagFlood SourceFlags = 1 << iota
	FlagDIME
	FlagPhilGEPS
)

// FlagsOf builds a flag set from sources.
func FlagsOf(sources ...Source) SourceFlags {
	var f SourceFlags
	for _, s := range sources {
		f |= s.flag()
	}
	return f
}

// Has reports whether s is in the set.
func (f SourceFlags) Has(s Source) bool {
	bit := s.flag()
	return bit != 0 && f&bit == bit
}

// With returns the set with s added.
func (f SourceFlags) With(s Source) SourceFlags { return f | s.flag() }

// Strings returns the set as source names in sync order; this is the
// storage encoding.
func (f SourceFlags) Strings() []string {
	out := make([]string, 0, len(AllSources))
	for _, s := range AllSources {
		if f.Has(s) {
			out = append(out, string(s))
		}
	}
	return out
}

func (f SourceFlags) String() string { return strings.Join(f.Strings(), ",") }

// ParseFlags decodes a stored flag list. Unknown names are an error.
func ParseFlags(names []string) (SourceFlags, error) {
	var f SourceFlags
	for _, n := range names {
		s, err := ParseSource(n)
		if err != nil {
			return 0, err
		}
		f = f.With(s)
	}
	return f, nil
}

// Verification is evidence from an external corporate registry lookup.
// It is not a source flag.
type Verification struct {
	Name               string     `json:"name"`
	RegistrationNumber string     `json:"registration_number"`
	DateRegistered     *time.Time `json:"date_registered,omitempty"`
	Status             string     `json:"status,omitempty"`
	Address            string     `json:"address,omitempty"`
	Score              float64    `json:"score"`
}

// ContractorRecord is the registry's unit of identity.
type ContractorRecord struct {
	ID           int64         `json:"id"`
	DisplayName  string        `json:"display_name"`
	Sources      SourceFlags   `json:"source_flags"`
	FormerID     *int64        `json:"former_id,omitempty"`
	Verification *Verification `json:"verification,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// DisplayNames returns the display names of records in order.
func DisplayNames(records []ContractorRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.DisplayName
	}
	return out
}

// SortByID orders records by id, the registry's stable iteration order.
func SortByID(records []ContractorRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}
