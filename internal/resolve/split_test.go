package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSplitter() *Splitter {
	return NewSplitter(DefaultVocabulary(), 0)
}

func TestSplit_JointVenture(t *testing.T) {
	d := newTestSplitter().Split("ABC CONSTRUCTION / XYZ BUILDERS")

	assert.True(t, d.JointVenture)
	assert.False(t, d.FormerAnnotated)
	assert.Equal(t, []string{"ABC CONSTRUCTION", "XYZ BUILDERS"}, d.Names())
}

func TestSplit_JointVentureStripsJVToken(t *testing.T) {
	d := newTestSplitter().Split("ABC CONSTRUCTION/XYZ BUILDERS JV")

	assert.Equal(t, []string{"ABC CONSTRUCTION", "XYZ BUILDERS"}, d.Names())
}

func TestSplit_JointVentureStripsParentheticals(t *testing.T) {
	d := newTestSplitter().Split("ABC CONSTRUCTION (JOINT VENTURE) / XYZ BUILDERS")

	assert.Equal(t, []string{"ABC CONSTRUCTION", "XYZ BUILDERS"}, d.Names())
}

func TestSplit_AmpersandIsNotDelimiter(t *testing.T) {
	d := newTestSplitter().Split("ABC & SONS CONSTRUCTION AND TRADING")

	assert.False(t, d.JointVenture)
	assert.Equal(t, []string{"ABC & SONS CONSTRUCTION AND TRADING"}, d.Names())
}

func TestSplit_FormerName(t *testing.T) {
	d := newTestSplitter().Split("NEW CO (FORMERLY: OLD CO)")

	assert.True(t, d.FormerAnnotated)
	assert.Equal(t, []string{"NEW CO", "OLD CO"}, d.Names())
	require.Len(t, d.Candidates, 2)
	assert.Equal(t, []string{"OLD CO"}, d.Candidates[0].FormerNames)
	assert.Empty(t, d.Candidates[1].FormerNames)
}

func TestSplit_FormerNameKeywords(t *testing.T) {
	s := newTestSplitter()
	tests := []struct {
		in   string
		want []string
	}{
		{"New Co (formerly Old Company Inc)", []string{"New Co", "Old Company Inc"}},
		{"NEW CO FORMER: OLD BUILDERS INC", []string{"NEW CO", "OLD BUILDERS INC"}},
		{"NEW CO (PREVIOUSLY OLD BUILDERS INC.)", []string{"NEW CO", "OLD BUILDERS INC."}},
		{"NEW CO (PREV: OLD BUILDERS)", []string{"NEW CO", "OLD BUILDERS"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := s.Split(tt.in)
			assert.True(t, d.FormerAnnotated)
			assert.Equal(t, tt.want, d.Names())
		})
	}
}

func TestSplit_TruncatedFormerName(t *testing.T) {
	s := newTestSplitter()

	d := s.Split("NEW CO (FORMERLY")
	assert.True(t, d.FormerAnnotated)
	assert.Equal(t, []string{"NEW CO"}, d.Names())

	d = s.Split("NEW CO (FORMERLY: OLD C")
	assert.Equal(t, []string{"NEW CO"}, d.Names())
	require.Len(t, d.Rejected, 1)
	assert.Equal(t, ReasonTooShort, d.Rejected[0].Reason)

	d = s.Split("NEW CO (FORMERLY: OLD BUILDERS INC")
	assert.Equal(t, []string{"NEW CO", "OLD BUILDERS INC"}, d.Names())
}

func TestSplit_ShortFormerNameRejected(t *testing.T) {
	s := newTestSplitter()

	d := s.Split("ACME BUILDERS (FORMERLY: ABC) / ZETA CONSTRUCTION")
	assert.True(t, d.FormerAnnotated)
	assert.Equal(t, []string{"ACME BUILDERS", "ZETA CONSTRUCTION"}, d.Names())
	assert.Empty(t, d.Candidates[0].FormerNames)
	require.Len(t, d.Rejected, 1)
	assert.Equal(t, Rejection{Fragment: "ABC", Reason: ReasonTooShort}, d.Rejected[0])

	d = s.Split("ACME BUILDERS (FORMERLY: ABCD)")
	assert.Equal(t, []string{"ACME BUILDERS", "ABCD"}, d.Names())

	// Primary names are not subject to the former-name floor.
	assert.Equal(t, []string{"ABC"}, s.Split("ABC").Names())
}

func TestSplit_FormerNameOnJointVenture(t *testing.T) {
	d := newTestSplitter().Split("ABC CONSTRUCTION / XYZ BUILDERS (FORMERLY: XYZ TRADING CORP)")

	assert.True(t, d.JointVenture)
	assert.True(t, d.FormerAnnotated)
	assert.Equal(t, []string{"ABC CONSTRUCTION", "XYZ BUILDERS", "XYZ TRADING CORP"}, d.Names())
	assert.Empty(t, d.Candidates[0].FormerNames)
	assert.Equal(t, []string{"XYZ TRADING CORP"}, d.Candidates[1].FormerNames)
}

func TestSplit_SameFormerNameIgnored(t *testing.T) {
	d := newTestSplitter().Split("ACME BUILDERS (FORMERLY ACME BUILDERS)")

	assert.Equal(t, []string{"ACME BUILDERS"}, d.Names())
	assert.Empty(t, d.Candidates[0].FormerNames)
}

func TestSplit_PlainParentheticalDropped(t *testing.T) {
	s := newTestSplitter()

	assert.Equal(t, []string{"ACME BUILDERS"}, s.Split("ACME BUILDERS (PAMPANGA BRANCH)").Names())
	assert.Equal(t, []string{"ACME BUILDERS"}, s.Split("ACME BUILDERS (PAMPANGA").Names())
}

func TestSplit_RoundTrip(t *testing.T) {
	s := newTestSplitter()
	for _, in := range []string{
		"ACME",
		"  ABC & SONS CONSTRUCTION  ",
		"Smith and Jones Trading",
		"J.B. SANTOS-REYES ENTERPRISES",
		"TAGUSAO  CONSTRUCTION",
	} {
		d := s.Split(in)
		require.Len(t, d.Candidates, 1, in)
		assert.Equal(t, d.Input, d.Candidates[0].Name)
	}
}

func TestSplit_Validity(t *testing.T) {
	s := newTestSplitter()

	assert.Empty(t, s.Split("SUPPLY").Candidates)
	assert.Equal(t, ReasonGeneric, s.Split("SUPPLY").Rejected[0].Reason)
	assert.Empty(t, s.Split("CONSTRUCTION SUPPLY").Candidates)
	assert.Equal(t, []string{"ACME"}, s.Split("ACME").Names())

	assert.True(t, s.Valid("RDM"))
	assert.False(t, s.Valid("Trucking"))
	assert.False(t, s.Valid("   "))
}

func TestSplitter_Check(t *testing.T) {
	s := newTestSplitter()

	assert.Equal(t, "", s.Check("ACME BUILDERS"))
	assert.Equal(t, ReasonGeneric, s.Check("CONSTRUCTION SUPPLY"))
	assert.Equal(t, ReasonLeakage, s.Check(`ACME", "logoUrl": null`))
	assert.Equal(t, ReasonEmpty, s.Check("  "))
}

func TestSplit_ShortJVParts(t *testing.T) {
	s := newTestSplitter()

	d := s.Split("ABC CONSTRUCTION / XY CO")
	assert.Equal(t, []string{"ABC CONSTRUCTION"}, d.Names())
	require.Len(t, d.Rejected, 1)
	assert.Equal(t, "XY CO", d.Rejected[0].Fragment)

	// A lone proper noun survives whatever its length.
	d = s.Split("ABC CONSTRUCTION / DMCI")
	assert.Equal(t, []string{"ABC CONSTRUCTION", "DMCI"}, d.Names())
}

func TestSplit_NoFallbackWhenAllPartsInvalid(t *testing.T) {
	d := newTestSplitter().Split("SUPPLY / TRUCKING")

	assert.True(t, d.JointVenture)
	assert.Empty(t, d.Candidates)
	assert.Len(t, d.Rejected, 2)
}

func TestSplit_Leakage(t *testing.T) {
	s := newTestSplitter()

	d := s.Split(`ACME", "nameAbbreviation": "ACM`)
	assert.Empty(t, d.Candidates)
	require.NotEmpty(t, d.Rejected)
	assert.Equal(t, ReasonLeakage, d.Rejected[0].Reason)

	assert.Empty(t, s.Split(`{"logoUrl": null}`).Candidates)
}

func TestSplit_Empty(t *testing.T) {
	d := newTestSplitter().Split("   ")

	assert.Empty(t, d.Candidates)
	require.Len(t, d.Rejected, 1)
	assert.Equal(t, ReasonEmpty, d.Rejected[0].Reason)
}

func TestSplit_MinFragmentConfigurable(t *testing.T) {
	s := NewSplitter(DefaultVocabulary(), 20)

	d := s.Split("ABC CONSTRUCTION / XYZ BUILDERS")
	assert.Empty(t, d.Candidates)
}
