package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	src, err := ParseSource(" Flood ")
	require.NoError(t, err)
	assert.Equal(t, SourceFlood, src)

	_, err = ParseSource("sec")
	assert.Error(t, err)
}

func TestSourceFlags(t *testing.T) {
	var f SourceFlags
	assert.False(t, f.Has(SourceFlood))
	assert.Empty(t, f.Strings())

	f = f.With(SourcePhilGEPS).With(SourceFlood).With(SourceFlood)
	assert.True(t, f.Has(SourceFlood))
	assert.True(t, f.Has(SourcePhilGEPS))
	assert.False(t, f.Has(SourceDIME))
	assert.False(t, f.Has(Source("bogus")))
	assert.Equal(t, []string{"flood", "philgeps"}, f.Strings())
	assert.Equal(t, "flood,philgeps", f.String())
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"dime", "flood", "dime"})
	require.NoError(t, err)
	assert.Equal(t, FlagsOf(SourceFlood, SourceDIME), f)

	_, err = ParseFlags([]string{"flood", "nope"})
	assert.Error(t, err)
}

func TestSortByID(t *testing.T) {
	records := []ContractorRecord{{ID: 3, DisplayName: "C"}, {ID: 1, DisplayName: "A"}, {ID: 2, DisplayName: "B"}}
	SortByID(records)
	assert.Equal(t, []string{"A", "B", "C"}, DisplayNames(records))
}
