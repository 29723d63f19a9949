package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func projectIDs(ps []Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestProjectIndex_Within(t *testing.T) {
	ix := NewProjectIndex([]Project{
		{ID: "P5", Cost: 12_000_000},
		{ID: "P2", Cost: 10_000_000},
		{ID: "P1", Cost: 10_000_000},
		{ID: "P3", Cost: 9_500_000},
		{ID: "P4", Cost: 10_500_000},
		{ID: "P6", Cost: 9_000_000},
		{ID: "P0", Cost: 0},
		{ID: "", Cost: 10_000_000},
	})
	assert.Equal(t, 6, ix.Len())

	got := ix.Within(10_000_000, 0.05)
	assert.Equal(t, []string{"P3", "P1", "P2", "P4"}, projectIDs(got))
}

func TestProjectIndex_WindowMatchesAmountScore(t *testing.T) {
	s := NewScorer(Config{}, nil)
	var projects []Project
	for cost := 9_000_000.0; cost <= 11_000_000; cost += 50_000 {
		projects = append(projects, Project{ID: "P", Cost: cost})
	}
	ix := NewProjectIndex(projects)

	in := map[float64]bool{}
	for _, p := range ix.Within(10_000_000, 0.05) {
		in[p.Cost] = true
	}
	for _, p := range projects {
		assert.Equal(t, s.AmountScore(10_000_000, p.Cost) > 0, in[p.Cost], "cost %.0f", p.Cost)
	}
}

func TestProjectIndex_Empty(t *testing.T) {
	ix := NewProjectIndex(nil)
	assert.Empty(t, ix.Within(100, 0.05))
	assert.Empty(t, NewProjectIndex([]Project{{ID: "P1", Cost: 100}}).Within(0, 0.05))
}
