package link

import (
	"sort"
)

// ProjectIndex orders projects by cost for amount-window lookups.
type ProjectIndex struct {
	projects []Project
}

// NewProjectIndex indexes projects with a positive cost. Projects with equal
// cost keep ID order.
func NewProjectIndex(projects []Project) *ProjectIndex {
	ix := &ProjectIndex{projects: make([]Project, 0, len(projects))}
	for _, p := range projects {
		if p.Cost > 0 && p.ID != "" {
			ix.projects = append(ix.projects, p)
		}
	}
	sort.SliceStable(ix.projects, func(i, j int) bool {
		a, b := ix.projects[i], ix.projects[j]
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.ID < b.ID
	})
	return ix
}

// Len returns the number of indexed projects.
func (ix *ProjectIndex) Len() int { return len(ix.projects) }

// Within returns the projects whose cost differs from amount by at most
// tolerance relative to the larger of the two: [a(1-t), a/(1-t)].
func (ix *ProjectIndex) Within(amount, tolerance float64) []Project {
	if amount <= 0 || tolerance <= 0 || tolerance >= 1 {
		return nil
	}
	lo, hi := amount*(1-tolerance), amount/(1-tolerance)
	start := sort.Search(len(ix.projects), func(i int) bool { return ix.projects[i].Cost >= lo })
	end := sort.Search(len(ix.projects), func(i int) bool { return ix.projects[i].Cost > hi })
	if start >= end {
		return nil
	}
	return ix.projects[start:end]
}
