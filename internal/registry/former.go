package registry

import "github.com/rotisserie/eris"

// Former-link guard errors.
var (
	ErrSelfLink    = eris.New("registry: contractor cannot be its own former name")
	ErrFormerCycle = eris.New("registry: former-name link would create a cycle")
)

// FormerLookup returns the former_id of a record, or nil when it has none.
type FormerLookup func(id int64) *int64

// ValidateFormerLink walks the chain starting at formerID and rejects the
// link id -> formerID if it would point a record at itself or close a cycle.
// The walk is bounded so corrupt existing data cannot loop forever.
func ValidateFormerLink(id, formerID int64, lookup FormerLookup, maxDepth int) error {
	if id == formerID {
		return ErrSelfLink
	}
	if maxDepth <= 0 {
		maxDepth = 1024
	}
	cur := formerID
	for range maxDepth {
		next := lookup(cur)
		if next == nil {
			return nil
		}
		if *next == id {
			return eris.Wrapf(ErrFormerCycle, "registry: link %d -> %d", id, formerID)
		}
		cur = *next
	}
	return eris.Wrapf(ErrFormerCycle, "registry: chain from %d exceeds %d links", formerID, maxDepth)
}

// forest is the in-memory former_id map a sync pass validates against.
type forest map[int64]*int64

func newForest(records []ContractorRecord) forest {
	f := make(forest, len(records))
	for _, r := range records {
		f[r.ID] = r.FormerID
	}
	return f
}

func (f forest) lookup(id int64) *int64 { return f[id] }

func (f forest) set(id, formerID int64) {
	v := formerID
	f[id] = &v
}
