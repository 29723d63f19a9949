package link

import "context"

// Store persists accepted links keyed by contract ID. A contract has at most
// one link.
type Store interface {
	// ListLinks returns every stored link keyed by contract ID.
	ListLinks(ctx context.Context) (map[string]Candidate, error)
	// UpsertLinks writes links in one batch. Either all land or none do.
	UpsertLinks(ctx context.Context, links []Candidate) (int64, error)
	// UpsertLink writes a single link, replacing any link for the contract.
	UpsertLink(ctx context.Context, link Candidate) error
	// ClearLinks removes the links of the given contracts.
	ClearLinks(ctx context.Context, contractIDs []string) (int64, error)
}
