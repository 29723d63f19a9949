package registry

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a contractor record does not exist.
var ErrNotFound = eris.New("registry: contractor not found")

// Store persists contractor records. Implementations must make
// CreateContractor idempotent on display name so retried inserts are safe.
type Store interface {
	// ListContractors returns every record ordered by id.
	ListContractors(ctx context.Context) ([]ContractorRecord, error)
	// GetContractor returns ErrNotFound when id does not exist.
	GetContractor(ctx context.Context, id int64) (*ContractorRecord, error)
	// CreateContractor inserts a record tagged with src. If the display name
	// already exists the existing record gains src and is returned.
	CreateContractor(ctx context.Context, displayName string, src Source) (*ContractorRecord, error)
	// AddSource adds src to the record's flags. Adding a present flag is a no-op.
	AddSource(ctx context.Context, id int64, src Source) error
	// SetFormer sets the record's former-name predecessor if it has none.
	SetFormer(ctx context.Context, id, formerID int64) error
	// SetVerification attaches verification evidence without touching flags.
	SetVerification(ctx context.Context, id int64, v Verification) error
}
