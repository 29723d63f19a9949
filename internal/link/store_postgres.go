package link

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/altgovph/procurement-cli/internal/db"
)

// Expected table:
//
//	contract_project_links (
//	  contract_id      text PRIMARY KEY,
//	  project_id       text NOT NULL,
//	  location_score   double precision NOT NULL,
//	  amount_score     double precision NOT NULL,
//	  contractor_score double precision NOT NULL,
//	  confidence       double precision NOT NULL,
//	  linked_at        timestamptz NOT NULL DEFAULT now()
//	)
const linkTable = "contract_project_links"

var linkUpsert = db.UpsertConfig{
	Table:        linkTable,
	Columns:      []string{"contract_id", "project_id", "location_score", "amount_score", "contractor_score", "confidence"},
	ConflictKeys: []string{"contract_id"},
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ListLinks returns every stored link keyed by contract ID.
func (s *PostgresStore) ListLinks(ctx context.Context) (map[string]Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT contract_id, project_id, location_score, amount_score, contractor_score, confidence
		FROM contract_project_links`)
	if err != nil {
		return nil, eris.Wrap(err, "link: list links")
	}
	defer rows.Close()

	out := make(map[string]Candidate)
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ContractID, &c.ProjectID, &c.Location, &c.Amount, &c.Contractor, &c.Confidence); err != nil {
			return nil, eris.Wrap(err, "link: scan link")
		}
		out[c.ContractID] = c
	}
	return out, eris.Wrap(rows.Err(), "link: iterate links")
}

// UpsertLinks writes links through a temp table in one transaction.
func (s *PostgresStore) UpsertLinks(ctx context.Context, links []Candidate) (int64, error) {
	rows := make([][]any, len(links))
	for i, c := range links {
		rows[i] = []any{c.ContractID, c.ProjectID, c.Location, c.Amount, c.Contractor, c.Confidence}
	}
	n, err := db.BulkUpsert(ctx, s.pool, linkUpsert, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "link: upsert %d links", len(links))
	}
	return n, nil
}

// UpsertLink writes one link.
func (s *PostgresStore) UpsertLink(ctx context.Context, c Candidate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO contract_project_links
			(contract_id, project_id, location_score, amount_score, contractor_score, confidence, linked_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (contract_id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			location_score = EXCLUDED.location_score,
			amount_score = EXCLUDED.amount_score,
			contractor_score = EXCLUDED.contractor_score,
			confidence = EXCLUDED.confidence,
			linked_at = now()`,
		c.ContractID, c.ProjectID, c.Location, c.Amount, c.Contractor, c.Confidence)
	return eris.Wrapf(err, "link: upsert link for %s", c.ContractID)
}

// ClearLinks deletes the links of contractIDs.
func (s *PostgresStore) ClearLinks(ctx context.Context, contractIDs []string) (int64, error) {
	if len(contractIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM contract_project_links WHERE contract_id = ANY($1)`, contractIDs)
	if err != nil {
		return 0, eris.Wrap(err, "link: clear links")
	}
	return tag.RowsAffected(), nil
}
