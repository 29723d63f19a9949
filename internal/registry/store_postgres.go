package registry

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/altgovph/procurement-cli/internal/db"
)

// Expected table:
//
//	contractors (
//	  id                  bigserial PRIMARY KEY,
//	  display_name        text NOT NULL UNIQUE,
//	  source_flags        text[] NOT NULL DEFAULT '{}',
//	  former_id           bigint REFERENCES contractors(id),
//	  sec_name            text,
//	  sec_number          text,
//	  sec_date_registered date,
//	  sec_status          text,
//	  sec_address         text,
//	  sec_score           double precision,
//	  created_at          timestamptz NOT NULL DEFAULT now(),
//	  updated_at          timestamptz NOT NULL DEFAULT now()
//	)
const contractorColumns = `id, display_name, source_flags, former_id,
	sec_name, sec_number, sec_date_registered, sec_status, sec_address, sec_score,
	created_at, updated_at`

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ListContractors returns every record ordered by id.
func (s *PostgresStore) ListContractors(ctx context.Context) ([]ContractorRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+contractorColumns+` FROM contractors ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "registry: list contractors")
	}
	defer rows.Close()

	var out []ContractorRecord
	for rows.Next() {
		r, err := scanContractor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "registry: scan contractor")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "registry: iterate contractors")
}

// GetContractor fetches a record by id.
func (s *PostgresStore) GetContractor(ctx context.Context, id int64) (*ContractorRecord, error) {
	r, err := scanContractor(s.pool.QueryRow(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "registry: get contractor %d", id)
	}
	return r, nil
}

// CreateContractor inserts a record or merges src into the existing record
// with the same display name.
func (s *PostgresStore) CreateContractor(ctx context.Context, displayName string, src Source) (*ContractorRecord, error) {
	r, err := scanContractor(s.pool.QueryRow(ctx, `
		INSERT INTO contractors (display_name, source_flags)
		VALUES ($1, ARRAY[$2::text])
		ON CONFLICT (display_name) DO UPDATE SET
			source_flags = CASE
				WHEN $2::text = ANY(contractors.source_flags) THEN contractors.source_flags
				ELSE array_append(contractors.source_flags, $2::text)
			END,
			updated_at = now()
		RETURNING `+contractorColumns,
		displayName, string(src),
	))
	if err != nil {
		return nil, eris.Wrapf(err, "registry: create contractor %q", displayName)
	}
	return r, nil
}

// AddSource appends src to the record's flags when missing.
func (s *PostgresStore) AddSource(ctx context.Context, id int64, src Source) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE contractors
		SET source_flags = array_append(source_flags, $2::text), updated_at = now()
		WHERE id = $1 AND NOT ($2::text = ANY(source_flags))`,
		id, string(src),
	)
	if err != nil {
		return eris.Wrapf(err, "registry: add source %s to %d", src, id)
	}
	return nil
}

// SetFormer sets former_id on a record that has none.
func (s *PostgresStore) SetFormer(ctx context.Context, id, formerID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE contractors SET former_id = $2, updated_at = now()
		WHERE id = $1 AND former_id IS NULL AND id <> $2`,
		id, formerID,
	)
	if err != nil {
		return eris.Wrapf(err, "registry: set former %d -> %d", id, formerID)
	}
	return nil
}

// SetVerification stores verification evidence on a record.
func (s *PostgresStore) SetVerification(ctx context.Context, id int64, v Verification) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE contractors SET
			sec_name = $2, sec_number = $3, sec_date_registered = $4,
			sec_status = $5, sec_address = $6, sec_score = $7,
			updated_at = now()
		WHERE id = $1`,
		id, v.Name, v.RegistrationNumber, v.DateRegistered, v.Status, v.Address, v.Score,
	)
	if err != nil {
		return eris.Wrapf(err, "registry: set verification on %d", id)
	}
	return nil
}

func scanContractor(row pgx.Row) (*ContractorRecord, error) {
	var (
		r                                      ContractorRecord
		flags                                  []string
		secName, secNumber, secStatus, secAddr *string
		secDate                                *time.Time
		secScore                               *float64
	)
	if err := row.Scan(
		&r.ID, &r.DisplayName, &flags, &r.FormerID,
		&secName, &secNumber, &secDate, &secStatus, &secAddr, &secScore,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	f, err := ParseFlags(flags)
	if err != nil {
		return nil, err
	}
	r.Sources = f

	if secNumber != nil || secName != nil {
		r.Verification = &Verification{
			Name:               deref(secName),
			RegistrationNumber: deref(secNumber),
			DateRegistered:     secDate,
			Status:             deref(secStatus),
			Address:            deref(secAddr),
		}
		if secScore != nil {
			r.Verification.Score = *secScore
		}
	}
	return &r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
