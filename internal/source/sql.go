package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/altgovph/procurement-cli/internal/db"
	"github.com/altgovph/procurement-cli/internal/link"
)

// DIMEReader reads contractor names from the DIME projects database.
//
// Expected table: projects (contractors text[]).
type DIMEReader struct {
	pool db.Pool
}

// NewDIMEReader creates a DIMEReader.
func NewDIMEReader(pool db.Pool) *DIMEReader {
	return &DIMEReader{pool: pool}
}

// ContractorNames returns the distinct contractor strings across projects.
func (r *DIMEReader) ContractorNames(ctx context.Context) ([]string, error) {
	names, err := queryStrings(ctx, r.pool, `
		SELECT DISTINCT unnest(contractors) AS contractor_name
		FROM projects
		WHERE contractors IS NOT NULL AND array_length(contractors, 1) > 0
		ORDER BY contractor_name`)
	if err != nil {
		return nil, eris.Wrap(err, "source: dime: contractor names")
	}
	zap.L().Info("loaded dime contractor names", zap.String("component", "source.dime"), zap.Int("count", len(names)))
	return names, nil
}

// PhilGEPSReader reads awarded contracts from the PhilGEPS database.
//
// Expected table: contracts (id, awardee_name, area_of_delivery,
// contract_amount numeric, award_status).
type PhilGEPSReader struct {
	pool db.Pool
}

// NewPhilGEPSReader creates a PhilGEPSReader.
func NewPhilGEPSReader(pool db.Pool) *PhilGEPSReader {
	return &PhilGEPSReader{pool: pool}
}

// ContractorNames returns the distinct awardee names.
func (r *PhilGEPSReader) ContractorNames(ctx context.Context) ([]string, error) {
	names, err := queryStrings(ctx, r.pool, `
		SELECT DISTINCT awardee_name
		FROM contracts
		WHERE awardee_name IS NOT NULL AND awardee_name <> ''
		ORDER BY awardee_name`)
	if err != nil {
		return nil, eris.Wrap(err, "source: philgeps: contractor names")
	}
	zap.L().Info("loaded philgeps contractor names", zap.String("component", "source.philgeps"), zap.Int("count", len(names)))
	return names, nil
}

// Contracts returns active contracts that have a positive amount and a
// delivery area.
func (r *PhilGEPSReader) Contracts(ctx context.Context) ([]link.Contract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, contract_amount::float8, area_of_delivery, COALESCE(awardee_name, '')
		FROM contracts
		WHERE contract_amount IS NOT NULL
		  AND contract_amount > 0
		  AND area_of_delivery IS NOT NULL
		  AND award_status = 'active'
		ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "source: philgeps: query contracts")
	}
	defer rows.Close()

	var out []link.Contract
	for rows.Next() {
		var c link.Contract
		if err := rows.Scan(&c.ID, &c.Amount, &c.DeliveryArea, &c.Awardee); err != nil {
			return nil, eris.Wrap(err, "source: philgeps: scan contract")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: philgeps: iterate contracts")
	}
	zap.L().Info("loaded philgeps contracts", zap.String("component", "source.philgeps"), zap.Int("count", len(out)))
	return out, nil
}

func queryStrings(ctx context.Context, pool db.Pool, sql string) ([]string, error) {
	rows, err := pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "query")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, eris.Wrap(err, "scan")
		}
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "iterate")
}
