// Package store is the relational persistence layer for claims, details,
// and notes. Entities are plain structs; all SQL lives here.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/claimboard/internal/model"
)

// ErrNotFound is returned when an operation references a claim id that
// does not exist.
var ErrNotFound = errors.New("claim not found")

// Store provides claim persistence over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Begin opens a transaction for multi-statement operations (ingestion).
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// claimCols is the claim column list in scanClaim order, qualified with the
// "c" alias used by every claim query.
const claimCols = `c.claim_id, c.patient_name, c.billed_amount_cents, c.paid_amount_cents,
	c.status, c.insurer_name, c.discharge_date, c.is_flagged, c.flagged_by, c.flagged_at,
	c.created_at, c.updated_at`

func scanClaim(sc scanner) (*model.Claim, error) {
	var c model.Claim
	var status string
	err := sc.Scan(
		&c.ID, &c.PatientName, &c.BilledAmountCents, &c.PaidAmountCents,
		&status, &c.InsurerName, &c.DischargeDate, &c.IsFlagged, &c.FlaggedBy, &c.FlaggedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.Status(status)
	return &c, nil
}
