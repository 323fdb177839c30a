package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gyeh/claimboard/internal/db"
	"github.com/gyeh/claimboard/internal/model"
)

// The functions below run inside an ingestion transaction and are the only
// way claims are created or bulk-deleted.

// DeleteAllClaims purges every claim; details and notes go with them via
// cascade.
func DeleteAllClaims(ctx context.Context, tx pgx.Tx) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM claim`)
	if err != nil {
		return 0, fmt.Errorf("delete claims: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ClaimIDs returns the set of claim ids currently in the store.
func ClaimIDs(ctx context.Context, tx pgx.Tx) (map[int64]bool, error) {
	return idSet(ctx, tx, `SELECT claim_id FROM claim`)
}

// DetailClaimIDs returns the set of claim ids that already have a detail.
func DetailClaimIDs(ctx context.Context, tx pgx.Tx) (map[int64]bool, error) {
	return idSet(ctx, tx, `SELECT claim_id FROM claim_detail`)
}

func idSet(ctx context.Context, tx pgx.Tx, sql string) (map[int64]bool, error) {
	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// CopyClaims bulk-loads claim records from the channel via COPY.
func CopyClaims(ctx context.Context, tx pgx.Tx, ch <-chan *model.ClaimRecord) (int64, error) {
	return tx.CopyFrom(ctx, pgx.Identifier{"claim"}, model.ClaimColumns(), db.NewChannelSource(ch))
}

// CopyDetails bulk-loads detail records from the channel via COPY.
func CopyDetails(ctx context.Context, tx pgx.Tx, ch <-chan *model.DetailRecord) (int64, error) {
	return tx.CopyFrom(ctx, pgx.Identifier{"claim_detail"}, model.DetailColumns(), db.NewChannelSource(ch))
}

// InsertIngestRun records the summary of a completed run.
func InsertIngestRun(ctx context.Context, tx pgx.Tx, sum *model.Summary) error {
	errs := sum.Errors
	if errs == nil {
		errs = []string{}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO ingest_run (
			ingest_run_id, mode, claims_file, details_file, delimiter,
			claims_inserted, claims_skipped, claims_errored,
			details_inserted, details_skipped, details_errored,
			errors, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		sum.IngestRunID, string(sum.Mode), sum.ClaimsFile, sum.DetailsFile, sum.Delimiter,
		sum.Claims.Inserted, sum.Claims.Skipped, sum.Claims.Errored,
		sum.Details.Inserted, sum.Details.Skipped, sum.Details.Errored,
		errs, sum.StartedAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record ingest run: %w", err)
	}
	return nil
}
