package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimboard/internal/csvread"
	"github.com/gyeh/claimboard/internal/model"
	"github.com/gyeh/claimboard/internal/store"
)

const copyBatchSize = 256

// loadClaims streams claim rows through validation and COPY-loads the new
// ones. existing ids and within-file repeats are skipped, row failures are
// recorded, and the batch never aborts on either. Returns the set of claim
// ids present in the store afterwards.
func loadClaims(ctx context.Context, tx pgx.Tx, log zerolog.Logger, r *csvread.ClaimReader, existing map[int64]bool, sum *model.Summary) (map[int64]bool, error) {
	start := time.Now()

	ch := make(chan *model.ClaimRecord, copyBatchSize)
	done := make(chan error, 1)
	batch := make(map[int64]bool)

	// Producer: read + validate + filter, push accepted rows to COPY.
	go func() {
		defer close(ch)
		for {
			rec, rowErr, err := r.Next()
			if err == io.EOF {
				done <- nil
				return
			}
			if err != nil {
				done <- err
				return
			}
			if rowErr != nil {
				sum.Claims.Errored++
				sum.Errors = append(sum.Errors, rowErr.Error())
				log.Warn().Str("file", rowErr.File).Int("row", rowErr.Line).Msg(rowErr.Msg)
				continue
			}
			if existing[rec.ID] || batch[rec.ID] {
				sum.Claims.Skipped++
				continue
			}
			batch[rec.ID] = true
			select {
			case ch <- rec:
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
	}()

	inserted, copyErr := store.CopyClaims(ctx, tx, ch)
	if copyErr != nil {
		// Unblock the producer before collecting its result.
		for range ch {
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}
	if copyErr != nil {
		return nil, fmt.Errorf("copy claims: %w", copyErr)
	}

	sum.Claims.Inserted = inserted

	present := make(map[int64]bool, len(existing)+len(batch))
	for id := range existing {
		present[id] = true
	}
	for id := range batch {
		present[id] = true
	}

	log.Info().
		Int64("inserted", inserted).
		Int64("skipped", sum.Claims.Skipped).
		Int64("errored", sum.Claims.Errored).
		Dur("duration", time.Since(start)).
		Msg("claims loaded")

	return present, nil
}

// loadDetails streams detail rows and COPY-loads those whose claim exists
// in the store (present) and has no detail yet. A detail referencing an
// unknown claim id is an orphan: recorded as an error, never inserted.
func loadDetails(ctx context.Context, tx pgx.Tx, log zerolog.Logger, r *csvread.DetailReader, present, withDetail map[int64]bool, sum *model.Summary) error {
	start := time.Now()

	ch := make(chan *model.DetailRecord, copyBatchSize)
	done := make(chan error, 1)
	batch := make(map[int64]bool)

	go func() {
		defer close(ch)
		for {
			rec, rowErr, err := r.Next()
			if err == io.EOF {
				done <- nil
				return
			}
			if err != nil {
				done <- err
				return
			}
			if rowErr != nil {
				sum.Details.Errored++
				sum.Errors = append(sum.Errors, rowErr.Error())
				log.Warn().Str("file", rowErr.File).Int("row", rowErr.Line).Msg(rowErr.Msg)
				continue
			}
			if !present[rec.ClaimID] {
				e := orphanError(r, rec.ClaimID)
				sum.Details.Errored++
				sum.Errors = append(sum.Errors, e.Error())
				log.Warn().Str("file", e.File).Int("row", e.Line).Msg(e.Msg)
				continue
			}
			if withDetail[rec.ClaimID] || batch[rec.ClaimID] {
				sum.Details.Skipped++
				continue
			}
			batch[rec.ClaimID] = true
			select {
			case ch <- rec:
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
	}()

	inserted, copyErr := store.CopyDetails(ctx, tx, ch)
	if copyErr != nil {
		for range ch {
		}
	}
	if err := <-done; err != nil {
		return fmt.Errorf("read details: %w", err)
	}
	if copyErr != nil {
		return fmt.Errorf("copy details: %w", copyErr)
	}

	sum.Details.Inserted = inserted

	log.Info().
		Int64("inserted", inserted).
		Int64("skipped", sum.Details.Skipped).
		Int64("errored", sum.Details.Errored).
		Dur("duration", time.Since(start)).
		Msg("details loaded")

	return nil
}
