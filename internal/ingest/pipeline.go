package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimboard/internal/config"
	"github.com/gyeh/claimboard/internal/csvread"
	"github.com/gyeh/claimboard/internal/model"
	"github.com/gyeh/claimboard/internal/store"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes the full ingest pipeline: preflight → claims → details →
// record-run. All writes happen in one transaction, so overwrite mode's
// delete-then-insert is atomic and a failed run leaves the store untouched.
func Run(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, cfg *config.Config) (*model.Summary, error) {
	start := time.Now()

	mode, err := model.ParseMode(cfg.Mode)
	if err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}
	delim := cfg.DelimiterRune()

	// Phase 1: preflight. Both headers must validate before any write.
	claims, err := csvread.OpenClaims(cfg.ClaimsPath, delim)
	if err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}
	defer claims.Close()

	details, err := csvread.OpenDetails(cfg.DetailsPath, delim)
	if err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}
	defer details.Close()

	sum := &model.Summary{
		IngestRunID: uuid.New(),
		Mode:        mode,
		ClaimsFile:  filepath.Base(cfg.ClaimsPath),
		DetailsFile: filepath.Base(cfg.DetailsPath),
		Delimiter:   string(delim),
		DryRun:      cfg.DryRun,
		StartedAt:   start,
	}

	log.Info().
		Str("ingest_run_id", sum.IngestRunID.String()).
		Str("mode", string(mode)).
		Str("claims_file", sum.ClaimsFile).
		Str("details_file", sum.DetailsFile).
		Bool("dry_run", cfg.DryRun).
		Msg("preflight complete")

	if cfg.DryRun {
		if err := runDry(claims, details, log, sum); err != nil {
			return nil, err
		}
		sum.DurationTotal = time.Since(start)
		return sum, nil
	}

	tx, err := store.New(pool).Begin(ctx)
	if err != nil {
		return nil, &PipelineError{Phase: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	// Phase 2: claims.
	if mode == model.ModeOverwrite {
		deleted, err := store.DeleteAllClaims(ctx, tx)
		if err != nil {
			return nil, &PipelineError{Phase: "claims", Err: err}
		}
		log.Info().Int64("deleted", deleted).Msg("existing claims purged")
	}

	existing, err := store.ClaimIDs(ctx, tx)
	if err != nil {
		return nil, &PipelineError{Phase: "claims", Err: err}
	}

	present, err := loadClaims(ctx, tx, log, claims, existing, sum)
	if err != nil {
		return nil, &PipelineError{Phase: "claims", Err: err}
	}

	// Phase 3: details.
	withDetail, err := store.DetailClaimIDs(ctx, tx)
	if err != nil {
		return nil, &PipelineError{Phase: "details", Err: err}
	}

	if err := loadDetails(ctx, tx, log, details, present, withDetail, sum); err != nil {
		return nil, &PipelineError{Phase: "details", Err: err}
	}

	// Phase 4: persist the run report.
	if err := store.InsertIngestRun(ctx, tx, sum); err != nil {
		return nil, &PipelineError{Phase: "record", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &PipelineError{Phase: "commit", Err: err}
	}

	sum.DurationTotal = time.Since(start)
	log.Info().
		Int64("claims_inserted", sum.Claims.Inserted).
		Int64("claims_skipped", sum.Claims.Skipped).
		Int64("claims_errored", sum.Claims.Errored).
		Int64("details_inserted", sum.Details.Inserted).
		Int64("details_skipped", sum.Details.Skipped).
		Int64("details_errored", sum.Details.Errored).
		Str("total_duration", sum.DurationTotal.String()).
		Msg("ingest pipeline complete")

	return sum, nil
}

// runDry parses both files and fills the summary without opening a
// transaction. Duplicate and orphan checks see only the files themselves.
func runDry(claims *csvread.ClaimReader, details *csvread.DetailReader, log zerolog.Logger, sum *model.Summary) error {
	seen := make(map[int64]bool)
	for {
		rec, rowErr, err := claims.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &PipelineError{Phase: "claims", Err: err}
		}
		if rowErr != nil {
			sum.Claims.Errored++
			sum.Errors = append(sum.Errors, rowErr.Error())
			continue
		}
		if seen[rec.ID] {
			sum.Claims.Skipped++
			continue
		}
		seen[rec.ID] = true
		sum.Claims.Inserted++
	}

	seenDetail := make(map[int64]bool)
	for {
		rec, rowErr, err := details.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &PipelineError{Phase: "details", Err: err}
		}
		if rowErr != nil {
			sum.Details.Errored++
			sum.Errors = append(sum.Errors, rowErr.Error())
			continue
		}
		if !seen[rec.ClaimID] {
			sum.Details.Errored++
			sum.Errors = append(sum.Errors, orphanError(details, rec.ClaimID).Error())
			continue
		}
		if seenDetail[rec.ClaimID] {
			sum.Details.Skipped++
			continue
		}
		seenDetail[rec.ClaimID] = true
		sum.Details.Inserted++
	}

	log.Info().
		Int64("claims_valid", sum.Claims.Inserted).
		Int64("claims_errored", sum.Claims.Errored).
		Int64("details_valid", sum.Details.Inserted).
		Int64("details_errored", sum.Details.Errored).
		Msg("dry run complete, nothing written")
	return nil
}

func orphanError(r *csvread.DetailReader, claimID int64) *csvread.RowError {
	return &csvread.RowError{
		File: r.Name(),
		Line: r.Line(),
		Msg:  fmt.Sprintf("Claim with id=%d not found.", claimID),
	}
}
