package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gyeh/claimboard/internal/config"
	"github.com/gyeh/claimboard/internal/db"
	"github.com/gyeh/claimboard/internal/ingest"
	"github.com/gyeh/claimboard/internal/logging"
	"github.com/gyeh/claimboard/internal/model"
	"github.com/gyeh/claimboard/internal/store"
)

const (
	testPort     = 15434
	testDB       = "claimingest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	_, err = pool.Exec(ctx, "DROP TABLE IF EXISTS note, claim_detail, claim, ingest_run CASCADE")
	if err != nil {
		t.Fatalf("drop tables: %v", err)
	}

	log := logging.Setup("text")
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

// writeCSV writes lines to a file under dir and returns its path.
func writeCSV(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const (
	claimsHeader  = "id,patient_name,billed_amount,paid_amount,status,insurer_name,discharge_date"
	detailsHeader = "id,claim_id,cpt_codes,denial_reason"
)

func runIngest(t *testing.T, pool *pgxpool.Pool, claimsPath, detailsPath, mode string, dryRun bool) (*model.Summary, error) {
	t.Helper()
	cfg := &config.Config{
		DSN:         testDSN,
		ClaimsPath:  claimsPath,
		DetailsPath: detailsPath,
		Mode:        mode,
		DryRun:      dryRun,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	sum, err := ingest.Run(context.Background(), pool, logging.Setup("text"), cfg)
	return sum, err
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int64 {
	t.Helper()
	var n int64
	if err := pool.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestIngest_Append(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	claims := writeCSV(t, dir, "claims.csv",
		claimsHeader,
		`1,Jane Smith,1200.50,1000.00,paid,Blue Cross,2024-03-01`,
		`2,John Doe,800,0,DENIED,Aetna,2024-02-10`,
		`3,Ann Chen,500.25,250,Under Review,Cigna,`,
	)
	details := writeCSV(t, dir, "details.csv",
		detailsHeader,
		`1,1,"99213, 99214",`,
		`2,2,99283,Not medically necessary`,
	)

	sum, err := runIngest(t, pool, claims, details, "append", false)
	if err != nil {
		t.Fatalf("ingest.Run: %v", err)
	}

	t.Run("summary_counts", func(t *testing.T) {
		if sum.Claims.Inserted != 3 || sum.Claims.Skipped != 0 || sum.Claims.Errored != 0 {
			t.Errorf("claims counts: %+v", sum.Claims)
		}
		if sum.Details.Inserted != 2 || sum.Details.Errored != 0 {
			t.Errorf("details counts: %+v", sum.Details)
		}
		if len(sum.Errors) != 0 {
			t.Errorf("unexpected errors: %v", sum.Errors)
		}
	})

	t.Run("claim_values_normalized", func(t *testing.T) {
		var billed, paid int64
		var status string
		var discharge *time.Time
		err := pool.QueryRow(ctx, `
			SELECT billed_amount_cents, paid_amount_cents, status, discharge_date
			FROM claim WHERE claim_id = 1`).Scan(&billed, &paid, &status, &discharge)
		if err != nil {
			t.Fatalf("query claim 1: %v", err)
		}
		if billed != 120050 || paid != 100000 {
			t.Errorf("cents: got %d/%d, want 120050/100000", billed, paid)
		}
		if status != "PAID" {
			t.Errorf("status: got %q, want PAID (normalized)", status)
		}
		if discharge == nil || discharge.Format("2006-01-02") != "2024-03-01" {
			t.Errorf("discharge: got %v", discharge)
		}

		err = pool.QueryRow(ctx,
			`SELECT discharge_date FROM claim WHERE claim_id = 3`).Scan(&discharge)
		if err != nil {
			t.Fatalf("query claim 3: %v", err)
		}
		if discharge != nil {
			t.Errorf("claim 3 discharge should be NULL, got %v", discharge)
		}
	})

	t.Run("detail_codes_split", func(t *testing.T) {
		var codes []string
		var reason *string
		err := pool.QueryRow(ctx,
			`SELECT cpt_codes, denial_reason FROM claim_detail WHERE claim_id = 1`).
			Scan(&codes, &reason)
		if err != nil {
			t.Fatalf("query detail: %v", err)
		}
		if len(codes) != 2 || codes[0] != "99213" || codes[1] != "99214" {
			t.Errorf("codes: got %v", codes)
		}
		if reason != nil {
			t.Errorf("reason should be NULL, got %q", *reason)
		}
	})

	t.Run("run_recorded", func(t *testing.T) {
		var inserted, errored int64
		var mode string
		err := pool.QueryRow(ctx, `
			SELECT mode, claims_inserted, details_errored
			FROM ingest_run WHERE ingest_run_id = $1`, sum.IngestRunID).
			Scan(&mode, &inserted, &errored)
		if err != nil {
			t.Fatalf("query ingest_run: %v", err)
		}
		if mode != "append" || inserted != 3 || errored != 0 {
			t.Errorf("run row: mode=%s inserted=%d errored=%d", mode, inserted, errored)
		}
	})
}

func TestIngest_AppendIdempotent(t *testing.T) {
	pool := setupDB(t)
	dir := t.TempDir()

	claims := writeCSV(t, dir, "claims.csv",
		claimsHeader,
		`1,Jane Smith,1200.50,1000.00,PAID,Blue Cross,2024-03-01`,
		`2,John Doe,800,0,DENIED,Aetna,`,
	)
	details := writeCSV(t, dir, "details.csv",
		detailsHeader,
		`1,1,99213,`,
	)

	sum1, err := runIngest(t, pool, claims, details, "append", false)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if sum1.Claims.Inserted != 2 || sum1.Details.Inserted != 1 {
		t.Fatalf("first run counts: claims=%+v details=%+v", sum1.Claims, sum1.Details)
	}

	sum2, err := runIngest(t, pool, claims, details, "append", false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum2.Claims.Inserted != 0 || sum2.Claims.Skipped != 2 {
		t.Errorf("second run claims: %+v, want 0 inserted / 2 skipped", sum2.Claims)
	}
	if sum2.Details.Inserted != 0 || sum2.Details.Skipped != 1 {
		t.Errorf("second run details: %+v, want 0 inserted / 1 skipped", sum2.Details)
	}

	if n := countRows(t, pool, "claim"); n != 2 {
		t.Errorf("claims in store: got %d, want 2", n)
	}
	if n := countRows(t, pool, "claim_detail"); n != 1 {
		t.Errorf("details in store: got %d, want 1", n)
	}
}

func TestIngest_AppendBackfillsDetail(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	claims := writeCSV(t, dir, "claims.csv",
		claimsHeader,
		`1,Jane Smith,1200.50,1000.00,PAID,Blue Cross,`,
	)
	noDetails := writeCSV(t, dir, "empty_details.csv", detailsHeader)

	if _, err := runIngest(t, pool, claims, noDetails, "append", false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if n := countRows(t, pool, "claim_detail"); n != 0 {
		t.Fatalf("details after first run: got %d, want 0", n)
	}

	details := writeCSV(t, dir, "details.csv",
		detailsHeader,
		`1,1,"99213,99215",Partial denial`,
	)
	sum, err := runIngest(t, pool, claims, details, "append", false)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Claims.Inserted != 0 || sum.Claims.Skipped != 1 {
		t.Errorf("claims: %+v, want 0 inserted / 1 skipped", sum.Claims)
	}
	if sum.Details.Inserted != 1 {
		t.Errorf("details: %+v, want 1 inserted", sum.Details)
	}

	var codes []string
	err = pool.QueryRow(ctx,
		`SELECT cpt_codes FROM claim_detail WHERE claim_id = 1`).Scan(&codes)
	if err != nil {
		t.Fatalf("query backfilled detail: %v", err)
	}
	if len(codes) != 2 {
		t.Errorf("codes: got %v", codes)
	}
}

func TestIngest_OverwriteReplacesEverything(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	oldClaims := writeCSV(t, dir, "old_claims.csv",
		claimsHeader,
		`1,Jane Smith,1200.50,1000.00,PAID,Blue Cross,`,
		`2,John Doe,800,0,DENIED,Aetna,`,
	)
	oldDetails := writeCSV(t, dir, "old_details.csv",
		detailsHeader,
		`1,1,99213,`,
	)
	if _, err := runIngest(t, pool, oldClaims, oldDetails, "append", false); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	// Flag and annotate one of the soon-to-be-replaced claims so the
	// cascade is observable.
	s := store.New(pool)
	if _, err := s.ToggleFlag(ctx, 1, "analyst1"); err != nil {
		t.Fatalf("flag: %v", err)
	}
	if _, err := s.AddNote(ctx, 1, "analyst1", "check this"); err != nil {
		t.Fatalf("note: %v", err)
	}

	newClaims := writeCSV(t, dir, "new_claims.csv",
		claimsHeader,
		`10,Maria Cruz,999.99,0,DENIED,United,2024-04-01`,
	)
	newDetails := writeCSV(t, dir, "new_details.csv",
		detailsHeader,
		`1,10,99285,Out of network`,
	)
	sum, err := runIngest(t, pool, newClaims, newDetails, "overwrite", false)
	if err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
	if sum.Claims.Inserted != 1 || sum.Claims.Skipped != 0 {
		t.Errorf("claims: %+v", sum.Claims)
	}

	if n := countRows(t, pool, "claim"); n != 1 {
		t.Errorf("claims: got %d, want 1", n)
	}
	var id int64
	if err := pool.QueryRow(ctx, `SELECT claim_id FROM claim`).Scan(&id); err != nil {
		t.Fatalf("query: %v", err)
	}
	if id != 10 {
		t.Errorf("surviving claim: got %d, want 10", id)
	}
	if n := countRows(t, pool, "note"); n != 0 {
		t.Errorf("notes should cascade away, got %d", n)
	}
	if n := countRows(t, pool, "claim_detail"); n != 1 {
		t.Errorf("details: got %d, want 1", n)
	}
}

func TestIngest_BadRowsRecordedGoodRowsLoaded(t *testing.T) {
	pool := setupDB(t)
	dir := t.TempDir()

	claims := writeCSV(t, dir, "claims.csv",
		claimsHeader,
		`1,Jane Smith,1200.50,1000.00,PAID,Blue Cross,`,
		`2,John Doe,800,0,BOGUS,Aetna,`,
		`3,Ann Chen,-5,0,PAID,Cigna,`,
		`4,Maria Cruz,100,100,PAID,United,`,
	)
	details := writeCSV(t, dir, "details.csv", detailsHeader)

	sum, err := runIngest(t, pool, claims, details, "append", false)
	if err != nil {
		t.Fatalf("ingest.Run: %v", err)
	}

	if sum.Claims.Inserted != 2 || sum.Claims.Errored != 2 {
		t.Errorf("claims: %+v, want 2 inserted / 2 errored", sum.Claims)
	}
	if n := countRows(t, pool, "claim"); n != 2 {
		t.Errorf("claims in store: got %d, want 2", n)
	}

	if len(sum.Errors) != 2 {
		t.Fatalf("errors: got %v", sum.Errors)
	}
	if !strings.HasPrefix(sum.Errors[0], "Error in claims.csv at row 3:") {
		t.Errorf("first error: %q", sum.Errors[0])
	}
	if !strings.HasPrefix(sum.Errors[1], "Error in claims.csv at row 4:") {
		t.Errorf("second error: %q", sum.Errors[1])
	}
}

func TestIngest_OrphanDetailRecorded(t *testing.T) {
	pool := setupDB(t)
	dir := t.TempDir()

	claims := writeCSV(t, dir, "claims.csv",
		claimsHeader,
		`1,Jane Smith,1200.50,1000.00,PAID,Blue Cross,`,
	)
	details := writeCSV(t, dir, "details.csv",
		detailsHeader,
		`1,999,99213,`,
		`2,1,99214,`,
	)

	sum, err := runIngest(t, pool, claims, details, "append", false)
	if err != nil {
		t.Fatalf("ingest.Run: %v", err)
	}

	if sum.Details.Inserted != 1 || sum.Details.Errored != 1 {
		t.Errorf("details: %+v, want 1 inserted / 1 errored", sum.Details)
	}
	want := "Error in details.csv at row 2: Claim with id=999 not found."
	if len(sum.Errors) != 1 || sum.Errors[0] != want {
		t.Errorf("errors: got %v, want [%q]", sum.Errors, want)
	}
	if n := countRows(t, pool, "claim_detail"); n != 1 {
		t.Errorf("details in store: got %d, want 1", n)
	}
}

func TestIngest_MissingHeaderIsFatal(t *testing.T) {
	pool := setupDB(t)
	dir := t.TempDir()

	claims := writeCSV(t, dir, "claims.csv",
		claimsHeader,
		`1,Jane Smith,1200.50,1000.00,PAID,Blue Cross,`,
	)
	details := writeCSV(t, dir, "details.csv",
		"id,claim_id,denial_reason", // cpt_codes column missing
		`1,1,`,
	)

	_, err := runIngest(t, pool, claims, details, "append", false)
	var perr *ingest.PipelineError
	if !errors.As(err, &perr) {
		t.Fatalf("want PipelineError, got %v", err)
	}
	if perr.Phase != "preflight" {
		t.Errorf("phase: got %q, want preflight", perr.Phase)
	}

	// Both headers validate before any write, so nothing landed.
	if n := countRows(t, pool, "claim"); n != 0 {
		t.Errorf("claims written despite fatal header: %d", n)
	}
	if n := countRows(t, pool, "ingest_run"); n != 0 {
		t.Errorf("ingest_run recorded despite fatal header: %d", n)
	}
}

func TestIngest_DryRunWritesNothing(t *testing.T) {
	pool := setupDB(t)
	dir := t.TempDir()

	claims := writeCSV(t, dir, "claims.csv",
		claimsHeader,
		`1,Jane Smith,1200.50,1000.00,PAID,Blue Cross,`,
		`2,John Doe,800,0,BOGUS,Aetna,`,
	)
	details := writeCSV(t, dir, "details.csv",
		detailsHeader,
		`1,1,99213,`,
		`2,999,99214,`,
	)

	sum, err := runIngest(t, pool, claims, details, "append", true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}

	if sum.Claims.Inserted != 1 || sum.Claims.Errored != 1 {
		t.Errorf("claims: %+v, want 1 valid / 1 errored", sum.Claims)
	}
	if sum.Details.Inserted != 1 || sum.Details.Errored != 1 {
		t.Errorf("details: %+v, want 1 valid / 1 orphan", sum.Details)
	}

	for _, table := range []string{"claim", "claim_detail", "ingest_run"} {
		if n := countRows(t, pool, table); n != 0 {
			t.Errorf("%s: got %d rows after dry run, want 0", table, n)
		}
	}
}

func TestIngest_WithinFileDuplicateSkipped(t *testing.T) {
	pool := setupDB(t)
	dir := t.TempDir()

	claims := writeCSV(t, dir, "claims.csv",
		claimsHeader,
		`1,Jane Smith,1200.50,1000.00,PAID,Blue Cross,`,
		`1,Jane Smith,1200.50,1000.00,PAID,Blue Cross,`,
	)
	details := writeCSV(t, dir, "details.csv", detailsHeader)

	sum, err := runIngest(t, pool, claims, details, "append", false)
	if err != nil {
		t.Fatalf("ingest.Run: %v", err)
	}
	if sum.Claims.Inserted != 1 || sum.Claims.Skipped != 1 {
		t.Errorf("claims: %+v, want 1 inserted / 1 skipped", sum.Claims)
	}
	if n := countRows(t, pool, "claim"); n != 1 {
		t.Errorf("claims in store: got %d, want 1", n)
	}
}
