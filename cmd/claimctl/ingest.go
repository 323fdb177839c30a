package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/gyeh/claimboard/internal/db"
	"github.com/gyeh/claimboard/internal/exitcode"
	"github.com/gyeh/claimboard/internal/ingest"
	"github.com/gyeh/claimboard/internal/logging"
	"github.com/gyeh/claimboard/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load claims and details CSV files into the database",
	Long: "Parses a claims CSV and a claim-details CSV, validates every row, and loads the " +
		"good rows into Postgres. Append mode skips claim ids that already exist; overwrite " +
		"mode replaces the whole dataset in a single transaction.",
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&cfg.ClaimsPath, "claims", "", "Path to the claims CSV file (required)")
	f.StringVar(&cfg.DetailsPath, "details", "", "Path to the claim details CSV file (required)")
	f.StringVar(&cfg.Delimiter, "delimiter", "", "Field delimiter shared by both files (default \",\")")
	f.StringVar(&cfg.Mode, "mode", "", "Merge mode: append or overwrite (default append)")
	f.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML config file; flags take precedence")
	f.BoolVar(&cfg.DryRun, "dry-run", false, "Validate and report without writing")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	if cfg.ConfigPath != "" {
		if err := cfg.LoadFromFile(cfg.ConfigPath); err != nil {
			log.Error().Err(err).Str("path", cfg.ConfigPath).Msg("config file load failed")
			os.Exit(exitcode.UsageError)
		}
	}

	validate := cfg.ValidateWithDSN
	if cfg.DryRun {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		log.Error().Err(err).Msg("invalid ingest options")
		os.Exit(exitcode.UsageError)
	}

	var pool *pgxpool.Pool
	if !cfg.DryRun {
		var err error
		pool, err = db.NewPool(ctx, cfg.DSN)
		if err != nil {
			log.Error().Err(err).Msg("database connection failed")
			os.Exit(exitcode.DBConnError)
		}
		defer pool.Close()
	}

	sum, err := ingest.Run(ctx, pool, log, &cfg)
	if err != nil {
		var perr *ingest.PipelineError
		if errors.As(err, &perr) {
			log.Error().Err(perr.Err).Str("phase", perr.Phase).Msg("ingest failed")
			if perr.Phase == "preflight" {
				os.Exit(exitcode.FileError)
			}
			os.Exit(exitcode.IngestError)
		}
		log.Error().Err(err).Msg("ingest failed")
		os.Exit(exitcode.IngestError)
	}

	printSummary(sum)
	return nil
}

func printSummary(sum *model.Summary) {
	verb := "Ingest"
	if sum.DryRun {
		verb = "Dry run"
	}
	fmt.Printf("%s complete (%s mode, %.1fs)\n", verb, sum.Mode, sum.DurationTotal.Seconds())
	fmt.Printf("  claims:  %d inserted, %d skipped, %d errored\n",
		sum.Claims.Inserted, sum.Claims.Skipped, sum.Claims.Errored)
	fmt.Printf("  details: %d inserted, %d skipped, %d errored\n",
		sum.Details.Inserted, sum.Details.Skipped, sum.Details.Errored)
	if len(sum.Errors) > 0 {
		fmt.Println("\nRows rejected:")
		for _, msg := range sum.Errors {
			fmt.Printf("  %s\n", msg)
		}
	}
}
