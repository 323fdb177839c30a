package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/claimboard/internal/config"
	"github.com/gyeh/claimboard/internal/db"
	"github.com/gyeh/claimboard/internal/exitcode"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "claimctl",
	Short: "Claims-review dashboard loader and query tool",
	Long:  "Loads insurance claim CSV files into Postgres and drives the review dashboard's listing, flagging, and note operations.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "", "Log format: text or json (default text)")
}

// connect opens the pool or exits with the appropriate code.
func connect(ctx context.Context, log zerolog.Logger) *pgxpool.Pool {
	if cfg.DSN == "" {
		log.Error().Msg("--dsn or DATABASE_URL is required")
		os.Exit(exitcode.UsageError)
	}
	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	return pool
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
