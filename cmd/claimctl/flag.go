package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimboard/internal/exitcode"
	"github.com/gyeh/claimboard/internal/logging"
	"github.com/gyeh/claimboard/internal/model"
	"github.com/gyeh/claimboard/internal/store"
)

var flagActor string

var flagCmd = &cobra.Command{
	Use:   "flag <claim-id>",
	Short: "Toggle the review flag on a claim",
	Long: "Flags an unflagged claim for review, recording who flagged it and when. " +
		"Running it again on a flagged claim clears the flag.",
	Args: cobra.ExactArgs(1),
	RunE: runFlag,
}

func init() {
	flagCmd.Flags().StringVar(&flagActor, "actor", "", "Username of the reviewer (required)")
	rootCmd.AddCommand(flagCmd)
}

func runFlag(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		log.Error().Str("arg", args[0]).Msg("claim id must be an integer")
		os.Exit(exitcode.UsageError)
	}

	pool := connect(ctx, log)
	defer pool.Close()

	claim, err := store.New(pool).ToggleFlag(ctx, id, flagActor)
	if err != nil {
		var verr *model.ValidationError
		switch {
		case errors.As(err, &verr):
			log.Error().Msg(verr.Msg)
			os.Exit(exitcode.UsageError)
		case errors.Is(err, store.ErrNotFound):
			log.Error().Int64("claim_id", id).Msg("claim not found")
			os.Exit(exitcode.QueryError)
		default:
			log.Error().Err(err).Msg("flag toggle failed")
			os.Exit(exitcode.QueryError)
		}
	}

	if claim.IsFlagged {
		fmt.Printf("Claim %d flagged by %s at %s\n",
			claim.ID, *claim.FlaggedBy, claim.FlaggedAt.Format(time.RFC3339))
	} else {
		fmt.Printf("Claim %d unflagged\n", claim.ID)
	}
	return nil
}
