package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimboard/internal/exitcode"
	"github.com/gyeh/claimboard/internal/logging"
	"github.com/gyeh/claimboard/internal/model"
	"github.com/gyeh/claimboard/internal/store"
)

var noteFlags struct {
	actor string
	text  string
}

var noteCmd = &cobra.Command{
	Use:   "note <claim-id>",
	Short: "Attach a note to a claim",
	Args:  cobra.ExactArgs(1),
	RunE:  runNote,
}

func init() {
	f := noteCmd.Flags()
	f.StringVar(&noteFlags.actor, "actor", "", "Username of the author")
	f.StringVar(&noteFlags.text, "text", "", "Note text (required)")
	rootCmd.AddCommand(noteCmd)
}

func runNote(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		log.Error().Str("arg", args[0]).Msg("claim id must be an integer")
		os.Exit(exitcode.UsageError)
	}

	pool := connect(ctx, log)
	defer pool.Close()

	n, err := store.New(pool).AddNote(ctx, id, noteFlags.actor, noteFlags.text)
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
			log.Error().Err(err).Msg("note insert failed")
			os.Exit(exitcode.QueryError)
		}
	}

	fmt.Printf("Note %d added to claim %d\n", n.ID, n.ClaimID)
	return nil
}
