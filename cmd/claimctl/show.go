package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimboard/internal/exitcode"
	"github.com/gyeh/claimboard/internal/logging"
	"github.com/gyeh/claimboard/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show <claim-id>",
	Short: "Show one claim with its detail and notes",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		log.Error().Str("arg", args[0]).Msg("claim id must be an integer")
		os.Exit(exitcode.UsageError)
	}

	pool := connect(ctx, log)
	defer pool.Close()

	b, err := store.New(pool).GetClaim(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Error().Int64("claim_id", id).Msg("claim not found")
			os.Exit(exitcode.QueryError)
		}
		log.Error().Err(err).Msg("claim lookup failed")
		os.Exit(exitcode.QueryError)
	}

	c := b.Claim
	fmt.Printf("Claim %d  %s\n", c.ID, c.Status)
	fmt.Printf("  patient:       %s\n", c.PatientName)
	fmt.Printf("  insurer:       %s\n", c.InsurerName)
	fmt.Printf("  billed:        %s\n", c.BilledAmount().StringFixed(2))
	fmt.Printf("  paid:          %s\n", c.PaidAmount().StringFixed(2))
	fmt.Printf("  underpayment:  %s\n", c.Underpayment().StringFixed(2))
	if c.DischargeDate != nil {
		fmt.Printf("  discharged:    %s\n", c.DischargeDate.Format("2006-01-02"))
	}
	if c.IsFlagged {
		fmt.Printf("  flagged:       by %s at %s\n", *c.FlaggedBy, c.FlaggedAt.Format(time.RFC3339))
	}
	if b.Detail != nil {
		fmt.Printf("  cpt codes:     %s\n", strings.Join(b.Detail.CPTCodes, ", "))
		if b.Detail.DenialReason != nil {
			fmt.Printf("  denial reason: %s\n", *b.Detail.DenialReason)
		}
	}
	if len(b.Notes) > 0 {
		fmt.Println("\nNotes:")
		for _, n := range b.Notes {
			author := "unknown"
			if n.Author != nil {
				author = *n.Author
			}
			fmt.Printf("  [%s] %s: %s\n", n.CreatedAt.Format(time.RFC3339), author, n.Body)
		}
	}
	return nil
}
