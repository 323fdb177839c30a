package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gyeh/claimboard/internal/exitcode"
	"github.com/gyeh/claimboard/internal/logging"
	"github.com/gyeh/claimboard/internal/model"
	"github.com/gyeh/claimboard/internal/query"
	"github.com/gyeh/claimboard/internal/store"
)

var listFlags struct {
	search  string
	status  string
	flagged bool
	sort    string
	page    int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List claims with optional filters",
	RunE:  runList,
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listFlags.search, "search", "", "Case-insensitive match on patient or insurer name")
	f.StringVar(&listFlags.status, "status", "", "Filter by status: PAID, DENIED, or UNDER REVIEW")
	f.BoolVar(&listFlags.flagged, "flagged", false, "Show only flagged claims")
	f.StringVar(&listFlags.sort, "sort", "", "Sort field (id, patient_name, billed_amount, paid_amount, status, insurer_name, discharge_date); prefix with '-' for descending")
	f.IntVar(&listFlags.page, "page", 1, "Page number (50 claims per page)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	ctx := context.Background()

	pool := connect(ctx, log)
	defer pool.Close()

	page, err := store.New(pool).QueryClaims(ctx, query.Params{
		Search:      listFlags.search,
		Status:      listFlags.status,
		FlaggedOnly: listFlags.flagged,
		Sort:        listFlags.sort,
		Page:        listFlags.page,
	})
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			log.Error().Msg(verr.Msg)
			os.Exit(exitcode.UsageError)
		}
		log.Error().Err(err).Msg("claim query failed")
		os.Exit(exitcode.QueryError)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATIENT\tBILLED\tPAID\tSTATUS\tINSURER\tDISCHARGED\tFLAGGED\tCPT CODES")
	for _, c := range page.Claims {
		discharged := ""
		if c.Claim.DischargeDate != nil {
			discharged = c.Claim.DischargeDate.Format("2006-01-02")
		}
		flagged := ""
		if c.Claim.IsFlagged {
			flagged = "yes"
		}
		codes := ""
		if c.Detail != nil {
			codes = strings.Join(c.Detail.CPTCodes, ",")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Claim.ID, c.Claim.PatientName,
			c.Claim.BilledAmount().StringFixed(2), c.Claim.PaidAmount().StringFixed(2),
			c.Claim.Status, c.Claim.InsurerName, discharged, flagged, codes)
	}
	w.Flush()

	fmt.Printf("\n%d of %d claims", len(page.Claims), page.Total)
	if page.HasNext {
		fmt.Printf(", more on --page %d", listFlags.page+1)
	}
	fmt.Println()
	return nil
}
