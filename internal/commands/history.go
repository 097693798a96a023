package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fundsync-dev/fundsync/internal/history"
	"github.com/fundsync-dev/fundsync/internal/model"
)

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var asCSV bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded payment events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.drain()

			events := a.store.Snapshot().Events
			if limit > 0 && limit < len(events) {
				events = events[:limit]
			}
			if asCSV {
				return history.WriteCSV(cmd.OutOrStdout(), events)
			}
			return printHistory(cmd.OutOrStdout(), events)
		},
	}

	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of a table")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many events (0 for all)")
	cmd.AddCommand(newHistoryClearCommand(opts))

	return cmd
}

func printHistory(out io.Writer, events []model.PaymentEvent) error {
	if len(events) == 0 {
		fmt.Fprintln(out, "No payment events recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tAMOUNT\tSENDER\tSTATUS\tDETAIL")
	for _, ev := range events {
		status, detail := "ok", ""
		if ev.DonationID != nil {
			detail = "donation " + *ev.DonationID
		}
		if !ev.Success {
			status = "failed"
			if ev.ErrorMessage != nil {
				detail = *ev.ErrorMessage
			}
		}
		when := time.UnixMilli(ev.Timestamp).Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(tw, "%s\t₹%s\t%s\t%s\t%s\n", when, ev.Amount, ev.Sender, status, detail)
	}
	return tw.Flush()
}

func newHistoryClearCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.drain()

			n := a.store.Len()
			if err := a.store.Clear(); err != nil {
				return fmt.Errorf("clearing history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d events\n", n)
			return nil
		},
	}
}

func newAddCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <amount> [sender...]",
		Short: "Record a payment by hand without forwarding it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}

			a, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.drain()

			ev := a.pipeline.AddManual(amount, strings.Join(args[1:], " "))
			fmt.Fprintln(cmd.OutOrStdout(), describeEvent(ev))
			return nil
		},
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "₹")
	amount, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, errors.New("amount must be positive")
	}
	return amount, nil
}
