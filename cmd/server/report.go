package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/hours-ledger/calendar"
	"github.com/warp/hours-ledger/i18n"
	"github.com/warp/hours-ledger/worklog"
)

var (
	reportOwner string
	reportMonth string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print a month summary and the leave balance",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the saved bulk plan to a month",
	Args:  cobra.NoArgs,
	RunE:  runApply,
}

func init() {
	for _, c := range []*cobra.Command{summaryCmd, applyCmd} {
		c.Flags().StringVar(&reportOwner, "owner", "", "Owner ID")
		c.Flags().StringVar(&reportMonth, "month", "", "Month as YYYY-MM (default: current month)")
		_ = c.MarkFlagRequired("owner")
	}
}

func parseMonthFlag() (calendar.YearMonth, error) {
	if reportMonth == "" {
		return calendar.CurrentMonth(), nil
	}
	ym, err := calendar.ParseYearMonth(reportMonth)
	if err != nil {
		return calendar.YearMonth{}, fmt.Errorf("--month: %w", err)
	}
	return ym, nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	month, err := parseMonthFlag()
	if err != nil {
		return err
	}
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	owner := worklog.OwnerID(reportOwner)

	entries, err := a.ledger.MonthEntries(ctx, owner, month)
	if err != nil {
		return err
	}
	summary, err := a.ledger.MonthSummary(ctx, owner, month)
	if err != nil {
		return err
	}
	report, err := a.ledger.LeaveBalance(ctx, owner, month)
	if err != nil {
		return err
	}

	printSummary(ctx, cmd.OutOrStdout(), a.translator, entries, summary, report)
	return nil
}

func printSummary(ctx context.Context, out io.Writer, tr *i18n.Translator, entries []worklog.DayEntry, s worklog.MonthSummary, r worklog.LeaveReport) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "%s\n\n", s.Month)
	for _, e := range entries {
		label := ""
		if e.LeaveType.Normalize() != worklog.LeaveNone {
			label = tr.LeaveLabel(ctx, e.LeaveType)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Date, e.Date.Weekday().String()[:3], worklog.FormatWorkRange(e), e.Hours.StringFixed(2), label)
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "%s\t%s\n", tr.T(ctx, "summary.required"), s.RequiredHours.StringFixed(2))
	fmt.Fprintf(tw, "%s\t%s\n", tr.T(ctx, "summary.actual"), s.ActualHours.StringFixed(2))
	if s.Remaining.IsNegative() {
		fmt.Fprintf(tw, "%s\t%s\n", tr.T(ctx, "summary.overtime"), s.Remaining.Neg().StringFixed(2))
	} else {
		fmt.Fprintf(tw, "%s\t%s\n", tr.T(ctx, "summary.remaining"), s.Remaining.StringFixed(2))
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "%s\t%s / %s\n", tr.LeaveLabel(ctx, worklog.LeaveAnnual), r.Balance.Remaining.StringFixed(2), r.Balance.Total.StringFixed(2))
	if r.Expired() {
		fmt.Fprintf(tw, "\t(expired %s)\n", r.Balance.Window.End)
	}
	fmt.Fprintf(tw, "%s\t%d\n", tr.LeaveLabel(ctx, worklog.LeaveFemale), r.FemaleUsed)
	tw.Flush()
}

func runApply(cmd *cobra.Command, args []string) error {
	month, err := parseMonthFlag()
	if err != nil {
		return err
	}
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	res, err := a.ledger.ApplyPlan(ctx, worklog.OwnerID(reportOwner), month)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, d := range res.Results {
		if d.Err != nil {
			fmt.Fprintf(out, "%s  FAILED  %v\n", d.Date, d.Err)
			continue
		}
		fmt.Fprintf(out, "%s  %-11s  %s\n", d.Date, worklog.FormatWorkRange(d.Entry), d.Entry.Hours.StringFixed(2))
	}

	data := map[string]any{"Written": res.Written(), "Failed": len(res.Failed())}
	if !res.OK() {
		fmt.Fprintln(out, a.translator.T(ctx, "plan.partial", data))
		return fmt.Errorf("%d write(s) failed", len(res.Failed()))
	}
	fmt.Fprintln(out, a.translator.T(ctx, "plan.applied", data))
	return nil
}
