package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/compiletutor/internal/db"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded analyses",
}

func openHistoryFromConfig() (*db.DB, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.History.Disabled {
		return nil, nil, fmt.Errorf("history is disabled in the config")
	}
	return openHistory(cfg)
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openHistoryFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		limit, _ := cmd.Flags().GetInt("limit")
		analyses, err := d.ListAnalyses(limit)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd.OutOrStdout(), analyses)
		}
		if len(analyses) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No analyses recorded.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWHEN\tFILE\tOUTCOME\tBACKEND")
		for _, a := range analyses {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.CreatedAt, a.FilePath, a.OutcomeKind, a.Backend)
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one analysis and its conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[0])
		}
		d, cleanup, err := openHistoryFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		a, err := d.GetAnalysis(id)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("analysis %d not found", id)
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd.OutOrStdout(), a)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Analysis %d: %s (%s, %s)\n", a.ID, a.FilePath, a.Backend, a.CreatedAt)
		fmt.Fprintf(out, "Outcome: %s\n", a.OutcomeKind)
		if a.ExitCode != nil {
			fmt.Fprintf(out, "Exit code: %d\n", *a.ExitCode)
		}
		if a.OutcomeText != "" {
			fmt.Fprintf(out, "%s\n", a.OutcomeText)
		}
		for _, t := range a.Turns {
			fmt.Fprintf(out, "\n[%d] %s:\n%s\n", t.Seq, t.Role, t.Content)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete one analysis and its conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[0])
		}
		d, cleanup, err := openHistoryFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		ok, err := d.DeleteAnalysis(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("analysis %d not found", id)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted analysis %d.\n", id)
		return nil
	},
}

var historyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all recorded history (destructive!)",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to reset history without --yes")
		}
		d, cleanup, err := openHistoryFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := d.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History reset.")
		return nil
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize outcomes and backend usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := openHistoryFromConfig()
		if err != nil {
			return err
		}
		defer cleanup()

		since, _ := cmd.Flags().GetString("since")
		st, err := d.QueryStats(since)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			return writeJSON(cmd.OutOrStdout(), st)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Analyses: %d\n", st.Total)
		if st.Total == 0 {
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\nOUTCOME\tCOUNT\tPCT")
		for _, o := range st.Outcomes {
			fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", o.Kind, o.Count, o.Pct)
		}
		fmt.Fprintln(w, "\nBACKEND\tANALYSES\tFOLLOW-UPS\tAVG TURNS")
		for _, b := range st.Backends {
			fmt.Fprintf(w, "%s\t%d\t%d\t%.1f\n", b.Backend, b.Analyses, b.FollowUps, b.AvgTurns)
		}
		return w.Flush()
	},
}

func init() {
	historyStatsCmd.Flags().String("since", "", "Only count analyses on or after this date (e.g. 2026-01-31)")
	historyStatsCmd.Flags().String("format", "text", "Output format: text or json")
	historyListCmd.Flags().Int("limit", 20, "Maximum number of analyses (0 for all)")
	historyListCmd.Flags().String("format", "text", "Output format: text or json")
	historyShowCmd.Flags().String("format", "text", "Output format: text or json")
	historyResetCmd.Flags().Bool("yes", false, "Confirm the reset")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyResetCmd)
	historyCmd.AddCommand(historyStatsCmd)
}
