package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	integrationapp "github.com/meschain/marketsync/internal/application/integration"
	"github.com/meschain/marketsync/internal/bootstrap"
	"github.com/meschain/marketsync/internal/domain/integration"
)

var (
	statsMarketplace string
	statsSince       time.Duration

	logsMarketplace string
	logsOutcome     string
	logsOperation   string
	logsEntityID    string
	logsJobID       string
	logsLimit       int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-marketplace sync statistics",
	Args:  cobra.NoArgs,
	RunE:  showStats,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print recent audit records, newest first",
	Args:  cobra.NoArgs,
	RunE:  showLogs,
}

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection <marketplace>",
	Short: "Check the credentials of a marketplace",
	Args:  cobra.ExactArgs(1),
	RunE:  testConnection,
}

func init() {
	rootCmd.AddCommand(statsCmd, logsCmd, testConnectionCmd)

	statsCmd.Flags().StringVarP(&statsMarketplace, "marketplace", "m", "", "Only this marketplace")
	statsCmd.Flags().DurationVar(&statsSince, "since", 24*time.Hour, "Report window")

	logsCmd.Flags().StringVarP(&logsMarketplace, "marketplace", "m", "", "Only this marketplace")
	logsCmd.Flags().StringVar(&logsOutcome, "outcome", "", "Only this outcome: success, failure, skipped, conflict, rejected")
	logsCmd.Flags().StringVar(&logsOperation, "operation", "", "Only this operation")
	logsCmd.Flags().StringVar(&logsEntityID, "entity", "", "Only this entity id")
	logsCmd.Flags().StringVar(&logsJobID, "job", "", "Only records of this job")
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 50, "Maximum number of records")
}

func optionalMarketplace(s string) (integration.MarketplaceCode, error) {
	if s == "" {
		return "", nil
	}
	return integration.ParseMarketplaceCode(s)
}

func showStats(cmd *cobra.Command, _ []string) error {
	marketplace, err := optionalMarketplace(statsMarketplace)
	if err != nil {
		return err
	}
	since := time.Now().Add(-statsSince)

	return withApp(cmd.Context(), func(app *bootstrap.App) error {
		stats, err := app.Reporting.GetSyncStats(cmd.Context(), integrationapp.SyncStatsFilter{
			Marketplace: marketplace,
			Since:       &since,
		})
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), stats, func(w io.Writer) error {
			return printStats(w, stats)
		})
	})
}

func printStats(w io.Writer, stats *integrationapp.SyncStatsResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "MARKETPLACE\tHALTED\tTOTAL\tSUCCESS\tFAILURE\tSKIPPED\tCONFLICT\tREJECTED\tRATE\tLAST SUCCESS\n")
	for _, m := range stats.Marketplaces {
		lastSuccess := "-"
		if m.LastSuccessAt != nil {
			lastSuccess = m.LastSuccessAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%t\t%d\t%d\t%d\t%d\t%d\t%d\t%.1f%%\t%s\n",
			m.DisplayName, m.Halted, m.Total, m.Success, m.Failure, m.Skipped, m.Conflict, m.Rejected,
			m.SuccessRate*100, lastSuccess)
	}
	return tw.Flush()
}

func showLogs(cmd *cobra.Command, _ []string) error {
	marketplace, err := optionalMarketplace(logsMarketplace)
	if err != nil {
		return err
	}
	filter := integrationapp.SyncLogFilter{
		Marketplace: marketplace,
		Outcome:     integration.AuditOutcome(logsOutcome),
		Operation:   logsOperation,
		EntityID:    logsEntityID,
		JobID:       logsJobID,
		Limit:       logsLimit,
	}

	return withApp(cmd.Context(), func(app *bootstrap.App) error {
		logs, err := app.Reporting.GetRecentLogs(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), logs, func(w io.Writer) error {
			return printLogs(w, logs)
		})
	})
}

func printLogs(w io.Writer, logs []integrationapp.SyncLogResponse) error {
	if len(logs) == 0 {
		_, err := fmt.Fprintln(w, "No audit records match")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TIME\tMARKETPLACE\tOPERATION\tENTITY\tOUTCOME\tDURATION\tMESSAGE\n")
	for _, l := range logs {
		message := l.Message
		if l.ErrorKind != "" {
			message = fmt.Sprintf("[%s] %s", l.ErrorKind, l.Message)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s:%s\t%s\t%dms\t%s\n",
			l.Timestamp.Local().Format(time.DateTime), l.Marketplace, l.Operation,
			l.EntityType, l.EntityID, l.Outcome, l.DurationMs, message)
	}
	return tw.Flush()
}

func testConnection(cmd *cobra.Command, args []string) error {
	marketplace, err := integration.ParseMarketplaceCode(args[0])
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(app *bootstrap.App) error {
		result, err := app.Reporting.TestConnection(cmd.Context(), marketplace)
		if err != nil {
			return err
		}
		if err := printResult(cmd.OutOrStdout(), result, func(w io.Writer) error {
			return printConnection(w, result)
		}); err != nil {
			return err
		}
		if !result.OK {
			return fmt.Errorf("connection to %s failed", marketplace)
		}
		return nil
	})
}

func printConnection(w io.Writer, r *integrationapp.ConnectionTestResponse) error {
	if !r.OK {
		_, err := fmt.Fprintf(w, "%s: FAILED after %dms [%s] %s\n", r.Marketplace, r.LatencyMs, r.ErrorKind, r.Message)
		return err
	}
	fmt.Fprintf(w, "%s: OK in %dms", r.Marketplace, r.LatencyMs)
	if r.SellerID != "" {
		fmt.Fprintf(w, " seller=%s", r.SellerID)
	}
	if r.ExpiresAt != nil {
		fmt.Fprintf(w, " token expires %s", r.ExpiresAt.Local().Format(time.DateTime))
	}
	_, err := fmt.Fprintln(w)
	return err
}
