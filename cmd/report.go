package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/multisend/config"
	"github.com/kilianp07/multisend/core/dispatch/logging"
	"github.com/kilianp07/multisend/core/report"
)

var (
	reportSince  time.Duration
	reportCaller string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the batch log",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().DurationVar(&reportSince, "since", 0, "only include batches newer than this duration")
	reportCmd.Flags().StringVar(&reportCaller, "caller", "", "only include batches sent by this address")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := logging.NewStore(cfg.Logging)
	if err != nil {
		return fmt.Errorf("batch log: %w", err)
	}
	if store == nil {
		return fmt.Errorf("batch log is disabled")
	}
	defer store.Close()

	q := logging.LogQuery{Caller: reportCaller}
	if reportSince > 0 {
		q.Start = time.Now().Add(-reportSince)
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	sum, err := report.Summarize(recs)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), sum)
}
