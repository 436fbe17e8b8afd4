package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/multisend/config"
	"github.com/kilianp07/multisend/core/dispatch/logging"
	"github.com/kilianp07/multisend/pkg/export"
)

var (
	exportFormat string
	exportSince  time.Duration
	exportStatus string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export batch log records as CSV or JSON",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: csv or json")
	exportCmd.Flags().DurationVar(&exportSince, "since", 0, "only include batches newer than this duration")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only include batches with this status")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	q := logging.LogQuery{Status: exportStatus}
	if exportSince > 0 {
		q.Start = time.Now().Add(-exportSince)
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return export.Write(cmd.OutOrStdout(), exportFormat, recs)
}
