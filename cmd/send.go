package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/multisend/api/batches"
	"github.com/kilianp07/multisend/core/batchfile"
	"github.com/kilianp07/multisend/core/model"
)

var batchPath string

// sendCmd publishes the batch notifications to the broker before exiting
// when mqtt is enabled.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Dispatch the batch described by --file against the configured ledger",
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&batchPath, "file", "f", "", "batch file (yaml or json)")
	_ = sendCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	doc, err := batchfile.Load(batchPath)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	caller, req, err := doc.Request()
	if err != nil {
		return err
	}
	svc, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeService(svc)

	var res *model.BatchResult
	ferr := svc.Deliver(func() {
		res, err = svc.Dispatcher.Dispatch(cmd.Context(), caller, req)
	})
	if ferr != nil {
		cmd.PrintErrf("notifications not delivered: %v\n", ferr)
	}
	if err != nil {
		if perr := printJSON(cmd.OutOrStdout(), batches.NewError(err)); perr != nil {
			return perr
		}
		return fmt.Errorf("dispatch: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), batches.NewResult(res))
}
