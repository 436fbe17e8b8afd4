package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/multisend/api/batches"
	"github.com/kilianp07/multisend/core/model"
)

var quoteSize int

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Print the fee required for a batch of --size recipients",
	RunE:  runQuote,
}

func init() {
	quoteCmd.Flags().IntVarP(&quoteSize, "size", "n", 1, "number of recipients")
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	svc, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	defer closeService(svc)
	fee, err := svc.Dispatcher.Quote(quoteSize)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), batches.Quote{Size: quoteSize, Fee: model.FormatAmount(fee)})
}
