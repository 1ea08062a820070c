package main

import (
	"bufio"
	"fmt"
	"strconv"

	"PayLedger/internal/ingestion"
	"PayLedger/internal/testutil"

	"github.com/spf13/cobra"
)

func newGenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen <num_clients>",
		Short: "Write a generated workload CSV to stdout",
		Long: fmt.Sprintf(`gen writes %d records per client. Odd clients end with an open dispute,
even clients end locked after a chargeback.`, testutil.GenRecordsPerClient),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("num_clients: %w", err)
			}
			records, err := testutil.GenerateClients(n)
			if err != nil {
				return err
			}

			out := bufio.NewWriterSize(cmd.OutOrStdout(), 1<<16)
			if err := ingestion.WriteCSVRecords(out, records); err != nil {
				return fmt.Errorf("write records: %w", err)
			}
			return out.Flush()
		},
	}
}
