package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/challan-cli/internal/records"
)

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template <file>",
		Short: "Writes an empty record workbook with every column",
		Long:  "Writes an empty .xlsx or .csv record file with the input, amount and outcome columns. An existing file is never overwritten.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := records.WriteTemplate(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Record template written to %s\n", args[0])
			return nil
		},
	}
}
