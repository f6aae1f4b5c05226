package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/genqa/internal/convert"
)

// NewConvertCommand creates the convert command, a one-shot document to
// markdown conversion printed to stdout.
func NewConvertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a document to markdown on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := convert.File(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
