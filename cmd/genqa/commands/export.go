package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/genqa/internal/config"
	"github.com/dgallion1/genqa/internal/export"
)

// ExportCommand holds flags for the export command.
type ExportCommand struct {
	logLevel string
}

// NewExportCommand creates the export command, which flattens generated
// checkpoints into one CSV file.
func NewExportCommand() *cobra.Command {
	ec := &ExportCommand{}

	cmd := &cobra.Command{
		Use:   "export <input dir> <output csv>",
		Short: "Flatten *_qa.json results into a CSV file",
		Args:  cobra.ExactArgs(2),
		RunE:  ec.run,
	}

	cmd.Flags().StringVar(&ec.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

func (ec *ExportCommand) run(cmd *cobra.Command, args []string) error {
	level, err := config.ParseLogLevel(ec.logLevel)
	if err != nil {
		return err
	}
	log := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	rows, err := export.FlattenDir(args[0], log)
	if err != nil {
		return err
	}

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := export.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}

	log.Info("csv written", "path", args[1], "rows", len(rows))
	fmt.Fprintf(cmd.OutOrStdout(), "CSV file has been created: %s\n", args[1])
	return nil
}
