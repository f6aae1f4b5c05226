// Package main provides the entry point for the genqa CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dgallion1/genqa/cmd/genqa/commands"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	rootCmd := &cobra.Command{
		Use:   "genqa",
		Short: "Generate question-answer training pairs from documents",
		Long: `genqa turns documents into question-answer training pairs.

It converts each input to markdown, splits the text into token-bounded
chunks, asks a llama-server model for QA pairs per chunk, and persists
progress after every chunk so an interrupted run resumes where it
stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewGenerateCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewConvertCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "genqa %s\n", version)
		},
	}
}
