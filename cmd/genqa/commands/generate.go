// Package commands implements the genqa CLI command handlers.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dgallion1/genqa/internal/config"
	"github.com/dgallion1/genqa/internal/llm"
	"github.com/dgallion1/genqa/internal/pipeline"
)

// GenerateCommand holds flags for the generate command.
type GenerateCommand struct {
	configFile string

	outputDir    string
	temperature  float64
	nCtx         int
	chunkSize    int
	maxQuestions int
	maxRetries   int
	overwrite    bool
	modelURL     string
	model        string
	timeout      time.Duration
	logLevel     string
	silent       bool
}

// NewGenerateCommand creates the generate command, the core pipeline.
func NewGenerateCommand() *cobra.Command {
	gc := &GenerateCommand{}

	cmd := &cobra.Command{
		Use:   "generate [flags] <files...>",
		Short: "Generate QA pairs for one or more documents",
		Long: `Generate converts each input document to markdown, splits it into
token-bounded chunks, and asks the model for question-answer pairs per
chunk. Results land in <output-dir>/<stem>_qa.json after every chunk,
so rerunning the command resumes unfinished documents.`,
		Args: cobra.MinimumNArgs(1),
		RunE: gc.run,
	}

	cmd.Flags().StringVar(&gc.configFile, "config", "", "Config file (default: genqa.yaml in the working directory)")
	cmd.Flags().StringVarP(&gc.outputDir, "output-dir", "o", "qa_result", "Directory for *_qa.json results")
	cmd.Flags().Float64Var(&gc.temperature, "temperature", 0.0, "Base sampling temperature")
	cmd.Flags().IntVar(&gc.nCtx, "n-ctx", 16384, "Model context length in tokens")
	cmd.Flags().IntVar(&gc.chunkSize, "chunk-size", 4096, "Chunk size limit in tokens")
	cmd.Flags().IntVar(&gc.maxQuestions, "max-questions", 3, "Maximum QA pairs per chunk")
	cmd.Flags().IntVar(&gc.maxRetries, "max-retries", 3, "Generation attempts per chunk")
	cmd.Flags().BoolVar(&gc.overwrite, "overwrite", false, "Discard existing results and start over")
	cmd.Flags().StringVar(&gc.modelURL, "model-url", "http://localhost:8080", "llama-server base URL")
	cmd.Flags().StringVar(&gc.model, "model", "", "Model name sent with each request")
	cmd.Flags().DurationVar(&gc.timeout, "timeout", 120*time.Second, "Per-request timeout")
	cmd.Flags().StringVar(&gc.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&gc.silent, "silent", false, "Disable the progress display")

	return cmd
}

func (gc *GenerateCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := gc.loadConfig(cmd)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})).
		With("run_id", uuid.NewString())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	client := llm.NewLlamaServer(cfg.ModelURL, cfg.Model, cfg.RequestTimeout)
	defer client.Close()

	var hooks pipeline.ProgressHooks
	if !gc.silent {
		display := newProgressDisplay(cmd.ErrOrStderr())
		defer display.Stop()
		hooks = display.Hooks()
	}

	log.Info("starting batch", "files", len(args), "output_dir", cfg.OutputDir, "model_url", cfg.ModelURL)
	batch := pipeline.NewRunner(cfg, client, log, hooks).Run(ctx, args)

	stats := client.Stats()
	log.Info("model call stats", "calls", stats.Count, "avg_ms", stats.AvgMs, "p95_ms", stats.P95Ms)

	if n := batch.Failed() + batch.Aborted(); n > 0 {
		return fmt.Errorf("%d of %d documents did not complete", n, len(batch.Files))
	}
	return nil
}

// loadConfig resolves settings in ascending priority: defaults, config
// file, GENQA_* environment, then flags given on the command line.
func (gc *GenerateCommand) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(gc.configFile)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = gc.outputDir
	}
	if flags.Changed("temperature") {
		cfg.Temperature = gc.temperature
	}
	if flags.Changed("n-ctx") {
		cfg.NCtx = gc.nCtx
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = gc.chunkSize
	}
	if flags.Changed("max-questions") {
		cfg.MaxQuestions = gc.maxQuestions
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = gc.maxRetries
	}
	if flags.Changed("overwrite") {
		cfg.Overwrite = gc.overwrite
	}
	if flags.Changed("model-url") {
		cfg.ModelURL = gc.modelURL
	}
	if flags.Changed("model") {
		cfg.Model = gc.model
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = gc.timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = gc.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
