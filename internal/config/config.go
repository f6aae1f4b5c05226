// Package config loads genqa settings from defaults, an optional YAML
// file, and GENQA_* environment variables, in that order. Command-line
// flags are applied on top by the CLI layer.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrMissingModelURL    = errors.New("model url must not be empty")
	ErrInvalidTimeout     = errors.New("request timeout must be positive")
	ErrInvalidChunkSize   = errors.New("chunk size must be positive")
	ErrInvalidContextSize = errors.New("context size must be at least one chunk")
	ErrInvalidQuestions   = errors.New("max questions must be positive")
	ErrInvalidRetries     = errors.New("max retries must be positive")
	ErrInvalidTemperature = errors.New("temperature must not be negative")
	ErrMissingOutputDir   = errors.New("output dir must not be empty")
	ErrInvalidLogLevel    = errors.New("unknown log level")
)

// Config holds every setting the generate pipeline consumes.
type Config struct {
	// Model server connection
	ModelURL       string        `mapstructure:"model_url"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Chunking and generation
	NCtx            int     `mapstructure:"n_ctx"`
	ChunkSize       int     `mapstructure:"chunk_size"`
	MaxQuestions    int     `mapstructure:"max_questions"`
	MaxRetries      int     `mapstructure:"max_retries"`
	Temperature     float64 `mapstructure:"temperature"`
	TemperatureStep float64 `mapstructure:"temperature_step"`

	// Output
	OutputDir string `mapstructure:"output_dir"`
	Overwrite bool   `mapstructure:"overwrite"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// Load builds a Config. When configFile is empty it searches for
// genqa.yaml in the working directory and treats a missing file as
// "use defaults"; an explicitly named file must exist.
func Load(configFile string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("genqa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GENQA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_url", "http://localhost:8080")
	v.SetDefault("model", "")
	v.SetDefault("request_timeout", "120s")

	v.SetDefault("n_ctx", 16384)
	v.SetDefault("chunk_size", 4096)
	v.SetDefault("max_questions", 3)
	v.SetDefault("max_retries", 3)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("temperature_step", 0.1)

	v.SetDefault("output_dir", "qa_result")
	v.SetDefault("overwrite", false)

	v.SetDefault("log_level", "info")
}

// Validate reports the first setting that cannot drive a run.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ModelURL) == "" {
		return ErrMissingModelURL
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.RequestTimeout)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.NCtx < c.ChunkSize {
		return fmt.Errorf("%w: n_ctx %d, chunk size %d", ErrInvalidContextSize, c.NCtx, c.ChunkSize)
	}
	if c.MaxQuestions < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuestions, c.MaxQuestions)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, c.MaxRetries)
	}
	if c.Temperature < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidTemperature, c.Temperature)
	}
	if c.TemperatureStep < 0 {
		return fmt.Errorf("%w: step %g", ErrInvalidTemperature, c.TemperatureStep)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrMissingOutputDir
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a level name such as "debug" or "warn" onto a
// slog level. Matching is case-insensitive.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}
	return level, nil
}
