// Package qagen turns chunk text into question-answer training pairs by
// prompting a model, validating its JSON output, and retrying failed
// attempts with a raised temperature.
package qagen

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/genqa/internal/llm"
)

// Config controls generation behavior.
type Config struct {
	MaxQuestions    int     // Upper bound of pairs requested per chunk.
	Temperature     float64 // Base sampling temperature for the first attempt.
	MaxRetries      int     // Attempt budget per chunk.
	TemperatureStep float64 // Added to the temperature after each failed attempt.
}

func (c Config) withDefaults() Config {
	if c.MaxQuestions < 1 {
		c.MaxQuestions = 3
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = MaxRetries
	}
	if c.TemperatureStep == 0 {
		c.TemperatureStep = 0.1
	}
	return c
}

// Generator produces QA pairs for chunks via the model client.
type Generator struct {
	client llm.Client
	cfg    Config
	log    *slog.Logger
}

func NewGenerator(client llm.Client, cfg Config, log *slog.Logger) *Generator {
	return &Generator{
		client: client,
		cfg:    cfg.withDefaults(),
		log:    log,
	}
}

// Generate produces QA pairs for one chunk. Each failed attempt raises the
// temperature by TemperatureStep before the next; a failure is a model call
// error, non-JSON output, or a schema violation. An empty pair list is a
// valid outcome, not a failure.
func (g *Generator) Generate(ctx context.Context, chunkText string) ([]QAPair, error) {
	prompt := BuildPrompt(chunkText, g.cfg.MaxQuestions)
	temperature := g.cfg.Temperature

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		raw, err := g.client.ChatCompletion(ctx, llm.ChatRequest{
			System:      SystemPrompt,
			User:        prompt,
			Temperature: temperature,
		})
		if err == nil {
			pairs, parseErr := ParsePairs(raw)
			if parseErr == nil {
				return pairs, nil
			}
			err = parseErr
		}

		lastErr = err
		g.log.Warn("generation attempt failed", "attempt", attempt, "temperature", temperature, "error", err)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == g.cfg.MaxRetries {
			break
		}

		temperature += g.cfg.TemperatureStep
		if IsRetryable(err) {
			select {
			case <-time.After(Backoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("generate qa pairs after %d attempts: %w", g.cfg.MaxRetries, lastErr)
}

// ProcessChunk runs Generate and folds the outcome into a ChunkResult. It
// never fails: an exhausted generation is recorded on the result so the
// caller can persist it and move on.
func (g *Generator) ProcessChunk(ctx context.Context, chunkText string) ChunkResult {
	pairs, err := g.Generate(ctx, chunkText)
	if err != nil {
		g.log.Error("chunk generation failed", "error", err)
		return ChunkResult{
			ChunkText: chunkText,
			QAPairs:   []QAPair{},
			Error:     err.Error(),
		}
	}
	return ChunkResult{
		ChunkText: chunkText,
		QAPairs:   pairs,
	}
}
