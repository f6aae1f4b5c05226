// Package llm defines the model capability used for QA generation: chat
// completions plus exact token counting, backed by a llama-server instance
// in production and by a scripted mock in tests.
package llm

import (
	"context"
	"fmt"
)

// ChatRequest is a single chat completion call.
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
}

// Client is the model backend.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (string, error)
	CountTokens(ctx context.Context, text string) (int, error)
	Close()
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
