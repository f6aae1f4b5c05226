package qagen

import (
	"errors"
	"math/rand"
	"time"

	"github.com/dgallion1/genqa/internal/llm"
)

// MaxRetries is the default attempt budget per chunk.
const MaxRetries = 3

// IsRetryable checks if an error is a transient model failure worth backing
// off for. Malformed output is retried too, but without a backoff sleep.
func IsRetryable(err error) bool {
	var retryErr *llm.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}
