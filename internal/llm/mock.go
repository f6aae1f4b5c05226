package llm

import (
	"context"
	"strings"
	"sync"
)

// MockReply is one scripted ChatCompletion outcome.
type MockReply struct {
	Content string
	Err     error
}

// Mock is an in-memory Client for tests. Replies are consumed in order and
// the final reply repeats once the script runs out; every chat request is
// recorded so tests can assert on prompts and temperatures.
type Mock struct {
	mu      sync.Mutex
	replies []MockReply
	calls   []ChatRequest
}

func NewMock(replies ...MockReply) *Mock {
	return &Mock{replies: replies}
}

func (m *Mock) ChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if len(m.replies) == 0 {
		return "[]", nil
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	if reply.Err != nil {
		return "", reply.Err
	}
	return reply.Content, nil
}

// CountTokens counts whitespace-separated words, which keeps chunk bounds
// predictable in tests.
func (m *Mock) CountTokens(ctx context.Context, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(strings.Fields(text)), nil
}

// Calls returns every recorded chat request in order.
func (m *Mock) Calls() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ChatRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) Close() {}
