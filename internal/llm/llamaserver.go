package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LlamaServer calls a llama.cpp llama-server over its HTTP API. Chat goes
// through the OpenAI-compatible /v1/chat/completions endpoint; token counts
// come from the server's own tokenizer via /tokenize.
type LlamaServer struct {
	baseURL    string
	model      string
	httpClient *http.Client
	stats      *Stats
}

func NewLlamaServer(baseURL, model string, timeout time.Duration) *LlamaServer {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LlamaServer{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		stats: NewStats(time.Hour),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ChatCompletion sends one chat turn and returns the raw assistant text.
func (c *LlamaServer) ChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(chatCompletionRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    req.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	respBody, err := c.post(ctx, "/v1/chat/completions", body)
	c.stats.Record(time.Since(start).Milliseconds())
	if err != nil {
		return "", err
	}

	var apiResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("llama-server error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from llama-server")
	}

	return apiResp.Choices[0].Message.Content, nil
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

// CountTokens tokenizes text with the model's real tokenizer.
func (c *LlamaServer) CountTokens(ctx context.Context, text string) (int, error) {
	body, err := json.Marshal(tokenizeRequest{Content: text})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.post(ctx, "/tokenize", body)
	if err != nil {
		return 0, err
	}

	var apiResp tokenizeResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return len(apiResp.Tokens), nil
}

func (c *LlamaServer) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llama-server %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llama-server %s status %d: %s", path, resp.StatusCode, truncate(string(respBody), 200))
	}

	return respBody, nil
}

// Stats returns a snapshot of recent chat call latencies.
func (c *LlamaServer) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Close releases resources.
func (c *LlamaServer) Close() {
	c.httpClient.CloseIdleConnections()
}
