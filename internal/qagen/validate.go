package qagen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// QAPair is one generated question-answer pair with its supporting quotes.
type QAPair struct {
	Question         string   `json:"question"`
	Answer           string   `json:"answer"`
	SupportingQuotes []string `json:"supporting_quotes"`
}

// ChunkResult records the outcome for one chunk: the chunk text, the pairs
// generated from it, and the final error message when generation failed.
type ChunkResult struct {
	ChunkText string   `json:"chunk_text"`
	QAPairs   []QAPair `json:"qa_pairs"`
	Error     string   `json:"error,omitempty"`
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// ParsePairs decodes a model response into validated QA pairs. The response
// may be wrapped in a markdown code fence. An empty array is valid output;
// a pair with a blank question or answer is not.
func ParsePairs(raw string) ([]QAPair, error) {
	text := stripCodeBlock(raw)

	var pairs []QAPair
	if err := json.Unmarshal([]byte(text), &pairs); err != nil {
		return nil, fmt.Errorf("parse qa json: %w (raw: %s)", err, truncate(text, 200))
	}

	for i := range pairs {
		if strings.TrimSpace(pairs[i].Question) == "" {
			return nil, fmt.Errorf("pair %d: empty question", i)
		}
		if strings.TrimSpace(pairs[i].Answer) == "" {
			return nil, fmt.Errorf("pair %d: empty answer", i)
		}
		if pairs[i].SupportingQuotes == nil {
			pairs[i].SupportingQuotes = []string{}
		}
	}

	if pairs == nil {
		pairs = []QAPair{}
	}
	return pairs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
