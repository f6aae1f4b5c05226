package chunker

import (
	"reflect"
	"strings"
	"testing"
)

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func charCount(s string) int {
	return len(s)
}

func TestSplit_TextWithinLimitIsOneChunk(t *testing.T) {
	text := "a small piece of text"
	chunks := Split(text, 10, wordCount)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("expected chunk %q, got %q", text, chunks[0])
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	para := strings.TrimSpace(strings.Repeat("word ", 10))
	text := para + "\n\n" + para + "\n\n" + para

	chunks := Split(text, 20, wordCount)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != para+"\n\n"+para {
		t.Errorf("expected first chunk to join two paragraphs, got %q", chunks[0])
	}
	if chunks[1] != para {
		t.Errorf("expected last chunk to be the final paragraph, got %q", chunks[1])
	}
}

func TestSplit_FallsBackToLineBoundaries(t *testing.T) {
	line := strings.TrimSpace(strings.Repeat("word ", 5))
	text := line + "\n" + line + "\n" + line

	chunks := Split(text, 10, wordCount)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != line+"\n"+line {
		t.Errorf("expected first chunk to join two lines, got %q", chunks[0])
	}
}

func TestSplit_FallsBackToSentenceBoundaries(t *testing.T) {
	text := "alpha beta gamma delta. epsilon zeta eta theta. iota kappa lambda mu."

	chunks := Split(text, 8, wordCount)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != "alpha beta gamma delta. epsilon zeta eta theta." {
		t.Errorf("unexpected first chunk %q", chunks[0])
	}
	if chunks[1] != "iota kappa lambda mu." {
		t.Errorf("unexpected second chunk %q", chunks[1])
	}
}

func TestSplit_EveryChunkWithinLimit(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)

	limit := 12
	chunks := Split(text, limit, wordCount)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := wordCount(c); n > limit {
			t.Errorf("chunk %d: %d words exceeds limit %d", i, n, limit)
		}
	}
}

func TestSplit_OversizedWordEmittedAlone(t *testing.T) {
	huge := strings.Repeat("x", 50)
	text := "a bb " + huge + " dd e"

	chunks := Split(text, 10, charCount)

	want := []string{"a bb", huge, "dd e"}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("expected %q, got %q", want, chunks)
	}
}

func TestSplit_SingleOversizedWordTerminates(t *testing.T) {
	huge := strings.Repeat("y", 100)

	chunks := Split(huge, 5, charCount)

	if len(chunks) != 1 {
		t.Fatalf("expected the oversized word alone, got %d chunks", len(chunks))
	}
	if chunks[0] != huge {
		t.Errorf("expected chunk to be the word itself, got %q", chunks[0])
	}
}

func TestSplit_ReconstructsContent(t *testing.T) {
	text := "First paragraph has some words.\n\nSecond paragraph follows here!\nIt spans two lines.\n\nThird one? Yes. With several short sentences in it."

	chunks := Split(text, 6, wordCount)

	got := strings.Fields(strings.Join(chunks, " "))
	want := strings.Fields(text)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("content mismatch:\nwant %q\ngot  %q", want, got)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Some sentence here. Another one follows. ", 30)

	first := Split(text, 15, wordCount)
	second := Split(text, 15, wordCount)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output across runs:\nfirst  %q\nsecond %q", first, second)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	if chunks := Split("", 10, wordCount); len(chunks) != 0 {
		t.Errorf("expected no chunks for empty input, got %q", chunks)
	}
	if chunks := Split("  \n\n \t ", 10, wordCount); len(chunks) != 0 {
		t.Errorf("expected no chunks for whitespace input, got %q", chunks)
	}
}

func TestSplit_LimitClampedToOne(t *testing.T) {
	chunks := Split("one two three", 0, wordCount)

	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("expected %q, got %q", want, chunks)
	}
}

func TestSplit_NilCountFallsBackToEstimate(t *testing.T) {
	text := strings.Repeat("word ", 500)

	chunks := Split(text, 100, nil)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks with estimator fallback, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := EstimateTokens(c); n > 100 {
			t.Errorf("chunk %d: estimated %d tokens exceeds limit", i, n)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	if n := EstimateTokens(""); n != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", n)
	}
	if n := EstimateTokens("word"); n != 1 {
		t.Errorf("expected 1 token for single word, got %d", n)
	}
	if n := EstimateTokens(strings.Repeat("word ", 100)); n != 133 {
		t.Errorf("expected 133 tokens for 100 words, got %d", n)
	}
}
