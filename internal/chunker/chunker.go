// Package chunker splits document text into bounded chunks along natural
// boundaries, using a caller-supplied token counter.
package chunker

import "strings"

// CountFunc measures the token length of a piece of text.
type CountFunc func(string) int

// Boundary granularities, coarsest first.
const (
	levelParagraph = iota
	levelLine
	levelSentence
	levelWord
)

// Split divides text into chunks of at most limit tokens as measured by
// count. Boundaries are tried coarsest first: paragraphs, then lines, then
// sentences, then single words. Every chunk fits the limit except a lone
// word that already exceeds it, which is emitted as-is so splitting always
// terminates. Chunks partition the text in order with no overlap; only
// whitespace at the split points is normalized. A nil count falls back to
// EstimateTokens.
func Split(text string, limit int, count CountFunc) []string {
	if limit < 1 {
		limit = 1
	}
	if count == nil {
		count = EstimateTokens
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return splitLevel(text, limit, count, levelParagraph)
}

func splitLevel(text string, limit int, count CountFunc, level int) []string {
	if count(text) <= limit {
		return []string{text}
	}

	units, sep := splitUnits(text, level)
	if level == levelWord {
		return packUnits(units, sep, limit, count, nil)
	}
	if len(units) <= 1 {
		// No boundary at this granularity; try the next finer one.
		return splitLevel(text, limit, count, level+1)
	}
	finer := func(unit string) []string {
		return splitLevel(unit, limit, count, level+1)
	}
	return packUnits(units, sep, limit, count, finer)
}

// packUnits greedily joins consecutive units into chunks, binary-searching
// the longest run that still fits the limit. A unit that does not fit on
// its own is handed to finer, or emitted alone when finer is nil.
func packUnits(units []string, sep string, limit int, count CountFunc, finer func(string) []string) []string {
	var chunks []string
	i := 0
	for i < len(units) {
		if count(units[i]) > limit {
			if finer != nil {
				chunks = append(chunks, finer(units[i])...)
			} else {
				chunks = append(chunks, units[i])
			}
			i++
			continue
		}

		// units[i] fits; find the largest j with units[i:j] still fitting.
		lo, hi := i+1, len(units)
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if count(strings.Join(units[i:mid], sep)) <= limit {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		chunks = append(chunks, strings.Join(units[i:lo], sep))
		i = lo
	}
	return chunks
}

func splitUnits(text string, level int) ([]string, string) {
	switch level {
	case levelParagraph:
		return trimNonEmpty(strings.Split(text, "\n\n")), "\n\n"
	case levelLine:
		return trimNonEmpty(strings.Split(text, "\n")), "\n"
	case levelSentence:
		return splitSentences(text), " "
	default:
		return strings.Fields(text), " "
	}
}

func trimNonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences does basic sentence splitting on terminal punctuation
// followed by a space.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
