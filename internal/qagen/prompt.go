package qagen

import "fmt"

// SystemPrompt primes the model for QA pair generation.
const SystemPrompt = "You are a helpful assistant that generates question-answer pairs from given text."

const promptTemplate = `Generate a list of 1-%d question-answer pairs based on the following text. Adhere to these guidelines:
1. Focus on quality over quantity.
2. Phrase questions so they could be used as search queries to find the source document.
3. Include a verbatim list of supporting quotations from the text for each answer.
4. Ensure answers are relevant to the questions and use only information from the given text.

Text: %s

Respond in JSON format like this:
[
    {
        "question": "Question text here",
        "answer": "Answer text here",
        "supporting_quotes": ["Quote 1", "Quote 2", ...]
    },
    ...
]`

// BuildPrompt creates the user prompt asking for up to maxPairs QA pairs
// from the given chunk text.
func BuildPrompt(chunkText string, maxPairs int) string {
	if maxPairs < 1 {
		maxPairs = 1
	}
	return fmt.Sprintf(promptTemplate, maxPairs, chunkText)
}
