package tokenizer

import "strings"

// Tokenizer provides word-level tokenization for prompt sizing and for
// trimming echoed prompts out of backend output. It stands in for the
// model tokenizer, which lives outside this tool.
type Tokenizer struct{}

// New creates a Tokenizer.
func New() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize splits text into whitespace-delimited tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	return strings.Fields(text)
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	return len(t.Tokenize(text))
}

// Join reassembles tokens into text.
func (t *Tokenizer) Join(tokens []string) string {
	return strings.Join(tokens, " ")
}
