package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-loadgen/llm-loadgen/internal/tokenizer"
)

func testParams() Params {
	return Params{
		MeanPromptLength: 16,
		PromptLengthVar:  0.3,
		MaxPromptLength:  32,
		MeanMaxNewTokens: 24,
		MaxNewTokensVar:  0.3,
	}
}

func TestGenerator_SameSeedSameQueries(t *testing.T) {
	tok := tokenizer.New()

	a := NewGenerator("", tok, 42).Queries(testParams(), 10)
	b := NewGenerator("", tok, 42).Queries(testParams(), 10)
	assert.Equal(t, a, b)

	c := NewGenerator("", tok, 7).Queries(testParams(), 10)
	assert.NotEqual(t, a, c)
}

func TestGenerator_PromptLengthCapped(t *testing.T) {
	tok := tokenizer.New()
	p := Params{
		MeanPromptLength: 100,
		PromptLengthVar:  2.0, // wide spread to force cap hits
		MaxPromptLength:  20,
		MeanMaxNewTokens: 8,
	}

	gen := NewGenerator("", tok, 1)
	for _, q := range gen.Queries(p, 50) {
		n := tok.Count(q.Prompt)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 20)
	}
}

func TestGenerator_MaxNewTokensAtLeastOne(t *testing.T) {
	tok := tokenizer.New()
	p := Params{
		MeanPromptLength: 4,
		MeanMaxNewTokens: 1,
		MaxNewTokensVar:  5.0, // spread wide enough to sample below zero
	}

	gen := NewGenerator("", tok, 3)
	for _, q := range gen.Queries(p, 100) {
		assert.GreaterOrEqual(t, q.MaxNewTokens, 1)
	}
}

func TestGenerator_PromptsComeFromCorpus(t *testing.T) {
	tok := tokenizer.New()
	corpus := "alpha beta gamma delta epsilon zeta"
	p := Params{
		MeanPromptLength: 2,
		MaxPromptLength:  3,
		MeanMaxNewTokens: 8,
	}

	corpusWords := map[string]bool{}
	for _, w := range tok.Tokenize(corpus) {
		corpusWords[w] = true
	}

	gen := NewGenerator(corpus, tok, 42)
	for _, q := range gen.Queries(p, 20) {
		require.NotEmpty(t, q.Prompt)
		for _, w := range tok.Tokenize(q.Prompt) {
			assert.True(t, corpusWords[w], "unexpected word %q", w)
		}
	}
}

func TestGenerator_PromptLongerThanCorpusClamped(t *testing.T) {
	tok := tokenizer.New()
	corpus := "just three words"
	p := Params{
		MeanPromptLength: 50,
		MeanMaxNewTokens: 8,
	}

	gen := NewGenerator(corpus, tok, 42)
	q := gen.Queries(p, 1)[0]
	assert.Equal(t, "just three words", q.Prompt)
}

func TestGenerator_EmptyCorpusUsesBundledText(t *testing.T) {
	tok := tokenizer.New()
	gen := NewGenerator("", tok, 42)

	q := gen.Queries(testParams(), 1)[0]
	assert.NotEmpty(t, q.Prompt)
}
