package workload

import (
	"math"
	"math/rand"

	"github.com/llm-loadgen/llm-loadgen/internal/tokenizer"
)

// Query is one synthetic request: a prompt and its target generation length.
type Query struct {
	Prompt       string
	MaxNewTokens int
}

// Params controls the sampled distributions.
type Params struct {
	// Prompt token length ~ Normal(MeanPromptLength, PromptLengthVar *
	// MeanPromptLength), capped at MaxPromptLength.
	MeanPromptLength int
	PromptLengthVar  float64
	MaxPromptLength  int
	// Generation length ~ Normal(MeanMaxNewTokens, MaxNewTokensVar *
	// MeanMaxNewTokens).
	MeanMaxNewTokens int
	MaxNewTokensVar  float64
}

// Generator produces deterministic synthetic queries from a text corpus.
// The same seed and parameters always yield the same query sequence.
type Generator struct {
	words []string
	rng   *rand.Rand
}

// NewGenerator creates a Generator over the given corpus. An empty corpus
// falls back to the bundled sample text.
func NewGenerator(corpus string, tok *tokenizer.Tokenizer, seed int64) *Generator {
	if corpus == "" {
		corpus = sampleText
	}
	return &Generator{
		words: tok.Tokenize(corpus),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Queries samples n queries.
func (g *Generator) Queries(p Params, n int) []Query {
	out := make([]Query, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Query{
			Prompt:       g.prompt(p),
			MaxNewTokens: g.maxNewTokens(p),
		})
	}
	return out
}

// prompt slices a random window of the corpus whose token length follows the
// configured distribution.
func (g *Generator) prompt(p Params) string {
	length := g.sampleNormal(float64(p.MeanPromptLength), p.PromptLengthVar*float64(p.MeanPromptLength))
	if p.MaxPromptLength > 0 && length > p.MaxPromptLength {
		length = p.MaxPromptLength
	}
	if length > len(g.words) {
		length = len(g.words)
	}
	start := g.rng.Intn(len(g.words) - length + 1)
	window := g.words[start : start+length]

	var b []byte
	for i, w := range window {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, w...)
	}
	return string(b)
}

func (g *Generator) maxNewTokens(p Params) int {
	return g.sampleNormal(float64(p.MeanMaxNewTokens), p.MaxNewTokensVar*float64(p.MeanMaxNewTokens))
}

// sampleNormal draws from Normal(mean, stddev) rounded to an int, clamped to
// at least 1.
func (g *Generator) sampleNormal(mean, stddev float64) int {
	v := int(math.Round(g.rng.NormFloat64()*stddev + mean))
	if v < 1 {
		return 1
	}
	return v
}
