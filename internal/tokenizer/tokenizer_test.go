package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tok := New()

	assert.Equal(t, []string{"one", "two", "three"}, tok.Tokenize("one two three"))
	assert.Equal(t, []string{"padded"}, tok.Tokenize("  padded\t\n"))
	assert.Empty(t, tok.Tokenize(""))
	assert.Empty(t, tok.Tokenize("   "))
}

func TestCount(t *testing.T) {
	tok := New()

	assert.Equal(t, 3, tok.Count("a b c"))
	assert.Equal(t, 0, tok.Count(""))
}

func TestJoin_RoundTrip(t *testing.T) {
	tok := New()

	tokens := tok.Tokenize("the   quick \n fox")
	assert.Equal(t, "the quick fox", tok.Join(tokens))
}
