package chunker

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"meeting-insights-go/internal/config"
)

// wordCounter charges one token per word, which keeps budgets easy to reason about.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("We will launch in March. Dr. Smith will attend! Is J. Doe ready? Yes.", "en")
	assert.Equal(t, []string{
		"We will launch in March.",
		"Dr. Smith will attend!",
		"Is J. Doe ready?",
		"Yes.",
	}, got)
}

func TestSplitSentencesCapitalLetterEndingSentence(t *testing.T) {
	got := SplitSentences("We picked option A. Then we left. Plan B. Is that next? Ask J. R. Tolkien.", "en")
	assert.Equal(t, []string{
		"We picked option A.",
		"Then we left.",
		"Plan B.",
		"Is that next?",
		"Ask J. R. Tolkien.",
	}, got)
}

func TestSplitSentencesLanguageAbbreviations(t *testing.T) {
	got := SplitSentences("Wir treffen Hr. Müller morgen. Danach z.B. Kaffee.", "de-DE")
	assert.Equal(t, []string{"Wir treffen Hr. Müller morgen.", "Danach z.B. Kaffee."}, got)

	assert.Empty(t, SplitSentences("   ", "en"))
}

func TestChunkFitsInSingleChunk(t *testing.T) {
	c := New(config.Chunker{MaxTokens: 1500, CharsPerToken: 4}, nil)
	text := "We will launch in March. We will launch in March. The team agreed."
	chunks := c.Chunk(text, "en")
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Index)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, (len(text)+3)/4, chunks[0].ApproxTokens)
}

func TestChunkRespectsBudget(t *testing.T) {
	c := New(config.Chunker{MaxTokens: 10}, wordCounter{})
	var sentences []string
	for i := 0; i < 40; i++ {
		sentences = append(sentences, "Word "+strings.Repeat("word ", i%4)+"end.")
	}
	text := strings.Join(sentences, " ")

	chunks := c.Chunk(text, "en")
	require.NotEmpty(t, chunks)
	var rebuilt []string
	for i, ch := range chunks {
		assert.Equal(t, i+1, ch.Index)
		assert.NotEmpty(t, ch.Text)
		assert.LessOrEqual(t, ch.ApproxTokens, 10)
		assert.Equal(t, wordCounter{}.Count(ch.Text), ch.ApproxTokens)
		rebuilt = append(rebuilt, ch.Text)
	}
	// nothing lost, order kept
	assert.Equal(t, text, strings.Join(rebuilt, " "))
}

func TestChunkOverBudgetSentenceStandsAlone(t *testing.T) {
	c := New(config.Chunker{MaxTokens: 5}, wordCounter{})
	long := "This sentence has far more than five words in it."
	chunks := c.Chunk("Short one. "+long+" Tail here.", "en")
	require.Len(t, chunks, 3)
	assert.Equal(t, "Short one.", chunks[0].Text)
	assert.Equal(t, long, chunks[1].Text)
	assert.Greater(t, chunks[1].ApproxTokens, 5)
	assert.Equal(t, "Tail here.", chunks[2].Text)
}

func TestChunkEmpty(t *testing.T) {
	c := New(config.Chunker{MaxTokens: 100, CharsPerToken: 4}, nil)
	assert.Empty(t, c.Chunk("", "en"))
}

func TestApproxCounter(t *testing.T) {
	assert.Equal(t, 0, ApproxCounter{CharsPerToken: 4}.Count(""))
	assert.Equal(t, 1, ApproxCounter{CharsPerToken: 4}.Count("abc"))
	assert.Equal(t, 2, ApproxCounter{CharsPerToken: 4}.Count("abcde"))
	// runes, not bytes
	assert.Equal(t, 1, ApproxCounter{CharsPerToken: 4}.Count("äöüß"))
	assert.Equal(t, 2, ApproxCounter{}.Count("12345678"))
}

func TestNewCounter(t *testing.T) {
	c, err := NewCounter(config.Chunker{Tokenizer: "approx", CharsPerToken: 3})
	require.NoError(t, err)
	assert.Equal(t, ApproxCounter{CharsPerToken: 3}, c)
}

func TestTiktokenCounter(t *testing.T) {
	// needs the BPE file from the network or TIKTOKEN_CACHE_DIR
	if os.Getenv("TIKTOKEN_TEST") == "" {
		t.Skip("set TIKTOKEN_TEST=1 to run")
	}
	c, err := NewTiktokenCounter("cl100k_base")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count("hello world"))
}
