package chunker

import (
	"strings"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/types"
)

// Chunker packs whole sentences into chunks that fit a token budget.
type Chunker struct {
	MaxTokens int
	Counter   TokenCounter
}

func New(cfg config.Chunker, counter TokenCounter) *Chunker {
	if counter == nil {
		counter = ApproxCounter{CharsPerToken: cfg.CharsPerToken}
	}
	return &Chunker{MaxTokens: cfg.MaxTokens, Counter: counter}
}

// Chunk greedily accumulates sentences until the next one would push the chunk over
// MaxTokens. A sentence that is over budget by itself gets a chunk of its own.
// Chunks are numbered from 1; empty text yields no chunks.
func (c *Chunker) Chunk(text, language string) []types.TextChunk {
	sentences := SplitSentences(text, language)
	var (
		chunks  []types.TextChunk
		current []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.Join(current, " ")
		chunks = append(chunks, types.TextChunk{
			Text:         joined,
			Index:        len(chunks) + 1,
			ApproxTokens: c.Counter.Count(joined),
		})
		current = current[:0]
	}

	for _, s := range sentences {
		if len(current) > 0 {
			candidate := strings.Join(current, " ") + " " + s
			if c.Counter.Count(candidate) > c.MaxTokens {
				flush()
			}
		}
		current = append(current, s)
	}
	flush()
	return chunks
}
