package extractor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/llm"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

type fakeGen struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, call int, prompt string) (string, error)
}

func (f *fakeGen) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(ctx, n, prompt)
}

func (f *fakeGen) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

const (
	prefixSummary   = "Write an executive summary"
	prefixTopics    = "List the KEY TOPICS"
	prefixDecisions = "List the DECISIONS"
	prefixActions   = "Extract the ACTION ITEMS"
	prefixCombine   = "Combine the following"
)

// good answers every task in the expected format, tagging summaries with the chunk text.
func good(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, prefixTopics):
		return "- Budget\n- Hiring"
	case strings.HasPrefix(prompt, prefixDecisions):
		return "- Approve the budget"
	case strings.HasPrefix(prompt, prefixActions):
		return "Task: Send the report\nOwner: Ana\nDeadline: Friday"
	case strings.HasPrefix(prompt, prefixCombine):
		return "Combined summary."
	}
	if strings.Contains(prompt, "second chunk") {
		return "Summary two."
	}
	return "Summary one."
}

func newTestExtractor(gen llm.Generator) *Extractor {
	e := New(config.Extractor{CallTimeout: time.Second, Workers: 1}, gen, logger.Discard())
	e.retryWait = 0
	return e
}

func chunks(texts ...string) []types.TextChunk {
	out := make([]types.TextChunk, len(texts))
	for i, t := range texts {
		out[i] = types.TextChunk{Text: t, Index: i + 1, ApproxTokens: len(t) / 4}
	}
	return out
}

func TestExtractSingleChunkUsesSummaryVerbatim(t *testing.T) {
	gen := &fakeGen{fn: func(_ context.Context, _ int, p string) (string, error) { return good(p), nil }}
	out, err := newTestExtractor(gen).Extract(context.Background(), chunks("first chunk text"))
	require.NoError(t, err)

	assert.Equal(t, "Summary one.", out.Result.Summary)
	assert.Equal(t, []string{"Budget", "Hiring"}, out.Result.KeyTopics)
	assert.Equal(t, []string{"Approve the budget"}, out.Result.Decisions)
	assert.Equal(t, []types.ActionItem{{Task: "Send the report", Owner: "Ana", Deadline: "Friday"}}, out.Result.ActionItems)
	assert.False(t, out.Partial())
	assert.Equal(t, 0, gen.count(prefixCombine))
	assert.Len(t, gen.calls, 4)
}

func TestExtractCombinesSummariesAndDedups(t *testing.T) {
	gen := &fakeGen{fn: func(_ context.Context, _ int, p string) (string, error) { return good(p), nil }}
	out, err := newTestExtractor(gen).Extract(context.Background(), chunks("first chunk", "second chunk"))
	require.NoError(t, err)

	assert.Equal(t, "Combined summary.", out.Result.Summary)
	assert.Equal(t, 1, gen.count(prefixCombine))
	assert.Equal(t, []string{"Budget", "Hiring"}, out.Result.KeyTopics)
	assert.Equal(t, []string{"Approve the budget"}, out.Result.Decisions)
	assert.Len(t, out.Result.ActionItems, 2)
	require.Len(t, out.Chunks, 2)
	assert.Equal(t, "Summary two.", out.Chunks[1].Result.Summary)
}

func TestExtractCombineFailureJoinsSummaries(t *testing.T) {
	gen := &fakeGen{fn: func(_ context.Context, _ int, p string) (string, error) {
		if strings.HasPrefix(p, prefixCombine) {
			return "", llm.ErrBackendUnavailable
		}
		return good(p), nil
	}}
	out, err := newTestExtractor(gen).Extract(context.Background(), chunks("first chunk", "second chunk"))
	require.NoError(t, err)
	assert.Equal(t, "Summary one.\n\nSummary two.", out.Result.Summary)
	assert.Equal(t, 2, gen.count(prefixCombine))
}

func TestExtractRepromptsOnUnparseableActions(t *testing.T) {
	var actionCalls int
	gen := &fakeGen{fn: func(_ context.Context, _ int, p string) (string, error) {
		if strings.HasPrefix(p, prefixActions) {
			actionCalls++
			if actionCalls == 1 {
				return "Sure! Somebody should probably look into the report at some point.", nil
			}
			assert.Contains(t, p, "IMPORTANT")
			return "Task: Review the report\nOwner: None\nDeadline: n/a", nil
		}
		return good(p), nil
	}}
	out, err := newTestExtractor(gen).Extract(context.Background(), chunks("first chunk"))
	require.NoError(t, err)
	assert.Equal(t, 2, actionCalls)
	assert.Equal(t, []types.ActionItem{{Task: "Review the report", Owner: types.DefaultOwner, Deadline: types.DefaultDeadline}}, out.Result.ActionItems)
}

func TestExtractFallsBackToRawText(t *testing.T) {
	gen := &fakeGen{fn: func(_ context.Context, _ int, p string) (string, error) {
		switch {
		case strings.HasPrefix(p, prefixTopics):
			return "We mostly talked about the budget.", nil
		case strings.HasPrefix(p, prefixActions):
			return "Somebody   should\nfollow up.", nil
		}
		return good(p), nil
	}}
	out, err := newTestExtractor(gen).Extract(context.Background(), chunks("first chunk"))
	require.NoError(t, err)
	assert.Equal(t, []string{"We mostly talked about the budget."}, out.Result.KeyTopics)
	assert.Equal(t, []types.ActionItem{{Task: "Somebody should follow up.", Owner: types.DefaultOwner, Deadline: types.DefaultDeadline}}, out.Result.ActionItems)
	assert.Equal(t, 2, gen.count(prefixTopics))
	assert.Equal(t, 2, gen.count(prefixActions))
}

func TestExtractNoneMeansEmpty(t *testing.T) {
	gen := &fakeGen{fn: func(_ context.Context, _ int, p string) (string, error) {
		if strings.HasPrefix(p, prefixSummary) {
			return good(p), nil
		}
		return "None.", nil
	}}
	out, err := newTestExtractor(gen).Extract(context.Background(), chunks("first chunk"))
	require.NoError(t, err)
	assert.Empty(t, out.Result.KeyTopics)
	assert.NotNil(t, out.Result.KeyTopics)
	assert.Empty(t, out.Result.Decisions)
	assert.Empty(t, out.Result.ActionItems)
	assert.Len(t, gen.calls, 4)
}

func TestExtractRetriesFailedCallOnce(t *testing.T) {
	var failed bool
	gen := &fakeGen{fn: func(_ context.Context, _ int, p string) (string, error) {
		if strings.HasPrefix(p, prefixDecisions) && !failed {
			failed = true
			return "", llm.ErrBackendUnavailable
		}
		return good(p), nil
	}}
	out, err := newTestExtractor(gen).Extract(context.Background(), chunks("first chunk"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Approve the budget"}, out.Result.Decisions)
	assert.Equal(t, 2, gen.count(prefixDecisions))
}

func TestExtractPartialWhenOneChunkFails(t *testing.T) {
	gen := &fakeGen{fn: func(_ context.Context, _ int, p string) (string, error) {
		if strings.Contains(p, "second chunk") {
			return "", llm.ErrBackendUnavailable
		}
		return good(p), nil
	}}
	out, err := newTestExtractor(gen).Extract(context.Background(), chunks("first chunk", "second chunk"))
	require.NoError(t, err)
	assert.True(t, out.Partial())
	assert.Equal(t, []int{2}, out.Failed)
	assert.True(t, out.Chunks[1].Failed())
	assert.Contains(t, out.Chunks[1].Error, "summary")
	// only one summary survived, so no combine call
	assert.Equal(t, "Summary one.", out.Result.Summary)
	assert.Equal(t, 0, gen.count(prefixCombine))
}

func TestExtractAllChunksTimeOut(t *testing.T) {
	gen := &fakeGen{fn: func(ctx context.Context, _ int, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	e := newTestExtractor(gen)
	e.callTimeout = 20 * time.Millisecond

	out, err := e.Extract(context.Background(), chunks("first chunk", "second chunk"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllChunksFailed)
	assert.ErrorIs(t, err, llm.ErrTimeout)
	assert.Equal(t, []int{1, 2}, out.Failed)
	// first task of each chunk, tried twice
	assert.Len(t, gen.calls, 4)
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGen{fn: func(_ context.Context, _ int, p string) (string, error) {
		cancel()
		return good(p), nil
	}}
	_, err := newTestExtractor(gen).Extract(ctx, chunks("first chunk", "second chunk"))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestExtractNoChunks(t *testing.T) {
	gen := &fakeGen{fn: func(context.Context, int, string) (string, error) { return "", nil }}
	out, err := newTestExtractor(gen).Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out.Result.Summary)
	assert.NotNil(t, out.Result.ActionItems)
	assert.Empty(t, gen.calls)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(TaskActions, "the transcript", false)
	assert.True(t, strings.HasPrefix(p, prefixActions))
	assert.Contains(t, p, "the transcript")
	assert.Contains(t, p, "at most 10 items")
	assert.NotContains(t, p, "IMPORTANT")

	p = BuildPrompt(TaskDecisions, "x", true)
	assert.Contains(t, p, "at most 5 decisions")
	assert.Contains(t, p, "IMPORTANT")

	p = BuildCombinePrompt([]string{"a ", "b"})
	assert.Contains(t, p, "Part 1:\na\n\nPart 2:\nb")
	assert.Equal(t, "key_topics", TaskTopics.String())
}
