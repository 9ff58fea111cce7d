package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"meeting-insights-go/internal/aggregator"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/llm"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/pool"
	"meeting-insights-go/internal/types"
)

var ErrAllChunksFailed = errors.New("all chunks failed")

// Extractor asks the language model four questions per text chunk and merges the answers.
type Extractor struct {
	gen         llm.Generator
	callTimeout time.Duration
	workers     int
	retryWait   time.Duration
	log         *logger.Logger
}

func New(cfg config.Extractor, gen llm.Generator, log *logger.Logger) *Extractor {
	return &Extractor{
		gen:         gen,
		callTimeout: cfg.CallTimeout,
		workers:     cfg.Workers,
		retryWait:   500 * time.Millisecond,
		log:         log.WithComponent("extractor"),
	}
}

// Outcome is the merged result plus what happened to each chunk.
type Outcome struct {
	Result types.ExtractionResult
	Chunks []types.ChunkExtraction
	Failed []int
}

func (o Outcome) Partial() bool {
	return len(o.Failed) > 0
}

// Extract runs every chunk, drops the ones that failed after their retry and reduces the
// rest. It fails with ErrAllChunksFailed only when no chunk succeeded, or with the context
// error when ctx ends first.
func (e *Extractor) Extract(ctx context.Context, chunks []types.TextChunk) (Outcome, error) {
	var out Outcome
	if len(chunks) == 0 {
		out.Result = emptyResult()
		return out, nil
	}

	results, errs := pool.Run(ctx, e.workers, chunks, func(ctx context.Context, _ int, ch types.TextChunk) (types.ChunkExtraction, error) {
		return e.extractChunk(ctx, ch)
	})

	var lastErr error
	for i, ch := range chunks {
		ce := results[i]
		ce.Index = ch.Index
		if err := errs[i]; err != nil {
			ce.Error = err.Error()
			out.Failed = append(out.Failed, ch.Index)
			lastErr = err
			e.log.WithError(err).WithField("chunk", ch.Index).Warn("chunk extraction failed, excluding it")
		}
		out.Chunks = append(out.Chunks, ce)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if len(out.Failed) == len(chunks) {
		return out, fmt.Errorf("%w (%d of %d): %w", ErrAllChunksFailed, len(out.Failed), len(chunks), lastErr)
	}

	red := aggregator.Aggregate(out.Chunks)
	out.Result = emptyResult()
	out.Result.KeyTopics = append(out.Result.KeyTopics, red.KeyTopics...)
	out.Result.Decisions = append(out.Result.Decisions, red.Decisions...)
	out.Result.ActionItems = append(out.Result.ActionItems, red.ActionItems...)
	out.Result.Summary = e.combine(ctx, red.Summaries)

	e.log.WithField("chunks", len(chunks)).
		WithField("failed", len(out.Failed)).
		WithField("topics", len(out.Result.KeyTopics)).
		WithField("decisions", len(out.Result.Decisions)).
		WithField("action_items", len(out.Result.ActionItems)).
		Info("extraction finished")
	return out, nil
}

func (e *Extractor) extractChunk(ctx context.Context, ch types.TextChunk) (types.ChunkExtraction, error) {
	start := time.Now()
	ce := types.ChunkExtraction{Index: ch.Index, Result: emptyResult()}
	log := e.log.WithField("chunk", ch.Index).WithField("approx_tokens", ch.ApproxTokens)
	log.Debug("extracting chunk")

	for _, task := range allTasks {
		if err := ctx.Err(); err != nil {
			return ce, err
		}
		if err := e.runTask(ctx, task, ch.Text, &ce.Result, log); err != nil {
			ce.DurationMs = time.Since(start).Milliseconds()
			return ce, fmt.Errorf("%s: %w", task, err)
		}
	}
	ce.DurationMs = time.Since(start).Milliseconds()
	log.WithField("duration_ms", ce.DurationMs).Info("chunk extracted")
	return ce, nil
}

// runTask asks one question. An unreadable answer gets one stricter re-prompt; if that is
// unreadable too the raw text is kept as a single item.
func (e *Extractor) runTask(ctx context.Context, task Task, text string, res *types.ExtractionResult, log *logrus.Entry) error {
	log = log.WithField("task", task.String())
	raw, err := e.generate(ctx, BuildPrompt(task, text, false), maxTokens[task], log)
	if err != nil {
		return err
	}
	if apply(task, raw, res) == nil {
		return nil
	}

	log.Warn("response unparseable, re-prompting")
	strict, err := e.generate(ctx, BuildPrompt(task, text, true), maxTokens[task], log)
	switch {
	case err == nil:
		if apply(task, strict, res) == nil {
			return nil
		}
		raw = strict
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		log.WithField("error", err.Error()).Warn("re-prompt failed, keeping first response")
	}
	log.Warn("falling back to raw response")
	fallback(task, raw, res)
	return nil
}

// generate makes one model call under the per-call timeout and retries it once on any error.
func (e *Extractor) generate(ctx context.Context, prompt string, max int, log *logrus.Entry) (string, error) {
	var out string
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
		s, err := e.gen.Generate(callCtx, prompt, max)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if callCtx.Err() == context.DeadlineExceeded && !errors.Is(err, llm.ErrTimeout) {
				err = fmt.Errorf("%w: %w", llm.ErrTimeout, err)
			}
			return err
		}
		out = s
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(e.retryWait), 1), ctx)
	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		log.WithField("error", err.Error()).WithField("retry_in_ms", wait.Milliseconds()).Warn("llm call failed, retrying once")
	})
	return out, err
}

// combine compresses per-chunk summaries into one. A single summary is used verbatim; if
// the combine call fails the summaries are joined instead.
func (e *Extractor) combine(ctx context.Context, summaries []string) string {
	switch len(summaries) {
	case 0:
		return ""
	case 1:
		return summaries[0]
	}
	log := e.log.WithField("task", "combine_summaries").WithField("parts", len(summaries))
	raw, err := e.generate(ctx, BuildCombinePrompt(summaries), combineMaxTokens, log)
	if err == nil {
		if s, perr := parseSummary(raw); perr == nil {
			return s
		}
		err = ErrUnparseable
	}
	log.WithField("error", err.Error()).Warn("combining summaries failed, joining them instead")
	return strings.Join(summaries, "\n\n")
}

func emptyResult() types.ExtractionResult {
	return types.ExtractionResult{
		KeyTopics:   []string{},
		Decisions:   []string{},
		ActionItems: []types.ActionItem{},
	}
}
