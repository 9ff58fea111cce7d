package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"meeting-insights-go/internal/pool"
	"meeting-insights-go/internal/transcription"
	"meeting-insights-go/internal/types"
)

func (c *Controller) decode(ctx context.Context, rc *RunContext) error {
	samples, rate, err := c.decoder.Decode(ctx, rc.AudioPath)
	if err != nil {
		return err
	}
	rc.Samples, rc.SampleRate = samples, rate
	if rate > 0 {
		rc.AudioSeconds = float64(len(samples)) / float64(rate)
	}
	c.log.WithRun(rc.RunID).WithField("sample_rate", rate).WithField("seconds", rc.AudioSeconds).Debug("audio decoded")
	return nil
}

func (c *Controller) split(ctx context.Context, rc *RunContext) error {
	chunks, err := c.splitter.Split(rc.Samples, rc.SampleRate)
	if err != nil {
		return err
	}
	rc.AudioChunks = chunks
	return nil
}

// transcribe sends every audio chunk to the engine. A chunk that still fails after one
// retry is dropped; the stage fails only if none succeeded.
func (c *Controller) transcribe(ctx context.Context, rc *RunContext) error {
	log := c.log.WithRun(rc.RunID)
	results, errs := pool.Run(ctx, c.workers, rc.AudioChunks, func(ctx context.Context, _ int, ch types.AudioChunk) (types.ChunkTranscript, error) {
		return c.transcribeChunk(ctx, ch, log.WithField("chunk", ch.Index))
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	var lastErr error
	for i, ch := range rc.AudioChunks {
		if err := errs[i]; err != nil {
			lastErr = err
			rc.FailedAudio = append(rc.FailedAudio, ch.Index)
			log.WithField("chunk", ch.Index).WithField("error", err.Error()).Warn("audio chunk dropped")
			continue
		}
		rc.ChunkTranscripts = append(rc.ChunkTranscripts, results[i])
	}
	if len(rc.ChunkTranscripts) == 0 {
		return fmt.Errorf("%w (%d chunks): %w", ErrAllAudioChunksFailed, len(rc.AudioChunks), lastErr)
	}
	return nil
}

func (c *Controller) transcribeChunk(ctx context.Context, ch types.AudioChunk, log *logrus.Entry) (types.ChunkTranscript, error) {
	start := time.Now()
	var res transcription.Result
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
		r, err := c.stt.Transcribe(callCtx, ch.Samples, ch.SampleRate)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		res = r
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryWait), 1), ctx)
	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		log.WithField("error", err.Error()).Warn("transcription failed, retrying once")
	})
	if err != nil {
		return types.ChunkTranscript{Chunk: ch}, err
	}
	log.WithField("segments", len(res.Segments)).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("chunk transcribed")
	return types.ChunkTranscript{Chunk: ch, Segments: res.Segments, Language: res.Language}, nil
}

// assemble builds the global transcript and writes it out straight away.
func (c *Controller) assemble(ctx context.Context, rc *RunContext) error {
	tr, st, err := c.assembler.Assemble(rc.ChunkTranscripts)
	rc.Transcript = &tr
	rc.AssembleStats = st
	if err != nil {
		// the unordered transcript stays on the failure for diagnosis
		return err
	}
	// audio samples are no longer needed
	rc.Samples = nil
	for i := range rc.AudioChunks {
		rc.AudioChunks[i].Samples = nil
	}
	for i := range rc.ChunkTranscripts {
		rc.ChunkTranscripts[i].Chunk.Samples = nil
	}

	if c.sink != nil {
		path, err := c.sink.WriteTranscript(rc.Stamp, tr)
		if err != nil {
			c.log.WithRun(rc.RunID).WithField("error", err.Error()).Warn("could not save transcript")
		}
		rc.TranscriptPath = path
	}
	return nil
}

func (c *Controller) normalize(ctx context.Context, rc *RunContext) error {
	rc.Text = c.normalizer.NormalizeTranscript(*rc.Transcript)
	return nil
}

func (c *Controller) chunk(ctx context.Context, rc *RunContext) error {
	if utf8.RuneCountInString(rc.Text) < c.minTranscript {
		rc.TooShort = true
		c.log.WithRun(rc.RunID).WithField("chars", utf8.RuneCountInString(rc.Text)).Warn("transcript too short, skipping extraction")
		return nil
	}
	rc.TextChunks = c.chunker.Chunk(rc.Text, rc.Transcript.Language)
	return nil
}

func (c *Controller) extract(ctx context.Context, rc *RunContext) error {
	if rc.TooShort || len(rc.TextChunks) == 0 {
		rc.TooShort = true
		return nil
	}
	out, err := c.extractor.Extract(ctx, rc.TextChunks)
	rc.Extraction = out
	return err
}

func (c *Controller) result(ctx context.Context, rc *RunContext) error {
	res := rc.Extraction.Result
	if rc.TooShort {
		res = types.ExtractionResult{Summary: TooShortSummary}
	}
	rc.Record = types.Record{
		MeetingTitle:    rc.Title,
		DurationMinutes: math.Round(rc.AudioSeconds/60*100) / 100,
		Timestamp:       rc.Started.Format(time.RFC3339),
		Summary:         res.Summary,
		KeyTopics:       orEmpty(res.KeyTopics),
		Decisions:       orEmpty(res.Decisions),
		ActionItems:     res.ActionItems,
		Metadata: types.Metadata{
			RunID:             rc.RunID,
			Language:          rc.Transcript.Language,
			NumSegments:       len(rc.Transcript.Segments),
			NumAudioChunks:    len(rc.AudioChunks),
			NumTextChunks:     len(rc.TextChunks),
			SampleRate:        rc.SampleRate,
			Partial:           len(rc.FailedAudio) > 0 || rc.Extraction.Partial(),
			FailedAudioChunks: rc.FailedAudio,
			FailedTextChunks:  rc.Extraction.Failed,
			Stages:            append([]types.StageTiming(nil), rc.Timings...),
		},
	}
	if rc.Record.ActionItems == nil {
		rc.Record.ActionItems = []types.ActionItem{}
	}
	return nil
}

func (c *Controller) output(ctx context.Context, rc *RunContext) error {
	if c.sink == nil {
		return nil
	}
	files, err := c.sink.WriteSummary(rc.Stamp, rc.Record)
	if err != nil {
		return err
	}
	rc.Files = files
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
