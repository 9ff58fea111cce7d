package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"meeting-insights-go/internal/assembler"
	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/llm"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/output"
	"meeting-insights-go/internal/transcription"
	"meeting-insights-go/internal/types"
)

const testRate = 100

func testConfig() config.Config {
	return config.Config{
		Audio:      config.Audio{SampleRate: testRate, ChunkDuration: 900, ChunkOverlap: 30},
		Assembler:  config.Assembler{Overlap: 30, MinSegment: 1, TrimOverlap: true},
		Normalizer: config.Normalizer{Fillers: config.DefaultFillers},
		Chunker:    config.Chunker{MaxTokens: 1500, CharsPerToken: 4, Tokenizer: "approx"},
		Extractor:  config.Extractor{CallTimeout: time.Second, Workers: 1, MinTranscript: 50},
		Workers:    1,
	}
}

// clockDecoder returns seconds*testRate samples whose value is their own time in seconds,
// so fakes can tell which part of the recording a chunk covers.
type clockDecoder struct {
	seconds int
	err     error
}

func (d clockDecoder) Decode(ctx context.Context, path string) ([]float32, int, error) {
	if d.err != nil {
		return nil, 0, d.err
	}
	s := make([]float32, d.seconds*testRate)
	for i := range s {
		s[i] = float32(i) / testRate
	}
	return s, testRate, nil
}

type fakeSTT struct {
	mu    sync.Mutex
	calls int
	fn    func(offset float64) (transcription.Result, error)
}

func (f *fakeSTT) Transcribe(ctx context.Context, samples []float32, rate int) (transcription.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(float64(samples[0]))
}

// twoSentences returns two chunk-relative segments that stay clear of the overlap window.
func twoSentences(offset float64) (transcription.Result, error) {
	n := int(offset)
	return transcription.Result{Language: "en", Segments: []types.Segment{
		{Text: fmt.Sprintf("We reviewed part %d of the launch plan.", n), Start: 0, End: 4},
		{Text: fmt.Sprintf("Marketing will prepare material for part %d.", n), Start: 10, End: 14},
	}}, nil
}

type memSink struct {
	mu          sync.Mutex
	transcripts []types.Transcript
	records     []types.Record
	err         error
}

func (m *memSink) WriteTranscript(stamp string, tr types.Transcript) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts = append(m.transcripts, tr)
	return "transcript_" + stamp + ".txt", nil
}

func (m *memSink) WriteSummary(stamp string, rec types.Record) (output.Files, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return output.Files{}, m.err
	}
	m.records = append(m.records, rec)
	return output.Files{JSON: "summary_" + stamp + ".json"}, nil
}

type countingGen struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *countingGen) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return llm.NewMock().Generate(ctx, prompt, maxTokens)
}

var fixedNow = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func newController(t *testing.T, cfg config.Config, dec Decoder, stt transcription.Transcriber, gen llm.Generator, sink Sink) *Controller {
	t.Helper()
	c, err := New(cfg, dec, stt, gen, sink, logger.Discard())
	require.NoError(t, err)
	c.retryWait = 0
	c.now = func() time.Time { return fixedNow }
	return c
}

func stageNames(timings []types.StageTiming) []string {
	names := make([]string, len(timings))
	for i, t := range timings {
		names[i] = t.Name
	}
	return names
}

func TestRunThirtyFiveMinuteMeeting(t *testing.T) {
	stt := &fakeSTT{fn: twoSentences}
	sink := &memSink{}
	c := newController(t, testConfig(), clockDecoder{seconds: 35 * 60}, stt, llm.NewMock(), sink)

	res, err := c.Run(context.Background(), "standup.wav", "Launch review")
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, "Launch review", rec.MeetingTitle)
	assert.Equal(t, 35.0, rec.DurationMinutes)
	assert.Equal(t, "2025-03-04T10:00:00Z", rec.Timestamp)
	assert.Contains(t, rec.Summary, "beta launch plan")
	assert.Equal(t, []string{"Beta launch timeline", "Pricing page", "Legacy export feature"}, rec.KeyTopics)
	assert.Len(t, rec.Decisions, 2)
	require.Len(t, rec.ActionItems, 2)
	assert.Equal(t, types.DefaultOwner, rec.ActionItems[1].Owner)

	md := rec.Metadata
	assert.NotEmpty(t, md.RunID)
	assert.Equal(t, "en", md.Language)
	assert.Equal(t, 3, md.NumAudioChunks)
	assert.Equal(t, 6, md.NumSegments)
	assert.Equal(t, 1, md.NumTextChunks)
	assert.False(t, md.Partial)
	assert.Equal(t, []string{StageDecode, StageSplit, StageTranscribe, StageAssemble, StageNormalize, StageChunk, StageExtract}, stageNames(md.Stages))

	require.Len(t, res.Transcript.Segments, 6)
	assert.Equal(t, 870.0, res.Transcript.Segments[2].Start)
	assert.Equal(t, 1750.0, res.Transcript.Segments[5].Start)
	assert.Equal(t, 3, stt.calls)

	require.Len(t, sink.transcripts, 1)
	require.Len(t, sink.records, 1)
	stem := "20250304_100000_" + md.RunID[:8]
	assert.Equal(t, "transcript_"+stem+".txt", res.TranscriptPath)
	assert.Equal(t, "summary_"+stem+".json", res.Files.JSON)
}

func TestRunsInSameSecondKeepSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Output = config.Output{Dir: dir, SaveTranscript: true}
	c := newController(t, cfg, clockDecoder{seconds: 60}, &fakeSTT{fn: twoSentences}, llm.NewMock(), output.New(cfg.Output, logger.Discard()))

	first, err := c.Run(context.Background(), "a.wav", "First sync")
	require.NoError(t, err)
	second, err := c.Run(context.Background(), "b.wav", "Second sync")
	require.NoError(t, err)

	assert.NotEqual(t, first.Files.JSON, second.Files.JSON)
	assert.NotEqual(t, first.TranscriptPath, second.TranscriptPath)

	b, err := os.ReadFile(first.Files.JSON)
	require.NoError(t, err)
	assert.Contains(t, string(b), "First sync")
	b, err = os.ReadFile(second.Files.JSON)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Second sync")
}

func TestRunDefaultTitle(t *testing.T) {
	c := newController(t, testConfig(), clockDecoder{seconds: 60}, &fakeSTT{fn: twoSentences}, llm.NewMock(), nil)
	res, err := c.Run(context.Background(), "a.wav", "")
	require.NoError(t, err)
	assert.Equal(t, "Meeting 2025-03-04 10:00", res.Record.MeetingTitle)
	assert.Empty(t, res.Files.JSON)
}

func TestRunDropsFailedAudioChunk(t *testing.T) {
	stt := &fakeSTT{fn: func(offset float64) (transcription.Result, error) {
		if offset == 870 {
			return transcription.Result{}, transcription.ErrModelUnavailable
		}
		return twoSentences(offset)
	}}
	c := newController(t, testConfig(), clockDecoder{seconds: 35 * 60}, stt, llm.NewMock(), nil)

	res, err := c.Run(context.Background(), "a.wav", "t")
	require.NoError(t, err)
	md := res.Record.Metadata
	assert.True(t, md.Partial)
	assert.Equal(t, []int{1}, md.FailedAudioChunks)
	assert.Equal(t, 4, md.NumSegments)
	// the failing chunk is tried twice
	assert.Equal(t, 4, stt.calls)
}

func TestRunAllAudioChunksFail(t *testing.T) {
	stt := &fakeSTT{fn: func(float64) (transcription.Result, error) {
		return transcription.Result{}, transcription.ErrInference
	}}
	c := newController(t, testConfig(), clockDecoder{seconds: 35 * 60}, stt, llm.NewMock(), nil)

	_, err := c.Run(context.Background(), "a.wav", "t")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageTranscribe, f.Stage)
	assert.Equal(t, StageSplit, f.LastSuccessfulStage)
	assert.Nil(t, f.Transcript)
	assert.ErrorIs(t, err, ErrAllAudioChunksFailed)
	assert.ErrorIs(t, err, transcription.ErrInference)
	assert.Equal(t, 6, stt.calls)
}

func TestRunShortTranscriptSkipsExtraction(t *testing.T) {
	stt := &fakeSTT{fn: func(float64) (transcription.Result, error) {
		return transcription.Result{Language: "en", Segments: []types.Segment{{Text: "Hello.", Start: 0, End: 2}}}, nil
	}}
	gen := &countingGen{}
	c := newController(t, testConfig(), clockDecoder{seconds: 120}, stt, gen, nil)

	res, err := c.Run(context.Background(), "a.wav", "t")
	require.NoError(t, err)
	assert.Equal(t, TooShortSummary, res.Record.Summary)
	assert.Empty(t, res.Record.KeyTopics)
	assert.NotNil(t, res.Record.ActionItems)
	assert.Equal(t, 0, res.Record.Metadata.NumTextChunks)
	assert.Equal(t, 0, gen.calls)
}

func TestRunExtractionFailureKeepsTranscript(t *testing.T) {
	sink := &memSink{}
	gen := &countingGen{err: llm.ErrBackendUnavailable}
	c := newController(t, testConfig(), clockDecoder{seconds: 60}, &fakeSTT{fn: twoSentences}, gen, sink)

	_, err := c.Run(context.Background(), "a.wav", "t")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageExtract, f.Stage)
	assert.Equal(t, StageChunk, f.LastSuccessfulStage)
	require.NotNil(t, f.Transcript)
	assert.Len(t, f.Transcript.Segments, 2)
	assert.Len(t, sink.transcripts, 1)
	assert.Empty(t, sink.records)
	assert.Contains(t, err.Error(), "stage extract failed")
}

func TestRunOrderingFailureKeepsPartialTranscript(t *testing.T) {
	stt := &fakeSTT{fn: func(float64) (transcription.Result, error) {
		return transcription.Result{Language: "en", Segments: []types.Segment{
			{Text: "Then the budget.", Start: 10, End: 12},
			{Text: "First the agenda.", Start: 2, End: 4},
		}}, nil
	}}
	sink := &memSink{}
	c := newController(t, testConfig(), clockDecoder{seconds: 60}, stt, llm.NewMock(), sink)

	_, err := c.Run(context.Background(), "a.wav", "t")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageAssemble, f.Stage)
	assert.Equal(t, StageTranscribe, f.LastSuccessfulStage)
	var oe *assembler.OrderingError
	assert.ErrorAs(t, err, &oe)

	require.NotNil(t, f.Transcript)
	require.Len(t, f.Transcript.Segments, 2)
	assert.Equal(t, "Then the budget.", f.Transcript.Segments[0].Text)
	require.Len(t, f.ChunkTranscripts, 1)
	assert.Len(t, f.ChunkTranscripts[0].Segments, 2)
	assert.Empty(t, sink.transcripts)
}

func TestRunDecodeFailure(t *testing.T) {
	cfg := testConfig()
	dec := audio.NewDecoder(cfg.Audio, logger.Discard())
	c := newController(t, cfg, dec, &fakeSTT{fn: twoSentences}, llm.NewMock(), nil)

	_, err := c.Run(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), "t")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageDecode, f.Stage)
	assert.Empty(t, f.LastSuccessfulStage)
	assert.ErrorIs(t, err, audio.ErrFileNotFound)
	assert.Contains(t, err.Error(), "last successful: none")
}

func TestRunOutputFailure(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	c := newController(t, testConfig(), clockDecoder{seconds: 60}, &fakeSTT{fn: twoSentences}, llm.NewMock(), sink)

	_, err := c.Run(context.Background(), "a.wav", "t")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageOutput, f.Stage)
	assert.Equal(t, StageResult, f.LastSuccessfulStage)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newController(t, testConfig(), clockDecoder{seconds: 60}, &fakeSTT{fn: twoSentences}, llm.NewMock(), nil)

	_, err := c.Run(ctx, "a.wav", "t")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StageDecode, f.Stage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWAVFileEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Audio.SampleRate = 16000
	cfg.Output = config.Output{Dir: filepath.Join(dir, "out"), SaveTranscript: true}

	samples := make([]float32, 3*16000)
	wavPath := filepath.Join(dir, "meeting.wav")
	b, err := audio.WAVBytes(samples, 16000)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(wavPath, b, 0o644))

	stt := &fakeSTT{fn: func(float64) (transcription.Result, error) {
		return transcription.Result{Language: "en", Segments: []types.Segment{
			{Text: "Um, we agreed to ship the beta in March.", Start: 0, End: 1.5},
			{Text: "Priya will finish the pricing page by Friday.", Start: 1.5, End: 3},
		}}, nil
	}}
	log := logger.Discard()
	c := newController(t, cfg, audio.NewDecoder(cfg.Audio, log), stt, llm.NewMock(), output.New(cfg.Output, log))

	res, err := c.Run(context.Background(), wavPath, "Beta sync")
	require.NoError(t, err)
	assert.Equal(t, 0.05, res.Record.DurationMinutes)
	assert.NotContains(t, res.Text, "Um")
	assert.FileExists(t, res.TranscriptPath)
	assert.FileExists(t, res.Files.JSON)
	assert.FileExists(t, res.Files.Text)

	tr, err := os.ReadFile(res.TranscriptPath)
	require.NoError(t, err)
	assert.Equal(t, "[00:00:00] Um, we agreed to ship the beta in March.\n[00:00:01] Priya will finish the pricing page by Friday.\n", string(tr))
}

func TestDefaultTitle(t *testing.T) {
	assert.Equal(t, "Meeting 2024-12-31 23:59", DefaultTitle(time.Date(2024, 12, 31, 23, 59, 30, 0, time.UTC)))
}
