// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"meeting-insights-go/internal/assembler"
	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/chunker"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/extractor"
	"meeting-insights-go/internal/llm"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/normalizer"
	"meeting-insights-go/internal/output"
	"meeting-insights-go/internal/transcription"
	"meeting-insights-go/internal/types"
)

const (
	StageDecode     = "decode"
	StageSplit      = "split"
	StageTranscribe = "transcribe"
	StageAssemble   = "assemble"
	StageNormalize  = "normalize"
	StageChunk      = "chunk"
	StageExtract    = "extract"
	StageResult     = "result"
	StageOutput     = "output"
)

// TooShortSummary is reported instead of calling the model on a near-empty transcript.
const TooShortSummary = "Transcript too short to summarize"

var ErrAllAudioChunksFailed = errors.New("all audio chunks failed")

// Failure is returned when a stage fails terminally. Transcript is set when the run got
// far enough to assemble one, even if assembly itself failed. ChunkTranscripts holds
// whatever transcription produced.
type Failure struct {
	RunID               string
	Stage               string
	LastSuccessfulStage string
	Cause               error
	Transcript          *types.Transcript
	ChunkTranscripts    []types.ChunkTranscript
}

func (f *Failure) Error() string {
	last := f.LastSuccessfulStage
	if last == "" {
		last = "none"
	}
	return fmt.Sprintf("stage %s failed (last successful: %s): %v", f.Stage, last, f.Cause)
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

type Decoder interface {
	Decode(ctx context.Context, path string) ([]float32, int, error)
}

type Extractor interface {
	Extract(ctx context.Context, chunks []types.TextChunk) (extractor.Outcome, error)
}

// Sink persists run outputs. The transcript is written as soon as it exists so it
// survives a later failure.
type Sink interface {
	WriteTranscript(stamp string, tr types.Transcript) (string, error)
	WriteSummary(stamp string, rec types.Record) (output.Files, error)
}

// RunContext carries everything one run produces, stage by stage.
type RunContext struct {
	RunID     string
	AudioPath string
	Title     string
	Started   time.Time
	Stamp     string

	Samples          []float32
	SampleRate       int
	AudioSeconds     float64
	AudioChunks      []types.AudioChunk
	ChunkTranscripts []types.ChunkTranscript
	FailedAudio      []int
	Transcript       *types.Transcript
	AssembleStats    assembler.Stats
	Text             string
	TextChunks       []types.TextChunk
	TooShort         bool
	Extraction       extractor.Outcome
	Record           types.Record

	TranscriptPath string
	Files          output.Files
	Timings        []types.StageTiming
}

// Result is what a successful run hands back to the caller.
type Result struct {
	Record         types.Record
	Transcript     types.Transcript
	Text           string
	TranscriptPath string
	Files          output.Files
}

type stage struct {
	name string
	run  func(ctx context.Context, rc *RunContext) error
}

// Controller runs the ordered stage list for one recording at a time. The collaborators
// it holds are shared across runs.
type Controller struct {
	decoder    Decoder
	splitter   audio.Splitter
	stt        transcription.Transcriber
	assembler  *assembler.Assembler
	normalizer *normalizer.Normalizer
	chunker    *chunker.Chunker
	extractor  Extractor
	sink       Sink

	workers       int
	callTimeout   time.Duration
	retryWait     time.Duration
	minTranscript int
	now           func() time.Time
	log           *logger.Logger
}

// New wires the default components from cfg around the given collaborators. sink may be
// nil, in which case nothing is written to disk.
func New(cfg config.Config, dec Decoder, stt transcription.Transcriber, gen llm.Generator, sink Sink, log *logger.Logger) (*Controller, error) {
	counter, err := chunker.NewCounter(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		decoder:       dec,
		splitter:      audio.NewSplitter(cfg.Audio),
		stt:           stt,
		assembler:     assembler.New(cfg.Assembler, log),
		normalizer:    normalizer.New(cfg.Normalizer),
		chunker:       chunker.New(cfg.Chunker, counter),
		extractor:     extractor.New(cfg.Extractor, gen, log),
		sink:          sink,
		workers:       cfg.Workers,
		callTimeout:   cfg.Extractor.CallTimeout,
		retryWait:     time.Second,
		minTranscript: cfg.Extractor.MinTranscript,
		now:           time.Now,
		log:           log.WithComponent("pipeline"),
	}
	return c, nil
}

func (c *Controller) stages() []stage {
	return []stage{
		{StageDecode, c.decode},
		{StageSplit, c.split},
		{StageTranscribe, c.transcribe},
		{StageAssemble, c.assemble},
		{StageNormalize, c.normalize},
		{StageChunk, c.chunk},
		{StageExtract, c.extract},
		{StageResult, c.result},
		{StageOutput, c.output},
	}
}

// DefaultTitle is used when a run is started without a title.
func DefaultTitle(t time.Time) string {
	return "Meeting " + t.Format("2006-01-02 15:04")
}

// Run processes one recording end to end. Any terminal error comes back as *Failure.
func (c *Controller) Run(ctx context.Context, audioPath, title string) (*Result, error) {
	started := c.now()
	if title == "" {
		title = DefaultTitle(started)
	}
	runID := uuid.NewString()
	rc := &RunContext{
		RunID:     runID,
		AudioPath: audioPath,
		Title:     title,
		Started:   started,
		Stamp:     output.RunStem(started, runID),
	}
	log := c.log.WithRun(rc.RunID)
	log.WithField("audio", audioPath).WithField("title", title).Info("run started")

	last := ""
	for _, st := range c.stages() {
		if err := ctx.Err(); err != nil {
			return nil, c.fail(rc, st.name, last, err)
		}
		t0 := time.Now()
		err := st.run(ctx, rc)
		ms := time.Since(t0).Milliseconds()
		rc.Timings = append(rc.Timings, types.StageTiming{Name: st.name, DurationMs: ms})
		if err != nil {
			return nil, c.fail(rc, st.name, last, err)
		}
		log.WithField("stage", st.name).WithField("duration_ms", ms).Info("stage complete")
		last = st.name
	}

	log.WithField("duration_ms", time.Since(started).Milliseconds()).
		WithField("partial", rc.Record.Metadata.Partial).
		Info("run finished")
	res := &Result{
		Record:         rc.Record,
		Text:           rc.Text,
		TranscriptPath: rc.TranscriptPath,
		Files:          rc.Files,
	}
	if rc.Transcript != nil {
		res.Transcript = *rc.Transcript
	}
	return res, nil
}

func (c *Controller) fail(rc *RunContext, stageName, last string, err error) *Failure {
	f := &Failure{
		RunID:               rc.RunID,
		Stage:               stageName,
		LastSuccessfulStage: last,
		Cause:               err,
		Transcript:          rc.Transcript,
		ChunkTranscripts:    rc.ChunkTranscripts,
	}
	c.log.WithRun(rc.RunID).
		WithField("stage", stageName).
		WithField("last_successful_stage", last).
		WithField("error", err.Error()).
		Error("run failed")
	return f
}
