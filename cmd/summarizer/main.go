package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/dataset"
	"meeting-insights-go/internal/llm"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/output"
	"meeting-insights-go/internal/pipeline"
	"meeting-insights-go/internal/transcription"
	"meeting-insights-go/internal/watcher"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: summarizer <command> [flags]

commands:
  summarize [-title T] [-no-transcript] [-json] <audio-file>
  batch <manifest.xlsx>
  watch [-existing] [-settle 2s] <dir>
  status
  info
`)
}

func run(args []string) int {
	_ = godotenv.Load() // loads .env

	if len(args) == 0 {
		usage()
		return exitUsage
	}
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "summarize":
		return cmdSummarize(ctx, cfg, log, args[1:])
	case "batch":
		return cmdBatch(ctx, cfg, log, args[1:])
	case "watch":
		return cmdWatch(ctx, cfg, log, args[1:])
	case "status":
		return cmdStatus(ctx, cfg, log)
	case "info":
		return cmdInfo(cfg)
	case "help", "-h", "-help", "--help":
		usage()
		return exitOK
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
	usage()
	return exitUsage
}

// app holds the collaborators shared by every run in this process.
type app struct {
	decoder *audio.Decoder
	stt     transcription.Transcriber
	gen     llm.Generator
	writer  *output.Writer
	ctrl    *pipeline.Controller
}

func newApp(cfg config.Config, log *logger.Logger) (*app, error) {
	stt, err := transcription.New(cfg.STT, log)
	if err != nil {
		return nil, err
	}
	gen, err := llm.New(cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	a := &app{
		decoder: audio.NewDecoder(cfg.Audio, log),
		stt:     stt,
		gen:     gen,
		writer:  output.New(cfg.Output, log),
	}
	a.ctrl, err = pipeline.New(cfg, a.decoder, a.stt, a.gen, a.writer, log)
	if err != nil {
		return nil, err
	}
	log.WithField("stt_backend", cfg.STT.Backend).
		WithField("llm_backend", cfg.LLM.Backend).
		WithField("llm_model", cfg.LLM.Model).
		WithField("workers", cfg.Workers).
		Info("pipeline ready")
	return a, nil
}

func cmdSummarize(ctx context.Context, cfg config.Config, log *logger.Logger, args []string) int {
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	title := fs.String("title", "", "meeting title (default: Meeting <date time>)")
	noTranscript := fs.Bool("no-transcript", false, "do not save the transcript file")
	asJSON := fs.Bool("json", false, "print the summary record as JSON instead of text")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "summarize needs exactly one audio file")
		return exitUsage
	}
	if *noTranscript {
		cfg.Output.SaveTranscript = false
	}

	a, err := newApp(cfg, log)
	if err != nil {
		log.WithError(err).Error("startup failed")
		return exitFail
	}
	res, err := a.ctrl.Run(ctx, fs.Arg(0), *title)
	if err != nil {
		reportFailure(log, err)
		return exitFail
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Record); err != nil {
			log.WithError(err).Error("failed to write summary")
			return exitFail
		}
	} else {
		fmt.Print(output.FormatText(res.Record))
	}
	for _, p := range []string{res.Files.JSON, res.Files.Text, res.Files.XLSX, res.TranscriptPath} {
		if p != "" {
			fmt.Fprintln(os.Stderr, "saved:", p)
		}
	}
	return exitOK
}

func reportFailure(log *logger.Logger, err error) {
	var f *pipeline.Failure
	if !errors.As(err, &f) {
		log.WithError(err).Error("run failed")
		return
	}
	fmt.Fprintf(os.Stderr, "failed at stage %q (last successful: %q): %v\n", f.Stage, f.LastSuccessfulStage, f.Cause)
	if f.Transcript != nil {
		fmt.Fprintf(os.Stderr, "a transcript with %d segments was recovered\n", len(f.Transcript.Segments))
	}
}

func cmdBatch(ctx context.Context, cfg config.Config, log *logger.Logger, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "batch needs a manifest .xlsx")
		return exitUsage
	}
	entries, err := dataset.Load(args[0], log)
	if err != nil {
		log.WithError(err).Error("could not load manifest")
		return exitFail
	}
	a, err := newApp(cfg, log)
	if err != nil {
		log.WithError(err).Error("startup failed")
		return exitFail
	}

	outcomes := make([]dataset.Outcome, 0, len(entries))
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		o := dataset.Outcome{Entry: e, Status: dataset.StatusOK}
		res, err := a.ctrl.Run(ctx, e.Path, e.Title)
		o.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			o.Status = dataset.StatusFailed
			o.Error = err.Error()
			var f *pipeline.Failure
			if errors.As(err, &f) {
				o.RunID = f.RunID
			}
		} else {
			o.RunID = res.Record.Metadata.RunID
			o.Partial = res.Record.Metadata.Partial
			o.SummaryFile = res.Files.JSON
		}
		log.WithField("row", e.Row).WithField("status", o.Status).WithField("duration_ms", o.DurationMs).Info("batch row done")
		outcomes = append(outcomes, o)
	}

	sum := dataset.Summarize(outcomes)
	report := filepath.Join(cfg.Output.Dir, "batch_"+output.Stamp(time.Now())+".xlsx")
	err = os.MkdirAll(cfg.Output.Dir, 0o755)
	if err == nil {
		err = dataset.WriteReport(report, outcomes)
	}
	if err != nil {
		log.WithError(err).Warn("could not write batch report")
	} else {
		fmt.Fprintln(os.Stderr, "report:", report)
	}
	fmt.Printf("batch: %d total, %d ok (%d partial), %d failed\n", sum.Total, sum.OK, sum.Partial, sum.Failed)
	if sum.Failed > 0 || ctx.Err() != nil {
		return exitFail
	}
	return exitOK
}

func cmdWatch(ctx context.Context, cfg config.Config, log *logger.Logger, args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	existing := fs.Bool("existing", false, "also process files already in the directory")
	settle := fs.Duration("settle", 2*time.Second, "quiet period before a new file is processed")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "watch needs a directory")
		return exitUsage
	}
	a, err := newApp(cfg, log)
	if err != nil {
		log.WithError(err).Error("startup failed")
		return exitFail
	}

	w := watcher.New(fs.Arg(0), *settle, func(ctx context.Context, path string) error {
		res, err := a.ctrl.Run(ctx, path, "")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "saved:", res.Files.JSON)
		return nil
	}, log)
	w.ScanExisting = *existing
	if err := w.Run(ctx); err != nil {
		log.WithError(err).Error("watcher stopped")
		return exitFail
	}
	return exitOK
}

type check struct {
	name string
	err  error
}

func cmdStatus(ctx context.Context, cfg config.Config, log *logger.Logger) int {
	quiet := logger.Discard()
	dec := audio.NewDecoder(cfg.Audio, quiet)
	var checks []check

	var ffErr error
	if !dec.FFmpegAvailable() {
		ffErr = fmt.Errorf("%s not found, only WAV input will work", cfg.Audio.FFmpegPath)
	}
	checks = append(checks, check{"ffmpeg", ffErr})
	checks = append(checks, check{"output dir " + cfg.Output.Dir, writable(cfg.Output.Dir)})

	stt, err := transcription.New(cfg.STT, quiet)
	if err == nil {
		err = ping(ctx, stt)
	}
	checks = append(checks, check{"stt " + cfg.STT.Backend, err})

	gen, err := llm.New(cfg.LLM, quiet)
	if err == nil {
		err = ping(ctx, gen)
	}
	checks = append(checks, check{"llm " + cfg.LLM.Backend + " (" + cfg.LLM.Model + ")", err})

	code := exitOK
	for _, c := range checks {
		if c.err != nil {
			fmt.Printf("[fail] %s: %v\n", c.name, c.err)
			code = exitFail
			continue
		}
		fmt.Printf("[ok]   %s\n", c.name)
	}
	log.WithField("healthy", code == exitOK).Debug("status checked")
	return code
}

func ping(ctx context.Context, v any) error {
	p, ok := v.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return p.Ping(ctx)
}

func writable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(f.Name())
}

func cmdInfo(cfg config.Config) int {
	tokenizer := cfg.Chunker.Tokenizer
	if tokenizer == "approx" || tokenizer == "" {
		tokenizer = fmt.Sprintf("approx (%d chars/token)", cfg.Chunker.CharsPerToken)
	}
	rows := [][2]string{
		{"Supported formats", strings.Join(audio.SupportedFormats, " ")},
		{"Sample rate", fmt.Sprintf("%d Hz", cfg.Audio.SampleRate)},
		{"Audio chunks", fmt.Sprintf("%.0fs with %.0fs overlap", cfg.Audio.ChunkDuration, cfg.Audio.ChunkOverlap)},
		{"Min segment", fmt.Sprintf("%.1fs", cfg.Assembler.MinSegment)},
		{"Text chunks", fmt.Sprintf("%d tokens, %s", cfg.Chunker.MaxTokens, tokenizer)},
		{"Filler words", strings.Join(cfg.Normalizer.Fillers, ", ")},
		{"STT backend", cfg.STT.Backend + " (model " + cfg.STT.Model + ")"},
		{"LLM backend", cfg.LLM.Backend + " (model " + cfg.LLM.Model + ")"},
		{"Workers", fmt.Sprint(cfg.Workers)},
		{"Call timeout", cfg.Extractor.CallTimeout.String()},
		{"Output dir", cfg.Output.Dir},
		{"Save transcript", fmt.Sprint(cfg.Output.SaveTranscript)},
		{"XLSX report", fmt.Sprint(cfg.Output.XLSX)},
	}
	fmt.Println("meeting summarizer")
	fmt.Println("pipeline: decode > split > transcribe > assemble > normalize > chunk > extract > output")
	for _, r := range rows {
		fmt.Printf("  %-18s %s\n", r[0]+":", r[1])
	}
	return exitOK
}
