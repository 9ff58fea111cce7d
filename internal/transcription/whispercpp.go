package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

// WhisperCPPEngine shells out to a local whisper.cpp binary with JSON output.
type WhisperCPPEngine struct {
	BinaryPath string
	ModelPath  string
	Language   string
	TmpDir     string
	log        *logger.Logger
}

func NewWhisperCPPEngine(cfg config.STT, log *logger.Logger) *WhisperCPPEngine {
	return &WhisperCPPEngine{
		BinaryPath: cfg.WhisperPath,
		ModelPath:  cfg.Model,
		Language:   cfg.Language,
		log:        log.WithComponent("stt-whispercpp"),
	}
}

type whisperCPPOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (e *WhisperCPPEngine) Ping(ctx context.Context) error {
	if _, err := exec.LookPath(e.BinaryPath); err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if _, err := os.Stat(e.ModelPath); err != nil {
		return fmt.Errorf("%w: model %s: %v", ErrModelUnavailable, e.ModelPath, err)
	}
	return nil
}

func (e *WhisperCPPEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (Result, error) {
	if err := e.Ping(ctx); err != nil {
		return Result{}, err
	}
	dir, err := os.MkdirTemp(e.TmpDir, "whisper-*")
	if err != nil {
		return Result{}, fmt.Errorf("%w: temp dir: %v", ErrInference, err)
	}
	defer os.RemoveAll(dir)

	wavPath := filepath.Join(dir, "chunk.wav")
	f, err := os.Create(wavPath)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	err = audio.EncodeWAV(f, samples, sampleRate)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: write wav: %v", ErrInference, err)
	}

	outBase := filepath.Join(dir, "chunk")
	args := []string{"-m", e.ModelPath, "-f", wavPath, "-oj", "-of", outBase, "-np"}
	if e.Language != "" {
		args = append(args, "-l", e.Language)
	}
	cmd := exec.CommandContext(ctx, e.BinaryPath, args...)
	e.log.WithField("command", cmd.String()).Debug("executing whisper command")

	if _, err := cmd.Output(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("%w: whisper exited %d: %s", ErrInference, exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("%w: whisper execution failed: %v", ErrModelUnavailable, err)
	}

	raw, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return Result{}, fmt.Errorf("%w: read whisper output: %v", ErrInference, err)
	}
	return parseWhisperCPP(raw)
}

func parseWhisperCPP(raw []byte) (Result, error) {
	var out whisperCPPOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("%w: parse whisper output: %v", ErrInference, err)
	}
	segs := make([]types.Segment, 0, len(out.Transcription))
	for _, t := range out.Transcription {
		segs = append(segs, types.Segment{
			Text:  strings.TrimSpace(t.Text),
			Start: float64(t.Offsets.From) / 1000,
			End:   float64(t.Offsets.To) / 1000,
		})
	}
	return Result{Segments: clean(segs, out.Result.Language), Language: out.Result.Language}, nil
}
