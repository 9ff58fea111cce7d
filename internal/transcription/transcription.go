package transcription

import (
	"context"
	"errors"
	"fmt"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

var (
	ErrModelUnavailable = errors.New("stt model unavailable")
	ErrInference        = errors.New("stt inference failed")
)

// Result holds chunk-relative segments as returned by an engine.
type Result struct {
	Segments []types.Segment `json:"segments"`
	Language string          `json:"language"`
}

// Transcriber is the speech-to-text collaborator. Implementations must be safe for
// concurrent use; the pipeline calls Transcribe from several workers.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (Result, error)
}

// Pinger is implemented by engines that can report readiness without transcribing.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New builds the engine selected by cfg.Backend: http, whispercpp or mock.
func New(cfg config.STT, log *logger.Logger) (Transcriber, error) {
	switch cfg.Backend {
	case "http", "":
		return NewHTTPEngine(cfg, log), nil
	case "whispercpp":
		return NewWhisperCPPEngine(cfg, log), nil
	case "mock":
		return NewMockEngine(), nil
	}
	return nil, fmt.Errorf("unknown STT_BACKEND %q", cfg.Backend)
}

// clean drops empty segments and fixes inverted timestamps coming back from engines.
func clean(segs []types.Segment, language string) []types.Segment {
	out := make([]types.Segment, 0, len(segs))
	for _, s := range segs {
		if s.Text == "" {
			continue
		}
		if s.End < s.Start {
			s.End = s.Start
		}
		if s.Language == "" {
			s.Language = language
		}
		out = append(out, s)
	}
	return out
}
