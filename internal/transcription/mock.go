package transcription

import (
	"context"

	"meeting-insights-go/internal/types"
)

var mockScript = []string{
	"Thanks everyone for joining, let's review the launch plan.",
	"We will launch the beta in March.",
	"Priya will finalize the pricing page by Friday.",
	"We agreed to drop the legacy export feature.",
	"Marketing needs the release notes two weeks ahead.",
	"Let's meet again next Tuesday to confirm the date.",
}

// MockEngine emits one scripted sentence every SegmentSeconds of audio.
type MockEngine struct {
	SegmentSeconds float64
	Script         []string
}

func NewMockEngine() *MockEngine {
	return &MockEngine{SegmentSeconds: 5, Script: mockScript}
}

func (m *MockEngine) Ping(ctx context.Context) error { return nil }

func (m *MockEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if sampleRate <= 0 || len(m.Script) == 0 {
		return Result{}, ErrInference
	}
	dur := float64(len(samples)) / float64(sampleRate)
	step := m.SegmentSeconds
	if step <= 0 {
		step = 5
	}
	var segs []types.Segment
	for i := 0; float64(i)*step < dur; i++ {
		end := min(float64(i+1)*step, dur)
		segs = append(segs, types.Segment{
			Text:     m.Script[i%len(m.Script)],
			Start:    float64(i) * step,
			End:      end,
			Language: "en",
		})
	}
	return Result{Segments: segs, Language: "en"}, nil
}
