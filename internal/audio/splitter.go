package audio

import (
	"errors"
	"fmt"
	"math"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/types"
)

var ErrInvalidSplit = errors.New("invalid split configuration")

// Splitter cuts a sample buffer into fixed-length chunks that overlap by Overlap seconds.
type Splitter struct {
	ChunkDuration float64
	Overlap       float64
}

func NewSplitter(cfg config.Audio) Splitter {
	return Splitter{ChunkDuration: cfg.ChunkDuration, Overlap: cfg.ChunkOverlap}
}

// Split returns chunks in order. Each chunk starts ChunkDuration-Overlap seconds after the
// previous one; the last chunk ends exactly at the end of the buffer and may be shorter.
// Chunks share the input's backing array, so samples must not be modified afterwards.
func (s Splitter) Split(samples []float32, sampleRate int) ([]types.AudioChunk, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty sample buffer", ErrInvalidAudio)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidAudio, sampleRate)
	}
	if s.ChunkDuration <= 0 || s.Overlap < 0 || s.Overlap >= s.ChunkDuration {
		return nil, fmt.Errorf("%w: chunk %.3fs overlap %.3fs", ErrInvalidSplit, s.ChunkDuration, s.Overlap)
	}

	chunkLen := int(math.Round(s.ChunkDuration * float64(sampleRate)))
	overlapLen := int(math.Round(s.Overlap * float64(sampleRate)))
	stride := chunkLen - overlapLen
	if chunkLen <= 0 || stride <= 0 {
		return nil, fmt.Errorf("%w: chunk shorter than one sample at %d Hz", ErrInvalidSplit, sampleRate)
	}

	n := len(samples)
	var chunks []types.AudioChunk
	for start := 0; ; start += stride {
		end := min(start+chunkLen, n)
		last := end == n
		chunks = append(chunks, types.AudioChunk{
			Index:       len(chunks),
			Samples:     samples[start:end:end],
			SampleRate:  sampleRate,
			StartOffset: float64(start) / float64(sampleRate),
			IsLast:      last,
		})
		if last {
			return chunks, nil
		}
	}
}
