package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortInputIsSingleChunk(t *testing.T) {
	s := Splitter{ChunkDuration: 900, Overlap: 30}
	samples := make([]float32, 16000*60)

	chunks, err := s.Split(samples, 16000)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsLast)
	assert.Zero(t, chunks[0].StartOffset)
	assert.Len(t, chunks[0].Samples, len(samples))
}

func TestSplitExactlyChunkDuration(t *testing.T) {
	s := Splitter{ChunkDuration: 10, Overlap: 2}
	chunks, err := s.Split(make([]float32, 100*10), 100)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsLast)
}

func TestSplitThirtyFiveMinutes(t *testing.T) {
	const rate = 100
	s := Splitter{ChunkDuration: 900, Overlap: 30}
	samples := make([]float32, 35*60*rate)

	chunks, err := s.Split(samples, rate)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, []float64{0, 870, 1740}, []float64{chunks[0].StartOffset, chunks[1].StartOffset, chunks[2].StartOffset})
	assert.InDelta(t, 900, chunks[0].Duration(), 1e-9)
	assert.InDelta(t, 900, chunks[1].Duration(), 1e-9)
	assert.InDelta(t, 360, chunks[2].Duration(), 1e-9)
	assert.False(t, chunks[0].IsLast)
	assert.False(t, chunks[1].IsLast)
	assert.True(t, chunks[2].IsLast)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, rate, c.SampleRate)
	}
	// consecutive chunks overlap by exactly 30s
	assert.InDelta(t, 30, chunks[0].End()-chunks[1].StartOffset, 1e-9)
	assert.InDelta(t, 30, chunks[1].End()-chunks[2].StartOffset, 1e-9)
	assert.InDelta(t, 2100, chunks[2].End(), 1e-9)
}

func TestSplitSampleAligned(t *testing.T) {
	s := Splitter{ChunkDuration: 1, Overlap: 0.25}
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = float32(i)
	}
	chunks, err := s.Split(samples, 400)
	require.NoError(t, err)
	for _, c := range chunks {
		first := int(c.Samples[0])
		assert.Equal(t, float64(first)/400, c.StartOffset)
	}
	last := chunks[len(chunks)-1]
	assert.Equal(t, float32(999), last.Samples[len(last.Samples)-1])
}

func TestSplitErrors(t *testing.T) {
	s := Splitter{ChunkDuration: 900, Overlap: 30}

	_, err := s.Split(nil, 16000)
	assert.ErrorIs(t, err, ErrInvalidAudio)

	_, err = s.Split(make([]float32, 10), 0)
	assert.ErrorIs(t, err, ErrInvalidAudio)

	_, err = Splitter{ChunkDuration: 30, Overlap: 30}.Split(make([]float32, 10), 16000)
	assert.ErrorIs(t, err, ErrInvalidSplit)

	_, err = Splitter{ChunkDuration: 30, Overlap: 45}.Split(make([]float32, 10), 16000)
	assert.ErrorIs(t, err, ErrInvalidSplit)
}
