package types

// AudioChunk is one bounded slice of decoded mono audio handed to the STT engine.
// StartOffset is in seconds relative to the start of the recording.
type AudioChunk struct {
	Index       int       `json:"index"`
	Samples     []float32 `json:"-"`
	SampleRate  int       `json:"sample_rate"`
	StartOffset float64   `json:"start_offset"`
	IsLast      bool      `json:"is_last"`
}

func (c AudioChunk) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

func (c AudioChunk) End() float64 {
	return c.StartOffset + c.Duration()
}

// Segment is a span of recognized speech. Times are seconds; relative to the
// chunk when returned by an engine, absolute after assembly.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Language string  `json:"language,omitempty"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// ChunkTranscript pairs an audio chunk with the segments the engine returned for it.
type ChunkTranscript struct {
	Chunk    AudioChunk
	Segments []Segment
	Language string
}

type Transcript struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// Duration is the end time of the last segment.
func (t Transcript) Duration() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

// TextChunk is a token-bounded slice of normalized transcript text. Index is 1-based.
type TextChunk struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	ApproxTokens int    `json:"approx_tokens"`
}
