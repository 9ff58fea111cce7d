package types

const (
	DefaultOwner    = "Unassigned"
	DefaultDeadline = "TBD"
)

type ActionItem struct {
	Task     string `json:"task"`
	Owner    string `json:"owner"`
	Deadline string `json:"deadline"`
}

type ExtractionResult struct {
	Summary     string       `json:"summary"`
	KeyTopics   []string     `json:"key_topics"`
	Decisions   []string     `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
}

// ChunkExtraction is the outcome of the four extraction calls for one text chunk.
type ChunkExtraction struct {
	Index      int              `json:"index"`
	Result     ExtractionResult `json:"result"`
	Error      string           `json:"error,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

func (c ChunkExtraction) Failed() bool {
	return c.Error != ""
}

type StageTiming struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"duration_ms"`
}

type Metadata struct {
	RunID             string        `json:"run_id"`
	Language          string        `json:"language"`
	NumSegments       int           `json:"num_segments"`
	NumAudioChunks    int           `json:"num_audio_chunks"`
	NumTextChunks     int           `json:"num_text_chunks"`
	SampleRate        int           `json:"sample_rate"`
	Partial           bool          `json:"partial"`
	FailedAudioChunks []int         `json:"failed_audio_chunks,omitempty"`
	FailedTextChunks  []int         `json:"failed_text_chunks,omitempty"`
	Stages            []StageTiming `json:"processing_stages"`
}

// Record is the persisted summary of one run.
type Record struct {
	MeetingTitle    string       `json:"meeting_title"`
	DurationMinutes float64      `json:"duration_minutes"`
	Timestamp       string       `json:"timestamp"`
	Summary         string       `json:"summary"`
	KeyTopics       []string     `json:"key_topics"`
	Decisions       []string     `json:"decisions"`
	ActionItems     []ActionItem `json:"action_items"`
	Metadata        Metadata     `json:"metadata"`
}
