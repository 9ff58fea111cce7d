package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultFillers is the filler vocabulary stripped from transcripts unless FILLER_WORDS overrides it.
var DefaultFillers = []string{
	"um", "uh", "er", "ah", "hmm",
	"you know", "i mean", "like", "basically", "actually",
	"honestly", "literally", "right", "okay", "so", "just",
}

type Audio struct {
	SampleRate    int
	ChunkDuration float64
	ChunkOverlap  float64
	FFmpegPath    string
	MaxFileBytes  int64
}

type Assembler struct {
	Overlap    float64
	MinSegment float64
	// TrimOverlap drops earlier-chunk overlap segments that the later chunk re-covers
	// even when the text differs.
	TrimOverlap bool
}

type Normalizer struct {
	Fillers []string
}

type Chunker struct {
	MaxTokens     int
	CharsPerToken int
	Tokenizer     string
}

type Extractor struct {
	CallTimeout   time.Duration
	Workers       int
	MinTranscript int
	Temperature   float64
}

type STT struct {
	Backend     string
	URL         string
	WhisperPath string
	Model       string
	Language    string
	Timeout     time.Duration
}

type LLM struct {
	Backend     string
	OllamaURL   string
	GatewayURL  string
	APIKey      string
	Model       string
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

type Output struct {
	Dir            string
	SaveTranscript bool
	XLSX           bool
}

type Config struct {
	Audio      Audio
	Assembler  Assembler
	Normalizer Normalizer
	Chunker    Chunker
	Extractor  Extractor
	STT        STT
	LLM        LLM
	Output     Output
	Workers    int
}

// Load reads the process environment. Call godotenv.Load first to pick up a .env file.
func Load() (Config, error) {
	var errs []error
	num := func(k string, def float64) float64 {
		v, err := envFloat(k, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	integer := func(k string, def int) int {
		v, err := envInt(k, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	dur := func(k string, def time.Duration) time.Duration {
		v, err := envDuration(k, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	overlap := num("CHUNK_OVERLAP_SEC", 30)
	callTimeout := dur("CALL_TIMEOUT", 120*time.Second)
	workers := integer("WORKERS", 1)
	temperature := num("LLM_TEMPERATURE", 0.3)

	c := Config{
		Audio: Audio{
			SampleRate:    integer("SAMPLE_RATE", 16000),
			ChunkDuration: num("CHUNK_DURATION_SEC", 900),
			ChunkOverlap:  overlap,
			FFmpegPath:    envOr("FFMPEG_PATH", "ffmpeg"),
			MaxFileBytes:  int64(integer("MAX_FILE_SIZE_MB", 5*1024)) << 20,
		},
		Assembler: Assembler{
			Overlap:     overlap,
			MinSegment:  num("MIN_SEGMENT_SEC", 1.0),
			TrimOverlap: envBool("TRIM_OVERLAP", true),
		},
		Normalizer: Normalizer{
			Fillers: envList("FILLER_WORDS", DefaultFillers),
		},
		Chunker: Chunker{
			MaxTokens:     integer("MAX_TOKENS_PER_CHUNK", 1500),
			CharsPerToken: integer("CHARS_PER_TOKEN", 4),
			Tokenizer:     envOr("TOKENIZER", "approx"),
		},
		Extractor: Extractor{
			CallTimeout:   callTimeout,
			Workers:       workers,
			MinTranscript: integer("MIN_TRANSCRIPT_CHARS", 50),
			Temperature:   temperature,
		},
		STT: STT{
			Backend:     envOr("STT_BACKEND", "http"),
			URL:         envOr("STT_URL", "http://localhost:8000/transcribe"),
			WhisperPath: envOr("WHISPER_CPP_PATH", "whisper-cli"),
			Model:       envOr("WHISPER_MODEL", "base"),
			Language:    os.Getenv("STT_LANGUAGE"),
			Timeout:     callTimeout,
		},
		LLM: LLM{
			Backend:     envOr("LLM_BACKEND", "ollama"),
			OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
			GatewayURL:  os.Getenv("LLM_GATEWAY_URL"),
			APIKey:      os.Getenv("LLM_API_KEY"),
			Model:       envOr("LLM_MODEL", "mistral:7b"),
			Temperature: temperature,
			TopP:        num("LLM_TOP_P", 0.9),
			Timeout:     callTimeout,
		},
		Output: Output{
			Dir:            envOr("OUTPUT_DIR", "output"),
			SaveTranscript: envBool("SAVE_TRANSCRIPT", true),
			XLSX:           envBool("OUTPUT_XLSX", false),
		},
		Workers: workers,
	}

	// mock switches kept for offline demos
	if os.Getenv("USE_MOCK_TRANSCRIBE") == "true" {
		c.STT.Backend = "mock"
	}
	if os.Getenv("USE_MOCK_LLM") == "true" {
		c.LLM.Backend = "mock"
	}

	if len(errs) > 0 {
		return c, errors.Join(errs...)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Audio.SampleRate <= 0:
		return fmt.Errorf("%w: SAMPLE_RATE must be positive", ErrInvalidConfig)
	case c.Audio.ChunkDuration <= 0:
		return fmt.Errorf("%w: CHUNK_DURATION_SEC must be positive", ErrInvalidConfig)
	case c.Audio.ChunkOverlap < 0 || c.Audio.ChunkOverlap >= c.Audio.ChunkDuration:
		return fmt.Errorf("%w: CHUNK_OVERLAP_SEC must be in [0, CHUNK_DURATION_SEC)", ErrInvalidConfig)
	case c.Chunker.MaxTokens <= 0:
		return fmt.Errorf("%w: MAX_TOKENS_PER_CHUNK must be positive", ErrInvalidConfig)
	case c.Chunker.CharsPerToken <= 0:
		return fmt.Errorf("%w: CHARS_PER_TOKEN must be positive", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: WORKERS must be positive", ErrInvalidConfig)
	case c.Extractor.CallTimeout <= 0:
		return fmt.Errorf("%w: CALL_TIMEOUT must be positive", ErrInvalidConfig)
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, k, v)
	}
	return n, nil
}

func envFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, k, v)
	}
	return f, nil
}

// envDuration accepts Go durations ("90s") or bare seconds ("90").
func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, k, v)
	}
	return d, nil
}

func envBool(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func envList(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
