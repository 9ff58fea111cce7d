package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"meeting-insights-go/internal/config"
)

// TokenCounter estimates how many model tokens a text costs.
type TokenCounter interface {
	Count(text string) int
}

// ApproxCounter charges one token per CharsPerToken runes, rounded up.
type ApproxCounter struct {
	CharsPerToken int
}

func (a ApproxCounter) Count(text string) int {
	cpt := a.CharsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	n := utf8.RuneCountInString(text)
	return (n + cpt - 1) / cpt
}

// TiktokenCounter counts with a BPE encoding such as cl100k_base. The encoding file is
// fetched on first use and cached under TIKTOKEN_CACHE_DIR.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) Count(text string) int {
	return len(t.enc.EncodeOrdinary(text))
}

// NewCounter picks the approximation unless cfg.Tokenizer names a BPE encoding.
func NewCounter(cfg config.Chunker) (TokenCounter, error) {
	switch cfg.Tokenizer {
	case "", "approx":
		return ApproxCounter{CharsPerToken: cfg.CharsPerToken}, nil
	}
	return NewTiktokenCounter(cfg.Tokenizer)
}
