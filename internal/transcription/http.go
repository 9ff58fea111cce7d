package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"meeting-insights-go/internal/audio"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

// HTTPEngine posts each chunk as a WAV body to a faster-whisper style server.
type HTTPEngine struct {
	URL      string
	Language string
	Model    string
	// MaxElapsed bounds transport-level retries inside one Transcribe call.
	MaxElapsed time.Duration
	client     *http.Client
	log        *logger.Logger
}

func NewHTTPEngine(cfg config.STT, log *logger.Logger) *HTTPEngine {
	return &HTTPEngine{
		URL:        cfg.URL,
		Language:   cfg.Language,
		Model:      cfg.Model,
		MaxElapsed: 15 * time.Second,
		client:     &http.Client{Timeout: cfg.Timeout},
		log:        log.WithComponent("stt-http"),
	}
}

type serverResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (e *HTTPEngine) Transcribe(ctx context.Context, samples []float32, sampleRate int) (Result, error) {
	if e.URL == "" {
		return Result{}, fmt.Errorf("%w: STT_URL not set", ErrModelUnavailable)
	}
	body, err := audio.WAVBytes(samples, sampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("%w: encode wav: %v", ErrInference, err)
	}

	u, err := url.Parse(e.URL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: bad STT_URL: %v", ErrModelUnavailable, err)
	}
	q := u.Query()
	if e.Language != "" {
		q.Set("language", e.Language)
	}
	if e.Model != "" {
		q.Set("model", e.Model)
	}
	u.RawQuery = q.Encode()

	reqID := uuid.New().String()
	log := e.log.WithField("req_id", reqID).WithField("audio_bytes", len(body))

	var resp serverResponse
	newReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "audio/wav")
		req.Header.Set("X-Request-ID", reqID)
		return req, nil
	}
	start := time.Now()
	if err := e.doJSON(ctx, newReq, &resp); err != nil {
		log.WithError(err).Warn("stt request failed")
		return Result{}, err
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).WithField("segments", len(resp.Segments)).Debug("stt response")

	var segs []types.Segment
	for _, s := range resp.Segments {
		segs = append(segs, types.Segment{Text: strings.TrimSpace(s.Text), Start: s.Start, End: s.End})
	}
	// servers that only return text get one segment spanning the chunk
	if len(segs) == 0 && strings.TrimSpace(resp.Text) != "" {
		segs = append(segs, types.Segment{
			Text:  strings.TrimSpace(resp.Text),
			Start: 0,
			End:   float64(len(samples)) / float64(sampleRate),
		})
	}
	return Result{Segments: clean(segs, resp.Language), Language: resp.Language}, nil
}

// Ping checks the server answers at all; any non-5xx status counts as up.
func (e *HTTPEngine) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrModelUnavailable, resp.StatusCode)
	}
	return nil
}

func (e *HTTPEngine) doJSON(ctx context.Context, newReq func() (*http.Request, error), target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = e.MaxElapsed

	op := func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrInference, err))
		}
		resp, err := e.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: server error %d: %s", ErrModelUnavailable, resp.StatusCode, truncate(body))
		case resp.StatusCode >= 400:
			// Permanent: don't retry on client errors
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrInference, resp.StatusCode, truncate(body)))
		case len(body) == 0:
			return fmt.Errorf("%w: empty body", ErrInference)
		}
		if err := json.Unmarshal(body, target); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: json decode error: %v body=%s", ErrInference, err, truncate(body)))
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrInference, err)
	}
	return err
}

func truncate(b []byte) string {
	const max = 300
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
