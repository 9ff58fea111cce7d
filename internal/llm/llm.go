package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
)

var (
	ErrBackendUnavailable = errors.New("llm backend unavailable")
	ErrTimeout            = errors.New("llm call timed out")
)

// Generator is the single capability the extractor needs from a language model.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Pinger is implemented by backends that can report readiness cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New builds the backend selected by cfg.Backend: ollama, openai or mock.
func New(cfg config.LLM, log *logger.Logger) (Generator, error) {
	switch cfg.Backend {
	case "ollama", "":
		return NewOllama(cfg, log), nil
	case "openai":
		if cfg.GatewayURL == "" || cfg.APIKey == "" {
			return nil, fmt.Errorf("llm gateway not configured: LLM_GATEWAY_URL and LLM_API_KEY are required")
		}
		return NewOpenAI(cfg, log), nil
	case "mock":
		return NewMock(), nil
	}
	return nil, fmt.Errorf("unknown LLM_BACKEND %q", cfg.Backend)
}

// postWithRetry sends the request built by newReq, retrying transport errors and 5xx/429
// with exponential backoff until ctx is done or maxElapsed passes. 4xx is permanent.
func postWithRetry(ctx context.Context, client *http.Client, maxElapsed time.Duration, newReq func() (*http.Request, error)) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = maxElapsed

	var body []byte
	op := func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, truncate(b))
		case resp.StatusCode >= 400:
			// Permanent: don't retry on client errors
			return backoff.Permanent(fmt.Errorf("llm request rejected: status %d: %s", resp.StatusCode, truncate(b)))
		}
		body = b
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, classify(err)
	}
	return body, nil
}

// classify maps deadline expiry to ErrTimeout so callers can treat it as retryable.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
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
