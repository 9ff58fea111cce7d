package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
)

// OpenAI calls an OpenAI-compatible chat completions gateway.
type OpenAI struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float64
	MaxElapsed  time.Duration
	client      *http.Client
	log         *logger.Logger
}

func NewOpenAI(cfg config.LLM, log *logger.Logger) *OpenAI {
	return &OpenAI{
		URL:         cfg.GatewayURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxElapsed:  10 * time.Second,
		client:      &http.Client{Timeout: cfg.Timeout},
		log:         log.WithComponent("llm-openai"),
	}
}

func (o *OpenAI) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	reqBody := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": o.Temperature,
	}
	if maxTokens > 0 {
		reqBody["max_tokens"] = maxTokens
	}
	data, _ := json.Marshal(reqBody)
	o.log.WithField("payload_len", len(data)).Debug("llm request")

	body, err := postWithRetry(ctx, o.client, o.MaxElapsed, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		o.log.WithError(err).Warn("llm request failed")
		return "", err
	}

	content, ok := extractContentFromChoices(body)
	if !ok {
		return "", fmt.Errorf("%w: no choices in response: %s", ErrBackendUnavailable, truncate(body))
	}
	return strings.TrimSpace(content), nil
}

func (o *OpenAI) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

// extractContentFromChoices reads openai-style choices[0].message.content
func extractContentFromChoices(body []byte) (string, bool) {
	var obj struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &obj); err != nil || len(obj.Choices) == 0 {
		return "", false
	}
	c0 := obj.Choices[0]
	if c0.Message.Content != "" {
		return c0.Message.Content, true
	}
	// legacy completions shape
	return c0.Text, true
}
