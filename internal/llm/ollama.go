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

// Ollama talks to a local Ollama server through /api/generate.
type Ollama struct {
	BaseURL     string
	Model       string
	Temperature float64
	TopP        float64
	MaxElapsed  time.Duration
	client      *http.Client
	log         *logger.Logger
}

func NewOllama(cfg config.LLM, log *logger.Logger) *Ollama {
	return &Ollama{
		BaseURL:     strings.TrimRight(cfg.OllamaURL, "/"),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxElapsed:  10 * time.Second,
		client:      &http.Client{Timeout: cfg.Timeout},
		log:         log.WithComponent("llm-ollama"),
	}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (o *Ollama) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	data, _ := json.Marshal(ollamaRequest{
		Model:  o.Model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: o.Temperature,
			TopP:        o.TopP,
			NumPredict:  maxTokens,
		},
	})

	start := time.Now()
	body, err := postWithRetry(ctx, o.client, o.MaxElapsed, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		o.log.WithError(err).Warn("ollama request failed")
		return "", err
	}

	var out ollamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %v", ErrBackendUnavailable, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrBackendUnavailable, out.Error)
	}
	o.log.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("response_len", len(out.Response)).
		Debug("ollama generate")
	return strings.TrimSpace(out.Response), nil
}

// Ping lists local models and checks the configured one is pulled.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("%w: decode tags: %v", ErrBackendUnavailable, err)
	}
	for _, m := range tags.Models {
		if m.Name == o.Model || strings.TrimSuffix(m.Name, ":latest") == o.Model {
			return nil
		}
	}
	return fmt.Errorf("%w: model %s not pulled (run: ollama pull %s)", ErrBackendUnavailable, o.Model, o.Model)
}
