// Package llm performs the supplementary field extraction call against a
// local language-model HTTP endpoint. One best-effort round trip, no retry,
// no state; callers record failures as soft metadata.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultMaxSample = 8000
)

// Config controls the Client.
type Config struct {
	// Endpoint is the completion URL of the local model server.
	Endpoint string
	// Model names the model passed to the endpoint.
	Model string
	// Timeout bounds the single round trip.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Fields are the supplementary values the model is asked for.
type Fields struct {
	Summary  string   `json:"summary,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Language string   `json:"language,omitempty"`
}

// Client calls the local model endpoint.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// ExtractFields sends a content sample to the model and parses the JSON it
// returns. Any failure is returned to the caller for soft handling.
func (c *Client) ExtractFields(ctx context.Context, content string) (Fields, error) {
	if c.cfg.Endpoint == "" {
		return Fields{}, fmt.Errorf("llm endpoint not configured")
	}
	if len(content) > defaultMaxSample {
		content = content[:defaultMaxSample]
	}

	prompt := "Extract a one-sentence summary, up to five keywords, and the ISO language code " +
		"from the following article text. Respond with JSON holding keys summary, keywords, language.\n\n" + content

	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return Fields{}, fmt.Errorf("encode llm request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Fields{}, fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Fields{}, fmt.Errorf("llm call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Fields{}, fmt.Errorf("llm call: unexpected status %d", resp.StatusCode)
	}
	var wrapper generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return Fields{}, fmt.Errorf("decode llm response: %w", err)
	}
	var fields Fields
	if err := json.Unmarshal([]byte(wrapper.Response), &fields); err != nil {
		return Fields{}, fmt.Errorf("parse llm fields: %w", err)
	}
	c.logger.Debug("llm supplement extracted", zap.String("language", fields.Language))
	return fields, nil
}
