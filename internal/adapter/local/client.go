// Package local talks to a self-hosted inference service exposing /embed and
// /generate.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"prospectus/internal/provider"
)

const Name = "local-service"

const (
	DefaultTimeout      = 120 * time.Second
	DefaultMaxNewTokens = 512
)

type Config struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
	BatchSize  int
	Timeout    time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	embedModel string
	chatModel  string
	batchSize  int
}

var _ provider.Provider = (*Client)(nil)

type embedRequest struct {
	Inputs []string `json:"inputs"`
	Model  string   `json:"model,omitempty"`
}

type embedResponse struct {
	Embeddings json.RawMessage `json:"embeddings"`
}

type generateParameters struct {
	Temperature  float32 `json:"temperature"`
	MaxNewTokens int     `json:"max_new_tokens"`
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Model      string             `json:"model,omitempty"`
	Parameters generateParameters `json:"parameters"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		batchSize:  cfg.BatchSize,
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.baseURL == "" {
		return nil, &provider.ConfigurationError{Provider: Name, Setting: "LOCAL_SERVICE_URL"}
	}
	return provider.EmbedInBatches(ctx, texts, c.batchSize, c.embedBatch)
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	slog.DebugContext(ctx, "embedding batch", "provider", Name, "count", len(texts))

	var resp embedResponse
	if err := c.post(ctx, "embed", "/embed", embedRequest{Inputs: texts, Model: c.embedModel}, &resp); err != nil {
		return nil, err
	}
	return decodeEmbeddings(resp.Embeddings)
}

// decodeEmbeddings accepts one vector per input or, for services that return
// token-level output, one matrix per input that is mean-pooled.
func decodeEmbeddings(raw json.RawMessage) ([][]float32, error) {
	var pooled [][]float32
	if err := json.Unmarshal(raw, &pooled); err == nil {
		return pooled, nil
	}

	var tokens [][][]float32
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("%s embed: unexpected embeddings shape: %w", Name, err)
	}
	out := make([][]float32, len(tokens))
	for i, t := range tokens {
		out[i] = provider.MeanPool(t)
	}
	return out, nil
}

// Complete sends system and prompt as one raw prompt. Text-generation
// pipelines often echo their input, so anything up to the last copy of the
// prompt is dropped.
func (c *Client) Complete(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	if c.baseURL == "" {
		return "", &provider.ConfigurationError{Provider: Name, Setting: "LOCAL_SERVICE_URL"}
	}

	full := prompt
	if system != "" {
		full = system + "\n\n" + prompt
	}

	req := generateRequest{
		Inputs: full,
		Model:  c.chatModel,
		Parameters: generateParameters{
			Temperature:  temperature,
			MaxNewTokens: DefaultMaxNewTokens,
		},
	}

	var raw json.RawMessage
	if err := c.post(ctx, "chat", "/generate", req, &raw); err != nil {
		return "", err
	}

	text, err := decodeGeneration(raw)
	if err != nil {
		return "", err
	}
	if i := strings.LastIndex(text, full); i >= 0 {
		text = text[i+len(full):]
	}
	return strings.TrimSpace(text), nil
}

func decodeGeneration(raw json.RawMessage) (string, error) {
	var list []generation
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", errors.New(Name + " chat: empty generation list")
		}
		return list[0].GeneratedText, nil
	}

	var single generation
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", fmt.Errorf("%s chat: decode response: %w", Name, err)
	}
	return single.GeneratedText, nil
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: send request: %w", Name, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", Name, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return provider.NewUpstreamError(Name, op, resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", Name, op, err)
	}
	return nil
}
