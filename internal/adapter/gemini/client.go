package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"prospectus/internal/provider"
)

const Name = "remote-b"

const (
	DefaultEmbedModel = "gemini-embedding-001"
	DefaultChatModel  = "gemini-1.5-flash"
)

type Config struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	BatchSize  int
	// Timeout bounds each API call. Zero means no limit beyond the caller's context.
	Timeout time.Duration
}

// Client serves embeddings and chat from the Gemini API. The underlying
// genai client is created on first use so that a missing key only fails the
// calls that need it.
type Client struct {
	apiKey     string
	embedModel string
	chatModel  string
	batchSize  int
	timeout    time.Duration
	clientOpts []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
}

var _ provider.Provider = (*Client)(nil)

func New(cfg Config, opts ...option.ClientOption) *Client {
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	return &Client{
		apiKey:     cfg.APIKey,
		embedModel: cfg.EmbedModel,
		chatModel:  cfg.ChatModel,
		batchSize:  cfg.BatchSize,
		timeout:    cfg.Timeout,
		clientOpts: opts,
	}
}

func (c *Client) Name() string { return Name }

// withTimeout applies the per-call timeout. The API key rides on the
// transport genai builds, so the timeout is carried by the context rather
// than a custom http.Client.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) getClient(ctx context.Context) (*genai.Client, error) {
	if c.apiKey == "" {
		return nil, &provider.ConfigurationError{Provider: Name, Setting: "GEMINI_API_KEY"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.clientOpts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: create client: %w", Name, err)
	}
	c.client = client
	return client, nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	em := client.EmbeddingModel(c.embedModel)
	return provider.EmbedInBatches(ctx, texts, c.batchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		slog.DebugContext(ctx, "embedding batch", "provider", Name, "model", c.embedModel, "count", len(batch))

		b := em.NewBatch()
		for _, t := range batch {
			b.AddContent(genai.Text(t))
		}
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		res, err := em.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, convertError("embed", err)
		}

		out := make([][]float32, 0, len(res.Embeddings))
		for _, e := range res.Embeddings {
			if e == nil {
				return nil, fmt.Errorf("%s: empty embedding received", Name)
			}
			out = append(out, e.Values)
		}
		return out, nil
	})
}

func (c *Client) Complete(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(c.chatModel)
	model.SetTemperature(temperature)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", convertError("chat", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%s: no candidates returned", Name)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func convertError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return provider.NewUpstreamError(Name, op, gerr.Code, []byte(body))
	}
	return fmt.Errorf("%s %s: %w", Name, op, err)
}
