// Package provider defines the embedding and chat contracts shared by every
// model backend, together with the helpers the adapters use to honour them.
package provider

import (
	"context"
	"fmt"
)

const DefaultBatchSize = 32

// Embedder maps texts to vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chatter generates text from a system instruction and a user prompt.
type Chatter interface {
	Complete(ctx context.Context, system, prompt string, temperature float32) (string, error)
}

// Provider is one model backend serving both embeddings and chat.
type Provider interface {
	Embedder
	Chatter
	Name() string
}

// EmbedInBatches calls fn on consecutive slices of at most size texts and
// stitches the vectors back together in input order.
func EmbedInBatches(ctx context.Context, texts []string, size int, fn func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if size <= 0 {
		size = DefaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))

		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch [%d:%d]: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("batch [%d:%d]: got %d vectors for %d texts", start, end, len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// MeanPool reduces per-token vectors to one vector by elementwise mean.
// Tokens whose width differs from the first are ignored.
func MeanPool(tokens [][]float32) []float32 {
	if len(tokens) == 0 {
		return nil
	}
	dim := len(tokens[0])
	sum := make([]float64, dim)
	n := 0
	for _, tok := range tokens {
		if len(tok) != dim {
			continue
		}
		for i, v := range tok {
			sum[i] += float64(v)
		}
		n++
	}

	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(n))
	}
	return out
}
