package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"prospectus/internal/index"
	"prospectus/internal/provider"
)

const (
	DefaultDraftK = 8
	DefaultQAK    = 6
)

type Result struct {
	Chunk index.Chunk `json:"chunk"`
	Score float64     `json:"score"`
}

// ChunkLoader supplies the full set of indexed chunks.
type ChunkLoader interface {
	LoadAll(ctx context.Context) ([]index.Chunk, error)
}

// Searcher is a nearest-neighbour backend that can replace the linear scan.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
}

type Service struct {
	embedder provider.Embedder
	loader   ChunkLoader
	searcher Searcher
	logger   *QueryLogger
}

func NewService(e provider.Embedder, l ChunkLoader, logger *QueryLogger) *Service {
	return &Service{embedder: e, loader: l, logger: logger}
}

// WithSearcher routes queries to an ANN backend instead of scanning the
// loader's chunks.
func (s *Service) WithSearcher(sr Searcher) *Service {
	s.searcher = sr
	return s
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// magnitude or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Retrieve returns at most k chunks ordered by descending similarity to
// query. An empty index yields an empty result without embedding the query.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	start := time.Now()
	if k <= 0 {
		k = DefaultDraftK
	}

	var (
		results []Result
		err     error
	)
	defer func() {
		if s.logger != nil && err == nil {
			entry := QueryLogEntry{Query: query, K: k, NumResults: len(results), Duration: time.Since(start)}
			if len(results) > 0 {
				entry.TopScore = results[0].Score
			}
			s.logger.Log(ctx, entry)
		}
	}()

	if s.searcher != nil {
		results, err = s.searchANN(ctx, query, k)
		return results, err
	}

	chunks, err := s.loader.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if len(chunks) == 0 {
		results = []Result{}
		return results, nil
	}

	qv, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	results = make([]Result, 0, len(chunks))
	skipped := 0
	for _, c := range chunks {
		if len(c.Embedding) != len(qv) {
			skipped++
			continue
		}
		results = append(results, Result{Chunk: c, Score: Cosine(qv, c.Embedding)})
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "skipped chunks with mismatched embedding dimension", "skipped", skipped, "dimension", len(qv))
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *Service) searchANN(ctx context.Context, query string, k int) ([]Result, error) {
	qv, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	res, err := s.searcher.Search(ctx, qv, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	return vecs[0], nil
}

// RetrieveTopChunks is Retrieve without the scores.
func (s *Service) RetrieveTopChunks(ctx context.Context, query string, k int) ([]index.Chunk, error) {
	res, err := s.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]index.Chunk, len(res))
	for i, r := range res {
		chunks[i] = r.Chunk
	}
	return chunks, nil
}
