package draft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"prospectus/internal/drafting"
	"prospectus/internal/index"
	"prospectus/internal/progress"
	"prospectus/internal/retrieval"
	"prospectus/internal/section"
)

var ErrRunInProgress = errors.New("a drafting run is already in progress")

type Runner interface {
	Run(ctx context.Context, sections []section.Requirement) ([]drafting.SectionResult, error)
}

type Retriever interface {
	RetrieveTopChunks(ctx context.Context, query string, k int) ([]index.Chunk, error)
}

type SectionDrafter interface {
	Draft(ctx context.Context, title, requirements string, chunks []index.Chunk) (string, error)
	DraftWithTemperature(ctx context.Context, title, requirements string, chunks []index.Chunk, temperature float32) (string, error)
}

type OutputReader interface {
	ReadCombined() ([]byte, error)
}

// SectionRequest drafts one section outside a run. Section may be a
// catalog id or a free-form title.
type SectionRequest struct {
	Section      string   `json:"section"`
	Requirements string   `json:"requirements"`
	TopK         int      `json:"top_k"`
	Temperature  *float32 `json:"temperature,omitempty"`
}

type Service struct {
	runner    Runner
	retriever Retriever
	drafter   SectionDrafter
	catalog   *section.Catalog
	tracker   *progress.Tracker
	output    OutputReader
	topK      int

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func NewService(runner Runner, r Retriever, d SectionDrafter, catalog *section.Catalog, tracker *progress.Tracker, out OutputReader, topK int) *Service {
	if topK <= 0 {
		topK = retrieval.DefaultDraftK
	}
	return &Service{
		runner:    runner,
		retriever: r,
		drafter:   d,
		catalog:   catalog,
		tracker:   tracker,
		output:    out,
		topK:      topK,
	}
}

// Start launches a drafting run over the selected sections in the
// background and returns how many were selected. Only one run is active
// at a time.
func (s *Service) Start(ctx context.Context, ids []string) (int, error) {
	sections := s.catalog.Select(ctx, ids)
	if len(sections) == 0 {
		return 0, drafting.ErrNoSections
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		if _, err := s.runner.Run(runCtx, sections); err != nil {
			slog.ErrorContext(runCtx, "drafting run failed", "error", err)
		}
	}()
	return len(sections), nil
}

// Run drafts the selected sections in the foreground.
func (s *Service) Run(ctx context.Context, ids []string) ([]drafting.SectionResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	return s.runner.Run(ctx, s.catalog.Select(ctx, ids))
}

// Wait blocks until any background run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Progress() progress.State {
	return s.tracker.Read()
}

func (s *Service) Output() ([]byte, error) {
	return s.output.ReadCombined()
}

// DraftSection retrieves evidence for one section and drafts it.
func (s *Service) DraftSection(ctx context.Context, req SectionRequest) (string, error) {
	title := strings.TrimSpace(req.Section)
	if title == "" {
		return "", fmt.Errorf("section is required")
	}
	requirements := strings.TrimSpace(req.Requirements)
	if sec, ok := s.catalog.Get(title); ok {
		title = sec.Title
		if requirements == "" {
			requirements = sec.Requirements
		}
	}

	k := req.TopK
	if k <= 0 {
		k = s.topK
	}
	chunks, err := s.retriever.RetrieveTopChunks(ctx, title+"\n"+requirements, k)
	if err != nil {
		return "", fmt.Errorf("retrieve %q: %w", title, err)
	}

	if req.Temperature != nil {
		return s.drafter.DraftWithTemperature(ctx, title, requirements, chunks, *req.Temperature)
	}
	return s.drafter.Draft(ctx, title, requirements, chunks)
}
