package drafting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"prospectus/internal/index"
	"prospectus/internal/logger"
	"prospectus/internal/progress"
	"prospectus/internal/section"
)

var ErrNoSections = errors.New("no sections selected")

const StageDraft = "draft"

type Retriever interface {
	RetrieveTopChunks(ctx context.Context, query string, k int) ([]index.Chunk, error)
}

type SectionDrafter interface {
	Draft(ctx context.Context, title, requirements string, chunks []index.Chunk) (string, error)
}

// FailureRecorder keeps a ledger of work that did not complete.
type FailureRecorder interface {
	Record(ctx context.Context, stage, subject string, payload []byte, cause error) error
}

type SectionResult struct {
	Section section.Requirement `json:"section"`
	Text    string              `json:"text"`
	Path    string              `json:"path,omitempty"`
	Failed  bool                `json:"failed"`
}

type RunnerConfig struct {
	TopK        int
	StopOnError bool
}

// Runner drafts sections one after another and reports progress.
type Runner struct {
	retriever Retriever
	drafter   SectionDrafter
	tracker   *progress.Tracker
	output    *OutputWriter
	failures  FailureRecorder
	cfg       RunnerConfig
}

func NewRunner(r Retriever, d SectionDrafter, t *progress.Tracker, out *OutputWriter, failures FailureRecorder, cfg RunnerConfig) *Runner {
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	return &Runner{retriever: r, drafter: d, tracker: t, output: out, failures: failures, cfg: cfg}
}

func FailureNote(title string, err error) string {
	return fmt.Sprintf("[%s]\n\nDrafting failed: %v. Manual draft required.", title, err)
}

// Run drafts every section in order. A failed section gets a failure note
// and the run continues unless StopOnError is set.
func (r *Runner) Run(ctx context.Context, sections []section.Requirement) ([]SectionResult, error) {
	if len(sections) == 0 {
		return nil, ErrNoSections
	}

	runID := uuid.New().String()
	ctx = logger.WithRunID(ctx, runID)
	r.tracker.Reset(len(sections))
	slog.InfoContext(ctx, "drafting run started", "sections", len(sections))

	results := make([]SectionResult, 0, len(sections))
	for _, sec := range sections {
		res, err := r.draftOne(ctx, sec)
		if err != nil {
			slog.ErrorContext(ctx, "section drafting failed", "section", sec.ID, "error", err)
			r.recordFailure(ctx, sec, err)
			if r.cfg.StopOnError {
				r.tracker.Fail()
				return results, fmt.Errorf("section %s: %w", sec.ID, err)
			}
			res = SectionResult{Section: sec, Text: FailureNote(sec.Title, err), Failed: true}
		}

		if r.output != nil {
			path, werr := r.output.WriteSection(sec, res.Text)
			if werr != nil {
				slog.WarnContext(ctx, "failed to write section file", "section", sec.ID, "error", werr)
			}
			res.Path = path
		}
		results = append(results, res)
		r.tracker.Advance()
	}

	if r.output != nil {
		if _, err := r.output.WriteCombined(results); err != nil {
			slog.WarnContext(ctx, "failed to write combined draft", "error", err)
		}
	}
	r.tracker.MarkDone()
	slog.InfoContext(ctx, "drafting run finished", "sections", len(results))
	return results, nil
}

func (r *Runner) draftOne(ctx context.Context, sec section.Requirement) (SectionResult, error) {
	query := sec.Title + "\n" + sec.Requirements
	chunks, err := r.retriever.RetrieveTopChunks(ctx, query, r.cfg.TopK)
	if err != nil {
		return SectionResult{}, fmt.Errorf("retrieve: %w", err)
	}
	text, err := r.drafter.Draft(ctx, sec.Title, sec.Requirements, chunks)
	if err != nil {
		return SectionResult{}, err
	}
	return SectionResult{Section: sec, Text: text}, nil
}

func (r *Runner) recordFailure(ctx context.Context, sec section.Requirement, cause error) {
	if r.failures == nil {
		return
	}
	payload := []byte(fmt.Sprintf(`{"section":%q}`, sec.ID))
	if err := r.failures.Record(ctx, StageDraft, sec.ID, payload, cause); err != nil {
		slog.WarnContext(ctx, "failed to record section failure", "section", sec.ID, "error", err)
	}
}
