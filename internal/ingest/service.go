// Package ingest turns uploaded documents into embedded index entries.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"prospectus/internal/extract"
	"prospectus/internal/index"
	"prospectus/internal/provider"
	"prospectus/internal/section"
	"prospectus/internal/text"
)

const StageIngest = "ingest"

// Mirror receives a copy of every stored index, e.g. an ANN backend.
type Mirror interface {
	Upsert(ctx context.Context, idx index.DocumentIndex) error
}

type ManifestWriter interface {
	WriteManifest(ctx context.Context) (*index.Manifest, error)
}

type FailureRecorder interface {
	Record(ctx context.Context, stage, subject string, payload []byte, cause error) error
}

type Config struct {
	ChunkSize       int
	ChunkOverlap    int
	SummarizeSheets bool
}

type Service struct {
	extractor    *extract.Extractor
	embedder     provider.Embedder
	providerName string
	store        index.Store
	summarizer   provider.Chatter
	mirror       Mirror
	manifest     ManifestWriter
	failures     FailureRecorder
	cfg          Config
	now          func() time.Time
}

type Option func(*Service)

func WithMirror(m Mirror) Option { return func(s *Service) { s.mirror = m } }

func WithManifest(m ManifestWriter) Option { return func(s *Service) { s.manifest = m } }

func WithFailureRecorder(r FailureRecorder) Option { return func(s *Service) { s.failures = r } }

// WithSheetSummaries prefixes spreadsheet chunks with a model-written summary
// of their sheet when cfg.SummarizeSheets is set.
func WithSheetSummaries(c provider.Chatter) Option { return func(s *Service) { s.summarizer = c } }

func NewService(e provider.Embedder, providerName string, store index.Store, cfg Config, opts ...Option) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = text.DefaultMaxChars
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = text.DefaultOverlap
	}
	s := &Service{
		extractor:    extract.New(),
		embedder:     e,
		providerName: providerName,
		store:        store,
		cfg:          cfg,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IndexDocument extracts, chunks, embeds and stores one document under
// storedName. It returns nil, nil when the document yields no text.
func (s *Service) IndexDocument(ctx context.Context, buf []byte, storedName, originalName, mimeType string) (*index.DocumentIndex, error) {
	parts, err := s.extractor.ExtractParts(buf, originalName, mimeType)
	if err != nil {
		return nil, err
	}

	var (
		texts  []string
		labels []string
	)
	for _, p := range parts {
		pieces := text.Chunk(p.Text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
		if len(pieces) == 0 {
			continue
		}
		prefix := ""
		if p.Label != "" && s.cfg.SummarizeSheets && s.summarizer != nil {
			prefix = s.summarizeSheet(ctx, originalName, p) + "\n\n[Data]\n"
		}
		for _, piece := range pieces {
			texts = append(texts, prefix+piece)
			labels = append(labels, p.Label)
		}
	}
	if len(texts) == 0 {
		slog.InfoContext(ctx, "nothing to index", "document", originalName)
		return nil, nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", originalName, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed %s: got %d vectors for %d chunks", originalName, len(vectors), len(texts))
	}

	idx := index.DocumentIndex{
		DocumentID:   storedName,
		DocumentName: originalName,
		CreatedAt:    s.now().UTC(),
		Provider:     s.providerName,
		Dimension:    len(vectors[0]),
		Section:      section.ClassifyFile(originalName),
		Chunks:       make([]index.Chunk, len(texts)),
	}
	for i := range texts {
		idx.Chunks[i] = index.Chunk{
			ID:           uuid.New().String(),
			DocumentID:   storedName,
			DocumentName: originalName,
			Index:        i,
			Label:        labels[i],
			Text:         texts[i],
			Embedding:    vectors[i],
		}
	}

	if err := s.store.Put(ctx, storedName, idx); err != nil {
		return nil, err
	}
	if s.mirror != nil {
		if err := s.mirror.Upsert(ctx, idx); err != nil {
			return nil, fmt.Errorf("mirror %s: %w", storedName, err)
		}
	}

	slog.InfoContext(ctx, "document indexed", "document", originalName, "document_id", storedName, "chunks", len(idx.Chunks), "dimension", idx.Dimension)
	return &idx, nil
}

const sheetSampleChars = 2500

func (s *Service) summarizeSheet(ctx context.Context, filename string, p extract.Part) string {
	fallback := fmt.Sprintf("Table: %s / %s", filename, p.Label)

	sample := []rune(p.Text)
	if len(sample) > sheetSampleChars {
		sample = sample[:sheetSampleChars]
	}
	prompt := fmt.Sprintf("File: %s\nSheet: %s\n\nTable excerpt:\n---\n%s\n---\n\nSUMMARY:", filename, p.Label, string(sample))

	out, err := s.summarizer.Complete(ctx,
		"Summarize this table in 2-4 sentences. Capture key metrics, structure and data scope. Be factual and concise.",
		prompt, 0.2)
	if err != nil {
		slog.WarnContext(ctx, "sheet summary failed", "document", filename, "sheet", p.Label, "error", err)
		return fallback
	}
	out = text.Normalize(out)
	if out == "" {
		return fallback
	}
	return out
}

// LoadAllChunks returns every stored chunk.
func (s *Service) LoadAllChunks(ctx context.Context) ([]index.Chunk, error) {
	return s.store.LoadAll(ctx)
}

type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type Report struct {
	Documents int       `json:"documents"`
	Ingested  int       `json:"ingested"`
	Failures  []Failure `json:"failures"`
}

// IngestFiles indexes files from disk one at a time. A failing file is
// recorded and skipped.
func (s *Service) IngestFiles(ctx context.Context, paths []string) Report {
	rep := Report{Failures: []Failure{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			rep.Failures = append(rep.Failures, Failure{File: path, Error: err.Error()})
			continue
		}
		task := FileTask(path)
		idx, err := s.IndexTask(ctx, task)
		if err != nil {
			slog.ErrorContext(ctx, "ingest failed", "file", path, "error", err)
			rep.Failures = append(rep.Failures, Failure{File: path, Error: err.Error()})
			s.recordFailure(ctx, task, err)
			continue
		}
		if idx != nil {
			rep.Documents++
			rep.Ingested += len(idx.Chunks)
		}
	}
	s.RefreshManifest(ctx)
	return rep
}

// IngestTask indexes one task, recording a failure in the ledger and
// refreshing the manifest after a success.
func (s *Service) IngestTask(ctx context.Context, t Task) (*index.DocumentIndex, error) {
	idx, err := s.IndexTask(ctx, t)
	if err != nil {
		s.recordFailure(ctx, t, err)
		return nil, err
	}
	if idx != nil {
		s.RefreshManifest(ctx)
	}
	return idx, nil
}

// NewDocumentID returns a fresh storage id for a document named name, so
// ingesting the same name twice never replaces an earlier index.
func NewDocumentID(name string) string {
	return uuid.New().String() + "_" + index.SafeID(name)
}

// FileTask describes a file on disk under a fresh storage id.
func FileTask(path string) Task {
	name := filepath.Base(path)
	return Task{
		DocumentID:   NewDocumentID(name),
		OriginalName: name,
		Path:         path,
		MimeType:     mime.TypeByExtension(filepath.Ext(name)),
	}
}

// IndexTask reads the task's file and indexes it.
func (s *Service) IndexTask(ctx context.Context, t Task) (*index.DocumentIndex, error) {
	buf, err := os.ReadFile(t.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.Path, err)
	}
	name := t.OriginalName
	if name == "" {
		name = filepath.Base(t.Path)
	}
	id := t.DocumentID
	if id == "" {
		id = NewDocumentID(name)
	}
	return s.IndexDocument(ctx, buf, id, name, t.MimeType)
}

func (s *Service) recordFailure(ctx context.Context, t Task, cause error) {
	if s.failures == nil {
		return
	}
	payload, err := t.Marshal()
	if err != nil {
		return
	}
	if err := s.failures.Record(ctx, StageIngest, t.Path, payload, cause); err != nil {
		slog.WarnContext(ctx, "failed to record ingest failure", "file", t.Path, "error", err)
	}
}

// RefreshManifest rebuilds the manifest. Failures are logged.
func (s *Service) RefreshManifest(ctx context.Context) {
	if s.manifest == nil {
		return
	}
	if _, err := s.manifest.WriteManifest(ctx); err != nil {
		slog.WarnContext(ctx, "failed to write manifest", "error", err)
	}
}
