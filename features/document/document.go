package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"prospectus/internal/config"
	"prospectus/internal/extract"
	"prospectus/internal/index"
	"prospectus/internal/ingest"
	"prospectus/internal/middleware"
	"prospectus/internal/retrieval"
)

var ErrUnsupportedType = errors.New("unsupported file type")

const (
	StatusIndexed = "indexed"
	StatusQueued  = "queued"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
)

type Ingester interface {
	IngestTask(ctx context.Context, t ingest.Task) (*index.DocumentIndex, error)
	IngestFiles(ctx context.Context, paths []string) ingest.Report
}

type Catalog interface {
	List(ctx context.Context) ([]index.Summary, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// UploadResult reports what happened to one uploaded file.
type UploadResult struct {
	File       string `json:"file"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks"`
	Error      string `json:"error,omitempty"`
}

// Passage is a retrieval hit without its vector.
type Passage struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Label        string  `json:"label,omitempty"`
	Text         string  `json:"text"`
	Score        float64 `json:"score"`
}

type Service struct {
	ingester  Ingester
	catalog   Catalog
	retriever Retriever
	pub       EventPublisher
	uploadDir string
	qaK       int
}

// NewService wires the document slice. When pub is non-nil uploads are
// queued for the ingest worker instead of indexed inline.
func NewService(ing Ingester, catalog Catalog, r Retriever, pub EventPublisher, uploadDir string, qaK int) *Service {
	if qaK <= 0 {
		qaK = retrieval.DefaultQAK
	}
	return &Service{ingester: ing, catalog: catalog, retriever: r, pub: pub, uploadDir: uploadDir, qaK: qaK}
}

// Upload stores src as <uuid>_<basename> under the upload directory and
// indexes or queues it.
func (s *Service) Upload(ctx context.Context, filename, mimeType string, src io.Reader) (UploadResult, error) {
	name := filepath.Base(filename)
	if !extract.Supported(name, mimeType) {
		return UploadResult{File: name}, fmt.Errorf("%w: %s", ErrUnsupportedType, name)
	}

	if err := os.MkdirAll(s.uploadDir, 0o750); err != nil {
		return UploadResult{File: name}, fmt.Errorf("create upload directory: %w", err)
	}
	stored := fmt.Sprintf("%s_%s", uuid.New().String(), name)
	path := filepath.Clean(filepath.Join(s.uploadDir, stored))

	if err := saveFile(path, src); err != nil {
		return UploadResult{File: name}, err
	}

	task := ingest.Task{
		DocumentID:    stored,
		OriginalName:  name,
		Path:          path,
		MimeType:      mimeType,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	res := UploadResult{File: name, DocumentID: stored}

	if s.pub != nil {
		body, err := task.Marshal()
		if err != nil {
			return res, err
		}
		if err := s.pub.Publish(config.TopicIngestDocument, body); err != nil {
			return res, fmt.Errorf("queue %s: %w", name, err)
		}
		res.Status = StatusQueued
		return res, nil
	}

	idx, err := s.ingester.IngestTask(ctx, task)
	switch {
	case err != nil:
		res.Status = StatusFailed
		res.Error = err.Error()
	case idx == nil:
		res.Status = StatusEmpty
	default:
		res.Status = StatusIndexed
		res.Chunks = len(idx.Chunks)
	}
	return res, nil
}

func saveFile(path string, src io.Reader) error {
	dst, err := os.Create(path) // #nosec G304 -- path is uuid + basename inside the upload dir
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Warn("failed to clean up upload", "path", path, "error", rmErr)
		}
		return fmt.Errorf("save upload: %w", err)
	}
	return dst.Close()
}

func (s *Service) IngestPaths(ctx context.Context, paths []string) ingest.Report {
	return s.ingester.IngestFiles(ctx, paths)
}

func (s *Service) List(ctx context.Context) ([]index.Summary, error) {
	return s.catalog.List(ctx)
}

// Search answers an ad-hoc question with the k nearest passages.
func (s *Service) Search(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = s.qaK
	}
	res, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]Passage, len(res))
	for i, r := range res {
		out[i] = Passage{
			DocumentID:   r.Chunk.DocumentID,
			DocumentName: r.Chunk.DocumentName,
			Label:        r.Chunk.Label,
			Text:         r.Chunk.Text,
			Score:        r.Score,
		}
	}
	return out, nil
}
