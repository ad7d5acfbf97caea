// Package index persists one JSON index file per ingested document and loads
// them back for retrieval.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const manifestName = "manifest.json"

// Chunk is an embedded slice of a document. It is never modified after
// creation.
type Chunk struct {
	ID           string    `json:"id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	Index        int       `json:"index"`
	Label        string    `json:"label,omitempty"`
	Text         string    `json:"text"`
	Embedding    []float32 `json:"embedding"`
}

type DocumentIndex struct {
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	CreatedAt    time.Time `json:"created_at"`
	Provider     string    `json:"provider"`
	Dimension    int       `json:"dimension"`
	Section      string    `json:"section,omitempty"`
	Chunks       []Chunk   `json:"chunks"`
}

// Summary describes a stored index without its vectors.
type Summary struct {
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	CreatedAt    time.Time `json:"created_at"`
	Provider     string    `json:"provider"`
	Dimension    int       `json:"dimension"`
	Section      string    `json:"section,omitempty"`
	ChunkCount   int       `json:"chunk_count"`
	Labels       []string  `json:"labels,omitempty"`
}

// Store is what the ingestion and retrieval layers need from an index.
type Store interface {
	Put(ctx context.Context, documentID string, idx DocumentIndex) error
	LoadAll(ctx context.Context) ([]Chunk, error)
}

type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Dir() string { return s.dir }

// SafeID maps an identifier to a file-name-safe form: letters, digits and
// "._-" are kept, everything else becomes '_'.
func SafeID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func (s *FileStore) path(documentID string) string {
	return filepath.Join(s.dir, SafeID(documentID)+".json")
}

// Put writes the index through a temporary file and a rename so LoadAll
// never observes a partially written document.
func (s *FileStore) Put(ctx context.Context, documentID string, idx DocumentIndex) error {
	if documentID == "" {
		return errors.New("index: empty document id")
	}
	if idx.DocumentID == "" {
		idx.DocumentID = documentID
	}
	if idx.CreatedAt.IsZero() {
		idx.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("index: marshal %s: %w", documentID, err)
	}
	if err := writeFileAtomic(s.dir, s.path(documentID), data); err != nil {
		return fmt.Errorf("index: write %s: %w", documentID, err)
	}

	slog.DebugContext(ctx, "document index written", "document_id", documentID, "chunks", len(idx.Chunks))
	return nil
}

func writeFileAtomic(dir, dest string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Get loads a single document index.
func (s *FileStore) Get(_ context.Context, documentID string) (*DocumentIndex, error) {
	data, err := os.ReadFile(s.path(documentID))
	if err != nil {
		return nil, err
	}
	var idx DocumentIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("index: decode %s: %w", documentID, err)
	}
	return &idx, nil
}

type loaded struct {
	name string
	idx  DocumentIndex
}

// readAll returns every readable index ordered by creation time, then file
// name. Unreadable and corrupt files are skipped.
func (s *FileStore) readAll(ctx context.Context) ([]loaded, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: read dir: %w", err)
	}

	var docs []loaded
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || name == manifestName {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable index file", "file", name, "error", err)
			continue
		}
		var idx DocumentIndex
		if err := json.Unmarshal(data, &idx); err != nil {
			slog.WarnContext(ctx, "skipping corrupt index file", "file", name, "error", err)
			continue
		}
		docs = append(docs, loaded{name: name, idx: idx})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].idx.CreatedAt.Equal(docs[j].idx.CreatedAt) {
			return docs[i].idx.CreatedAt.Before(docs[j].idx.CreatedAt)
		}
		return docs[i].name < docs[j].name
	})
	return docs, nil
}

func (s *FileStore) LoadAll(ctx context.Context) ([]Chunk, error) {
	docs, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	var chunks []Chunk
	for _, d := range docs {
		chunks = append(chunks, d.idx.Chunks...)
	}
	return chunks, nil
}

func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	docs, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(docs))
	for _, d := range docs {
		out = append(out, summarize(d.idx))
	}
	return out, nil
}

// Count returns the number of documents and chunks in the store.
func (s *FileStore) Count(ctx context.Context) (documents, chunks int, err error) {
	docs, err := s.readAll(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, d := range docs {
		chunks += len(d.idx.Chunks)
	}
	return len(docs), chunks, nil
}

func summarize(idx DocumentIndex) Summary {
	sum := Summary{
		DocumentID:   idx.DocumentID,
		DocumentName: idx.DocumentName,
		CreatedAt:    idx.CreatedAt,
		Provider:     idx.Provider,
		Dimension:    idx.Dimension,
		Section:      idx.Section,
		ChunkCount:   len(idx.Chunks),
	}
	seen := map[string]bool{}
	for _, c := range idx.Chunks {
		if c.Label != "" && !seen[c.Label] {
			seen[c.Label] = true
			sum.Labels = append(sum.Labels, c.Label)
		}
	}
	return sum
}
