package index

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"
)

type Manifest struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Documents   []Summary      `json:"documents"`
	TotalChunks int            `json:"total_chunks"`
	BySection   map[string]int `json:"chunks_by_section,omitempty"`
}

func (s *FileStore) BuildManifest(ctx context.Context) (*Manifest, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	m := &Manifest{GeneratedAt: time.Now().UTC(), Documents: docs, BySection: map[string]int{}}
	for _, d := range docs {
		m.TotalChunks += d.ChunkCount
		if d.Section != "" {
			m.BySection[d.Section] += d.ChunkCount
		}
	}
	return m, nil
}

// WriteManifest rebuilds manifest.json next to the index files.
func (s *FileStore) WriteManifest(ctx context.Context) (*Manifest, error) {
	m, err := s.BuildManifest(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("index: marshal manifest: %w", err)
	}
	if err := writeFileAtomic(s.dir, filepath.Join(s.dir, manifestName), data); err != nil {
		return nil, fmt.Errorf("index: write manifest: %w", err)
	}
	return m, nil
}
