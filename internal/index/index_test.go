package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id string, created time.Time, texts ...string) DocumentIndex {
	idx := DocumentIndex{DocumentID: id, DocumentName: id + ".pdf", CreatedAt: created, Provider: "local-service", Dimension: 2}
	for i, t := range texts {
		idx.Chunks = append(idx.Chunks, Chunk{ID: id + "-" + t, DocumentID: id, DocumentName: id + ".pdf", Index: i, Text: t, Embedding: []float32{1, 0}})
	}
	return idx
}

func TestFileStore_PutAndLoadAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "index"))

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, "b", doc("b", base.Add(time.Hour), "b1")))
	require.NoError(t, s.Put(ctx, "a", doc("a", base, "a1", "a2")))
	require.NoError(t, s.Put(ctx, "c", doc("c", base, "c1")))

	chunks, err := s.LoadAll(ctx)
	require.NoError(t, err)

	var texts []string
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	// a and c tie on CreatedAt and fall back to file name
	assert.Equal(t, []string{"a1", "a2", "c1", "b1"}, texts)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Dimension)
	assert.Len(t, got.Chunks, 2)
}

func TestFileStore_LoadAll_Empty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "missing"))
	chunks, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFileStore_SkipsCorruptAndForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)

	require.NoError(t, s.Put(ctx, "good", doc("good", time.Now(), "x")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("{"), 0o644))

	chunks, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "x", chunks[0].Text)
}

func TestFileStore_PutLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)

	require.NoError(t, s.Put(ctx, "../weird id", doc("w", time.Now(), "x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".._weird_id.json", entries[0].Name())
}

func TestFileStore_PutRejectsEmptyID(t *testing.T) {
	s := NewFileStore(t.TempDir())
	assert.Error(t, s.Put(context.Background(), "", DocumentIndex{}))
}

func TestFileStore_ListCountManifest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)

	sheet := doc("fin", time.Now(), "r1", "r2", "r3")
	sheet.Chunks[0].Label = "Revenue"
	sheet.Chunks[1].Label = "Revenue"
	sheet.Chunks[2].Label = "Costs"
	sheet.Section = "D"
	require.NoError(t, s.Put(ctx, "fin", sheet))
	require.NoError(t, s.Put(ctx, "memo", doc("memo", time.Now().Add(time.Second), "m1")))

	docs, chunks, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, docs)
	assert.Equal(t, 4, chunks)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"Revenue", "Costs"}, list[0].Labels)

	m, err := s.WriteManifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, m.TotalChunks)
	assert.Equal(t, map[string]int{"D": 3}, m.BySection)

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	var onDisk Manifest
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Len(t, onDisk.Documents, 2)

	// the manifest is not mistaken for a document
	docs, _, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, docs)
}

func TestSafeID(t *testing.T) {
	assert.Equal(t, "abc_def.pdf", SafeID("abc def.pdf"))
	assert.Equal(t, "a_b_c", SafeID("a/b\\c"))
	assert.Equal(t, "x-y_z", SafeID("x-y_z"))
}
