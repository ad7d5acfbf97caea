package section

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_Defaults(t *testing.T) {
	all := NewCatalog().All()
	require.Len(t, all, 8)
	assert.Equal(t, "A", all[0].ID)
	assert.Equal(t, "Write the Business & Strategy section.", all[0].Requirements)
	assert.Equal(t, "Offering Mechanics & Share Structure", all[7].Title)
}

func TestLoadCatalog_Formats(t *testing.T) {
	files := map[string]string{
		"sections.json": `{"C": {"requirements": "List the top five risks."}, "Z": {"title": "Glossary"}}`,
		"sections.yaml": "C:\n  requirements: List the top five risks.\nZ:\n  title: Glossary\n",
		"sections.toml": "[C]\nrequirements = \"List the top five risks.\"\n\n[Z]\ntitle = \"Glossary\"\n",
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			c, err := LoadCatalog(path)
			require.NoError(t, err)

			risk, ok := c.Get("C")
			require.True(t, ok)
			assert.Equal(t, "Risk Factors", risk.Title)
			assert.Equal(t, "List the top five risks.", risk.Requirements)

			all := c.All()
			require.Len(t, all, 9)
			assert.Equal(t, Requirement{ID: "Z", Title: "Glossary", Requirements: "Write the Glossary section."}, all[8])
		})
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "sections.ini")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err = LoadCatalog(path)
	assert.ErrorContains(t, err, "unsupported")

	bad := filepath.Join(t.TempDir(), "sections.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadCatalog(bad)
	assert.Error(t, err)

	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Len(t, c.All(), 8)
}

func TestCatalog_Select(t *testing.T) {
	c := NewCatalog()
	ctx := context.Background()

	assert.Len(t, c.Select(ctx, nil), 8)
	assert.Len(t, c.Select(ctx, []string{"all"}), 8)

	got := c.Select(ctx, []string{"d", "A", "X"})
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].ID)
	assert.Equal(t, "D", got[1].ID)

	assert.Empty(t, c.Select(ctx, []string{"nope"}))
}

func TestClassifyFile(t *testing.T) {
	assert.Equal(t, "D", ClassifyFile("/data/2024-balance-sheet.xlsx"))
	assert.Equal(t, "F", ClassifyFile("Board-and-Executives.xlsx"))
	assert.Equal(t, "", ClassifyFile("misc.pdf"))
}
