package drafting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"prospectus/internal/section"
)

const CombinedFile = "all_sections.md"

// OutputWriter renders drafted sections as markdown files.
type OutputWriter struct {
	dir string
}

func NewOutputWriter(dir string) *OutputWriter {
	return &OutputWriter{dir: dir}
}

func SectionFileName(req section.Requirement) string {
	name := strings.NewReplacer(" ", "_", "&", "and").Replace(req.Title)
	return "section_" + SafeName(req.ID) + "_" + SafeName(name) + ".md"
}

func RenderSection(req section.Requirement, body string) string {
	return fmt.Sprintf("# Section %s: %s\n\n%s", req.ID, req.Title, body)
}

func RenderCombined(results []SectionResult) string {
	var sb strings.Builder
	sb.WriteString("# Prospectus Draft\n\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "## Section %s: %s\n\n", r.Section.ID, r.Section.Title)
		sb.WriteString(r.Text)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (w *OutputWriter) WriteSection(req section.Requirement, body string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, SectionFileName(req))
	if err := os.WriteFile(path, []byte(RenderSection(req, body)), 0o644); err != nil {
		return "", fmt.Errorf("write section %s: %w", req.ID, err)
	}
	return path, nil
}

func (w *OutputWriter) WriteCombined(results []SectionResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.dir, CombinedFile)
	if err := os.WriteFile(path, []byte(RenderCombined(results)), 0o644); err != nil {
		return "", fmt.Errorf("write combined draft: %w", err)
	}
	return path, nil
}

func (w *OutputWriter) ReadCombined() ([]byte, error) {
	return os.ReadFile(filepath.Join(w.dir, CombinedFile))
}
