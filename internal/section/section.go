// Package section holds the prospectus section taxonomy and the per-section
// requirement text used to draft each one.
package section

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Requirement struct {
	ID           string `json:"id" yaml:"id" toml:"id"`
	Title        string `json:"title" yaml:"title" toml:"title"`
	Requirements string `json:"requirements" yaml:"requirements" toml:"requirements"`
}

// Defaults is the standard A–H prospectus structure.
var Defaults = []Requirement{
	{ID: "A", Title: "Business & Strategy"},
	{ID: "B", Title: "Industry & Market"},
	{ID: "C", Title: "Risk Factors"},
	{ID: "D", Title: "Financial Performance & Condition"},
	{ID: "E", Title: "Use of Proceeds & Capital Structure"},
	{ID: "F", Title: "Management, Governance & Incentives"},
	{ID: "G", Title: "Legal, Regulatory & Compliance"},
	{ID: "H", Title: "Offering Mechanics & Share Structure"},
}

func DefaultRequirementText(title string) string {
	return "Write the " + title + " section."
}

// override is one entry of a requirements file.
type override struct {
	Title        string `json:"title" yaml:"title" toml:"title"`
	Requirements string `json:"requirements" yaml:"requirements" toml:"requirements"`
}

// Catalog is the ordered set of known sections.
type Catalog struct {
	sections []Requirement
}

// NewCatalog returns the default taxonomy with default requirement text.
func NewCatalog() *Catalog {
	c := &Catalog{sections: make([]Requirement, len(Defaults))}
	for i, s := range Defaults {
		s.Requirements = DefaultRequirementText(s.Title)
		c.sections[i] = s
	}
	return c
}

// LoadCatalog merges a requirements file over the defaults. The format is
// chosen by extension (.json, .yaml/.yml, .toml). Unknown ids in the file
// are appended after the defaults in id order. An empty path returns the
// defaults.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sections file: %w", err)
	}

	overrides := map[string]override{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &overrides)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &overrides)
	case ".toml":
		err = toml.Unmarshal(data, &overrides)
	default:
		return nil, fmt.Errorf("unsupported sections file format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse sections file %s: %w", path, err)
	}

	c.merge(overrides)
	return c, nil
}

func (c *Catalog) merge(overrides map[string]override) {
	known := map[string]int{}
	for i, s := range c.sections {
		known[s.ID] = i
	}

	var extra []string
	for id, o := range overrides {
		i, ok := known[id]
		if !ok {
			extra = append(extra, id)
			continue
		}
		if o.Title != "" {
			c.sections[i].Title = o.Title
		}
		if strings.TrimSpace(o.Requirements) != "" {
			c.sections[i].Requirements = o.Requirements
		} else if o.Title != "" {
			c.sections[i].Requirements = DefaultRequirementText(o.Title)
		}
	}

	sort.Strings(extra)
	for _, id := range extra {
		o := overrides[id]
		title := o.Title
		if title == "" {
			title = id
		}
		req := o.Requirements
		if strings.TrimSpace(req) == "" {
			req = DefaultRequirementText(title)
		}
		c.sections = append(c.sections, Requirement{ID: id, Title: title, Requirements: req})
	}
}

func (c *Catalog) All() []Requirement {
	out := make([]Requirement, len(c.sections))
	copy(out, c.sections)
	return out
}

func (c *Catalog) Get(id string) (Requirement, bool) {
	for _, s := range c.sections {
		if strings.EqualFold(s.ID, id) {
			return s, true
		}
	}
	return Requirement{}, false
}

// Select returns the sections named by ids in catalog order. No ids, or the
// single id "all", selects everything. Unknown ids are skipped with a
// warning.
func (c *Catalog) Select(ctx context.Context, ids []string) []Requirement {
	if len(ids) == 0 || (len(ids) == 1 && strings.EqualFold(ids[0], "all")) {
		return c.All()
	}

	want := map[string]bool{}
	for _, id := range ids {
		if _, ok := c.Get(id); !ok {
			slog.WarnContext(ctx, "skipping unknown section", "section", id)
			continue
		}
		want[strings.ToUpper(id)] = true
	}

	var out []Requirement
	for _, s := range c.sections {
		if want[strings.ToUpper(s.ID)] {
			out = append(out, s)
		}
	}
	return out
}

// fileHints maps file-name fragments of typical data-room exports to the
// section they usually feed.
var fileHints = []struct {
	fragment string
	section  string
}{
	{"company-introduction", "A"},
	{"business-data", "A"},
	{"market-performance-comparison", "B"},
	{"comprehensive-comparison", "B"},
	{"balance-sheet", "D"},
	{"financial-ratios-comparison", "D"},
	{"financial-data-comparison", "D"},
	{"cash-flow", "D"},
	{"growth-capability", "D"},
	{"operating-capability", "D"},
	{"profit-forecast-comparison", "D"},
	{"share-capital-structure", "E"},
	{"holdings-or-equity", "E"},
	{"mainland-fund-holdings", "E"},
	{"board-and-executives", "F"},
}

// ClassifyFile guesses the section a source file belongs to from its name.
// It returns "" when nothing matches.
func ClassifyFile(filename string) string {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	for _, h := range fileHints {
		if strings.Contains(stem, h.fragment) {
			return h.section
		}
	}
	return ""
}
