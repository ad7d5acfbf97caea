package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"prospectus/features/document"
	"prospectus/features/draft"
	"prospectus/internal/progress"
	"prospectus/internal/provider"
)

const Version = "1.0.0"

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]document.Passage, error)
}

type SectionDrafter interface {
	DraftSection(ctx context.Context, req draft.SectionRequest) (string, error)
}

type ProgressReader interface {
	Progress() progress.State
}

// Handler exposes retrieval and drafting as MCP tools over streamable HTTP
// or stdio.
type Handler struct {
	server   *gomcp.Server
	http     http.Handler
	search   Searcher
	drafter  SectionDrafter
	progress ProgressReader
}

func NewHandler(s Searcher, d SectionDrafter, p ProgressReader) *Handler {
	h := &Handler{
		server:   gomcp.NewServer(&gomcp.Implementation{Name: "prospectus", Version: Version}, nil),
		search:   s,
		drafter:  d,
		progress: p,
	}
	h.registerTools()
	h.http = gomcp.NewStreamableHTTPHandler(func(*http.Request) *gomcp.Server { return h.server }, nil)
	return h
}

func (h *Handler) Server() *gomcp.Server { return h.server }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.http.ServeHTTP(w, r)
}

// RunStdio serves MCP on stdin/stdout until ctx is cancelled.
func (h *Handler) RunStdio(ctx context.Context) error {
	return h.server.Run(ctx, &gomcp.StdioTransport{})
}

type SearchInput struct {
	Query string `json:"query" jsonschema:"the question or topic to find passages for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of passages (default 6)"`
}

type SearchOutput struct {
	Passages []document.Passage `json:"passages"`
	Count    int                `json:"count"`
}

type DraftInput struct {
	Section      string   `json:"section" jsonschema:"section id (A-H) or a free-form section title"`
	Requirements string   `json:"requirements,omitempty" jsonschema:"what the section must cover"`
	TopK         int      `json:"top_k,omitempty" jsonschema:"passages to retrieve (default 8)"`
	Temperature  *float32 `json:"temperature,omitempty" jsonschema:"sampling temperature"`
}

type DraftOutput struct {
	Section string `json:"section"`
	Text    string `json:"text"`
}

type ProgressInput struct{}

type ProgressOutput struct {
	Status    string `json:"status"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	UpdatedAt string `json:"updated_at"`
}

func (h *Handler) registerTools() {
	gomcp.AddTool(h.server, &gomcp.Tool{
		Name: "search_passages",
		Description: `Finds the source passages most relevant to a question across all ingested documents.
Use it to check what the evidence says before drafting, or to answer ad-hoc questions.`,
	}, h.handleSearch)

	gomcp.AddTool(h.server, &gomcp.Tool{
		Name: "draft_section",
		Description: `Drafts one prospectus section from the ingested documents.
Pass a section id (A-H) to use its configured requirements, or any title with explicit requirements.`,
	}, h.handleDraft)

	gomcp.AddTool(h.server, &gomcp.Tool{
		Name:        "draft_progress",
		Description: "Reports the status of the current or last full drafting run.",
	}, h.handleProgress)
}

func (h *Handler) handleSearch(ctx context.Context, _ *gomcp.CallToolRequest, in SearchInput) (*gomcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, SearchOutput{}, fmt.Errorf("query is required")
	}
	passages, err := h.search.Search(ctx, in.Query, in.Limit)
	if err != nil {
		slog.ErrorContext(ctx, "search failed", "error", err)
		code, _ := provider.ErrorCode(err)
		return nil, SearchOutput{}, fmt.Errorf("%s: search failed: %w", code, err)
	}
	if passages == nil {
		passages = []document.Passage{}
	}
	slog.InfoContext(ctx, "tool execution completed", "tool", "search_passages", "result_count", len(passages))
	return nil, SearchOutput{Passages: passages, Count: len(passages)}, nil
}

func (h *Handler) handleDraft(ctx context.Context, _ *gomcp.CallToolRequest, in DraftInput) (*gomcp.CallToolResult, DraftOutput, error) {
	if strings.TrimSpace(in.Section) == "" {
		return nil, DraftOutput{}, fmt.Errorf("section is required")
	}
	text, err := h.drafter.DraftSection(ctx, draft.SectionRequest{
		Section:      in.Section,
		Requirements: in.Requirements,
		TopK:         in.TopK,
		Temperature:  in.Temperature,
	})
	if err != nil {
		slog.ErrorContext(ctx, "draft failed", "section", in.Section, "error", err)
		code, _ := provider.ErrorCode(err)
		return nil, DraftOutput{}, fmt.Errorf("%s: %w", code, err)
	}
	slog.InfoContext(ctx, "tool execution completed", "tool", "draft_section", "section", in.Section)
	return nil, DraftOutput{Section: in.Section, Text: text}, nil
}

func (h *Handler) handleProgress(_ context.Context, _ *gomcp.CallToolRequest, _ ProgressInput) (*gomcp.CallToolResult, ProgressOutput, error) {
	st := h.progress.Progress()
	return nil, ProgressOutput{
		Status:    string(st.Status),
		Completed: st.Completed,
		Total:     st.Total,
		UpdatedAt: st.UpdatedAt.Format(time.RFC3339),
	}, nil
}
