package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"prospectus/internal/middleware"
	"prospectus/internal/progress"
)

type IndexCounter interface {
	Count(ctx context.Context) (documents, chunks int, err error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

// VectorCounter reports how many passages the ANN backend holds.
type VectorCounter interface {
	Count(ctx context.Context) (int, error)
}

type ProgressReader interface {
	Read() progress.State
}

type Handler struct {
	index    IndexCounter
	jobRepo  JobRepo
	progress ProgressReader
	vectors  VectorCounter
}

func NewHandler(i IndexCounter, j JobRepo, p ProgressReader) *Handler {
	return &Handler{index: i, jobRepo: j, progress: p}
}

// WithVectorCounter adds the ANN backend's passage count to the response.
func (h *Handler) WithVectorCounter(v VectorCounter) *Handler {
	h.vectors = v
	return h
}

type StatsResponse struct {
	Documents  int            `json:"documents"`
	Chunks     int            `json:"chunks"`
	Vectors    *int           `json:"vectors,omitempty"`
	FailedJobs int            `json:"failed_jobs"`
	Draft      progress.State `json:"draft"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slog.InfoContext(ctx, "getting stats")

	docs, chunks, err := h.index.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	jCount, err := h.jobRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Documents:  docs,
		Chunks:     chunks,
		FailedJobs: jCount,
		Draft:      h.progress.Read(),
	}

	if h.vectors != nil {
		// The file index stays authoritative; a vector backend outage only drops the field.
		if n, err := h.vectors.Count(ctx); err != nil {
			slog.WarnContext(ctx, "failed to count vectors", "error", err)
		} else {
			resp.Vectors = &n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
