package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"prospectus/internal/index"
	"prospectus/internal/middleware"
	"prospectus/internal/provider"
)

type Handler struct {
	service     *Service
	maxUploadMB int64
}

func NewHandler(s *Service, maxUploadMB int64) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &Handler{service: s, maxUploadMB: maxUploadMB}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := h.maxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		h.writeError(ctx, w, "BAD_REQUEST", "No files uploaded", http.StatusBadRequest)
		return
	}

	results := make([]UploadResult, 0, len(headers))
	accepted := 0
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			results = append(results, UploadResult{File: fh.Filename, Status: StatusFailed, Error: "unable to read file"})
			continue
		}
		res, err := h.service.Upload(ctx, fh.Filename, fh.Header.Get("Content-Type"), f)
		f.Close()
		if err != nil {
			slog.WarnContext(ctx, "upload rejected", "file", fh.Filename, "error", err)
			res.Status = StatusFailed
			res.Error = err.Error()
			if errors.Is(err, ErrUnsupportedType) {
				res.Error = "Unsupported file type"
			}
		} else {
			accepted++
		}
		results = append(results, res)
	}

	if accepted == 0 {
		h.writeError(ctx, w, "BAD_REQUEST", results[0].Error, http.StatusBadRequest)
		return
	}

	status := http.StatusCreated
	if h.service.pub != nil {
		status = http.StatusAccepted
	}
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"data": results,
		"meta": map[string]int{"count": len(results)},
	})
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Files []string `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Files) == 0 {
		h.writeError(ctx, w, "VALIDATION_ERROR", "files is required", http.StatusBadRequest)
		return
	}

	rep := h.service.IngestPaths(ctx, req.Files)
	h.writeJSON(ctx, w, http.StatusOK, rep)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list documents", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []index.Summary{}
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "q is required", http.StatusBadRequest)
		return
	}
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(ctx, w, "VALIDATION_ERROR", "k must be a positive integer", http.StatusBadRequest)
			return
		}
		k = parsed
	}

	passages, err := h.service.Search(ctx, q, k)
	if err != nil {
		slog.ErrorContext(ctx, "search failed", "error", err)
		h.writeProviderError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": passages,
		"meta": map[string]int{"count": len(passages)},
	})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}

func (h *Handler) writeProviderError(ctx context.Context, w http.ResponseWriter, err error) {
	code, status := provider.ErrorCode(err)
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":      code,
			"message":   err.Error(),
			"retryable": provider.IsRetryable(err),
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
