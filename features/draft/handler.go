package draft

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"prospectus/internal/drafting"
	"prospectus/internal/middleware"
	"prospectus/internal/provider"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Sections []string `json:"sections"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
	}

	n, err := h.service.Start(ctx, req.Sections)
	switch {
	case errors.Is(err, drafting.ErrNoSections):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrRunInProgress):
		h.writeError(ctx, w, "CONFLICT", err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "drafting run started", "sections", n)
	h.writeJSON(ctx, w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{"status": "started", "sections": n},
	})
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, http.StatusOK, map[string]interface{}{"data": h.service.Progress()})
}

func (h *Handler) Output(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := h.service.Output()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.writeError(ctx, w, "NOT_FOUND", "No draft has been produced yet", http.StatusNotFound)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(ctx, "failed to write draft", "error", err)
	}
}

func (h *Handler) DraftSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Section == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "section is required", http.StatusBadRequest)
		return
	}

	text, err := h.service.DraftSection(ctx, req)
	if err != nil {
		slog.ErrorContext(ctx, "draft section failed", "section", req.Section, "error", err)
		h.writeProviderError(ctx, w, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"text": text})
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
